package wander

import (
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/stat/distuv"

	"go.viam.com/safewander/components/hazard"
	"go.viam.com/safewander/spatialmath"
)

var (
	// a side hazard turns the base at least 36 degrees and at most half a turn away from it
	sideTurn = distuv.Uniform{Min: 0.2 * math.Pi, Max: math.Pi}
	// a head-on hazard has no preferred side
	centerTurn = distuv.Uniform{Min: -math.Pi, Max: math.Pi}
)

// GoalCalculator picks the heading to turn to after a hazard.
type GoalCalculator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGoalCalculator returns a calculator whose draws are fully determined by seed.
func NewGoalCalculator(seed int64) *GoalCalculator {
	//nolint:gosec
	return &GoalCalculator{rng: rand.New(rand.NewSource(seed))}
}

func (gc *GoalCalculator) draw(dist distuv.Uniform) float64 {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return dist.Quantile(gc.rng.Float64())
}

// Compute returns the target heading, in radians, for a hazard sensed while the base faced
// current. Hazards on the left turn the base clockwise, hazards on the right counterclockwise,
// and head-on hazards either way.
func (gc *GoalCalculator) Compute(event hazard.Event, current float64) float64 {
	switch event.Side {
	case hazard.Left:
		return spatialmath.NormalizeAngle(current - gc.draw(sideTurn))
	case hazard.Right:
		return spatialmath.NormalizeAngle(current + gc.draw(sideTurn))
	default:
		return spatialmath.NormalizeAngle(current + gc.draw(centerTurn))
	}
}
