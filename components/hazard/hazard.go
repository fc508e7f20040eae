// Package hazard defines bump and cliff sensors and the events they report.
package hazard

import (
	"context"
	"fmt"

	"go.viam.com/safewander/resource"
)

// SubtypeName is a constant that identifies the component resource API string "hazard_sensor".
const SubtypeName = "hazard_sensor"

// API is a variable that identifies the component resource API.
var API = resource.APINamespaceRDK.WithComponentType(SubtypeName)

// Named is a helper for getting the named hazard Sensor's typed resource name.
func Named(name string) resource.Name {
	return resource.NewName(API, name)
}

// Side is which side of the robot a hazard was sensed on.
type Side int

// The sides a bumper or cliff sensor can report.
const (
	Left Side = iota
	Center
	Right
)

func (s Side) String() string {
	switch s {
	case Left:
		return "left"
	case Center:
		return "center"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

// Source is the kind of sensor a hazard came from.
type Source int

// The hazard sources.
const (
	Bump Source = iota
	Cliff
)

func (s Source) String() string {
	switch s {
	case Bump:
		return "bump"
	case Cliff:
		return "cliff"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

// Event is a hazard that requires the robot to back off and turn away.
type Event struct {
	Source Source
	Side   Side
}

// A Reading is a raw report from a hazard sensor. Only some readings are hazards.
type Reading interface {
	Hazard() (Event, bool)
}

// BumperState is whether a bumper is pressed.
type BumperState int

// The bumper states.
const (
	Released BumperState = iota
	Pressed
)

// BumperEvent is reported when a bumper is pressed or released.
type BumperEvent struct {
	Bumper Side
	State  BumperState
}

// Hazard returns the event for a press. Releases are not hazards.
func (e BumperEvent) Hazard() (Event, bool) {
	return Event{Source: Bump, Side: e.Bumper}, e.State == Pressed
}

// CliffState is whether a cliff sensor sees the floor.
type CliffState int

// The cliff sensor states.
const (
	Floor CliffState = iota
	CliffDetected
)

// CliffEvent is reported when a cliff sensor loses or regains the floor.
type CliffEvent struct {
	Sensor Side
	State  CliffState
}

// Hazard returns the event for a detected cliff. Seeing the floor again is not a hazard.
func (e CliffEvent) Hazard() (Event, bool) {
	return Event{Source: Cliff, Side: e.Sensor}, e.State == CliffDetected
}

// A Sensor is a bumper or cliff sensor that pushes readings as they happen.
type Sensor interface {
	resource.Resource
	// Events returns the channel readings are delivered on. It is closed when the sensor is closed.
	Events() <-chan Reading
}

// FromDependencies is a helper for getting the named hazard sensor from a collection of
// dependencies.
func FromDependencies(deps resource.Dependencies, name string) (Sensor, error) {
	return resource.FromDependencies[Sensor](deps, Named(name))
}

// Watch delivers every hazard from s to onHazard until ctx is done or the sensor's channel is
// closed. Readings that are not hazards are dropped.
func Watch(ctx context.Context, s Sensor, onHazard func(Event)) {
	events := s.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case reading, ok := <-events:
			if !ok {
				return
			}
			if event, isHazard := reading.Hazard(); isHazard {
				onHazard(event)
			}
		}
	}
}
