// Package movementsensor defines the interfaces of a MovementSensor
package movementsensor

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/safewander/resource"
	"go.viam.com/safewander/spatialmath"
	"go.viam.com/safewander/utils"
)

// SubtypeName is a constant that identifies the component resource API string "movement_sensor".
const SubtypeName = "movement_sensor"

// API is a variable that identifies the component resource API.
var API = resource.APINamespaceRDK.WithComponentType(SubtypeName)

// Named is a helper for getting the named MovementSensor's typed resource name.
func Named(name string) resource.Name {
	return resource.NewName(API, name)
}

// Properties tells you what a MovementSensor supports.
type Properties struct {
	OrientationSupported    bool
	CompassHeadingSupported bool
}

// A MovementSensor reports information about the robot's direction.
type MovementSensor interface {
	resource.Resource
	// Orientation returns the orientation of the sensor in the world frame.
	Orientation(ctx context.Context, extra map[string]interface{}) (spatialmath.Orientation, error)
	// CompassHeading returns degrees clockwise from north, in [0, 360).
	CompassHeading(ctx context.Context, extra map[string]interface{}) (float64, error)
	Properties(ctx context.Context, extra map[string]interface{}) (*Properties, error)
}

// FromDependencies is a helper for getting the named movementsensor from a collection of
// dependencies.
func FromDependencies(deps resource.Dependencies, name string) (MovementSensor, error) {
	return resource.FromDependencies[MovementSensor](deps, Named(name))
}

// HeadingFunc returns a function reading yaw in radians, counterclockwise positive, from the best
// source ms supports: orientation first, then compass heading.
func HeadingFunc(ctx context.Context, ms MovementSensor) (func(ctx context.Context) (float64, error), error) {
	props, err := ms.Properties(ctx, nil)
	if err != nil {
		return nil, err
	}
	switch {
	case props.OrientationSupported:
		return func(ctx context.Context) (float64, error) {
			orient, err := ms.Orientation(ctx, nil)
			if err != nil {
				return 0, err
			}
			return orient.EulerAngles().Yaw, nil
		}, nil
	case props.CompassHeadingSupported:
		return func(ctx context.Context) (float64, error) {
			heading, err := ms.CompassHeading(ctx, nil)
			if err != nil {
				return 0, err
			}
			// compass headings run clockwise
			return spatialmath.NormalizeAngle(-utils.DegToRad(heading)), nil
		}, nil
	default:
		return nil, errors.Errorf("movement sensor %s supports neither orientation nor compass heading", ms.Name().ShortName())
	}
}
