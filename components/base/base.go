// Package base defines the wheeled base component the wander service drives.
package base

import (
	"context"

	"github.com/golang/geo/r3"

	"go.viam.com/safewander/resource"
)

// SubtypeName is a constant that identifies the component resource API string "base".
const SubtypeName = "base"

// API is a variable that identifies the component resource API.
var API = resource.APINamespaceRDK.WithComponentType(SubtypeName)

// Named is a helper for getting the named Base's typed resource name.
func Named(name string) resource.Name {
	return resource.NewName(API, name)
}

// A Base represents a physical base of a robot.
type Base interface {
	resource.Resource

	// SetVelocity sets the velocity of the base.
	// linear is in mmPerSec (positive Y is forward)
	// angular is in degsPerSec (positive Z is counterclockwise)
	SetVelocity(ctx context.Context, linear, angular r3.Vector, extra map[string]interface{}) error

	// Stop stops the base. It is assumed the base stops immediately.
	Stop(ctx context.Context, extra map[string]interface{}) error

	// IsMoving returns whether the base was last commanded to a non-zero velocity.
	IsMoving(ctx context.Context) (bool, error)
}

// FromDependencies is a helper for getting the named base from a collection of
// dependencies.
func FromDependencies(deps resource.Dependencies, name string) (Base, error) {
	return resource.FromDependencies[Base](deps, Named(name))
}
