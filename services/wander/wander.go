// Package wander is the safe wander service. It drives a base forward until a bumper or cliff
// sensor fires, backs off, turns in place to a random heading away from the hazard, and repeats.
package wander

import (
	"context"

	"go.viam.com/safewander/resource"
)

// SubtypeName is the name of the type of service.
const SubtypeName = "wander"

// API is a variable that identifies the wander service resource API.
var API = resource.APINamespaceRDK.WithServiceType(SubtypeName)

// Named is a helper for getting the named wander's typed resource name.
func Named(name string) resource.Name {
	return resource.NewName(API, name)
}

// A Service wanders a base around while avoiding bumps and cliffs.
type Service interface {
	resource.Resource
	// Start begins wandering in the background. It fails with ErrAlreadyRunning if already
	// wandering.
	Start(ctx context.Context) error
	// Stop asks wandering to end after any hazard in flight has been avoided. It does not wait.
	Stop(ctx context.Context) error
	// Running reports whether the control loop is still running.
	Running(ctx context.Context) (bool, error)
	// SetVelocities changes the forward, retreat and turn speeds in m/s and rad/s.
	SetVelocities(ctx context.Context, linear, retreat, angular float64) error
	State(ctx context.Context) (Snapshot, error)
}

// FromDependencies is a helper for getting the named wander service from a collection of
// dependencies.
func FromDependencies(deps resource.Dependencies, name string) (Service, error) {
	return resource.FromDependencies[Service](deps, Named(name))
}
