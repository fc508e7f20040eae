// Package resource defines the components and services a machine is assembled from, how they are
// named, configured and registered, and how they find their dependencies.
package resource

import (
	"context"
	"reflect"

	"github.com/pkg/errors"
)

// A Resource is the basic unit of a machine: a component such as a base or a bumper, or a
// service such as the wander behavior.
type Resource interface {
	Named

	// Reconfigure applies a new config to the resource in place. Resources that cannot do so
	// return a MustRebuildError.
	Reconfigure(ctx context.Context, deps Dependencies, conf Config) error

	// Close must safely shut down the resource and prevent further use.
	Close(ctx context.Context) error
}

// Named is anything that knows its resource name.
type Named interface {
	Name() Name
}

// TriviallyCloseable is to be embedded by any resource that does not care about handling Closes.
type TriviallyCloseable struct{}

// Close always returns no error.
func (TriviallyCloseable) Close(ctx context.Context) error {
	return nil
}

// AlwaysRebuild is to be embedded by any resource that must be rebuilt on reconfiguration.
type AlwaysRebuild struct{}

// Reconfigure always returns a MustRebuildError.
func (AlwaysRebuild) Reconfigure(ctx context.Context, deps Dependencies, conf Config) error {
	return NewMustRebuildError(conf.ResourceName())
}

// MustRebuildError is returned when a resource cannot apply a config in place.
type MustRebuildError struct {
	Name Name
}

// NewMustRebuildError returns a new MustRebuildError for the given resource.
func NewMustRebuildError(name Name) error {
	return &MustRebuildError{Name: name}
}

func (e *MustRebuildError) Error() string {
	return "cannot reconfigure " + e.Name.String() + " in place; it must be rebuilt"
}

// Dependencies are the resources a resource depends on, keyed by name.
type Dependencies map[Name]Resource

// Lookup searches for a given dependency by name.
func (d Dependencies) Lookup(name Name) (Resource, error) {
	res, ok := d[name]
	if !ok {
		return nil, DependencyNotFoundError(name)
	}
	return res, nil
}

// FromDependencies returns a named resource of type T from the given dependencies.
func FromDependencies[T Resource](deps Dependencies, name Name) (T, error) {
	var zero T
	res, err := deps.Lookup(name)
	if err != nil {
		return zero, err
	}
	typed, ok := res.(T)
	if !ok {
		return zero, DependencyTypeError[T](name, res)
	}
	return typed, nil
}

// DependencyNotFoundError is used when a resource is not in the dependencies handed to a
// constructor.
func DependencyNotFoundError(name Name) error {
	return errors.Errorf("%q missing from dependencies", name)
}

// DependencyTypeError is used when a resource doesn't implement the expected interface.
func DependencyTypeError[T Resource](name Name, actual interface{}) error {
	expected := reflect.TypeOf((*T)(nil)).Elem()
	return errors.Errorf("dependency %q should be an implementation of %s but it was a %T", name, expected, actual)
}

// NewNotFoundError is used when a resource is not found.
func NewNotFoundError(name Name) error {
	return &notFoundError{name: name}
}

type notFoundError struct {
	name Name
}

func (e *notFoundError) Error() string {
	return "resource " + e.name.String() + " not found"
}

// IsNotFoundError returns if the given error is any kind of not found error.
func IsNotFoundError(err error) bool {
	var errArt *notFoundError
	return errors.As(err, &errArt)
}
