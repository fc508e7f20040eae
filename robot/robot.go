// Package robot assembles the resources described by a config and keeps them in step with config
// changes.
package robot

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/safewander/config"
	"go.viam.com/safewander/logging"
	"go.viam.com/safewander/resource"
)

// Robot owns every resource built from a config.
type Robot struct {
	logger logging.Logger
	// level is the logger's level when the config does not ask for debug logs.
	level logging.Level

	mu        sync.Mutex
	config    *config.Config
	resources map[resource.Name]resource.Resource
	// order is construction order; resources are closed in reverse.
	order []resource.Name
}

// New builds the components of cfg, in dependency order, then its services. On failure
// everything built so far is closed.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Robot, error) {
	r := &Robot{logger: logger, level: logger.GetLevel()}
	if err := r.build(ctx, cfg); err != nil {
		return nil, multierr.Combine(err, r.closeAll(ctx))
	}
	return r, nil
}

func (r *Robot) build(ctx context.Context, cfg *config.Config) error {
	r.config = cfg
	r.resources = map[resource.Name]resource.Resource{}
	r.order = nil
	r.applyDebug(cfg)
	for _, confs := range [][]resource.Config{cfg.Components, cfg.Services} {
		for _, conf := range confs {
			res, err := r.newResource(ctx, conf)
			if err != nil {
				return errors.Wrapf(err, "building %s", conf.ResourceName())
			}
			r.resources[conf.ResourceName()] = res
			r.order = append(r.order, conf.ResourceName())
		}
	}
	return nil
}

func (r *Robot) applyDebug(cfg *config.Config) {
	if cfg.Debug {
		r.logger.SetLevel(logging.DEBUG)
	} else {
		r.logger.SetLevel(r.level)
	}
}

func (r *Robot) dependencies(conf resource.Config) (resource.Dependencies, error) {
	deps := make(resource.Dependencies)
	for _, depName := range conf.Dependencies() {
		found := false
		for name, res := range r.resources {
			if name.Name == depName {
				deps[name] = res
				found = true
			}
		}
		if !found {
			return nil, errors.Errorf("dependency %q of %q is not built", depName, conf.Name)
		}
	}
	return deps, nil
}

func (r *Robot) newResource(ctx context.Context, conf resource.Config) (res resource.Resource, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Wrap(errors.Errorf("%v", p), "panic creating resource")
		}
	}()
	reg, ok := resource.LookupRegistration(conf.API, conf.Model)
	if !ok {
		return nil, errors.Errorf("unknown resource api: %s and/or model: %s", conf.API, conf.Model)
	}
	deps, err := r.dependencies(conf)
	if err != nil {
		return nil, err
	}
	return reg.Constructor(ctx, deps, conf, r.logger.Sublogger(conf.Name))
}

// ResourceByName returns the named resource.
func (r *Robot) ResourceByName(name resource.Name) (resource.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.resources[name]
	if !ok {
		return nil, resource.NewNotFoundError(name)
	}
	return res, nil
}

// ResourceNames returns the names of all resources in construction order.
func (r *Robot) ResourceNames() []resource.Name {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]resource.Name(nil), r.order...)
}

// Config returns the config the robot was last built or reconfigured with.
func (r *Robot) Config() *config.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.config
}

// Reconfigure moves the robot to newConfig. Services whose only change is their attributes are
// reconfigured in place. Anything else, or a resource refusing the change, rebuilds the robot.
// It reports whether a rebuild happened.
func (r *Robot) Reconfigure(ctx context.Context, newConfig *config.Config) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	diff, err := config.DiffConfigs(*r.config, *newConfig)
	if err != nil {
		return false, err
	}
	r.applyDebug(newConfig)
	if diff.ResourcesEqual {
		r.config = newConfig
		return false, nil
	}

	inPlace := len(diff.Added.Components)+len(diff.Modified.Components)+len(diff.Removed.Components) == 0 &&
		len(diff.Added.Services)+len(diff.Removed.Services) == 0
	if inPlace {
		for _, conf := range diff.Modified.Services {
			if err = r.reconfigureResource(ctx, conf); err != nil {
				break
			}
		}
		if err == nil {
			r.config = newConfig
			return false, nil
		}
		var rebuild *resource.MustRebuildError
		if !errors.As(err, &rebuild) {
			return false, err
		}
	}

	r.logger.CInfow(ctx, "rebuilding robot", "diff", diff.String())
	if err := r.closeAll(ctx); err != nil {
		r.logger.CWarnw(ctx, "error closing resources before rebuild", "error", err)
	}
	if err := r.build(ctx, newConfig); err != nil {
		return true, multierr.Combine(err, r.closeAll(ctx))
	}
	return true, nil
}

func (r *Robot) reconfigureResource(ctx context.Context, conf resource.Config) error {
	res, ok := r.resources[conf.ResourceName()]
	if !ok {
		return resource.NewNotFoundError(conf.ResourceName())
	}
	deps, err := r.dependencies(conf)
	if err != nil {
		return err
	}
	return res.Reconfigure(ctx, deps, conf)
}

// Close closes every resource, dependents first.
func (r *Robot) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeAll(ctx)
}

func (r *Robot) closeAll(ctx context.Context) error {
	var err error
	for i := len(r.order) - 1; i >= 0; i-- {
		name := r.order[i]
		err = multierr.Combine(err, errors.Wrapf(r.resources[name].Close(ctx), "closing %s", name))
	}
	r.resources = map[resource.Name]resource.Resource{}
	r.order = nil
	return err
}
