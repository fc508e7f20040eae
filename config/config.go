// Package config reads, validates and watches the JSON configuration a wander machine is
// assembled from.
package config

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"go.viam.com/safewander/logging"
	"go.viam.com/safewander/resource"
)

// A Config describes the configuration of a machine: its components and the services built on
// top of them.
type Config struct {
	Components []resource.Config `json:"components,omitempty"`
	Services   []resource.Config `json:"services,omitempty"`

	// Debug sets every logger to debug level.
	Debug bool `json:"debug,omitempty"`

	ConfigFilePath string `json:"-"`
}

// Ensure ensures all parts of the config are valid and sorts components based on what they depend on.
func (c *Config) Ensure(logger logging.Logger) error {
	for idx := range c.Components {
		if err := c.Components[idx].Validate(fmt.Sprintf("%s.%d", "components", idx), resource.APITypeComponentName); err != nil {
			return err
		}
	}
	for idx := range c.Services {
		if err := c.Services[idx].Validate(fmt.Sprintf("%s.%d", "services", idx), resource.APITypeServiceName); err != nil {
			return err
		}
	}

	if len(c.Components) > 0 {
		sorted, err := SortComponents(c.Components, logger)
		if err != nil {
			return err
		}
		c.Components = sorted
	}
	return nil
}

// FindComponent finds a particular component by name.
func (c Config) FindComponent(name string) *resource.Config {
	for idx := range c.Components {
		if c.Components[idx].Name == name {
			return &c.Components[idx]
		}
	}
	return nil
}

// SortComponents sorts list of components topologically based off what other components they depend on.
func SortComponents(components []resource.Config, logger logging.Logger) ([]resource.Config, error) {
	componentToConfig := make(map[string]resource.Config, len(components))
	dependencies := map[string][]string{}

	for _, conf := range components {
		if _, ok := componentToConfig[conf.Name]; ok {
			return nil, errors.Errorf("component name %q is not unique", conf.Name)
		}
		componentToConfig[conf.Name] = conf
		dependencies[conf.Name] = conf.Dependencies()
	}

	for name, deps := range dependencies {
		for _, depName := range deps {
			if _, ok := componentToConfig[depName]; !ok {
				logger.Warnw("missing dependency between components", "component", name, "dependency", depName)
			}
		}
	}

	sortedCmps := make([]resource.Config, 0, len(components))
	visited := map[string]bool{}

	var dfsHelper func(string, []string) error
	dfsHelper = func(name string, path []string) error {
		for idx, cmpName := range path {
			if name == cmpName {
				return errors.Errorf("circular dependency detected in component list between %s", strings.Join(path[idx:], ", "))
			}
		}

		path = append(path, name)
		if visited[name] {
			return nil
		}
		visited[name] = true
		for _, dep := range dependencies[name] {
			pathCopy := make([]string, len(path))
			copy(pathCopy, path)
			if err := dfsHelper(dep, pathCopy); err != nil {
				return err
			}
		}
		if conf, ok := componentToConfig[name]; ok {
			sortedCmps = append(sortedCmps, conf)
		}
		return nil
	}

	for _, conf := range components {
		if !visited[conf.Name] {
			if err := dfsHelper(conf.Name, nil); err != nil {
				return nil, err
			}
		}
	}

	return sortedCmps, nil
}
