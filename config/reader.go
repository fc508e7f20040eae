package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"

	"go.viam.com/safewander/logging"
	"go.viam.com/safewander/resource"
)

// Read reads a config from the given file. ${VAR} references are expanded from the environment
// before parsing.
func Read(
	ctx context.Context,
	filePath string,
	logger logging.Logger,
) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	return FromReader(ctx, filePath, bytes.NewReader(buf), logger)
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
func FromReader(
	ctx context.Context,
	originalPath string,
	r io.Reader,
	logger logging.Logger,
) (*Config, error) {
	cfg := &Config{ConfigFilePath: originalPath}
	if err := json.NewDecoder(r).Decode(cfg); err != nil {
		return nil, errors.Wrap(err, "cannot parse config")
	}

	if err := convertAttributes(cfg.Components, resource.APITypeComponentName, "components"); err != nil {
		return nil, err
	}
	if err := convertAttributes(cfg.Services, resource.APITypeServiceName, "services"); err != nil {
		return nil, err
	}

	if err := cfg.Ensure(logger); err != nil {
		return nil, err
	}
	logger.CDebugw(ctx, "read config", "path", originalPath,
		"components", len(cfg.Components), "services", len(cfg.Services))
	return cfg, nil
}

func convertAttributes(confs []resource.Config, defaultType, section string) error {
	for idx := range confs {
		conf := &confs[idx]
		conf.AdjustPartialNames(defaultType)
		if _, ok := resource.LookupRegistration(conf.API, conf.Model); !ok && conf.API.SubtypeName != "" {
			return errors.Errorf("%s.%d: no registered model %q for api %q", section, idx, conf.Model, conf.API)
		}
		if err := resource.ConvertAttributes(conf); err != nil {
			return errors.Wrap(err, fmt.Sprintf("%s.%d", section, idx))
		}
	}
	return nil
}
