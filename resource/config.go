package resource

import (
	"fmt"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/safewander/utils"
)

// A Config describes the configuration of a resource.
type Config struct {
	Name      string   `json:"name"`
	API       API      `json:"api,omitempty"`
	Type      string   `json:"type"`
	Model     Model    `json:"model"`
	DependsOn []string `json:"depends_on,omitempty"`

	Attributes          utils.AttributeMap `json:"attributes"`
	ConvertedAttributes ConfigValidator    `json:"-"`
	ImplicitDependsOn   []string           `json:"-"`
}

// A ConfigValidator validates a configuration and also returns dependencies that were
// implicitly discovered.
type ConfigValidator interface {
	Validate(path string) ([]string, error)
}

// NoNativeConfig is used by resources that take no attributes.
type NoNativeConfig struct{}

// Validate always succeeds.
func (NoNativeConfig) Validate(path string) ([]string, error) {
	return nil, nil
}

var noNativeConfigType = reflect.TypeOf(NoNativeConfig{})

// NativeConfig returns the native config from the given config via its converted attributes.
func NativeConfig[T any](conf Config) (T, error) {
	return utils.AssertType[T](conf.ConvertedAttributes)
}

// ResourceName returns the resource name for the config. The config must have been validated.
func (conf *Config) ResourceName() Name {
	return NewName(conf.API, conf.Name)
}

// Dependencies returns the deduplicated union of user-defined and implicit dependencies.
func (conf *Config) Dependencies() []string {
	result := make([]string, 0, len(conf.DependsOn)+len(conf.ImplicitDependsOn))
	seen := make(map[string]struct{})
	for _, deps := range [][]string{conf.DependsOn, conf.ImplicitDependsOn} {
		for _, dep := range deps {
			if _, ok := seen[dep]; !ok {
				seen[dep] = struct{}{}
				result = append(result, dep)
			}
		}
	}
	return result
}

// Equals checks if the two configs are deeply equal to each other.
func (conf Config) Equals(other Config) bool {
	//nolint:govet
	return reflect.DeepEqual(conf, other)
}

// String returns a verbose representation of the config.
func (conf *Config) String() string {
	return fmt.Sprintf("%#v", conf)
}

// AdjustPartialNames fills in the API from the short type and the default service model. It is
// safe to call more than once.
func (conf *Config) AdjustPartialNames(defaultType string) {
	if conf.API.SubtypeName == "" && conf.Type != "" {
		conf.API = APINamespaceRDK.WithType(defaultType).WithSubtype(conf.Type)
	}
	if conf.API.SubtypeName != "" {
		conf.Type = conf.API.SubtypeName
	}
	if defaultType == APITypeServiceName && conf.Model.Name == "" {
		conf.Model = DefaultServiceModel
	}
}

// Validate fills in defaults and ensures all parts of the config are valid. Implicit
// dependencies reported by the converted attributes are stored in ImplicitDependsOn.
func (conf *Config) Validate(path, defaultType string) error {
	conf.AdjustPartialNames(defaultType)
	if conf.API.SubtypeName == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "type")
	}
	if conf.API.Type.Name != defaultType {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("api %q is not a %s api", conf.API, defaultType))
	}
	if conf.Name == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "name")
	}
	if err := ContainsReservedCharacter(conf.Name); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	if conf.Model.Name == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "model")
	}
	if err := conf.Model.Validate(); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	if err := conf.API.Validate(); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}

	conf.ImplicitDependsOn = nil
	if conf.ConvertedAttributes != nil {
		deps, err := conf.ConvertedAttributes.Validate(path + ".attributes")
		if err != nil {
			return err
		}
		conf.ImplicitDependsOn = deps
	}
	return nil
}

// TransformAttributeMap uses an attribute map to transform attributes to the prescribed format.
// Fields are matched on their json tags.
func TransformAttributeMap[T any](attributes utils.AttributeMap) (T, error) {
	var out T

	var forResult interface{}

	toT := reflect.TypeOf(out)
	if toT == nil {
		// nothing to transform
		return out, nil
	}
	if toT.Kind() == reflect.Ptr {
		// needs to be allocated then
		var ok bool
		out, ok = reflect.New(toT.Elem()).Interface().(T)
		if !ok {
			return out, errors.Errorf("failed to allocate default config type %T", out)
		}
		forResult = out
	} else {
		forResult = &out
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           forResult,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return out, errors.Wrap(err, "error decoding attributes")
	}
	return out, nil
}
