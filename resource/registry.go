package resource

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/safewander/logging"
	"go.viam.com/safewander/utils"
)

type (
	// An APIModel is the tuple that identifies a model implementing an API.
	APIModel struct {
		API   API
		Model Model
	}

	// A Create creates a resource (component/service) from a collection of dependencies and a given config.
	Create[ResourceT Resource] func(
		ctx context.Context,
		deps Dependencies,
		conf Config,
		logger logging.Logger,
	) (ResourceT, error)

	// An AttributeMapConverter converts an attribute map into a native config type for a resource.
	AttributeMapConverter[ConfigT any] func(attributes utils.AttributeMap) (ConfigT, error)
)

// A Registration stores construction info for a resource (component/service). A single constructor is mandatory.
type Registration[ResourceT Resource, ConfigT any] struct {
	Constructor Create[ResourceT]

	// AttributeMapConverter is used to convert raw attributes to the resource's native config.
	// One is provided by default for any native config type other than NoNativeConfig.
	AttributeMapConverter AttributeMapConverter[ConfigT]

	configType reflect.Type
	api        API
}

// ConfigReflectType returns the reflective resource config type.
func (r Registration[ResourceT, ConfigT]) ConfigReflectType() reflect.Type {
	return r.configType
}

var (
	registryMu sync.RWMutex
	registry   = map[APIModel]Registration[Resource, ConfigValidator]{}
)

// RegisterService registers a model for a service and its construction info. It's a helper for
// Register.
func RegisterService[ResourceT Resource, ConfigT ConfigValidator](api API, model Model, reg Registration[ResourceT, ConfigT]) {
	if !api.IsService() {
		panic(errors.Errorf("trying to register a non-service api: %q, model: %q", api, model))
	}
	Register(api, model, reg)
}

// RegisterComponent registers a model for a component and its construction info. It's a helper for
// Register.
func RegisterComponent[ResourceT Resource, ConfigT ConfigValidator](
	api API,
	model Model,
	reg Registration[ResourceT, ConfigT],
) {
	if !api.IsComponent() {
		panic(errors.Errorf("trying to register a non-component api: %q, model: %q", api, model))
	}
	Register(api, model, reg)
}

// Register registers a model for a resource (component/service) with and its construction info.
func Register[ResourceT Resource, ConfigT ConfigValidator](
	api API,
	model Model,
	reg Registration[ResourceT, ConfigT],
) {
	registryMu.Lock()
	defer registryMu.Unlock()

	apiModel := APIModel{api, model}
	if _, old := registry[apiModel]; old {
		panic(errors.Errorf("trying to register two resources with same api: %q, model: %q", api, model))
	}
	if reg.Constructor == nil {
		panic(errors.Errorf("cannot register a nil constructor for api: %q, model: %q", api, model))
	}
	var zero ConfigT
	zeroT := reflect.TypeOf(zero)
	if reg.AttributeMapConverter == nil && zeroT != nil && zeroT != noNativeConfigType {
		// provide one for free
		reg.AttributeMapConverter = TransformAttributeMap[ConfigT]
	}
	reg.api = api
	reg.configType = zeroT
	registry[apiModel] = makeGenericResourceRegistration(reg)
}

// makeGenericResourceRegistration allows a registration to be generic and ensures all input/output types
// are actually T's.
func makeGenericResourceRegistration[ResourceT Resource, ConfigT ConfigValidator](
	typed Registration[ResourceT, ConfigT],
) Registration[Resource, ConfigValidator] {
	reg := Registration[Resource, ConfigValidator]{
		api:        typed.api,
		configType: typed.configType,
		Constructor: func(
			ctx context.Context,
			deps Dependencies,
			conf Config,
			logger logging.Logger,
		) (Resource, error) {
			return typed.Constructor(ctx, deps, conf, logger)
		},
	}
	if typed.AttributeMapConverter != nil {
		reg.AttributeMapConverter = func(attributes utils.AttributeMap) (ConfigValidator, error) {
			return typed.AttributeMapConverter(attributes)
		}
	}
	return reg
}

// Deregister removes a previously registered resource.
func Deregister(api API, model Model) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, APIModel{api, model})
}

// LookupRegistration looks up a creator by the given api and model. false is returned if
// there is no creator registered.
func LookupRegistration(api API, model Model) (Registration[Resource, ConfigValidator], bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	registration, ok := registry[APIModel{api, model}]
	return registration, ok
}

// RegisteredAPIModels returns every registered api/model pair, sorted by their string forms.
func RegisteredAPIModels() []APIModel {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]APIModel, 0, len(registry))
	for apiModel := range registry {
		out = append(out, apiModel)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].API != out[j].API {
			return out[i].API.String() < out[j].API.String()
		}
		return out[i].Model.String() < out[j].Model.String()
	})
	return out
}

// ConvertAttributes runs the registered converter for the config's api and model, storing the
// result in ConvertedAttributes. Configs of unregistered models are left untouched.
func ConvertAttributes(conf *Config) error {
	reg, ok := LookupRegistration(conf.API, conf.Model)
	if !ok || reg.AttributeMapConverter == nil {
		return nil
	}
	converted, err := reg.AttributeMapConverter(conf.Attributes)
	if err != nil {
		return errors.Wrapf(err, "error converting attributes for (%s, %s)", conf.API, conf.Model)
	}
	conf.ConvertedAttributes = converted
	return nil
}
