package resource

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// APINamespace identifies the namespaces resources can exist in.
type APINamespace string

// APINamespaceRDK is the namespace every built-in API lives in.
const APINamespaceRDK = APINamespace("rdk")

// Known API types.
const (
	APITypeComponentName = "component"
	APITypeServiceName   = "service"
)

var apiRegexValidator = regexp.MustCompile(`^([\w-]+):([\w-]+):([\w-]+)$`)

// APIType is the type of an API within a namespace, e.g. rdk:component.
type APIType struct {
	Namespace APINamespace `json:"namespace"`
	Name      string       `json:"type"`
}

// WithType returns an API type in this namespace.
func (n APINamespace) WithType(name string) APIType {
	return APIType{Namespace: n, Name: name}
}

// WithComponentType returns a component API with the given subtype in this namespace.
func (n APINamespace) WithComponentType(subtypeName string) API {
	return n.WithType(APITypeComponentName).WithSubtype(subtypeName)
}

// WithServiceType returns a service API with the given subtype in this namespace.
func (n APINamespace) WithServiceType(subtypeName string) API {
	return n.WithType(APITypeServiceName).WithSubtype(subtypeName)
}

// WithSubtype returns an API of this type.
func (t APIType) WithSubtype(subtypeName string) API {
	return API{Type: t, SubtypeName: subtypeName}
}

// Validate ensures that important fields exist and are valid.
func (t APIType) Validate() error {
	if t.Namespace == "" {
		return errors.New("namespace field for resource missing or invalid")
	}
	if t.Name == "" {
		return errors.New("type field for resource missing or invalid")
	}
	if err := ContainsReservedCharacter(string(t.Namespace)); err != nil {
		return err
	}
	return ContainsReservedCharacter(t.Name)
}

// String returns the namespace:type form.
func (t APIType) String() string {
	return fmt.Sprintf("%s:%s", t.Namespace, t.Name)
}

// An API identifies a set of operations a resource implements, e.g. rdk:component:base.
type API struct {
	Type        APIType
	SubtypeName string `json:"subtype"`
}

// NewAPIFromString parses a namespace:type:subtype triplet.
func NewAPIFromString(apiStr string) (API, error) {
	matches := apiRegexValidator.FindStringSubmatch(apiStr)
	if matches == nil {
		return API{}, errors.Errorf("string %q is not a valid api name", apiStr)
	}
	return APINamespace(matches[1]).WithType(matches[2]).WithSubtype(matches[3]), nil
}

// IsComponent returns if this API is for a component.
func (a API) IsComponent() bool {
	return a.Type.Name == APITypeComponentName
}

// IsService returns if this API is for a service.
func (a API) IsService() bool {
	return a.Type.Name == APITypeServiceName
}

// Validate ensures that important fields exist and are valid.
func (a API) Validate() error {
	if err := a.Type.Validate(); err != nil {
		return err
	}
	if a.SubtypeName == "" {
		return errors.New("subtype field for resource missing or invalid")
	}
	return ContainsReservedCharacter(a.SubtypeName)
}

// String returns the namespace:type:subtype form.
func (a API) String() string {
	return fmt.Sprintf("%s:%s", a.Type, a.SubtypeName)
}

// MarshalJSON marshals the API as its string form.
func (a API) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON parses an API from its string form.
func (a *API) UnmarshalJSON(data []byte) error {
	var apiStr string
	if err := json.Unmarshal(data, &apiStr); err != nil {
		return err
	}
	parsed, err := NewAPIFromString(apiStr)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ContainsReservedCharacter returns an error if the value holds a character used as a separator
// in fully qualified names.
func ContainsReservedCharacter(val string) error {
	if strings.ContainsAny(val, ":/") {
		return errors.Errorf("reserved character in %q; names may not contain ':' or '/'", val)
	}
	return nil
}
