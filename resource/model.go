package resource

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/pkg/errors"
)

// ModelNamespace identifies the namespaces models can exist in.
type ModelNamespace string

// ModelNamespaceRDK is the namespace of the built-in models.
const ModelNamespaceRDK = ModelNamespace("rdk")

var (
	// DefaultModelFamily is the family built-in models belong to.
	DefaultModelFamily = ModelNamespaceRDK.WithFamily("builtin")

	// DefaultServiceModel is used for services configured without a model.
	DefaultServiceModel = DefaultModelFamily.WithModel("builtin")

	modelRegexValidator      = regexp.MustCompile(`^([\w-]+):([\w-]+):([\w-]+)$`)
	shortModelRegexValidator = regexp.MustCompile(`^([\w-]+)$`)
)

// ModelFamily is a family of related models.
type ModelFamily struct {
	Namespace ModelNamespace `json:"namespace"`
	Name      string         `json:"model_family"`
}

// WithFamily returns a model family in this namespace.
func (n ModelNamespace) WithFamily(name string) ModelFamily {
	return ModelFamily{Namespace: n, Name: name}
}

// WithModel returns a model in this family.
func (f ModelFamily) WithModel(name string) Model {
	return Model{Family: f, Name: name}
}

// Validate ensures that important fields exist and are valid.
func (f ModelFamily) Validate() error {
	if f.Namespace == "" {
		return errors.New("model namespace field for resource missing")
	}
	if f.Name == "" {
		return errors.New("model family field for resource missing")
	}
	if err := ContainsReservedCharacter(string(f.Namespace)); err != nil {
		return err
	}
	return ContainsReservedCharacter(f.Name)
}

// String returns the model family string for the resource.
func (f ModelFamily) String() string {
	return fmt.Sprintf("%s:%s", f.Namespace, f.Name)
}

// Model represents an individual model within a family.
type Model struct {
	Family ModelFamily `json:"family"`
	Name   string      `json:"name"`
}

// NewModelFromString parses a fully qualified model string. A bare name is placed in the
// default family.
func NewModelFromString(modelStr string) (Model, error) {
	if matches := modelRegexValidator.FindStringSubmatch(modelStr); matches != nil {
		return ModelNamespace(matches[1]).WithFamily(matches[2]).WithModel(matches[3]), nil
	}
	if shortModelRegexValidator.MatchString(modelStr) {
		return DefaultModelFamily.WithModel(modelStr), nil
	}
	return Model{}, errors.Errorf("string %q is not a valid model name", modelStr)
}

// Validate ensures that important fields exist and are valid.
func (m Model) Validate() error {
	if err := m.Family.Validate(); err != nil {
		return err
	}
	if m.Name == "" {
		return errors.New("model name field for resource missing")
	}
	return ContainsReservedCharacter(m.Name)
}

// String returns the resource model string for the component.
func (m Model) String() string {
	return fmt.Sprintf("%s:%s", m.Family, m.Name)
}

// MarshalJSON marshals the model as its string form.
func (m Model) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON parses a model from its string form.
func (m *Model) UnmarshalJSON(data []byte) error {
	var modelStr string
	if err := json.Unmarshal(data, &modelStr); err != nil {
		return err
	}
	parsed, err := NewModelFromString(modelStr)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
