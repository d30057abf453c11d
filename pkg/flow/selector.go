package flow

import (
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/dash-runner/pkg/core"
)

// Selector describes an element of the introspection tree.
// Pure data structure - executor decides how to use it.
type Selector struct {
	Type       string            `yaml:"type"`       // Object type, e.g. "AbstractButton"
	ID         string            `yaml:"id"`         // objectName
	Text       string            `yaml:"text"`       // text property
	Title      string            `yaml:"title"`      // title property
	Properties map[string]string `yaml:"properties"` // Any other properties
	ChildOf    *Selector         `yaml:"childOf"`    // Search only below this element
}

// selectorRaw avoids recursion into UnmarshalYAML.
type selectorRaw Selector

// UnmarshalYAML allows Selector to be unmarshaled from string or struct.
// A plain string selects by objectName.
func (s *Selector) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.ID = node.Value
		return nil
	}

	var raw selectorRaw
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*s = Selector(raw)
	return nil
}

// IsEmpty returns true if no selector properties are set.
func (s *Selector) IsEmpty() bool {
	return s.Type == "" &&
		s.ID == "" &&
		s.Text == "" &&
		s.Title == "" &&
		len(s.Properties) == 0
}

// Query converts the selector into a tree query.
func (s *Selector) Query() core.Query {
	q := core.Query{Type: s.Type}
	props := make(map[string]interface{})
	for k, v := range s.Properties {
		props[k] = v
	}
	if s.ID != "" {
		props[core.PropObjectName] = s.ID
	}
	if s.Text != "" {
		props[core.PropText] = s.Text
	}
	if s.Title != "" {
		props[core.PropTitle] = s.Title
	}
	if len(props) > 0 {
		q.Props = props
	}
	return q
}

// Describe returns a human-readable description.
func (s *Selector) Describe() string {
	desc := s.Query().String()
	if s.ChildOf != nil {
		desc += " in " + s.ChildOf.Describe()
	}
	return desc
}

// ParseProperties parses "name=value" pairs such as command line filters.
func ParseProperties(pairs []string) (map[string]string, error) {
	props := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, core.ErrInvalidConfig.WithMessagef("invalid property filter %q, expected name=value", pair)
		}
		props[name] = value
	}
	return props, nil
}

// PropertyNames returns the sorted property names of the selector.
func (s *Selector) PropertyNames() []string {
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
