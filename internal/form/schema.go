package form

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/vbonduro/drakdex/internal/domain"
)

//go:embed schemas.yaml
var schemasYAML []byte

type FieldKind string

const (
	KindText     FieldKind = "text"
	KindTextarea FieldKind = "textarea"
	KindURL      FieldKind = "url"
	KindNumber   FieldKind = "number"
	KindInteger  FieldKind = "integer"
	KindSelect   FieldKind = "select"
	KindCheckbox FieldKind = "checkbox"
	KindRelation FieldKind = "relation"
)

func (k FieldKind) valid() bool {
	switch k {
	case KindText, KindTextarea, KindURL, KindNumber, KindInteger, KindSelect, KindCheckbox, KindRelation:
		return true
	}
	return false
}

// Numeric reports whether values of the kind are sent as JSON numbers.
func (k FieldKind) Numeric() bool { return k == KindNumber || k == KindInteger }

type Option struct {
	Value string `yaml:"value"`
	Label string `yaml:"label"`
}

type Field struct {
	Key      string            `yaml:"key"`
	Label    string            `yaml:"label"`
	Kind     FieldKind         `yaml:"kind"`
	Required bool              `yaml:"required"`
	Default  string            `yaml:"default"`
	Options  []Option          `yaml:"options"`
	Min      *float64          `yaml:"min"`
	Max      *float64          `yaml:"max"`
	Step     string            `yaml:"step"`
	Group    string            `yaml:"group"`
	ShowWhen map[string]string `yaml:"showWhen"`

	// Relation fields only.
	Source   domain.Category `yaml:"source"`
	SeedFrom string          `yaml:"seedFrom"`
}

// Schema describes one entity form and where it submits.
type Schema struct {
	Kind           domain.Kind `yaml:"-"`
	Title          string      `yaml:"title"`
	FolderKey      string      `yaml:"folderKey"`
	CategoryKey    string      `yaml:"categoryKey"`
	RequiresFolder bool        `yaml:"requiresFolder"`
	Created        string      `yaml:"created"`
	Updated        string      `yaml:"updated"`
	Fields         []Field     `yaml:"fields"`
}

// Field returns the field named key.
func (s *Schema) Field(key string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Groups lists the distinct field groups in declaration order.
func (s *Schema) Groups() []string {
	var groups []string
	seen := make(map[string]bool)
	for _, f := range s.Fields {
		if f.Group != "" && !seen[f.Group] {
			seen[f.Group] = true
			groups = append(groups, f.Group)
		}
	}
	return groups
}

var loadSchemas = sync.OnceValues(func() (map[domain.Kind]*Schema, error) {
	return parseSchemas(schemasYAML)
})

// Lookup returns the embedded schema of kind.
func Lookup(kind domain.Kind) (*Schema, error) {
	schemas, err := loadSchemas()
	if err != nil {
		return nil, err
	}
	s, ok := schemas[kind]
	if !ok {
		return nil, fmt.Errorf("no form schema for %q", kind)
	}
	return s, nil
}

func parseSchemas(data []byte) (map[domain.Kind]*Schema, error) {
	var raw map[string]*Schema
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse form schemas: %w", err)
	}

	schemas := make(map[domain.Kind]*Schema, len(raw))
	for name, s := range raw {
		kind, err := domain.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("form schema: %w", err)
		}
		if err := s.check(); err != nil {
			return nil, fmt.Errorf("form schema %s: %w", name, err)
		}
		s.Kind = kind
		schemas[kind] = s
	}
	return schemas, nil
}

func (s *Schema) check() error {
	if s.FolderKey == "" {
		return errors.New("missing folderKey")
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Key == "" {
			return errors.New("field without key")
		}
		if seen[f.Key] {
			return fmt.Errorf("duplicate field %s", f.Key)
		}
		seen[f.Key] = true
		if !f.Kind.valid() {
			return fmt.Errorf("field %s: unknown kind %q", f.Key, f.Kind)
		}
		if f.Kind == KindSelect && len(f.Options) == 0 {
			return fmt.Errorf("field %s: select without options", f.Key)
		}
		if f.Kind == KindRelation {
			if _, err := domain.ParseCategory(string(f.Source)); err != nil {
				return fmt.Errorf("field %s: %w", f.Key, err)
			}
		}
	}
	return nil
}
