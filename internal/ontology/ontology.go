// Package ontology is the read-only schema a label row is validated against:
// which objects and classifications exist, their shapes and their attributes.
package ontology

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Shape is the geometry kind an object feature is annotated with.
type Shape string

const (
	ShapeBoundingBox          Shape = "bounding_box"
	ShapeRotatableBoundingBox Shape = "rotatable_bounding_box"
	ShapePolygon              Shape = "polygon"
	ShapePolyline             Shape = "polyline"
	ShapePoint                Shape = "point"
	ShapeBitmask              Shape = "bitmask"
)

// Valid reports whether s is a known shape.
func (s Shape) Valid() bool {
	switch s {
	case ShapeBoundingBox, ShapeRotatableBoundingBox, ShapePolygon,
		ShapePolyline, ShapePoint, ShapeBitmask:
		return true
	}
	return false
}

// AttributeType is the kind of answer an attribute takes.
type AttributeType string

const (
	AttributeText      AttributeType = "text"
	AttributeRadio     AttributeType = "radio"
	AttributeChecklist AttributeType = "checklist"
)

// Option is a selectable value of a radio or checklist attribute. Radio
// options may carry nested attributes that are answered once the option is
// selected.
type Option struct {
	FeatureHash string      `json:"featureNodeHash"`
	Label       string      `json:"label"`
	Value       string      `json:"value"`
	Nested      []Attribute `json:"options,omitempty"`
}

// Attribute is a question asked about an object or classification instance.
type Attribute struct {
	FeatureHash string        `json:"featureNodeHash"`
	Name        string        `json:"name"`
	Type        AttributeType `json:"type"`
	Required    bool          `json:"required"`
	Dynamic     bool          `json:"dynamic,omitempty"`
	Options     []Option      `json:"options,omitempty"`
}

// HasOption reports whether the option is a direct child of the attribute.
func (a *Attribute) HasOption(optionHash string) bool {
	for i := range a.Options {
		if a.Options[i].FeatureHash == optionHash {
			return true
		}
	}
	return false
}

// Object is an object feature such as "car" drawn as a polygon.
type Object struct {
	FeatureHash string      `json:"featureNodeHash"`
	Name        string      `json:"name"`
	Color       string      `json:"color"`
	Shape       Shape       `json:"shape"`
	Required    bool        `json:"required,omitempty"`
	Attributes  []Attribute `json:"attributes,omitempty"`
}

// Classification is a classification feature. Its first attribute is the
// question the classification answers.
type Classification struct {
	FeatureHash string      `json:"featureNodeHash"`
	Required    bool        `json:"required,omitempty"`
	Attributes  []Attribute `json:"attributes"`
}

// Name returns the name of the classification's top-level attribute.
func (c *Classification) Name() string {
	if len(c.Attributes) == 0 {
		return ""
	}
	return c.Attributes[0].Name
}

// Structure is the ontology as served by the platform.
type Structure struct {
	Objects         []Object         `json:"objects"`
	Classifications []Classification `json:"classifications"`
}

// ValueName derives the machine-friendly value of a display name:
// lower case with runs of whitespace replaced by underscores.
func ValueName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}

// Load reads a JSON ontology structure and indexes it.
func Load(r io.Reader) (*Index, error) {
	var s Structure
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode ontology: %w", err)
	}
	return NewIndex(&s)
}

// LoadFile reads a JSON ontology structure from disk.
func LoadFile(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ontology: %w", err)
	}
	defer f.Close()
	return Load(f)
}
