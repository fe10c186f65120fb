package ontology

import "fmt"

// Lookup resolves feature hashes to ontology nodes. Implementations are
// read-only and safe for concurrent use.
type Lookup interface {
	Object(featureHash string) (*Object, bool)
	Classification(featureHash string) (*Classification, bool)
	Attribute(featureHash string) (*Attribute, bool)
	Option(featureHash string) (*Option, bool)
	// Owner returns the object or classification an attribute belongs to,
	// looking through nested option attributes.
	Owner(attributeHash string) (string, bool)
}

// Index is the map-backed Lookup over a Structure.
type Index struct {
	structure       *Structure
	objects         map[string]*Object
	classifications map[string]*Classification
	attributes      map[string]*Attribute
	options         map[string]*Option
	owners          map[string]string
}

// NewIndex validates a structure and builds its lookup tables. Feature
// hashes must be unique across the whole ontology.
func NewIndex(s *Structure) (*Index, error) {
	idx := &Index{
		structure:       s,
		objects:         make(map[string]*Object),
		classifications: make(map[string]*Classification),
		attributes:      make(map[string]*Attribute),
		options:         make(map[string]*Option),
		owners:          make(map[string]string),
	}
	seen := make(map[string]bool)
	claim := func(hash, kind string) error {
		if hash == "" {
			return fmt.Errorf("%s without featureNodeHash", kind)
		}
		if seen[hash] {
			return fmt.Errorf("duplicate feature hash %q", hash)
		}
		seen[hash] = true
		return nil
	}

	for i := range s.Objects {
		obj := &s.Objects[i]
		if err := claim(obj.FeatureHash, "object"); err != nil {
			return nil, err
		}
		if !obj.Shape.Valid() {
			return nil, fmt.Errorf("object %q: unknown shape %q", obj.FeatureHash, obj.Shape)
		}
		idx.objects[obj.FeatureHash] = obj
		if err := idx.addAttributes(obj.FeatureHash, obj.Attributes, claim); err != nil {
			return nil, err
		}
	}

	for i := range s.Classifications {
		cl := &s.Classifications[i]
		if err := claim(cl.FeatureHash, "classification"); err != nil {
			return nil, err
		}
		if len(cl.Attributes) == 0 {
			return nil, fmt.Errorf("classification %q has no attributes", cl.FeatureHash)
		}
		idx.classifications[cl.FeatureHash] = cl
		if err := idx.addAttributes(cl.FeatureHash, cl.Attributes, claim); err != nil {
			return nil, err
		}
	}

	return idx, nil
}

func (idx *Index) addAttributes(owner string, attrs []Attribute, claim func(string, string) error) error {
	for i := range attrs {
		attr := &attrs[i]
		if err := claim(attr.FeatureHash, "attribute"); err != nil {
			return err
		}
		switch attr.Type {
		case AttributeText, AttributeRadio, AttributeChecklist:
		default:
			return fmt.Errorf("attribute %q: unknown type %q", attr.FeatureHash, attr.Type)
		}
		idx.attributes[attr.FeatureHash] = attr
		idx.owners[attr.FeatureHash] = owner

		for j := range attr.Options {
			opt := &attr.Options[j]
			if err := claim(opt.FeatureHash, "option"); err != nil {
				return err
			}
			idx.options[opt.FeatureHash] = opt
			if len(opt.Nested) > 0 && attr.Type != AttributeRadio {
				return fmt.Errorf("option %q: only radio options may nest attributes", opt.FeatureHash)
			}
			if err := idx.addAttributes(owner, opt.Nested, claim); err != nil {
				return err
			}
		}
	}
	return nil
}

// Structure returns the indexed structure.
func (idx *Index) Structure() *Structure {
	return idx.structure
}

func (idx *Index) Object(featureHash string) (*Object, bool) {
	o, ok := idx.objects[featureHash]
	return o, ok
}

func (idx *Index) Classification(featureHash string) (*Classification, bool) {
	c, ok := idx.classifications[featureHash]
	return c, ok
}

func (idx *Index) Attribute(featureHash string) (*Attribute, bool) {
	a, ok := idx.attributes[featureHash]
	return a, ok
}

func (idx *Index) Option(featureHash string) (*Option, bool) {
	o, ok := idx.options[featureHash]
	return o, ok
}

func (idx *Index) Owner(attributeHash string) (string, bool) {
	o, ok := idx.owners[attributeHash]
	return o, ok
}
