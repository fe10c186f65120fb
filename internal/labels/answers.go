package labels

import (
	"fmt"
	"slices"

	"github.com/heimdex/heimdex-labels/internal/labelerr"
	"github.com/heimdex/heimdex-labels/internal/ontology"
)

// Value is an answer to an ontology attribute: Text, Radio or Checklist.
type Value interface {
	attributeType() ontology.AttributeType
}

// Text answers a text attribute. The empty string is a valid answer and is
// distinct from no answer at all.
type Text string

// Radio selects one option of a radio attribute.
type Radio struct {
	Option string
}

// Checklist selects any number of options of a checklist attribute.
type Checklist struct {
	Options []string
}

func (Text) attributeType() ontology.AttributeType      { return ontology.AttributeText }
func (Radio) attributeType() ontology.AttributeType     { return ontology.AttributeRadio }
func (Checklist) attributeType() ontology.AttributeType { return ontology.AttributeChecklist }

// ValuesEqual reports whether two values select the same thing.
func ValuesEqual(a, b Value) bool {
	switch av := a.(type) {
	case Text:
		bv, ok := b.(Text)
		return ok && av == bv
	case Radio:
		bv, ok := b.(Radio)
		return ok && av == bv
	case Checklist:
		bv, ok := b.(Checklist)
		return ok && slices.Equal(av.Options, bv.Options)
	}
	return false
}

// Answer is a value given to one attribute.
type Answer struct {
	Attribute string
	Value     Value
	Manual    bool
}

// Equal compares attribute, value and manual flag.
func (a Answer) Equal(b Answer) bool {
	return a.Attribute == b.Attribute && a.Manual == b.Manual && ValuesEqual(a.Value, b.Value)
}

// Group is the set of answers nested under a selected radio option.
type Group []Answer

type answerMode int

const (
	modeAny answerMode = iota
	modeStatic
	modeDynamic
)

// checkValue validates v for attr owned by owner and returns it in
// canonical form: checklist options follow the ontology's option order.
func checkValue(lookup ontology.Lookup, owner, attr string, v Value, mode answerMode) (Value, error) {
	mismatch := func(format string, args ...any) error {
		return &labelerr.OntologyMismatchError{
			Location: labelerr.Nowhere,
			Feature:  attr,
			Reason:   fmt.Sprintf(format, args...),
		}
	}

	node, ok := lookup.Attribute(attr)
	if !ok {
		return nil, mismatch("unknown attribute")
	}
	if got, _ := lookup.Owner(attr); got != owner {
		return nil, mismatch("attribute belongs to %s, not %s", got, owner)
	}
	switch {
	case mode == modeStatic && node.Dynamic:
		return nil, mismatch("attribute is dynamic and must be answered per frame")
	case mode == modeDynamic && !node.Dynamic:
		return nil, mismatch("attribute is static")
	}
	if v == nil {
		return nil, mismatch("missing value")
	}
	if v.attributeType() != node.Type {
		return nil, mismatch("%s value given to %s attribute", v.attributeType(), node.Type)
	}

	switch val := v.(type) {
	case Radio:
		if !node.HasOption(val.Option) {
			return nil, mismatch("option %s is not a choice of this attribute", val.Option)
		}
	case Checklist:
		picked := make(map[string]bool, len(val.Options))
		for _, opt := range val.Options {
			if !node.HasOption(opt) {
				return nil, mismatch("option %s is not a choice of this attribute", opt)
			}
			picked[opt] = true
		}
		canonical := make([]string, 0, len(picked))
		for _, opt := range node.Options {
			if picked[opt.FeatureHash] {
				canonical = append(canonical, opt.FeatureHash)
			}
		}
		return Checklist{Options: canonical}, nil
	}
	return v, nil
}

// Answers holds at most one answer per attribute, in insertion order.
type Answers struct {
	lookup ontology.Lookup
	owner  string
	mode   answerMode
	byAttr map[string]Answer
	order  []string
}

func newAnswers(lookup ontology.Lookup, owner string, mode answerMode) *Answers {
	return &Answers{
		lookup: lookup,
		owner:  owner,
		mode:   mode,
		byAttr: make(map[string]Answer),
	}
}

// Set validates and stores an answer, replacing any earlier one for the
// same attribute.
func (a *Answers) Set(attr string, v Value, manual bool) error {
	canonical, err := checkValue(a.lookup, a.owner, attr, v, a.mode)
	if err != nil {
		return err
	}
	a.put(Answer{Attribute: attr, Value: canonical, Manual: manual})
	return nil
}

func (a *Answers) put(ans Answer) {
	if _, ok := a.byAttr[ans.Attribute]; !ok {
		a.order = append(a.order, ans.Attribute)
	}
	a.byAttr[ans.Attribute] = ans
}

// Get returns the answer for attr.
func (a *Answers) Get(attr string) (Answer, bool) {
	ans, ok := a.byAttr[attr]
	return ans, ok
}

// Clear removes the answer for attr, if any.
func (a *Answers) Clear(attr string) {
	if _, ok := a.byAttr[attr]; !ok {
		return
	}
	delete(a.byAttr, attr)
	a.order = slices.DeleteFunc(a.order, func(s string) bool { return s == attr })
}

// All returns the answers in the order they were first set.
func (a *Answers) All() []Answer {
	out := make([]Answer, 0, len(a.order))
	for _, attr := range a.order {
		out = append(out, a.byAttr[attr])
	}
	return out
}

// Len returns the number of answered attributes.
func (a *Answers) Len() int {
	return len(a.order)
}

// Nested returns the answers given to the nested attributes of the option
// selected for the radio attribute attr.
func (a *Answers) Nested(attr string) Group {
	ans, ok := a.byAttr[attr]
	if !ok {
		return nil
	}
	radio, ok := ans.Value.(Radio)
	if !ok {
		return nil
	}
	opt, ok := a.lookup.Option(radio.Option)
	if !ok {
		return nil
	}
	var group Group
	for _, nested := range opt.Nested {
		if n, ok := a.byAttr[nested.FeatureHash]; ok {
			group = append(group, n)
		}
	}
	return group
}

// Equal compares the answers regardless of insertion order.
func (a *Answers) Equal(o *Answers) bool {
	if a.Len() != o.Len() {
		return false
	}
	for attr, ans := range a.byAttr {
		other, ok := o.byAttr[attr]
		if !ok || !ans.Equal(other) {
			return false
		}
	}
	return true
}
