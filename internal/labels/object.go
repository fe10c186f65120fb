package labels

import (
	"fmt"
	"maps"
	"time"

	"github.com/heimdex/heimdex-labels/internal/frames"
	"github.com/heimdex/heimdex-labels/internal/geometry"
	"github.com/heimdex/heimdex-labels/internal/labelerr"
	"github.com/heimdex/heimdex-labels/internal/ontology"
)

// DefaultConfidence is used when a frame is set without WithConfidence.
const DefaultConfidence = 1.0

// FrameAnnotation is what an instance carries on one frame. Geometry is nil
// for classifications. Times are UTC with whole-second precision.
type FrameAnnotation struct {
	Geometry     geometry.Geometry
	Confidence   float64
	Manual       bool
	CreatedBy    string
	CreatedAt    time.Time
	LastEditedBy string
	LastEditedAt time.Time
}

func (a FrameAnnotation) equal(b FrameAnnotation) bool {
	if (a.Geometry == nil) != (b.Geometry == nil) {
		return false
	}
	if a.Geometry != nil && !a.Geometry.Equal(b.Geometry) {
		return false
	}
	return a.Confidence == b.Confidence &&
		a.Manual == b.Manual &&
		a.CreatedBy == b.CreatedBy &&
		a.CreatedAt.Equal(b.CreatedAt) &&
		a.LastEditedBy == b.LastEditedBy &&
		a.LastEditedAt.Equal(b.LastEditedAt)
}

// FrameOption adjusts the annotation written by SetForFrames.
type FrameOption func(*FrameAnnotation)

func WithConfidence(c float64) FrameOption {
	return func(a *FrameAnnotation) { a.Confidence = c }
}

func WithManual(manual bool) FrameOption {
	return func(a *FrameAnnotation) { a.Manual = manual }
}

func WithCreatedBy(user string) FrameOption {
	return func(a *FrameAnnotation) { a.CreatedBy = user }
}

func WithCreatedAt(t time.Time) FrameOption {
	return func(a *FrameAnnotation) { a.CreatedAt = wireTime(t) }
}

func WithEditedBy(user string) FrameOption {
	return func(a *FrameAnnotation) { a.LastEditedBy = user }
}

func WithEditedAt(t time.Time) FrameOption {
	return func(a *FrameAnnotation) { a.LastEditedAt = wireTime(t) }
}

func wireTime(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(time.Second)
}

// ObjectInstance is one tracked object: a shape on each frame it appears.
type ObjectInstance struct {
	hash     string
	feature  *ontology.Object
	row      *LabelRow
	frames   frames.Range
	perFrame map[int]*FrameAnnotation
	dynamic  map[int]*Answers
	answers  *Answers
}

func newObjectInstance(row *LabelRow, hash string, feature *ontology.Object) *ObjectInstance {
	return &ObjectInstance{
		hash:     hash,
		feature:  feature,
		row:      row,
		perFrame: make(map[int]*FrameAnnotation),
		dynamic:  make(map[int]*Answers),
		answers:  newAnswers(row.lookup, feature.FeatureHash, modeStatic),
	}
}

func (o *ObjectInstance) Hash() string { return o.hash }
func (o *ObjectInstance) FeatureHash() string { return o.feature.FeatureHash }
func (o *ObjectInstance) Feature() *ontology.Object { return o.feature }
func (o *ObjectInstance) Frames() frames.Range { return o.frames }
func (o *ObjectInstance) Answers() *Answers { return o.answers }
func (o *ObjectInstance) located(err error) error { return labelerr.WithLocation(err, labelerr.Instance(o.hash)) }
func (o *ObjectInstance) at(frame int) labelerr.Location { return labelerr.At(o.hash, frame) }

// SetForFrames places geometry on every frame of r, replacing what was
// there. The geometry must match the object's shape.
func (o *ObjectInstance) SetForFrames(r frames.Range, g geometry.Geometry, opts ...FrameOption) error {
	if err := geometry.Check(o.feature.Shape, g); err != nil {
		return o.located(err)
	}
	if err := o.row.checkBounds(o.hash, r); err != nil {
		return err
	}

	base := o.row.defaultAnnotation()
	base.Geometry = g
	for _, opt := range opts {
		opt(&base)
	}
	for f := range r.All() {
		ann := base
		ann.Geometry = geometry.Clone(g)
		o.perFrame[f] = &ann
	}
	o.frames = o.frames.Add(r)
	return nil
}

// RemoveFromFrames drops the object from every frame of r. An object left
// on no frames is skipped by the encoder and dropped by PruneEmpty.
func (o *ObjectInstance) RemoveFromFrames(r frames.Range) {
	for f := range o.frames.Intersect(r).All() {
		delete(o.perFrame, f)
		delete(o.dynamic, f)
	}
	o.frames = o.frames.Remove(r)
}

// GetForFrame returns the geometry on frame f.
func (o *ObjectInstance) GetForFrame(f int) (geometry.Geometry, bool) {
	ann, ok := o.perFrame[f]
	if !ok {
		return nil, false
	}
	return ann.Geometry, true
}

// Annotation returns everything recorded for frame f.
func (o *ObjectInstance) Annotation(f int) (FrameAnnotation, bool) {
	ann, ok := o.perFrame[f]
	if !ok {
		return FrameAnnotation{}, false
	}
	return *ann, true
}

// SetAnswer sets a static answer, marked as manual.
func (o *ObjectInstance) SetAnswer(attr string, v Value) error {
	return o.located(o.answers.Set(attr, v, true))
}

func (o *ObjectInstance) GetAnswer(attr string) (Answer, bool) {
	return o.answers.Get(attr)
}

func (o *ObjectInstance) ClearAnswer(attr string) {
	o.answers.Clear(attr)
}

// SetDynamicAnswer answers a dynamic attribute on every frame of r. The
// object must already be present on all of them.
func (o *ObjectInstance) SetDynamicAnswer(r frames.Range, attr string, v Value, manual bool) error {
	canonical, err := checkValue(o.row.lookup, o.feature.FeatureHash, attr, v, modeDynamic)
	if err != nil {
		return o.located(err)
	}
	if missing := r.Remove(o.frames); !missing.IsEmpty() {
		f, _ := missing.First()
		return &labelerr.ValidationError{
			Location: o.at(f),
			Reason:   fmt.Sprintf("object is not present on frames %s", missing),
		}
	}

	for f := range r.All() {
		answers, ok := o.dynamic[f]
		if !ok {
			answers = newAnswers(o.row.lookup, o.feature.FeatureHash, modeDynamic)
			o.dynamic[f] = answers
		}
		answers.put(Answer{Attribute: attr, Value: canonical, Manual: manual})
	}
	return nil
}

// GetDynamicAnswer returns the answer to a dynamic attribute on frame f.
func (o *ObjectInstance) GetDynamicAnswer(f int, attr string) (Answer, bool) {
	answers, ok := o.dynamic[f]
	if !ok {
		return Answer{}, false
	}
	return answers.Get(attr)
}

// DynamicAnswers returns all dynamic answers on frame f.
func (o *ObjectInstance) DynamicAnswers(f int) []Answer {
	answers, ok := o.dynamic[f]
	if !ok {
		return nil
	}
	return answers.All()
}

// ClearDynamicAnswer removes the answer to attr on every frame of r.
func (o *ObjectInstance) ClearDynamicAnswer(r frames.Range, attr string) {
	for f := range r.All() {
		answers, ok := o.dynamic[f]
		if !ok {
			continue
		}
		answers.Clear(attr)
		if answers.Len() == 0 {
			delete(o.dynamic, f)
		}
	}
}

func (o *ObjectInstance) validate() error {
	if o.frames.IsEmpty() {
		return &labelerr.ValidationError{Location: labelerr.Instance(o.hash), Reason: "object is present on no frames"}
	}
	if err := o.row.checkBounds(o.hash, o.frames); err != nil {
		return err
	}
	if len(o.perFrame) != o.frames.Len() {
		return &labelerr.ValidationError{
			Location: labelerr.Instance(o.hash),
			Reason:   fmt.Sprintf("%d frames present but %d annotations", o.frames.Len(), len(o.perFrame)),
		}
	}
	for f := range o.frames.All() {
		ann, ok := o.perFrame[f]
		if !ok {
			return &labelerr.ValidationError{Location: o.at(f), Reason: "frame has no geometry"}
		}
		if err := geometry.Check(o.feature.Shape, ann.Geometry); err != nil {
			return labelerr.WithLocation(err, o.at(f))
		}
	}
	for f := range o.dynamic {
		if !o.frames.Contains(f) {
			return &labelerr.ValidationError{Location: o.at(f), Reason: "dynamic answer on a frame without the object"}
		}
	}
	return nil
}

func (o *ObjectInstance) equal(other *ObjectInstance) bool {
	if o.hash != other.hash || o.feature.FeatureHash != other.feature.FeatureHash {
		return false
	}
	if !o.frames.Equal(other.frames) || !o.answers.Equal(other.answers) {
		return false
	}
	if !maps.EqualFunc(o.perFrame, other.perFrame, func(a, b *FrameAnnotation) bool { return a.equal(*b) }) {
		return false
	}
	return maps.EqualFunc(o.dynamic, other.dynamic, func(a, b *Answers) bool { return a.Equal(b) })
}
