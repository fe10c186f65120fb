package labels

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/heimdex/heimdex-labels/internal/frames"
	"github.com/heimdex/heimdex-labels/internal/labelerr"
	"github.com/heimdex/heimdex-labels/internal/ontology"
)

// FrameAnswer is an answer that holds on a subset of a classification's
// frames.
type FrameAnswer struct {
	Frames frames.Range
	Answer Answer
}

// ClassificationInstance tags a set of frames. Static answers apply to the
// whole range; frame answers apply to disjoint parts of it.
type ClassificationInstance struct {
	hash         string
	feature      *ontology.Classification
	row          *LabelRow
	frames       frames.Range
	perFrame     map[int]*FrameAnnotation
	answers      *Answers
	frameAnswers []FrameAnswer
}

func newClassificationInstance(row *LabelRow, hash string, feature *ontology.Classification) *ClassificationInstance {
	return &ClassificationInstance{
		hash:     hash,
		feature:  feature,
		row:      row,
		perFrame: make(map[int]*FrameAnnotation),
		answers:  newAnswers(row.lookup, feature.FeatureHash, modeAny),
	}
}

func (c *ClassificationInstance) Hash() string { return c.hash }
func (c *ClassificationInstance) FeatureHash() string { return c.feature.FeatureHash }
func (c *ClassificationInstance) Feature() *ontology.Classification { return c.feature }
func (c *ClassificationInstance) Frames() frames.Range { return c.frames }
func (c *ClassificationInstance) Answers() *Answers { return c.answers }

// SetForFrames adds r to the classification without answering it.
func (c *ClassificationInstance) SetForFrames(r frames.Range, opts ...FrameOption) error {
	if err := c.row.checkBounds(c.hash, r); err != nil {
		return err
	}
	if err := c.row.checkClassificationOverlap(c, r); err != nil {
		return err
	}

	ann := c.row.defaultAnnotation()
	for _, opt := range opts {
		opt(&ann)
	}
	ann.Geometry = nil
	for f := range r.All() {
		a := ann
		c.perFrame[f] = &a
	}
	c.frames = c.frames.Add(r)
	return nil
}

// SetAnswerForFrames answers attr on the frames of r. Frames not yet part of
// the classification are added with default metadata. Any overlap with an
// existing frame answer is a ConflictingAnswerError; an equal answer on
// disjoint frames joins the existing entry.
func (c *ClassificationInstance) SetAnswerForFrames(r frames.Range, attr string, v Value, manual bool) error {
	canonical, err := checkValue(c.row.lookup, c.feature.FeatureHash, attr, v, modeAny)
	if err != nil {
		return labelerr.WithLocation(err, labelerr.Instance(c.hash))
	}
	if r.IsEmpty() {
		return nil
	}
	if _, ok := c.answers.Get(attr); ok {
		f, _ := r.First()
		return &labelerr.ConflictingAnswerError{
			Location:  labelerr.At(c.hash, f),
			Attribute: attr,
			Reason:    "attribute already has a static answer",
		}
	}
	for _, existing := range c.frameAnswers {
		if overlap := existing.Frames.Intersect(r); !overlap.IsEmpty() {
			f, _ := overlap.First()
			return &labelerr.ConflictingAnswerError{
				Location:  labelerr.At(c.hash, f),
				Attribute: attr,
				Reason:    fmt.Sprintf("frames %s already carry an answer", overlap),
			}
		}
	}

	if missing := r.Remove(c.frames); !missing.IsEmpty() {
		if err := c.SetForFrames(missing); err != nil {
			return err
		}
	}

	ans := Answer{Attribute: attr, Value: canonical, Manual: manual}
	for i := range c.frameAnswers {
		if c.frameAnswers[i].Answer.Equal(ans) {
			c.frameAnswers[i].Frames = c.frameAnswers[i].Frames.Add(r)
			c.sortFrameAnswers()
			return nil
		}
	}
	c.frameAnswers = append(c.frameAnswers, FrameAnswer{Frames: r, Answer: ans})
	c.sortFrameAnswers()
	return nil
}

func (c *ClassificationInstance) sortFrameAnswers() {
	slices.SortFunc(c.frameAnswers, func(a, b FrameAnswer) int {
		af, _ := a.Frames.First()
		bf, _ := b.Frames.First()
		return cmp.Compare(af, bf)
	})
}

// GetAnswerForFrame returns the frame answer covering f.
func (c *ClassificationInstance) GetAnswerForFrame(f int) (Answer, bool) {
	for _, fa := range c.frameAnswers {
		if fa.Frames.Contains(f) {
			return fa.Answer, true
		}
	}
	return Answer{}, false
}

// FrameAnswers returns the frame answers ordered by their first frame.
func (c *ClassificationInstance) FrameAnswers() []FrameAnswer {
	return slices.Clone(c.frameAnswers)
}

// RemoveFromFrames drops r from the classification and from every frame
// answer. Frame answers left empty are discarded.
func (c *ClassificationInstance) RemoveFromFrames(r frames.Range) {
	for f := range c.frames.Intersect(r).All() {
		delete(c.perFrame, f)
	}
	c.frames = c.frames.Remove(r)

	kept := c.frameAnswers[:0]
	for _, fa := range c.frameAnswers {
		fa.Frames = fa.Frames.Remove(r)
		if !fa.Frames.IsEmpty() {
			kept = append(kept, fa)
		}
	}
	c.frameAnswers = kept
	c.sortFrameAnswers()
}

// Annotation returns the metadata recorded for frame f.
func (c *ClassificationInstance) Annotation(f int) (FrameAnnotation, bool) {
	ann, ok := c.perFrame[f]
	if !ok {
		return FrameAnnotation{}, false
	}
	return *ann, true
}

// SetAnswer sets a static answer, marked as manual.
func (c *ClassificationInstance) SetAnswer(attr string, v Value) error {
	return c.SetStaticAnswer(attr, v, true)
}

// SetStaticAnswer answers attr for the whole classification. An attribute
// already answered per frame is a ConflictingAnswerError.
func (c *ClassificationInstance) SetStaticAnswer(attr string, v Value, manual bool) error {
	if err := c.frameAnswerConflict(attr); err != nil {
		return err
	}
	return labelerr.WithLocation(c.answers.Set(attr, v, manual), labelerr.Instance(c.hash))
}

// frameAnswerConflict reports a frame answer given to attr.
func (c *ClassificationInstance) frameAnswerConflict(attr string) error {
	for _, fa := range c.frameAnswers {
		if fa.Answer.Attribute == attr {
			f, _ := fa.Frames.First()
			return &labelerr.ConflictingAnswerError{
				Location:  labelerr.At(c.hash, f),
				Attribute: attr,
				Reason:    "attribute is answered per frame",
			}
		}
	}
	return nil
}

func (c *ClassificationInstance) GetAnswer(attr string) (Answer, bool) {
	return c.answers.Get(attr)
}

func (c *ClassificationInstance) ClearAnswer(attr string) {
	c.answers.Clear(attr)
}

func (c *ClassificationInstance) validate() error {
	if c.frames.IsEmpty() {
		return &labelerr.ValidationError{Location: labelerr.Instance(c.hash), Reason: "classification is present on no frames"}
	}
	if err := c.row.checkBounds(c.hash, c.frames); err != nil {
		return err
	}
	for _, ans := range c.answers.All() {
		if err := c.frameAnswerConflict(ans.Attribute); err != nil {
			return err
		}
	}
	var covered frames.Range
	for _, fa := range c.frameAnswers {
		if overlap := covered.Intersect(fa.Frames); !overlap.IsEmpty() {
			f, _ := overlap.First()
			return &labelerr.ConflictingAnswerError{
				Location:  labelerr.At(c.hash, f),
				Attribute: fa.Answer.Attribute,
				Reason:    "frame answers overlap",
			}
		}
		covered = covered.Add(fa.Frames)
	}
	if outside := covered.Remove(c.frames); !outside.IsEmpty() {
		f, _ := outside.First()
		return &labelerr.ValidationError{Location: labelerr.At(c.hash, f), Reason: "frame answer outside the classification's frames"}
	}
	return nil
}

func (c *ClassificationInstance) equal(other *ClassificationInstance) bool {
	if c.hash != other.hash || c.feature.FeatureHash != other.feature.FeatureHash {
		return false
	}
	if !c.frames.Equal(other.frames) || !c.answers.Equal(other.answers) {
		return false
	}
	if !slices.EqualFunc(c.frameAnswers, other.frameAnswers, func(a, b FrameAnswer) bool {
		return a.Frames.Equal(b.Frames) && a.Answer.Equal(b.Answer)
	}) {
		return false
	}
	return maps.EqualFunc(c.perFrame, other.perFrame, func(a, b *FrameAnnotation) bool { return a.equal(*b) })
}
