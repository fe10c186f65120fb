// Package labels is the in-memory model of a label row: the object and
// classification instances annotated on one data asset, the frames they
// occupy and the answers given to their attributes.
//
// A LabelRow is a working copy owned by a single caller. It does no I/O and
// no locking.
package labels

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/heimdex-labels/internal/frames"
	"github.com/heimdex/heimdex-labels/internal/geometry"
	"github.com/heimdex/heimdex-labels/internal/interpolate"
	"github.com/heimdex/heimdex-labels/internal/labelerr"
	"github.com/heimdex/heimdex-labels/internal/ontology"
)

// DataType is the kind of asset a label row annotates.
type DataType string

const (
	DataTypeVideo      DataType = "video"
	DataTypeImageGroup DataType = "img_group"
	DataTypeImage      DataType = "image"
)

// DataUnit is one file of the asset. Image groups have one unit per frame;
// videos and single images have exactly one.
type DataUnit struct {
	Hash     string
	Title    string
	Link     string
	FileType string
	Frame    int
	Width    int
	Height   int
	FPS      float64
}

// Metadata describes the asset and the label row itself.
type Metadata struct {
	LabelHash    string
	BranchName   string
	DataHash     string
	DataTitle    string
	DataType     DataType
	DatasetHash  string
	DatasetTitle string
	LabelStatus  string
	OntologyHash string
	// FrameCount is required for videos. Image groups take it from their
	// units and single images always have one frame.
	FrameCount int
	Units      []DataUnit
}

// LabelRow is the aggregate of every instance annotated on one asset.
type LabelRow struct {
	meta   Metadata
	lookup ontology.Lookup
	now    func() time.Time

	objects             map[string]*ObjectInstance
	objectOrder         []string
	classifications     map[string]*ClassificationInstance
	classificationOrder []string
}

// NewLabelRow creates an empty label row.
func NewLabelRow(meta Metadata, lookup ontology.Lookup) (*LabelRow, error) {
	meta.Units = slices.Clone(meta.Units)
	slices.SortFunc(meta.Units, func(a, b DataUnit) int { return a.Frame - b.Frame })

	invalid := func(format string, args ...any) error {
		return &labelerr.ValidationError{Location: labelerr.Nowhere, Reason: fmt.Sprintf(format, args...)}
	}
	switch meta.DataType {
	case DataTypeVideo:
		if meta.FrameCount < 0 {
			return nil, invalid("negative frame count %d", meta.FrameCount)
		}
		if len(meta.Units) > 1 {
			return nil, invalid("video has %d data units", len(meta.Units))
		}
	case DataTypeImageGroup:
		for i, u := range meta.Units {
			if u.Frame != i {
				return nil, invalid("image group data units must be numbered 0..%d, found %d", len(meta.Units)-1, u.Frame)
			}
		}
		meta.FrameCount = len(meta.Units)
	case DataTypeImage:
		if len(meta.Units) > 1 {
			return nil, invalid("image has %d data units", len(meta.Units))
		}
		meta.FrameCount = 1
	default:
		return nil, invalid("unknown data type %q", meta.DataType)
	}

	return &LabelRow{
		meta:            meta,
		lookup:          lookup,
		now:             time.Now,
		objects:         make(map[string]*ObjectInstance),
		classifications: make(map[string]*ClassificationInstance),
	}, nil
}

// SetClock replaces the source of default creation times.
func (l *LabelRow) SetClock(now func() time.Time) {
	l.now = now
}

// Metadata returns a copy of the row metadata.
func (l *LabelRow) Metadata() Metadata {
	m := l.meta
	m.Units = slices.Clone(l.meta.Units)
	return m
}

func (l *LabelRow) Lookup() ontology.Lookup { return l.lookup }
func (l *LabelRow) FrameCount() int { return l.meta.FrameCount }

// FrameSize returns the width and height of frame f. Videos and single
// images report their one resolution for every frame.
func (l *LabelRow) FrameSize(f int) (width, height int, ok bool) {
	if f < 0 || f >= l.meta.FrameCount {
		return 0, 0, false
	}
	if l.meta.DataType == DataTypeImageGroup {
		u := l.meta.Units[f]
		return u.Width, u.Height, true
	}
	if len(l.meta.Units) == 0 {
		return 0, 0, false
	}
	return l.meta.Units[0].Width, l.meta.Units[0].Height, true
}

func (l *LabelRow) defaultAnnotation() FrameAnnotation {
	return FrameAnnotation{
		Confidence: DefaultConfidence,
		Manual:     true,
		CreatedAt:  wireTime(l.now()),
	}
}

func (l *LabelRow) checkBounds(hash string, r frames.Range) error {
	if r.Within(0, l.meta.FrameCount-1) {
		return nil
	}
	last, _ := r.Last()
	return &labelerr.ValidationError{
		Location: labelerr.At(hash, last),
		Reason:   fmt.Sprintf("frames %s outside [0, %d]", r, l.meta.FrameCount-1),
	}
}

func (l *LabelRow) checkClassificationOverlap(c *ClassificationInstance, r frames.Range) error {
	for _, hash := range l.classificationOrder {
		other := l.classifications[hash]
		if other == c || other.feature.FeatureHash != c.feature.FeatureHash {
			continue
		}
		if overlap := other.frames.Intersect(r); !overlap.IsEmpty() {
			f, _ := overlap.First()
			return &labelerr.ConflictingAnswerError{
				Location: labelerr.At(c.hash, f),
				Reason:   fmt.Sprintf("classification %s already present on frames %s", other.hash, overlap),
			}
		}
	}
	return nil
}

// NewHash returns a fresh 8 character instance hash.
func NewHash() string {
	return uuid.NewString()[:8]
}

func (l *LabelRow) freshHash() string {
	for {
		h := NewHash()
		if !l.hashTaken(h) {
			return h
		}
	}
}

func (l *LabelRow) hashTaken(hash string) bool {
	_, obj := l.objects[hash]
	_, cls := l.classifications[hash]
	return obj || cls
}

func (l *LabelRow) claimHash(hash string) error {
	if hash == "" {
		return &labelerr.ValidationError{Location: labelerr.Nowhere, Reason: "empty instance hash"}
	}
	if l.hashTaken(hash) {
		return &labelerr.ValidationError{Location: labelerr.Instance(hash), Reason: "instance hash already in use"}
	}
	return nil
}

// AddObject creates an object instance of the given feature.
func (l *LabelRow) AddObject(featureHash string) (*ObjectInstance, error) {
	return l.AddObjectWithHash(l.freshHash(), featureHash)
}

// AddObjectWithHash creates an object instance with a known hash, as when
// decoding or importing.
func (l *LabelRow) AddObjectWithHash(hash, featureHash string) (*ObjectInstance, error) {
	feature, ok := l.lookup.Object(featureHash)
	if !ok {
		return nil, &labelerr.OntologyMismatchError{Location: labelerr.Instance(hash), Feature: featureHash, Reason: "unknown object feature"}
	}
	if err := l.claimHash(hash); err != nil {
		return nil, err
	}
	obj := newObjectInstance(l, hash, feature)
	l.objects[hash] = obj
	l.objectOrder = append(l.objectOrder, hash)
	return obj, nil
}

// AddClassification creates a classification instance of the given feature.
func (l *LabelRow) AddClassification(featureHash string) (*ClassificationInstance, error) {
	return l.AddClassificationWithHash(l.freshHash(), featureHash)
}

// AddClassificationWithHash creates a classification instance with a known
// hash.
func (l *LabelRow) AddClassificationWithHash(hash, featureHash string) (*ClassificationInstance, error) {
	feature, ok := l.lookup.Classification(featureHash)
	if !ok {
		return nil, &labelerr.OntologyMismatchError{Location: labelerr.Instance(hash), Feature: featureHash, Reason: "unknown classification feature"}
	}
	if err := l.claimHash(hash); err != nil {
		return nil, err
	}
	cls := newClassificationInstance(l, hash, feature)
	l.classifications[hash] = cls
	l.classificationOrder = append(l.classificationOrder, hash)
	return cls, nil
}

// RemoveObject deletes an object with all its frames and answers.
func (l *LabelRow) RemoveObject(hash string) bool {
	if _, ok := l.objects[hash]; !ok {
		return false
	}
	delete(l.objects, hash)
	l.objectOrder = slices.DeleteFunc(l.objectOrder, func(h string) bool { return h == hash })
	return true
}

// RemoveClassification deletes a classification with all its answers.
func (l *LabelRow) RemoveClassification(hash string) bool {
	if _, ok := l.classifications[hash]; !ok {
		return false
	}
	delete(l.classifications, hash)
	l.classificationOrder = slices.DeleteFunc(l.classificationOrder, func(h string) bool { return h == hash })
	return true
}

func (l *LabelRow) Object(hash string) (*ObjectInstance, bool) {
	o, ok := l.objects[hash]
	return o, ok
}

func (l *LabelRow) Classification(hash string) (*ClassificationInstance, bool) {
	c, ok := l.classifications[hash]
	return c, ok
}

// Objects returns the objects in insertion order.
func (l *LabelRow) Objects() []*ObjectInstance {
	out := make([]*ObjectInstance, len(l.objectOrder))
	for i, h := range l.objectOrder {
		out[i] = l.objects[h]
	}
	return out
}

// Classifications returns the classifications in insertion order.
func (l *LabelRow) Classifications() []*ClassificationInstance {
	out := make([]*ClassificationInstance, len(l.classificationOrder))
	for i, h := range l.classificationOrder {
		out[i] = l.classifications[h]
	}
	return out
}

// ObjectsOnFrame returns the objects present on frame f.
func (l *LabelRow) ObjectsOnFrame(f int) []*ObjectInstance {
	var out []*ObjectInstance
	for _, h := range l.objectOrder {
		if o := l.objects[h]; o.frames.Contains(f) {
			out = append(out, o)
		}
	}
	return out
}

// ClassificationsOnFrame returns the classifications present on frame f.
func (l *LabelRow) ClassificationsOnFrame(f int) []*ClassificationInstance {
	var out []*ClassificationInstance
	for _, h := range l.classificationOrder {
		if c := l.classifications[h]; c.frames.Contains(f) {
			out = append(out, c)
		}
	}
	return out
}

// Interpolate fills the frames of r that lie between two of the object's
// keyframes. Every frame that already carries geometry is a keyframe, inside
// r or not, and is never overwritten; each gap is bounded by its two nearest
// keyframes. Filled frames are marked as not manual.
func (l *LabelRow) Interpolate(hash string, r frames.Range) error {
	obj, ok := l.objects[hash]
	if !ok {
		return &labelerr.ValidationError{Location: labelerr.Instance(hash), Reason: "no such object"}
	}
	if obj.feature.Shape == ontology.ShapeBitmask {
		return &labelerr.UnsupportedShapeError{
			Location:  labelerr.Instance(hash),
			Shape:     string(ontology.ShapeBitmask),
			Operation: "interpolation",
		}
	}

	keys := make(map[int]geometry.Geometry)
	for f := range obj.frames.All() {
		keys[f] = obj.perFrame[f].Geometry
	}
	filled, err := interpolate.Fill(keys, r.Remove(obj.frames))
	if err != nil {
		return labelerr.WithLocation(err, labelerr.Instance(hash))
	}

	ann := l.defaultAnnotation()
	ann.Manual = false
	var added []int
	for f, g := range filled {
		a := ann
		a.Geometry = g
		obj.perFrame[f] = &a
		added = append(added, f)
	}
	addedRange, err := frames.FromList(added)
	if err != nil {
		return err
	}
	obj.frames = obj.frames.Add(addedRange)
	return nil
}

// PruneEmpty removes instances that are present on no frames and returns
// their hashes.
func (l *LabelRow) PruneEmpty() []string {
	var pruned []string
	for _, o := range l.Objects() {
		if o.frames.IsEmpty() {
			l.RemoveObject(o.hash)
			pruned = append(pruned, o.hash)
		}
	}
	for _, c := range l.Classifications() {
		if c.frames.IsEmpty() {
			l.RemoveClassification(c.hash)
			pruned = append(pruned, c.hash)
		}
	}
	return pruned
}

// Validate checks every invariant of the row and returns all violations.
func (l *LabelRow) Validate() error {
	var errs []error
	for _, o := range l.Objects() {
		if err := o.validate(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range l.Classifications() {
		if err := c.validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := l.checkClassificationOverlap(c, c.frames); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Equal reports whether both rows hold the same metadata and instances.
// Instance order is not compared.
func (l *LabelRow) Equal(other *LabelRow) bool {
	if !metadataEqual(l.meta, other.meta) {
		return false
	}
	if len(l.objects) != len(other.objects) || len(l.classifications) != len(other.classifications) {
		return false
	}
	for h, o := range l.objects {
		oo, ok := other.objects[h]
		if !ok || !o.equal(oo) {
			return false
		}
	}
	for h, c := range l.classifications {
		oc, ok := other.classifications[h]
		if !ok || !c.equal(oc) {
			return false
		}
	}
	return true
}

func metadataEqual(a, b Metadata) bool {
	return a.LabelHash == b.LabelHash &&
		a.BranchName == b.BranchName &&
		a.DataHash == b.DataHash &&
		a.DataTitle == b.DataTitle &&
		a.DataType == b.DataType &&
		a.DatasetHash == b.DatasetHash &&
		a.DatasetTitle == b.DatasetTitle &&
		a.LabelStatus == b.LabelStatus &&
		a.OntologyHash == b.OntologyHash &&
		a.FrameCount == b.FrameCount &&
		slices.Equal(a.Units, b.Units)
}
