package wire

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/heimdex/heimdex-labels/internal/frames"
	"github.com/heimdex/heimdex-labels/internal/geometry"
	"github.com/heimdex/heimdex-labels/internal/labelerr"
	"github.com/heimdex/heimdex-labels/internal/labels"
	"github.com/heimdex/heimdex-labels/internal/ontology"
)

// Codec converts between wire payloads and label rows for one ontology.
type Codec struct {
	lookup ontology.Lookup
	logger *slog.Logger
}

// NewCodec returns a codec resolving features through lookup. logger may be
// nil.
func NewCodec(lookup ontology.Lookup, logger *slog.Logger) *Codec {
	return &Codec{lookup: lookup, logger: logger}
}

func malformed(loc labelerr.Location, err error, format string, args ...any) error {
	return &labelerr.MalformedLabelError{Location: loc, Reason: fmt.Sprintf(format, args...), Err: err}
}

// Unmarshal parses and decodes a JSON payload.
func (c *Codec) Unmarshal(data []byte) (*labels.LabelRow, error) {
	w, err := Parse(data)
	if err != nil {
		return nil, malformed(labelerr.Nowhere, err, "invalid payload")
	}
	return c.Decode(w)
}

// Marshal encodes a label row to JSON.
func (c *Codec) Marshal(row *labels.LabelRow) ([]byte, error) {
	w, err := c.Encode(row)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

type unitLabels struct {
	frame  int
	labels *FrameLabels
}

// Decode builds a label row from a payload. Occurrences are read in frame
// order, so instances appear in the order of their first frame.
func (c *Codec) Decode(w *LabelRow) (*labels.LabelRow, error) {
	meta, perFrame, err := c.decodeUnits(w)
	if err != nil {
		return nil, err
	}
	row, err := labels.NewLabelRow(meta, c.lookup)
	if err != nil {
		return nil, malformed(labelerr.Nowhere, err, "invalid data units")
	}

	for _, ul := range perFrame {
		if ul.labels == nil {
			continue
		}
		for _, occ := range ul.labels.Objects {
			if err := c.decodeObject(row, ul.frame, occ); err != nil {
				return nil, err
			}
		}
		for _, occ := range ul.labels.Classifications {
			if err := c.decodeClassification(row, ul.frame, occ); err != nil {
				return nil, err
			}
		}
	}

	for _, hash := range slices.Sorted(maps.Keys(w.ObjectAnswers)) {
		entry := w.ObjectAnswers[hash]
		if entry == nil {
			continue
		}
		obj, ok := row.Object(hash)
		if !ok {
			c.orphan("object", hash)
			continue
		}
		if entry.FeatureHash != "" && entry.FeatureHash != obj.FeatureHash() {
			return nil, malformed(labelerr.Instance(hash), nil, "answers name feature %s but object is %s", entry.FeatureHash, obj.FeatureHash())
		}
		for _, ans := range entry.Classifications {
			v, err := c.decodeValue(hash, ans)
			if err != nil {
				return nil, err
			}
			if err := obj.Answers().Set(ans.FeatureHash, v, ans.ManualAnnotation); err != nil {
				return nil, labelerr.WithLocation(err, labelerr.Instance(hash))
			}
		}
	}

	for _, hash := range slices.Sorted(maps.Keys(w.ClassificationAnswers)) {
		entry := w.ClassificationAnswers[hash]
		if entry == nil {
			continue
		}
		cls, ok := row.Classification(hash)
		if !ok {
			c.orphan("classification", hash)
			continue
		}
		if entry.FeatureHash != "" && entry.FeatureHash != cls.FeatureHash() {
			return nil, malformed(labelerr.Instance(hash), nil, "answers name feature %s but classification is %s", entry.FeatureHash, cls.FeatureHash())
		}
		for _, ans := range entry.Classifications {
			v, err := c.decodeValue(hash, ans)
			if err != nil {
				return nil, err
			}
			if err := cls.SetStaticAnswer(ans.FeatureHash, v, ans.ManualAnnotation); err != nil {
				return nil, err
			}
		}
	}
	return row, nil
}

func (c *Codec) orphan(kind, hash string) {
	if c.logger == nil {
		return
	}
	c.logger.Debug("ignoring answers for unknown instance", "kind", kind, "instance_hash", hash)
}

// decodeUnits reads the row metadata and returns the labels of every frame
// in ascending order.
func (c *Codec) decodeUnits(w *LabelRow) (labels.Metadata, []unitLabels, error) {
	meta := labels.Metadata{
		LabelHash:    w.LabelHash,
		BranchName:   w.BranchName,
		DataHash:     w.DataHash,
		DataTitle:    w.DataTitle,
		DataType:     labels.DataType(w.DataType),
		DatasetHash:  w.DatasetHash,
		DatasetTitle: w.DatasetTitle,
		LabelStatus:  w.LabelStatus,
		OntologyHash: w.OntologyHash,
		FrameCount:   w.NumberOfFrames,
	}

	units := make([]*DataUnit, 0, len(w.DataUnits))
	for _, key := range slices.Sorted(maps.Keys(w.DataUnits)) {
		if u := w.DataUnits[key]; u != nil {
			units = append(units, u)
		}
	}
	slices.SortStableFunc(units, func(a, b *DataUnit) int { return cmp.Compare(a.DataSequence.N, b.DataSequence.N) })

	var perFrame []unitLabels
	switch meta.DataType {
	case labels.DataTypeVideo:
		for _, u := range units {
			if u.Labels.Unit != nil {
				return meta, nil, malformed(labelerr.Nowhere, nil, "video labels must be keyed by frame")
			}
			meta.Units = append(meta.Units, unitFromWire(u, 0))
			for _, f := range slices.Sorted(maps.Keys(u.Labels.Frames)) {
				perFrame = append(perFrame, unitLabels{frame: f, labels: u.Labels.Frames[f]})
				if meta.FrameCount <= f && w.NumberOfFrames == 0 {
					meta.FrameCount = f + 1
				}
			}
		}
	case labels.DataTypeImageGroup, labels.DataTypeImage:
		for i, u := range units {
			if len(u.Labels.Frames) > 0 {
				return meta, nil, malformed(labelerr.Nowhere, nil, "%s labels must not be keyed by frame", meta.DataType)
			}
			frame := u.DataSequence.N
			if meta.DataType == labels.DataTypeImage {
				frame = i
			}
			meta.Units = append(meta.Units, unitFromWire(u, frame))
			perFrame = append(perFrame, unitLabels{frame: frame, labels: u.Labels.Unit})
		}
	default:
		return meta, nil, malformed(labelerr.Nowhere, nil, "unknown data type %q", w.DataType)
	}
	return meta, perFrame, nil
}

func unitFromWire(u *DataUnit, frame int) labels.DataUnit {
	return labels.DataUnit{
		Hash:     u.DataHash,
		Title:    u.DataTitle,
		Link:     u.DataLink,
		FileType: u.DataType,
		Frame:    frame,
		Width:    u.Width,
		Height:   u.Height,
		FPS:      u.DataFPS,
	}
}

func (c *Codec) decodeObject(row *labels.LabelRow, f int, occ ObjectOccurrence) error {
	loc := labelerr.At(occ.ObjectHash, f)
	if occ.ObjectHash == "" {
		return malformed(loc, nil, "object occurrence without objectHash")
	}
	if _, ok := row.Classification(occ.ObjectHash); ok {
		return malformed(loc, nil, "hash used by both an object and a classification")
	}

	obj, ok := row.Object(occ.ObjectHash)
	if !ok {
		var err error
		if obj, err = row.AddObjectWithHash(occ.ObjectHash, occ.FeatureHash); err != nil {
			return labelerr.WithLocation(err, loc)
		}
	} else if obj.FeatureHash() != occ.FeatureHash {
		return malformed(loc, nil, "feature %s differs from earlier occurrences (%s)", occ.FeatureHash, obj.FeatureHash())
	}
	if obj.Frames().Contains(f) {
		return malformed(loc, nil, "object appears twice on the frame")
	}

	g, err := geometryFromWire(occ)
	if err != nil {
		return malformed(loc, err, "invalid geometry")
	}
	opts, err := frameOptions(occ.Confidence, occ.ManualAnnotation, occ.CreatedBy, occ.CreatedAt, occ.LastEditedBy, occ.LastEditedAt)
	if err != nil {
		return malformed(loc, err, "invalid occurrence metadata")
	}
	at, err := frames.Single(f)
	if err != nil {
		return malformed(loc, err, "invalid frame")
	}
	if err := obj.SetForFrames(at, g, opts...); err != nil {
		return malformed(loc, err, "cannot place object")
	}

	for _, ans := range occ.DynamicAnswers {
		v, err := c.decodeValue(occ.ObjectHash, ans)
		if err != nil {
			return labelerr.WithLocation(err, loc)
		}
		if err := obj.SetDynamicAnswer(at, ans.FeatureHash, v, ans.ManualAnnotation); err != nil {
			return labelerr.WithLocation(err, loc)
		}
	}
	return nil
}

func (c *Codec) decodeClassification(row *labels.LabelRow, f int, occ ClassificationOccurrence) error {
	loc := labelerr.At(occ.ClassificationHash, f)
	if occ.ClassificationHash == "" {
		return malformed(loc, nil, "classification occurrence without classificationHash")
	}
	if _, ok := row.Object(occ.ClassificationHash); ok {
		return malformed(loc, nil, "hash used by both an object and a classification")
	}

	cls, ok := row.Classification(occ.ClassificationHash)
	if !ok {
		var err error
		if cls, err = row.AddClassificationWithHash(occ.ClassificationHash, occ.FeatureHash); err != nil {
			return labelerr.WithLocation(err, loc)
		}
	} else if cls.FeatureHash() != occ.FeatureHash {
		return malformed(loc, nil, "feature %s differs from earlier occurrences (%s)", occ.FeatureHash, cls.FeatureHash())
	}
	if cls.Frames().Contains(f) {
		return malformed(loc, nil, "classification appears twice on the frame")
	}
	if len(occ.Answers) > 1 {
		return malformed(loc, nil, "%d frame answers on one occurrence", len(occ.Answers))
	}

	opts, err := frameOptions(occ.Confidence, occ.ManualAnnotation, occ.CreatedBy, occ.CreatedAt, occ.LastEditedBy, occ.LastEditedAt)
	if err != nil {
		return malformed(loc, err, "invalid occurrence metadata")
	}
	at, err := frames.Single(f)
	if err != nil {
		return malformed(loc, err, "invalid frame")
	}
	if err := cls.SetForFrames(at, opts...); err != nil {
		return labelerr.WithLocation(err, loc)
	}
	for _, ans := range occ.Answers {
		v, err := c.decodeValue(occ.ClassificationHash, ans)
		if err != nil {
			return labelerr.WithLocation(err, loc)
		}
		if err := cls.SetAnswerForFrames(at, ans.FeatureHash, v, ans.ManualAnnotation); err != nil {
			return labelerr.WithLocation(err, loc)
		}
	}
	return nil
}

func frameOptions(confidence *float64, manual *bool, createdBy, createdAt, editedBy, editedAt string) ([]labels.FrameOption, error) {
	created, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	edited, err := parseTime(editedAt)
	if err != nil {
		return nil, err
	}
	conf := labels.DefaultConfidence
	if confidence != nil {
		conf = *confidence
	}
	isManual := true
	if manual != nil {
		isManual = *manual
	}
	return []labels.FrameOption{
		labels.WithConfidence(conf),
		labels.WithManual(isManual),
		labels.WithCreatedBy(createdBy),
		labels.WithCreatedAt(created),
		labels.WithEditedBy(editedBy),
		labels.WithEditedAt(edited),
	}, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

func geometryFromWire(occ ObjectOccurrence) (geometry.Geometry, error) {
	var found []geometry.Geometry
	if b := occ.BoundingBox; b != nil {
		found = append(found, geometry.BoundingBox{X: b.X, Y: b.Y, W: b.W, H: b.H})
	}
	if b := occ.RotatableBoundingBox; b != nil {
		found = append(found, geometry.RotatableBoundingBox{X: b.X, Y: b.Y, W: b.W, H: b.H, Theta: b.Theta})
	}
	if occ.Polygon != nil {
		found = append(found, geometry.Polygon{Points: pointsFromWire(occ.Polygon)})
	}
	if occ.Polyline != nil {
		found = append(found, geometry.Polyline{Points: pointsFromWire(occ.Polyline)})
	}
	if occ.Point != nil {
		if len(occ.Point) != 1 {
			return nil, fmt.Errorf("point needs exactly 1 coordinate, got %d", len(occ.Point))
		}
		found = append(found, geometry.Keypoint{X: occ.Point[0].X, Y: occ.Point[0].Y})
	}
	if b := occ.Bitmask; b != nil {
		found = append(found, geometry.Bitmask{Top: b.Top, Left: b.Left, Width: b.Width, Height: b.Height, RLE: b.RLEString})
	}

	switch len(found) {
	case 0:
		return nil, errors.New("occurrence carries no geometry")
	case 1:
		if err := found[0].Validate(); err != nil {
			return nil, err
		}
		return found[0], nil
	default:
		return nil, fmt.Errorf("occurrence carries %d geometries", len(found))
	}
}

func pointsFromWire(pts PointList) []geometry.Point {
	out := make([]geometry.Point, len(pts))
	for i, p := range pts {
		out[i] = geometry.Point{X: p.X, Y: p.Y}
	}
	return out
}

func pointsToWire(pts []geometry.Point) PointList {
	out := make(PointList, len(pts))
	for i, p := range pts {
		out[i] = Point{X: p.X, Y: p.Y}
	}
	return out
}

func (c *Codec) decodeValue(hash string, ans AnswerEntry) (labels.Value, error) {
	attr, ok := c.lookup.Attribute(ans.FeatureHash)
	if !ok {
		return nil, &labelerr.OntologyMismatchError{Location: labelerr.Instance(hash), Feature: ans.FeatureHash, Reason: "unknown attribute"}
	}
	loc := labelerr.Instance(hash)
	switch attr.Type {
	case ontology.AttributeText:
		if ans.Answers.Text == nil {
			return nil, malformed(loc, nil, "text attribute %s answered with a list", attr.FeatureHash)
		}
		return labels.Text(*ans.Answers.Text), nil
	case ontology.AttributeRadio:
		if ans.Answers.Text != nil || len(ans.Answers.Options) != 1 {
			return nil, malformed(loc, nil, "radio attribute %s needs exactly one option", attr.FeatureHash)
		}
		return labels.Radio{Option: ans.Answers.Options[0].FeatureHash}, nil
	case ontology.AttributeChecklist:
		if ans.Answers.Text != nil {
			return nil, malformed(loc, nil, "checklist attribute %s answered with text", attr.FeatureHash)
		}
		opts := make([]string, len(ans.Answers.Options))
		for i, o := range ans.Answers.Options {
			opts[i] = o.FeatureHash
		}
		return labels.Checklist{Options: opts}, nil
	}
	return nil, &labelerr.OntologyMismatchError{Location: loc, Feature: ans.FeatureHash, Reason: fmt.Sprintf("unsupported attribute type %q", attr.Type)}
}

// Encode writes a label row as a payload. Instances present on no frames are
// left out entirely, answers included.
func (c *Codec) Encode(row *labels.LabelRow) (*LabelRow, error) {
	meta := row.Metadata()
	w := &LabelRow{
		LabelHash:             meta.LabelHash,
		BranchName:            meta.BranchName,
		DataHash:              meta.DataHash,
		DataTitle:             meta.DataTitle,
		DataType:              string(meta.DataType),
		DatasetHash:           meta.DatasetHash,
		DatasetTitle:          meta.DatasetTitle,
		LabelStatus:           meta.LabelStatus,
		OntologyHash:          meta.OntologyHash,
		DataUnits:             make(map[string]*DataUnit),
		ObjectAnswers:         make(map[string]*ObjectAnswer),
		ClassificationAnswers: make(map[string]*ClassificationAnswer),
		ObjectActions:         make(map[string]json.RawMessage),
	}
	if meta.DataType == labels.DataTypeVideo {
		w.NumberOfFrames = meta.FrameCount
	}

	perFrame := make(map[int]*FrameLabels)
	at := func(f int) *FrameLabels {
		fl, ok := perFrame[f]
		if !ok {
			fl = emptyFrameLabels()
			perFrame[f] = fl
		}
		return fl
	}

	for _, obj := range row.Objects() {
		if obj.Frames().IsEmpty() {
			continue
		}
		for f := range obj.Frames().All() {
			occ, err := c.encodeObject(obj, f)
			if err != nil {
				return nil, err
			}
			fl := at(f)
			fl.Objects = append(fl.Objects, occ)
		}
		entries, err := c.encodeAnswers(obj.Hash(), obj.Answers().All())
		if err != nil {
			return nil, err
		}
		w.ObjectAnswers[obj.Hash()] = &ObjectAnswer{
			ObjectHash:      obj.Hash(),
			FeatureHash:     obj.FeatureHash(),
			Classifications: entries,
		}
	}

	for _, cls := range row.Classifications() {
		if cls.Frames().IsEmpty() {
			continue
		}
		for f := range cls.Frames().All() {
			occ, err := c.encodeClassification(cls, f)
			if err != nil {
				return nil, err
			}
			fl := at(f)
			fl.Classifications = append(fl.Classifications, occ)
		}
		entries, err := c.encodeAnswers(cls.Hash(), cls.Answers().All())
		if err != nil {
			return nil, err
		}
		w.ClassificationAnswers[cls.Hash()] = &ClassificationAnswer{
			ClassificationHash: cls.Hash(),
			FeatureHash:        cls.FeatureHash(),
			Classifications:    entries,
		}
	}

	switch meta.DataType {
	case labels.DataTypeVideo:
		u := DataUnit{DataHash: meta.DataHash, DataTitle: meta.DataTitle}
		if len(meta.Units) == 1 {
			u = unitToWire(meta.Units[0], false)
		}
		u.Labels = Labels{Frames: perFrame}
		w.DataUnits[u.DataHash] = &u
	default:
		quoted := meta.DataType == labels.DataTypeImageGroup
		units := meta.Units
		if len(units) == 0 {
			units = []labels.DataUnit{{Hash: meta.DataHash, Title: meta.DataTitle}}
		}
		for _, mu := range units {
			u := unitToWire(mu, quoted)
			fl, ok := perFrame[mu.Frame]
			if !ok {
				fl = emptyFrameLabels()
			}
			u.Labels = Labels{Unit: fl}
			w.DataUnits[u.DataHash] = &u
		}
	}
	return w, nil
}

func emptyFrameLabels() *FrameLabels {
	return &FrameLabels{Objects: []ObjectOccurrence{}, Classifications: []ClassificationOccurrence{}}
}

func unitToWire(u labels.DataUnit, quoted bool) DataUnit {
	return DataUnit{
		DataHash:     u.Hash,
		DataTitle:    u.Title,
		DataLink:     u.Link,
		DataType:     u.FileType,
		DataSequence: Sequence{N: u.Frame, Quoted: quoted},
		Width:        u.Width,
		Height:       u.Height,
		DataFPS:      u.FPS,
	}
}

func (c *Codec) encodeObject(obj *labels.ObjectInstance, f int) (ObjectOccurrence, error) {
	ann, _ := obj.Annotation(f)
	feature := obj.Feature()
	conf, manual := ann.Confidence, ann.Manual
	occ := ObjectOccurrence{
		Name:             feature.Name,
		Color:            feature.Color,
		Shape:            string(feature.Shape),
		Value:            ontology.ValueName(feature.Name),
		CreatedAt:        formatTime(ann.CreatedAt),
		CreatedBy:        ann.CreatedBy,
		LastEditedAt:     formatTime(ann.LastEditedAt),
		LastEditedBy:     ann.LastEditedBy,
		Confidence:       &conf,
		ObjectHash:       obj.Hash(),
		FeatureHash:      obj.FeatureHash(),
		ManualAnnotation: &manual,
	}

	switch g := ann.Geometry.(type) {
	case geometry.BoundingBox:
		occ.BoundingBox = &BoundingBox{H: g.H, W: g.W, X: g.X, Y: g.Y}
	case geometry.RotatableBoundingBox:
		occ.RotatableBoundingBox = &RotatableBoundingBox{H: g.H, W: g.W, X: g.X, Y: g.Y, Theta: g.Theta}
	case geometry.Polygon:
		occ.Polygon = pointsToWire(g.Points)
	case geometry.Polyline:
		occ.Polyline = pointsToWire(g.Points)
	case geometry.Keypoint:
		occ.Point = PointList{{X: g.X, Y: g.Y}}
	case geometry.Bitmask:
		occ.Bitmask = &Bitmask{Top: g.Top, Left: g.Left, Height: g.Height, Width: g.Width, RLEString: g.RLE}
	default:
		return occ, &labelerr.UnsupportedShapeError{Location: labelerr.At(obj.Hash(), f), Shape: fmt.Sprintf("%T", g), Operation: "encoding"}
	}

	dynamic, err := c.encodeAnswers(obj.Hash(), obj.DynamicAnswers(f))
	if err != nil {
		return occ, labelerr.WithLocation(err, labelerr.At(obj.Hash(), f))
	}
	if len(dynamic) > 0 {
		occ.DynamicAnswers = dynamic
	}
	return occ, nil
}

func (c *Codec) encodeClassification(cls *labels.ClassificationInstance, f int) (ClassificationOccurrence, error) {
	ann, _ := cls.Annotation(f)
	name := cls.Feature().Name()
	conf, manual := ann.Confidence, ann.Manual
	occ := ClassificationOccurrence{
		Name:               name,
		Value:              ontology.ValueName(name),
		CreatedAt:          formatTime(ann.CreatedAt),
		CreatedBy:          ann.CreatedBy,
		LastEditedAt:       formatTime(ann.LastEditedAt),
		LastEditedBy:       ann.LastEditedBy,
		Confidence:         &conf,
		FeatureHash:        cls.FeatureHash(),
		ClassificationHash: cls.Hash(),
		ManualAnnotation:   &manual,
	}
	if ans, ok := cls.GetAnswerForFrame(f); ok {
		entries, err := c.encodeAnswers(cls.Hash(), []labels.Answer{ans})
		if err != nil {
			return occ, labelerr.WithLocation(err, labelerr.At(cls.Hash(), f))
		}
		occ.Answers = entries
	}
	return occ, nil
}

func (c *Codec) encodeAnswers(hash string, answers []labels.Answer) ([]AnswerEntry, error) {
	out := make([]AnswerEntry, 0, len(answers))
	for _, ans := range answers {
		attr, ok := c.lookup.Attribute(ans.Attribute)
		if !ok {
			return nil, &labelerr.OntologyMismatchError{Location: labelerr.Instance(hash), Feature: ans.Attribute, Reason: "unknown attribute"}
		}
		entry := AnswerEntry{
			Name:             attr.Name,
			Value:            ontology.ValueName(attr.Name),
			FeatureHash:      attr.FeatureHash,
			ManualAnnotation: ans.Manual,
		}
		switch v := ans.Value.(type) {
		case labels.Text:
			s := string(v)
			entry.Answers = AnswerPayload{Text: &s}
		case labels.Radio:
			ref, err := c.optionRef(hash, v.Option)
			if err != nil {
				return nil, err
			}
			entry.Answers = AnswerPayload{Options: []OptionRef{ref}}
		case labels.Checklist:
			refs := make([]OptionRef, 0, len(v.Options))
			for _, o := range v.Options {
				ref, err := c.optionRef(hash, o)
				if err != nil {
					return nil, err
				}
				refs = append(refs, ref)
			}
			entry.Answers = AnswerPayload{Options: refs}
		default:
			return nil, &labelerr.OntologyMismatchError{Location: labelerr.Instance(hash), Feature: ans.Attribute, Reason: fmt.Sprintf("unsupported value %T", ans.Value)}
		}
		out = append(out, entry)
	}
	return out, nil
}

func (c *Codec) optionRef(hash, option string) (OptionRef, error) {
	opt, ok := c.lookup.Option(option)
	if !ok {
		return OptionRef{}, &labelerr.OntologyMismatchError{Location: labelerr.Instance(hash), Feature: option, Reason: "unknown option"}
	}
	value := opt.Value
	if value == "" {
		value = ontology.ValueName(opt.Label)
	}
	return OptionRef{Name: opt.Label, Value: value, FeatureHash: opt.FeatureHash}, nil
}
