// Package wire holds the label-row payload exchanged with the annotation
// platform and the codec between it and the labels model.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

// TimeLayout is the timestamp format used on the wire.
const TimeLayout = "Mon, 02 Jan 2006 15:04:05 MST"

// LabelRow is the top-level payload.
type LabelRow struct {
	LabelHash             string                           `json:"label_hash"`
	BranchName            string                           `json:"branch_name,omitempty"`
	DataHash              string                           `json:"data_hash"`
	DataTitle             string                           `json:"data_title"`
	DataType              string                           `json:"data_type"`
	DatasetHash           string                           `json:"dataset_hash,omitempty"`
	DatasetTitle          string                           `json:"dataset_title,omitempty"`
	LabelStatus           string                           `json:"label_status,omitempty"`
	OntologyHash          string                           `json:"ontology_hash,omitempty"`
	NumberOfFrames        int                              `json:"number_of_frames,omitempty"`
	DataUnits             map[string]*DataUnit             `json:"data_units"`
	ObjectAnswers         map[string]*ObjectAnswer         `json:"object_answers"`
	ClassificationAnswers map[string]*ClassificationAnswer `json:"classification_answers"`
	ObjectActions         map[string]json.RawMessage       `json:"object_actions"`
}

// DataUnit is one file of the asset with the labels drawn on it.
type DataUnit struct {
	DataHash     string   `json:"data_hash"`
	DataTitle    string   `json:"data_title"`
	DataLink     string   `json:"data_link,omitempty"`
	DataType     string   `json:"data_type"`
	DataSequence Sequence `json:"data_sequence"`
	Width        int      `json:"width"`
	Height       int      `json:"height"`
	DataFPS      float64  `json:"data_fps,omitempty"`
	Labels       Labels   `json:"labels"`
}

// Sequence is a data unit's position. Image groups send it as a string,
// videos as a number; the form is kept so it can be written back the same.
type Sequence struct {
	N      int
	Quoted bool
}

func (s Sequence) MarshalJSON() ([]byte, error) {
	if s.Quoted {
		return json.Marshal(strconv.Itoa(s.N))
	}
	return json.Marshal(s.N)
}

func (s *Sequence) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		n, err := strconv.Atoi(str)
		if err != nil {
			return fmt.Errorf("data_sequence %q is not a number", str)
		}
		*s = Sequence{N: n, Quoted: true}
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = Sequence{N: n}
	return nil
}

// Labels is either keyed by frame number (videos) or a single set of labels
// for the whole unit (images and image-group members).
type Labels struct {
	Frames map[int]*FrameLabels
	Unit   *FrameLabels
}

func (l Labels) MarshalJSON() ([]byte, error) {
	if l.Unit != nil {
		return json.Marshal(l.Unit)
	}
	if l.Frames == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(l.Frames)
}

func (l *Labels) UnmarshalJSON(data []byte) error {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	_, hasObjects := keys["objects"]
	_, hasClassifications := keys["classifications"]
	if hasObjects || hasClassifications {
		var unit FrameLabels
		if err := json.Unmarshal(data, &unit); err != nil {
			return err
		}
		*l = Labels{Unit: &unit}
		return nil
	}

	out := make(map[int]*FrameLabels, len(keys))
	for key, raw := range keys {
		frame, err := strconv.Atoi(key)
		if err != nil || frame < 0 {
			return fmt.Errorf("labels key %q is not a frame number", key)
		}
		var fl FrameLabels
		if err := json.Unmarshal(raw, &fl); err != nil {
			return fmt.Errorf("frame %d: %w", frame, err)
		}
		out[frame] = &fl
	}
	*l = Labels{Frames: out}
	return nil
}

// FrameLabels lists the occurrences on one frame.
type FrameLabels struct {
	Objects         []ObjectOccurrence         `json:"objects"`
	Classifications []ClassificationOccurrence `json:"classifications"`
}

// ObjectOccurrence is one object on one frame. Exactly one geometry field
// is set.
type ObjectOccurrence struct {
	Name             string   `json:"name"`
	Color            string   `json:"color"`
	Shape            string   `json:"shape"`
	Value            string   `json:"value"`
	CreatedAt        string   `json:"createdAt,omitempty"`
	CreatedBy        string   `json:"createdBy,omitempty"`
	LastEditedAt     string   `json:"lastEditedAt,omitempty"`
	LastEditedBy     string   `json:"lastEditedBy,omitempty"`
	Confidence       *float64 `json:"confidence,omitempty"`
	ObjectHash       string   `json:"objectHash"`
	FeatureHash      string   `json:"featureHash"`
	ManualAnnotation *bool    `json:"manualAnnotation,omitempty"`

	BoundingBox          *BoundingBox          `json:"boundingBox,omitempty"`
	RotatableBoundingBox *RotatableBoundingBox `json:"rotatableBoundingBox,omitempty"`
	Polygon              PointList             `json:"polygon,omitempty"`
	Polyline             PointList             `json:"polyline,omitempty"`
	Point                PointList             `json:"point,omitempty"`
	Bitmask              *Bitmask              `json:"bitmask,omitempty"`

	DynamicAnswers []AnswerEntry `json:"dynamicAnswers,omitempty"`
}

// ClassificationOccurrence is one classification on one frame, with the
// frame's answer when the classification is answered per frame.
type ClassificationOccurrence struct {
	Name               string        `json:"name"`
	Value              string        `json:"value"`
	CreatedAt          string        `json:"createdAt,omitempty"`
	CreatedBy          string        `json:"createdBy,omitempty"`
	LastEditedAt       string        `json:"lastEditedAt,omitempty"`
	LastEditedBy       string        `json:"lastEditedBy,omitempty"`
	Confidence         *float64      `json:"confidence,omitempty"`
	FeatureHash        string        `json:"featureHash"`
	ClassificationHash string        `json:"classificationHash"`
	ManualAnnotation   *bool         `json:"manualAnnotation,omitempty"`
	Answers            []AnswerEntry `json:"answers,omitempty"`
}

type BoundingBox struct {
	H float64 `json:"h"`
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type RotatableBoundingBox struct {
	H     float64 `json:"h"`
	W     float64 `json:"w"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

type Bitmask struct {
	Top       int    `json:"top"`
	Left      int    `json:"left"`
	Height    int    `json:"height"`
	Width     int    `json:"width"`
	RLEString string `json:"rleString"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PointList is written as an object keyed by point index, {"0": {...}}.
// Plain arrays are accepted when reading.
type PointList []Point

func (p PointList) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, pt := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := json.Marshal(pt)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, "%q:", strconv.Itoa(i))
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (p *PointList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var list []Point
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*p = list
		return nil
	}

	var keyed map[string]Point
	if err := json.Unmarshal(data, &keyed); err != nil {
		return err
	}
	type indexed struct {
		i  int
		pt Point
	}
	items := make([]indexed, 0, len(keyed))
	for key, pt := range keyed {
		i, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("point key %q is not an index", key)
		}
		items = append(items, indexed{i: i, pt: pt})
	}
	slices.SortFunc(items, func(a, b indexed) int { return a.i - b.i })
	for i, it := range items {
		if it.i != i {
			return fmt.Errorf("point indices are not contiguous at %d", i)
		}
	}
	out := make(PointList, len(items))
	for i, it := range items {
		out[i] = it.pt
	}
	*p = out
	return nil
}

// ObjectAnswer holds the static answers of one object instance.
type ObjectAnswer struct {
	ObjectHash      string        `json:"objectHash"`
	FeatureHash     string        `json:"featureHash,omitempty"`
	Classifications []AnswerEntry `json:"classifications"`
}

// ClassificationAnswer holds the static answers of one classification
// instance.
type ClassificationAnswer struct {
	ClassificationHash string        `json:"classificationHash"`
	FeatureHash        string        `json:"featureHash,omitempty"`
	Classifications    []AnswerEntry `json:"classifications"`
}

// AnswerEntry is the answer to one attribute.
type AnswerEntry struct {
	Name             string        `json:"name"`
	Value            string        `json:"value"`
	Answers          AnswerPayload `json:"answers"`
	FeatureHash      string        `json:"featureHash"`
	ManualAnnotation bool          `json:"manualAnnotation"`
}

// AnswerPayload is a string for text attributes and a list of selected
// options otherwise.
type AnswerPayload struct {
	Text    *string
	Options []OptionRef
}

type OptionRef struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	FeatureHash string `json:"featureHash"`
}

func (a AnswerPayload) MarshalJSON() ([]byte, error) {
	if a.Text != nil {
		return json.Marshal(*a.Text)
	}
	if a.Options == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a.Options)
}

func (a *AnswerPayload) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty answer payload")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = AnswerPayload{Text: &s}
		return nil
	case '[':
		var opts []OptionRef
		if err := json.Unmarshal(data, &opts); err != nil {
			return err
		}
		if opts == nil {
			opts = []OptionRef{}
		}
		*a = AnswerPayload{Options: opts}
		return nil
	}
	return fmt.Errorf("answer payload must be a string or a list, got %s", data)
}

// Parse decodes a JSON payload without interpreting it.
func Parse(data []byte) (*LabelRow, error) {
	var w LabelRow
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return &w, nil
}
