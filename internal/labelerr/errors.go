// Package labelerr holds the typed errors raised by the label-row model.
// Every error names the offending instance and frame when one applies.
package labelerr

import (
	"fmt"
	"strings"
)

// NoFrame marks an error that is not tied to a single frame.
const NoFrame = -1

// Location identifies where in a label row an error occurred.
type Location struct {
	Instance string
	Frame    int
}

// At builds a Location for an instance on a frame.
func At(instance string, frame int) Location {
	return Location{Instance: instance, Frame: frame}
}

// Instance builds a Location for an instance as a whole.
func Instance(instance string) Location {
	return Location{Instance: instance, Frame: NoFrame}
}

// Nowhere is used for errors about inputs that are not tied to an instance.
var Nowhere = Location{Frame: NoFrame}

func (l Location) format(kind, reason string) string {
	var b strings.Builder
	b.WriteString(kind)
	var parts []string
	if l.Instance != "" {
		parts = append(parts, "instance "+l.Instance)
	}
	if l.Frame != NoFrame {
		parts = append(parts, fmt.Sprintf("frame %d", l.Frame))
	}
	if len(parts) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString(")")
	}
	b.WriteString(": ")
	b.WriteString(reason)
	return b.String()
}

// ValidationError reports malformed frame indices or out-of-bounds ranges.
type ValidationError struct {
	Location
	Reason string
}

func (e *ValidationError) Error() string {
	return e.format("validation error", e.Reason)
}

// OntologyMismatchError reports a feature or attribute the ontology does not
// know, or a value whose kind does not match the attribute type.
type OntologyMismatchError struct {
	Location
	Feature string
	Reason  string
}

func (e *OntologyMismatchError) Error() string {
	if e.Feature == "" {
		return e.format("ontology mismatch", e.Reason)
	}
	return e.format("ontology mismatch", e.Feature+": "+e.Reason)
}

// InvalidGeometryError reports a geometry that violates its shape constraints.
type InvalidGeometryError struct {
	Location
	Shape  string
	Reason string
}

func (e *InvalidGeometryError) Error() string {
	return e.format("invalid geometry", e.Shape+": "+e.Reason)
}

// ConflictingAnswerError reports two different answers claiming the same frame.
type ConflictingAnswerError struct {
	Location
	Attribute string
	Reason    string
}

func (e *ConflictingAnswerError) Error() string {
	if e.Attribute == "" {
		return e.format("conflicting answer", e.Reason)
	}
	return e.format("conflicting answer", e.Attribute+": "+e.Reason)
}

// MalformedLabelError reports a wire payload that cannot be decoded.
type MalformedLabelError struct {
	Location
	Reason string
	Err    error
}

func (e *MalformedLabelError) Error() string {
	if e.Err != nil {
		return e.format("malformed label", e.Reason+": "+e.Err.Error())
	}
	return e.format("malformed label", e.Reason)
}

func (e *MalformedLabelError) Unwrap() error {
	return e.Err
}

// InterpolationError reports interpolation preconditions that do not hold.
type InterpolationError struct {
	Location
	Reason string
}

func (e *InterpolationError) Error() string {
	return e.format("interpolation failed", e.Reason)
}

// UnsupportedShapeError reports a shape that cannot take part in an operation.
type UnsupportedShapeError struct {
	Location
	Shape     string
	Operation string
}

func (e *UnsupportedShapeError) Error() string {
	return e.format("unsupported shape", fmt.Sprintf("%s cannot be used for %s", e.Shape, e.Operation))
}

// WithLocation fills in the instance and frame of a located error that was
// raised below the layer that knows them. Errors that already carry an
// instance are returned unchanged.
func WithLocation(err error, loc Location) error {
	switch e := err.(type) {
	case *ValidationError:
		e.Location = merge(e.Location, loc)
	case *OntologyMismatchError:
		e.Location = merge(e.Location, loc)
	case *InvalidGeometryError:
		e.Location = merge(e.Location, loc)
	case *ConflictingAnswerError:
		e.Location = merge(e.Location, loc)
	case *MalformedLabelError:
		e.Location = merge(e.Location, loc)
	case *InterpolationError:
		e.Location = merge(e.Location, loc)
	case *UnsupportedShapeError:
		e.Location = merge(e.Location, loc)
	}
	return err
}

func merge(have, fill Location) Location {
	if have.Instance == "" {
		have.Instance = fill.Instance
	}
	if have.Frame == NoFrame {
		have.Frame = fill.Frame
	}
	return have
}
