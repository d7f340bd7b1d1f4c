// Package errs defines the error kinds surfaced by the classification
// pipeline. Callers branch on Kind; the wrapped error carries the detail.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	// Processing is the default for failures without a more specific kind.
	Processing Kind = iota
	// InvalidInput covers bad uploads: empty, corrupt, wrong type, out-of-range dimensions.
	InvalidInput
	// NotReady means the artifact has not reached the validated state.
	NotReady
	// Shape means a feature vector or scaler input has the wrong length or non-finite values.
	Shape
	// Capability means a model component lacks a required operation.
	Capability
	// ArtifactLoad covers fetch and deserialization failures of the model bundle.
	ArtifactLoad
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid_input"
	case NotReady:
		return "not_ready"
	case Shape:
		return "shape"
	case Capability:
		return "capability"
	case ArtifactLoad:
		return "artifact_load"
	default:
		return "processing"
	}
}

// Error is a pipeline failure tagged with its kind and the stage that produced it.
type Error struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *Error) Error() string {
	if e.Stage == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with a kind and stage. A nil err yields nil.
func E(kind Kind, stage string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// Errorf builds a tagged error from a format string.
func Errorf(kind Kind, stage, format string, args ...any) error {
	return &Error{Kind: kind, Stage: stage, Err: fmt.Errorf(format, args...)}
}

// Wrap tags err with stage context while keeping the kind of an inner
// *Error. Untagged errors become Processing.
func Wrap(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindOf(err), Stage: stage, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// Processing when none is present.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Processing
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ShapeMismatch is the canonical error for a vector of the wrong length.
func ShapeMismatch(stage string, want, got int) error {
	return Errorf(Shape, stage, "expected %d features, got %d", want, got)
}
