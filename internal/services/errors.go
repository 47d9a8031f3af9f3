package services

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindInput        Kind = "input"
	KindPrecondition Kind = "precondition"
	KindConfig       Kind = "configuration"
	KindEngineInit   Kind = "engine_init"
	KindNotFound     Kind = "not_found"
	KindInference    Kind = "inference"
	KindStorage      Kind = "storage"
)

var (
	ErrInput        = errors.New("input error")
	ErrPrecondition = errors.New("precondition error")
	ErrConfig       = errors.New("configuration error")
	ErrEngineInit   = errors.New("engine initialization error")
	ErrNotFound     = errors.New("not found")
	ErrInference    = errors.New("inference error")
	ErrStorage      = errors.New("storage error")
)

var kindMarkers = map[Kind]error{
	KindInput:        ErrInput,
	KindPrecondition: ErrPrecondition,
	KindConfig:       ErrConfig,
	KindEngineInit:   ErrEngineInit,
	KindNotFound:     ErrNotFound,
	KindInference:    ErrInference,
	KindStorage:      ErrStorage,
}

// Error is the classified failure returned at every adapter and orchestrator
// boundary. Kind and Incompatible are set where the failure is detected.
type Error struct {
	Kind      Kind
	Stage     string
	Operation string
	Message   string
	// Hint is a remediation suggestion shown to the user.
	Hint string
	// Incompatible marks a known engine version-incompatibility signature.
	Incompatible bool
	Err          error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	marker := kindMarkers[e.Kind]
	if marker == nil {
		marker = ErrInference
	}
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", marker, detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", marker, detail)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches the sentinel marker for the error's kind.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	marker, ok := kindMarkers[e.Kind]
	return ok && marker == target
}

// ErrorKind returns the string classification of the error.
func (e *Error) ErrorKind() string {
	if e == nil {
		return ""
	}
	return string(e.Kind)
}

// Wrap builds a classified error that includes stage context.
func Wrap(kind Kind, stage, operation, message string, err error) error {
	if kind == "" {
		kind = KindInference
	}
	return &Error{
		Kind:      kind,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Err:       err,
	}
}

// WithHint attaches a remediation hint to a classified error. Unclassified
// errors are returned unchanged.
func WithHint(err error, hint string) error {
	var classified *Error
	if !errors.As(err, &classified) {
		return err
	}
	clone := *classified
	clone.Hint = strings.TrimSpace(hint)
	return &clone
}

// Incompatible builds an engine error flagged as a known version
// incompatibility.
func Incompatible(kind Kind, stage, operation, message, hint string, err error) error {
	return &Error{
		Kind:         kind,
		Stage:        stage,
		Operation:    operation,
		Message:      message,
		Hint:         hint,
		Incompatible: true,
		Err:          err,
	}
}

// Classify guarantees err carries a Kind. Already classified errors pass
// through; anything else is treated as an inference failure of stage.
func Classify(stage string, err error) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}
	return Wrap(KindInference, stage, "", "unexpected failure", err)
}

// KindOf reports the kind of err, or the empty string for nil or
// unclassified errors.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return ""
}

// IsIncompatible reports whether err carries the known incompatibility flag.
func IsIncompatible(err error) bool {
	var classified *Error
	return errors.As(err, &classified) && classified.Incompatible
}

// Describe renders a human-readable message including any hint.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	var classified *Error
	if errors.As(err, &classified) && classified.Hint != "" {
		msg += "\nhint: " + classified.Hint
	}
	return msg
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
