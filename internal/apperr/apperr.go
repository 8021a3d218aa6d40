package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind groups error codes by how callers must react to them.
type Kind string

const (
	// KindValidation is surfaced to the caller and never swallowed.
	KindValidation Kind = "validation"
	// KindAlreadyDone marks a benign no-op (idempotent replay).
	KindAlreadyDone Kind = "already_done"
	// KindGameOver marks a terminated cross-examination session.
	KindGameOver Kind = "game_over"
	// KindCorrupt marks unreadable persisted data; recovered locally.
	KindCorrupt Kind = "corrupt_persistence"
)

// Code is a machine-readable reason code.
type Code string

const (
	CodeUnknownGate            Code = "unknown_gate"
	CodeUnknownStatement       Code = "unknown_statement"
	CodeUnknownEvidence        Code = "unknown_evidence"
	CodeUnknownWitness         Code = "unknown_witness"
	CodeUnknownCharacter       Code = "unknown_character"
	CodeUnknownSave            Code = "unknown_save"
	CodeUnknownEventKind       Code = "unknown_event_kind"
	CodeDuplicateName          Code = "duplicate_name"
	CodeDuplicateEvidence      Code = "duplicate_evidence"
	CodeCriticalRoleConflict   Code = "critical_role_conflict"
	CodeInvalidCaseLength      Code = "invalid_case_length"
	CodeInvalidArgument        Code = "invalid_argument"
	CodeInvalidPhase           Code = "invalid_phase"
	CodeInsufficientStatements Code = "insufficient_statements"
	CodeTrialNotReady          Code = "trial_not_ready"
	CodeNoActiveSession        Code = "no_active_session"
	CodeSessionActive          Code = "session_active"
	CodeSessionTerminated      Code = "session_terminated"
	CodeCapReached             Code = "cap_reached"
	CodeAlreadyCompleted       Code = "already_completed"
	CodeAlreadyStarted         Code = "already_started"
	CodeAlreadyPressed         Code = "already_pressed"
	CodeAlreadyContradicted    Code = "already_contradicted"
	CodeAlreadyClassified      Code = "already_classified"
	CodeCorruptLog             Code = "corrupt_log"
	CodeCorruptSave            Code = "corrupt_save"
	CodeCorruptRegistry        Code = "corrupt_registry"
)

// Error is the domain error carried through the engine.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Details map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates an error of the given kind.
func New(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Validation creates a ValidationError.
func Validation(code Code, format string, args ...any) *Error {
	return New(KindValidation, code, fmt.Sprintf(format, args...))
}

// AlreadyDone creates a benign no-op signal.
func AlreadyDone(code Code, format string, args ...any) *Error {
	return New(KindAlreadyDone, code, fmt.Sprintf(format, args...))
}

// Terminated is returned for any session command after game over.
func Terminated(witness string) *Error {
	return New(KindGameOver, CodeSessionTerminated,
		fmt.Sprintf("cross-examination of %s is over: session terminated after maximum penalties", witness)).
		With("witness", witness)
}

// Corrupt wraps a persistence failure that callers recover from locally.
func Corrupt(code Code, path string, cause error) *Error {
	return &Error{
		Kind:    KindCorrupt,
		Code:    code,
		Message: fmt.Sprintf("unreadable %s", path),
		Details: map[string]any{"path": path},
		Cause:   cause,
	}
}

// With returns e with an extra detail set.
func (e *Error) With(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

// WithValid attaches the sorted list of valid alternatives and names them in the message.
func (e *Error) WithValid(valid []string) *Error {
	sorted := append([]string(nil), valid...)
	sort.Strings(sorted)
	e.Message = fmt.Sprintf("%s (valid: %s)", e.Message, strings.Join(sorted, ", "))
	return e.With("valid", sorted)
}

// As returns the domain error in err's chain, if any.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf returns the kind of a domain error, or "" for other errors.
func KindOf(err error) Kind {
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return ""
}

// IsAlreadyDone reports whether err is a benign no-op signal.
func IsAlreadyDone(err error) bool {
	return KindOf(err) == KindAlreadyDone
}

// IsGameOver reports whether err signals a terminated session.
func IsGameOver(err error) bool {
	return KindOf(err) == KindGameOver
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return errors.Is(err, &Error{Code: code})
}
