package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflict")
	ErrParse                  = errors.New("parse error")
	ErrDuplicateInstance      = errors.New("instance identifier belongs to more than one piece group")
	ErrSessionVersionMismatch = errors.New("incompatible session file")
	ErrStoreWrite             = errors.New("store write failed")
	ErrPartialWrite           = errors.New("pieces saved, but total volume update failed")
)

// ParseError is a structural problem in a detailing export. The whole batch
// is rejected when one is returned.
type ParseError struct {
	File    string
	Marker  string
	Message string
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse error")
	if e.File != "" {
		b.WriteString(" in ")
		b.WriteString(e.File)
	}
	b.WriteString(": ")
	if e.Marker != "" {
		fmt.Fprintf(&b, "required marker %s not found", e.Marker)
		if e.Message != "" {
			b.WriteString(" (")
			b.WriteString(e.Message)
			b.WriteString(")")
		}
		return b.String()
	}
	b.WriteString(e.Message)
	return b.String()
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// ReconciliationConflictError is returned when an import header names a
// project code that already exists under a different client.
type ReconciliationConflictError struct {
	ProjectCode        string
	ExistingClientName string
	HeaderClientName   string
}

func (e *ReconciliationConflictError) Error() string {
	return fmt.Sprintf("project %q belongs to client %q but the import names client %q",
		e.ProjectCode, e.ExistingClientName, e.HeaderClientName)
}

func (e *ReconciliationConflictError) Is(target error) bool { return target == ErrConflict }

// StoreWriteError names the store operation that failed.
type StoreWriteError struct {
	Op  string
	Err error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("store write failed during %s: %v", e.Op, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

func (e *StoreWriteError) Is(target error) bool { return target == ErrStoreWrite }

// PartialWriteError reports that piece groups were committed but the
// project's total volume could not be updated afterwards. Callers should
// surface it and retry the volume recomputation rather than re-import.
//
// Op names the volume step that failed. Err is the underlying cause, never
// a *StoreWriteError, so a partial write does not match ErrStoreWrite.
type PartialWriteError struct {
	ProjectID string
	Op        string
	Err       error
}

// NewPartialWriteError builds a PartialWriteError from the error of the
// volume step. A *StoreWriteError is unpacked into Op and its cause.
func NewPartialWriteError(projectID string, err error) *PartialWriteError {
	partial := &PartialWriteError{ProjectID: projectID, Op: "update_volume", Err: err}
	var storeErr *StoreWriteError
	if errors.As(err, &storeErr) {
		partial.Op = storeErr.Op
		partial.Err = storeErr.Err
	}
	return partial
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("project %s: %s during %s: %v", e.ProjectID, ErrPartialWrite.Error(), e.Op, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

func (e *PartialWriteError) Is(target error) bool { return target == ErrPartialWrite }
