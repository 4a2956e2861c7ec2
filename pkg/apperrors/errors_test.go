package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseError_MatchesSentinel(t *testing.T) {
	err := fmt.Errorf("parse batch: %w", &ParseError{File: "a.xml", Marker: "RELATORIO"})

	assert.True(t, errors.Is(err, ErrParse))
	assert.Contains(t, err.Error(), "a.xml")
	assert.Contains(t, err.Error(), "RELATORIO")
}

func TestParseError_MessageWithoutMarker(t *testing.T) {
	err := &ParseError{File: "b.xml", Message: "no pieces found"}
	assert.Equal(t, "parse error in b.xml: no pieces found", err.Error())
}

func TestReconciliationConflictError_NamesBothClients(t *testing.T) {
	err := &ReconciliationConflictError{ProjectCode: "OB-1", ExistingClientName: "Acme", HeaderClientName: "Acme Corp"}

	assert.True(t, errors.Is(err, ErrConflict))
	assert.Contains(t, err.Error(), `"Acme"`)
	assert.Contains(t, err.Error(), `"Acme Corp"`)
}

func TestStoreWriteError_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := &StoreWriteError{Op: "replacePieceGroups", Err: cause}

	assert.True(t, errors.Is(err, ErrStoreWrite))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "replacePieceGroups")
}

func TestPartialWriteError_IsDistinctFromStoreWrite(t *testing.T) {
	cause := errors.New("lock timeout")
	err := NewPartialWriteError("p1", &StoreWriteError{Op: "update_volume", Err: cause})

	assert.True(t, errors.Is(err, ErrPartialWrite))
	assert.False(t, errors.Is(err, ErrStoreWrite))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "update_volume", err.Op)
	assert.Contains(t, err.Error(), "pieces saved, but total volume update failed")
	assert.Contains(t, err.Error(), "update_volume")
}

func TestNewPartialWriteError_PlainCause(t *testing.T) {
	cause := errors.New("savepoint release failed")
	err := NewPartialWriteError("p1", cause)

	assert.Equal(t, "update_volume", err.Op)
	assert.Same(t, cause, err.Err)
	assert.False(t, errors.Is(err, ErrStoreWrite))
}
