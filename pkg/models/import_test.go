package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/precast-engine/pkg/apperrors"
)

func TestResolution_Err(t *testing.T) {
	var nilRes *Resolution
	assert.NoError(t, nilRes.Err())
	assert.NoError(t, (&Resolution{Kind: ResolutionMatched}).Err())
	assert.NoError(t, (&Resolution{Kind: ResolutionNewProject}).Err())

	err := (&Resolution{
		Kind:               ResolutionConflict,
		ProjectCode:        "OB-1",
		ExistingClientName: "Acme",
		HeaderClientName:   "Acme Corp",
	}).Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	var conflict *apperrors.ReconciliationConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "OB-1", conflict.ProjectCode)
	assert.Equal(t, "Acme", conflict.ExistingClientName)
	assert.Equal(t, "Acme Corp", conflict.HeaderClientName)
}
