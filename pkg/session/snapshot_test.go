package session

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/precast-engine/pkg/apperrors"
	"github.com/ekaya-inc/precast-engine/pkg/filter"
	"github.com/ekaya-inc/precast-engine/pkg/models"
)

func testSession() filter.Session {
	projectID := uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	dataset := []models.PieceGroup{
		{
			ID:        uuid.MustParse("00000000-0000-0000-0000-0000000000b1"),
			ProjectID: projectID,
			PieceAttributes: models.PieceAttributes{
				Name: "P1", Type: "Pilar", Section: "30x30", Length: 6.5, Weight: 1462.5, UnitVolume: 0.585, MaterialClass: "C40",
			},
			Quantity:  3,
			PieceIDs:  []string{"P1-1", "P1-2", "P1-3"},
			CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			ID:        uuid.MustParse("00000000-0000-0000-0000-0000000000b2"),
			ProjectID: projectID,
			PieceAttributes: models.PieceAttributes{
				Name: "V1", Type: "Viga", Section: "20x40", Length: 8, Weight: 1600, UnitVolume: 0.64, MaterialClass: "C40",
			},
			Quantity:  5,
			PieceIDs:  []string{},
			CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		},
	}

	return filter.NewSession(dataset).
		WithStaged(filter.State{}.With(filter.DimensionType, "Pilar")).
		Apply().
		WithStaged(filter.State{Name: "v"}.With(filter.DimensionSection, "20x40"))
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	original := testSession()
	display := Display{Label: "Pilares + Vigas", ProjectCode: "OB-1", SavedAt: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
	snap := New(original, []string{"P1-3", "P1-1", "P1-1"}, display)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, snap))

	restored, err := Decode(&buf)
	require.NoError(t, err)

	assert.Equal(t, Version, restored.Version)
	assert.Equal(t, original, restored.Session())
	assert.Equal(t, []string{"P1-1", "P1-3"}, restored.Released)
	assert.Equal(t, display, restored.Display)
	assert.True(t, restored.IsReleased("P1-3"))
	assert.False(t, restored.IsReleased("P1-2"))
}

func TestDecode_VersionMismatch(t *testing.T) {
	doc := `{"version": "precast-session/v0", "payload": {"dataset": []}}`

	_, err := Decode(strings.NewReader(doc))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrSessionVersionMismatch))
	assert.Contains(t, err.Error(), "incompatible session file")
}

func TestDecode_MissingVersion(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"payload": {}}`))
	assert.True(t, errors.Is(err, apperrors.ErrSessionVersionMismatch))
}

func TestDecode_NotJSON(t *testing.T) {
	_, err := Decode(strings.NewReader("<xml/>"))
	assert.True(t, errors.Is(err, apperrors.ErrSessionVersionMismatch))
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "session_OB-1.json", Filename("OB-1"))
	assert.Equal(t, "session_Obra_12_A.json", Filename(" Obra 12/A "))
	assert.Equal(t, "session_session.json", Filename("../"))
}
