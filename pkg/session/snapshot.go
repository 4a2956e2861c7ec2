// Package session saves and restores a piece-list working session as a
// portable JSON document.
package session

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ekaya-inc/precast-engine/pkg/apperrors"
	"github.com/ekaya-inc/precast-engine/pkg/filter"
	"github.com/ekaya-inc/precast-engine/pkg/models"
)

// Version is the snapshot format written by this package. Documents with
// any other version are rejected.
const Version = "precast-session/v1"

// Display carries labels shown when a session is resumed.
type Display struct {
	Label       string    `json:"label"`
	ProjectCode string    `json:"project_code,omitempty"`
	ReportNames []string  `json:"report_names,omitempty"`
	SavedAt     time.Time `json:"saved_at"`
}

// Snapshot is everything needed to resume work without re-parsing the
// source files.
type Snapshot struct {
	Version  string              `json:"-"`
	Dataset  []models.PieceGroup `json:"dataset"`
	Applied  filter.State        `json:"applied"`
	Staged   filter.State        `json:"staged"`
	Released []string            `json:"released"`
	Display  Display             `json:"display"`
}

type envelope struct {
	Version string          `json:"version"`
	Payload json.RawMessage `json:"payload"`
}

// New captures a filter session and the released instance identifiers.
func New(s filter.Session, released []string, display Display) *Snapshot {
	rel := slices.Clone(released)
	slices.Sort(rel)
	return &Snapshot{
		Version:  Version,
		Dataset:  slices.Clone(s.Dataset),
		Applied:  s.Applied,
		Staged:   s.Staged,
		Released: slices.Compact(rel),
		Display:  display,
	}
}

// Session rebuilds the filter session held by the snapshot.
func (s *Snapshot) Session() filter.Session {
	return filter.Session{
		Dataset: slices.Clone(s.Dataset),
		Applied: s.Applied,
		Staged:  s.Staged,
	}
}

// IsReleased reports whether the instance was released when the snapshot
// was taken.
func (s *Snapshot) IsReleased(instanceID string) bool {
	_, found := slices.BinarySearch(s.Released, instanceID)
	return found
}

// Encode writes the snapshot as a versioned JSON document.
func Encode(w io.Writer, s *Snapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session payload: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(envelope{Version: Version, Payload: payload}); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// Decode reads a session document. The version is checked before the
// payload is looked at; a mismatch returns ErrSessionVersionMismatch and
// nothing is recovered.
func Decode(r io.Reader) (*Snapshot, error) {
	var env envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSessionVersionMismatch, err)
	}
	if env.Version != Version {
		return nil, fmt.Errorf("%w: got version %q, expected %q",
			apperrors.ErrSessionVersionMismatch, env.Version, Version)
	}

	var s Snapshot
	if err := json.Unmarshal(env.Payload, &s); err != nil {
		return nil, fmt.Errorf("failed to read session payload: %w", err)
	}
	s.Version = env.Version
	slices.Sort(s.Released)
	return &s, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Filename returns the download name for a project's session document.
func Filename(projectCode string) string {
	code := unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(projectCode), "_")
	code = strings.Trim(code, "_")
	if code == "" {
		code = "session"
	}
	return "session_" + code + ".json"
}
