package models

import (
	"time"

	"github.com/google/uuid"
)

// PieceAttributes are the descriptive attributes of a fabrication piece.
// Two records with equal attributes belong to the same piece group.
type PieceAttributes struct {
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	Section       string  `json:"section"`
	Length        float64 `json:"length"`
	Weight        float64 `json:"weight"` // per unit
	UnitVolume    float64 `json:"unit_volume"`
	MaterialClass string  `json:"material_class"`
}

// Piece is anything that can be measured and filtered as a set of
// identical units.
type Piece interface {
	Attributes() PieceAttributes
	Count() int
}

// PieceRecord is one detail line of a detailing export. It is never
// persisted directly.
type PieceRecord struct {
	PieceAttributes
	Quantity    int      `json:"quantity"`
	InstanceIDs []string `json:"instance_ids,omitempty"`
	SourceFile  string   `json:"source_file,omitempty"`
}

func (r PieceRecord) Attributes() PieceAttributes { return r.PieceAttributes }
func (r PieceRecord) Count() int                  { return r.Quantity }

// PieceGroup aggregates records sharing the same attributes. PieceIDs holds
// the individually trackable units of the group; an identifier is never
// shared by two groups of the same project.
type PieceGroup struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	PieceAttributes
	Quantity  int       `json:"quantity"`
	PieceIDs  []string  `json:"piece_ids"`
	CreatedAt time.Time `json:"created_at"`
}

func (g PieceGroup) Attributes() PieceAttributes { return g.PieceAttributes }
func (g PieceGroup) Count() int                  { return g.Quantity }

// IndividualPieceStatus tracks the release of a single piece instance.
// Rows are keyed by project and instance identifier and outlive the group
// that created them; only an explicit group deletion removes them.
type IndividualPieceStatus struct {
	ProjectID   uuid.UUID  `json:"project_id"`
	InstanceID  string     `json:"instance_id"`
	Released    bool       `json:"released"`
	ReleasedAt  *time.Time `json:"released_at,omitempty"`
	DisplayName string     `json:"display_name"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
