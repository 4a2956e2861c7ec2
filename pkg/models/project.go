// Package models contains domain types for precast-engine.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Project status labels.
const (
	ProjectStatusActive    = "active"
	ProjectStatusOnHold    = "on_hold"
	ProjectStatusCompleted = "completed"
)

// Project is a construction project whose fabrication pieces come from
// detailing exports.
type Project struct {
	ID      uuid.UUID `json:"id"`
	OwnerID uuid.UUID `json:"owner_id"`
	Code    string    `json:"code"`
	Name    string    `json:"name"`

	// ClientID is set when the project was linked to a stored client.
	// ClientName is always populated and is what import reconciliation
	// matches against. Matching by name is a best-effort heuristic: two
	// clients with names differing only in case are indistinguishable.
	ClientID   *uuid.UUID `json:"client_id,omitempty"`
	ClientName string     `json:"client_name"`

	Address      string     `json:"address,omitempty"`
	Area         float64    `json:"area,omitempty"`
	PermitNumber string     `json:"permit_number,omitempty"`
	Status       string     `json:"status"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`

	// TotalVolume must equal the sum of UnitVolume*Quantity over the
	// project's current piece groups. Only the piece writer updates it.
	TotalVolume float64 `json:"total_volume"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Client is a customer that owns projects.
type Client struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	TaxID     string    `json:"tax_id,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
