package models

import (
	"github.com/google/uuid"

	"github.com/ekaya-inc/precast-engine/pkg/apperrors"
)

// ImportHeader identifies the project a detailing batch belongs to. Only
// the first file of a batch contributes the header.
type ImportHeader struct {
	ProjectCode string `json:"project_code"`
	ProjectName string `json:"project_name"`
	ClientName  string `json:"client_name"`
	Engineer    string `json:"engineer,omitempty"`
}

// ResolutionKind classifies how an import header relates to stored projects.
type ResolutionKind string

const (
	ResolutionMatched    ResolutionKind = "matched"
	ResolutionNewProject ResolutionKind = "new_project"
	ResolutionConflict   ResolutionKind = "conflict"
)

// Resolution is the outcome of reconciling an ImportHeader.
//
//   - matched: ProjectID is set.
//   - new_project: SuggestedName and ProjectCode are set, plus either
//     ExistingClientID or ClientNameToCreate.
//   - conflict: ExistingClientName and HeaderClientName differ.
type Resolution struct {
	Kind               ResolutionKind `json:"kind"`
	ProjectID          uuid.UUID      `json:"project_id,omitempty"`
	ProjectCode        string         `json:"project_code"`
	SuggestedName      string         `json:"suggested_name,omitempty"`
	ExistingClientID   *uuid.UUID     `json:"existing_client_id,omitempty"`
	ClientNameToCreate string         `json:"client_name_to_create,omitempty"`
	ExistingClientName string         `json:"existing_client_name,omitempty"`
	HeaderClientName   string         `json:"header_client_name,omitempty"`
}

// Err returns a *apperrors.ReconciliationConflictError for conflicting
// resolutions and nil otherwise.
func (r *Resolution) Err() error {
	if r == nil || r.Kind != ResolutionConflict {
		return nil
	}
	return &apperrors.ReconciliationConflictError{
		ProjectCode:        r.ProjectCode,
		ExistingClientName: r.ExistingClientName,
		HeaderClientName:   r.HeaderClientName,
	}
}
