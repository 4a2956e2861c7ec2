package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/precast-engine/pkg/database"
	"github.com/ekaya-inc/precast-engine/pkg/models"
)

// StatusUpsert is one instance to register or refresh.
type StatusUpsert struct {
	InstanceID  string
	DisplayName string
}

// UpsertResult counts how an upsert batch landed.
type UpsertResult struct {
	Created   int
	Refreshed int
}

// PieceStatusRepository defines the interface for per-instance status data access.
type PieceStatusRepository interface {
	// Upsert inserts unreleased rows for unknown instances and refreshes
	// only the display name of known ones.
	Upsert(ctx context.Context, projectID uuid.UUID, entries []StatusUpsert) (*UpsertResult, error)
	DeleteForInstances(ctx context.Context, projectID uuid.UUID, instanceIDs []string) (int64, error)
	// SetReleased updates the flag for the given instances and returns the
	// ids that had no status row.
	SetReleased(ctx context.Context, projectID uuid.UUID, instanceIDs []string, released bool) ([]string, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.IndividualPieceStatus, error)
	ListReleasedIDs(ctx context.Context, projectID uuid.UUID) ([]string, error)
}

type pieceStatusRepository struct{}

// NewPieceStatusRepository creates a new piece status repository.
func NewPieceStatusRepository() PieceStatusRepository {
	return &pieceStatusRepository{}
}

func (r *pieceStatusRepository) Upsert(ctx context.Context, projectID uuid.UUID, entries []StatusUpsert) (*UpsertResult, error) {
	result := &UpsertResult{}
	if len(entries) == 0 {
		return result, nil
	}

	q, err := database.GetQuerier(ctx)
	if err != nil {
		return nil, err
	}

	// xmax is zero only for freshly inserted tuples.
	query := `
		INSERT INTO engine_piece_statuses (project_id, instance_id, released, display_name, created_at, updated_at)
		VALUES ($1, $2, false, $3, $4, $4)
		ON CONFLICT (project_id, instance_id)
		DO UPDATE SET display_name = EXCLUDED.display_name, updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0) AS inserted`

	now := time.Now()
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(query, projectID, e.InstanceID, e.DisplayName, now)
	}

	br := q.SendBatch(ctx, batch)
	defer br.Close()

	for _, e := range entries {
		var inserted bool
		if err := br.QueryRow().Scan(&inserted); err != nil {
			return nil, fmt.Errorf("failed to upsert status for %q: %w", e.InstanceID, err)
		}
		if inserted {
			result.Created++
		} else {
			result.Refreshed++
		}
	}
	return result, nil
}

func (r *pieceStatusRepository) DeleteForInstances(ctx context.Context, projectID uuid.UUID, instanceIDs []string) (int64, error) {
	if len(instanceIDs) == 0 {
		return 0, nil
	}

	q, err := database.GetQuerier(ctx)
	if err != nil {
		return 0, err
	}

	result, err := q.Exec(ctx,
		`DELETE FROM engine_piece_statuses WHERE project_id = $1 AND instance_id = ANY($2::text[])`,
		projectID, instanceIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to delete piece statuses: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *pieceStatusRepository) SetReleased(ctx context.Context, projectID uuid.UUID, instanceIDs []string, released bool) ([]string, error) {
	if len(instanceIDs) == 0 {
		return nil, nil
	}

	q, err := database.GetQuerier(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE engine_piece_statuses
		SET released = $3,
		    released_at = CASE WHEN $3 THEN COALESCE(released_at, $4) ELSE NULL END,
		    updated_at = $4
		WHERE project_id = $1 AND instance_id = ANY($2::text[])
		RETURNING instance_id`

	rows, err := q.Query(ctx, query, projectID, instanceIDs, released, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to set released flag: %w", err)
	}
	defer rows.Close()

	updated := make(map[string]bool, len(instanceIDs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan instance id: %w", err)
		}
		updated[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to set released flag: %w", err)
	}

	var missing []string
	for _, id := range instanceIDs {
		if !updated[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (r *pieceStatusRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.IndividualPieceStatus, error) {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT project_id, instance_id, released, released_at, display_name, created_at, updated_at
		FROM engine_piece_statuses
		WHERE project_id = $1
		ORDER BY instance_id`

	rows, err := q.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list piece statuses: %w", err)
	}
	defer rows.Close()

	var statuses []*models.IndividualPieceStatus
	for rows.Next() {
		var s models.IndividualPieceStatus
		if err := rows.Scan(&s.ProjectID, &s.InstanceID, &s.Released, &s.ReleasedAt, &s.DisplayName, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan piece status: %w", err)
		}
		statuses = append(statuses, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate piece statuses: %w", err)
	}
	return statuses, nil
}

func (r *pieceStatusRepository) ListReleasedIDs(ctx context.Context, projectID uuid.UUID) ([]string, error) {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx,
		`SELECT instance_id FROM engine_piece_statuses WHERE project_id = $1 AND released ORDER BY instance_id`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list released ids: %w", err)
	}
	defer rows.Close()

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan released ids: %w", err)
	}
	return ids, nil
}

var _ PieceStatusRepository = (*pieceStatusRepository)(nil)
