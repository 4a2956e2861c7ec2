package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/precast-engine/pkg/apperrors"
	"github.com/ekaya-inc/precast-engine/pkg/database"
	"github.com/ekaya-inc/precast-engine/pkg/models"
)

// InstanceOwner reports which stored group already holds an instance id.
type InstanceOwner struct {
	InstanceID string
	GroupID    uuid.UUID
	GroupName  string
}

// PieceGroupRepository defines the interface for piece group data access.
type PieceGroupRepository interface {
	// CreateBatch inserts all groups in a single round trip.
	CreateBatch(ctx context.Context, groups []*models.PieceGroup) error
	Get(ctx context.Context, id uuid.UUID) (*models.PieceGroup, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.PieceGroup, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// DeleteByProject removes every group of the project and returns how
	// many were removed. Statuses are left alone.
	DeleteByProject(ctx context.Context, projectID uuid.UUID) (int64, error)
	// FindInstanceOwners returns the stored groups of the project that
	// already list any of the given instance ids.
	FindInstanceOwners(ctx context.Context, projectID uuid.UUID, instanceIDs []string) ([]InstanceOwner, error)
}

type pieceGroupRepository struct{}

// NewPieceGroupRepository creates a new piece group repository.
func NewPieceGroupRepository() PieceGroupRepository {
	return &pieceGroupRepository{}
}

const pieceGroupColumns = `id, project_id, name, piece_type, section, length, weight,
	unit_volume, material_class, quantity, piece_ids, created_at`

func (r *pieceGroupRepository) CreateBatch(ctx context.Context, groups []*models.PieceGroup) error {
	if len(groups) == 0 {
		return nil
	}

	q, err := database.GetQuerier(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO engine_piece_groups (` + pieceGroupColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	now := time.Now()
	batch := &pgx.Batch{}
	for _, g := range groups {
		if g.ID == uuid.Nil {
			g.ID = uuid.New()
		}
		g.CreatedAt = now
		ids := g.PieceIDs
		if ids == nil {
			ids = []string{}
		}
		batch.Queue(query,
			g.ID, g.ProjectID, g.Name, g.Type, g.Section, g.Length, g.Weight,
			g.UnitVolume, g.MaterialClass, g.Quantity, ids, g.CreatedAt)
	}

	br := q.SendBatch(ctx, batch)
	defer br.Close()

	for _, g := range groups {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to create piece group %q: %w", g.Name, err)
		}
	}
	return nil
}

func (r *pieceGroupRepository) Get(ctx context.Context, id uuid.UUID) (*models.PieceGroup, error) {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return nil, err
	}

	group, err := scanPieceGroup(q.QueryRow(ctx, `SELECT `+pieceGroupColumns+` FROM engine_piece_groups WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get piece group: %w", err)
	}
	return group, nil
}

func (r *pieceGroupRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.PieceGroup, error) {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + pieceGroupColumns + `
		FROM engine_piece_groups
		WHERE project_id = $1
		ORDER BY created_at, name`

	rows, err := q.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list piece groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.PieceGroup
	for rows.Next() {
		g, err := scanPieceGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan piece group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate piece groups: %w", err)
	}
	return groups, nil
}

func (r *pieceGroupRepository) Delete(ctx context.Context, id uuid.UUID) error {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return err
	}

	result, err := q.Exec(ctx, `DELETE FROM engine_piece_groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete piece group: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *pieceGroupRepository) DeleteByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return 0, err
	}

	result, err := q.Exec(ctx, `DELETE FROM engine_piece_groups WHERE project_id = $1`, projectID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete piece groups: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *pieceGroupRepository) FindInstanceOwners(ctx context.Context, projectID uuid.UUID, instanceIDs []string) ([]InstanceOwner, error) {
	if len(instanceIDs) == 0 {
		return nil, nil
	}

	q, err := database.GetQuerier(ctx)
	if err != nil {
		return nil, err
	}

	// The && predicate uses the GIN index before unnesting.
	query := `
		SELECT u.instance_id, g.id, g.name
		FROM engine_piece_groups g
		CROSS JOIN LATERAL unnest(g.piece_ids) AS u(instance_id)
		WHERE g.project_id = $1
		  AND g.piece_ids && $2::text[]
		  AND u.instance_id = ANY($2::text[])
		ORDER BY u.instance_id`

	rows, err := q.Query(ctx, query, projectID, instanceIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to find instance owners: %w", err)
	}
	defer rows.Close()

	var owners []InstanceOwner
	for rows.Next() {
		var o InstanceOwner
		if err := rows.Scan(&o.InstanceID, &o.GroupID, &o.GroupName); err != nil {
			return nil, fmt.Errorf("failed to scan instance owner: %w", err)
		}
		owners = append(owners, o)
	}
	return owners, rows.Err()
}

func scanPieceGroup(row pgx.Row) (*models.PieceGroup, error) {
	var g models.PieceGroup
	err := row.Scan(
		&g.ID,
		&g.ProjectID,
		&g.Name,
		&g.Type,
		&g.Section,
		&g.Length,
		&g.Weight,
		&g.UnitVolume,
		&g.MaterialClass,
		&g.Quantity,
		&g.PieceIDs,
		&g.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

var _ PieceGroupRepository = (*pieceGroupRepository)(nil)
