package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/precast-engine/pkg/apperrors"
	"github.com/ekaya-inc/precast-engine/pkg/database"
	"github.com/ekaya-inc/precast-engine/pkg/models"
)

// ProjectRepository defines the interface for project data access.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	Get(ctx context.Context, id uuid.UUID) (*models.Project, error)
	// FindByCode returns the owner's project with the given code, or
	// apperrors.ErrNotFound.
	FindByCode(ctx context.Context, ownerID uuid.UUID, code string) (*models.Project, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	UpdateVolume(ctx context.Context, id uuid.UUID, volume float64) error
	// LockForUpdate takes a row lock on the project that is held until the
	// enclosing transaction ends. Writers of one project's pieces call it
	// first so they run one after another.
	LockForUpdate(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// projectRepository implements ProjectRepository using PostgreSQL.
type projectRepository struct{}

// NewProjectRepository creates a new project repository.
func NewProjectRepository() ProjectRepository {
	return &projectRepository{}
}

const projectColumns = `id, owner_id, code, name, client_id, client_name, address, area,
	permit_number, status, start_date, end_date, total_volume, created_at, updated_at`

func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return err
	}

	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now
	if project.Status == "" {
		project.Status = models.ProjectStatusActive
	}
	project.Code = strings.TrimSpace(project.Code)

	query := `
		INSERT INTO engine_projects (` + projectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err = q.Exec(ctx, query,
		project.ID,
		project.OwnerID,
		project.Code,
		project.Name,
		project.ClientID,
		project.ClientName,
		project.Address,
		project.Area,
		project.PermitNumber,
		project.Status,
		project.StartDate,
		project.EndDate,
		project.TotalVolume,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("project code %q already exists: %w", project.Code, apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

func (r *projectRepository) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + projectColumns + ` FROM engine_projects WHERE id = $1`

	project, err := scanProject(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

func (r *projectRepository) FindByCode(ctx context.Context, ownerID uuid.UUID, code string) (*models.Project, error) {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + projectColumns + ` FROM engine_projects WHERE owner_id = $1 AND code = $2`

	project, err := scanProject(q.QueryRow(ctx, query, ownerID, strings.TrimSpace(code)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find project by code: %w", err)
	}
	return project, nil
}

func (r *projectRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Project, error) {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + projectColumns + ` FROM engine_projects WHERE owner_id = $1 ORDER BY code`

	rows, err := q.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}
	return projects, nil
}

// Update writes the descriptive attributes of a project. TotalVolume is
// not touched; see UpdateVolume.
func (r *projectRepository) Update(ctx context.Context, project *models.Project) error {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return err
	}

	project.UpdatedAt = time.Now()

	query := `
		UPDATE engine_projects
		SET name = $2, client_id = $3, client_name = $4, address = $5, area = $6,
		    permit_number = $7, status = $8, start_date = $9, end_date = $10, updated_at = $11
		WHERE id = $1`

	result, err := q.Exec(ctx, query,
		project.ID, project.Name, project.ClientID, project.ClientName, project.Address, project.Area,
		project.PermitNumber, project.Status, project.StartDate, project.EndDate, project.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *projectRepository) UpdateVolume(ctx context.Context, id uuid.UUID, volume float64) error {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return err
	}

	result, err := q.Exec(ctx,
		`UPDATE engine_projects SET total_volume = $2, updated_at = $3 WHERE id = $1`,
		id, volume, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update project volume: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *projectRepository) LockForUpdate(ctx context.Context, id uuid.UUID) error {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return err
	}

	var locked uuid.UUID
	err = q.QueryRow(ctx, `SELECT id FROM engine_projects WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to lock project: %w", err)
	}
	return nil
}

// Delete removes a project by ID.
// Piece groups and statuses are deleted via CASCADE.
func (r *projectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return err
	}

	result, err := q.Exec(ctx, `DELETE FROM engine_projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func scanProject(row pgx.Row) (*models.Project, error) {
	var p models.Project
	err := row.Scan(
		&p.ID,
		&p.OwnerID,
		&p.Code,
		&p.Name,
		&p.ClientID,
		&p.ClientName,
		&p.Address,
		&p.Area,
		&p.PermitNumber,
		&p.Status,
		&p.StartDate,
		&p.EndDate,
		&p.TotalVolume,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Ensure projectRepository implements ProjectRepository at compile time.
var _ ProjectRepository = (*projectRepository)(nil)
