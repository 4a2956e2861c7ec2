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

// ClientRepository defines the interface for client data access.
type ClientRepository interface {
	Create(ctx context.Context, client *models.Client) error
	Get(ctx context.Context, id uuid.UUID) (*models.Client, error)
	// FindByName matches the owner's clients by case-insensitive name.
	// When several clients share a name the oldest one wins.
	FindByName(ctx context.Context, ownerID uuid.UUID, name string) (*models.Client, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Client, error)
}

type clientRepository struct{}

// NewClientRepository creates a new client repository.
func NewClientRepository() ClientRepository {
	return &clientRepository{}
}

const clientColumns = `id, owner_id, name, email, phone, tax_id, address, created_at, updated_at`

func (r *clientRepository) Create(ctx context.Context, client *models.Client) error {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return err
	}

	if client.ID == uuid.Nil {
		client.ID = uuid.New()
	}
	now := time.Now()
	client.CreatedAt = now
	client.UpdatedAt = now
	client.Name = strings.TrimSpace(client.Name)

	query := `
		INSERT INTO engine_clients (` + clientColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = q.Exec(ctx, query,
		client.ID, client.OwnerID, client.Name, client.Email, client.Phone,
		client.TaxID, client.Address, client.CreatedAt, client.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

func (r *clientRepository) Get(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return nil, err
	}

	client, err := scanClient(q.QueryRow(ctx, `SELECT `+clientColumns+` FROM engine_clients WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return client, nil
}

func (r *clientRepository) FindByName(ctx context.Context, ownerID uuid.UUID, name string) (*models.Client, error) {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + clientColumns + `
		FROM engine_clients
		WHERE owner_id = $1 AND lower(name) = lower($2)
		ORDER BY created_at
		LIMIT 1`

	client, err := scanClient(q.QueryRow(ctx, query, ownerID, strings.TrimSpace(name)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find client by name: %w", err)
	}
	return client, nil
}

func (r *clientRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Client, error) {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `SELECT `+clientColumns+` FROM engine_clients WHERE owner_id = $1 ORDER BY name`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []*models.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, client)
	}
	return clients, rows.Err()
}

func scanClient(row pgx.Row) (*models.Client, error) {
	var c models.Client
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Email, &c.Phone, &c.TaxID, &c.Address, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

var _ ClientRepository = (*clientRepository)(nil)
