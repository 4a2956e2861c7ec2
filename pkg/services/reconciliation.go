package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/precast-engine/pkg/apperrors"
	"github.com/ekaya-inc/precast-engine/pkg/models"
	"github.com/ekaya-inc/precast-engine/pkg/repositories"
)

// ReconciliationService decides whether an import belongs to an existing
// project, needs a new one, or conflicts with stored data.
type ReconciliationService interface {
	// Resolve classifies the header against the owner's projects and
	// clients. It never writes.
	Resolve(ctx context.Context, ownerID uuid.UUID, header models.ImportHeader) (*models.Resolution, error)

	// ConfirmNewProject creates the project described by a new_project
	// resolution, creating its client first when none matched.
	ConfirmNewProject(ctx context.Context, ownerID uuid.UUID, resolution *models.Resolution, header models.ImportHeader) (*models.Project, error)
}

type reconciliationService struct {
	projectRepo repositories.ProjectRepository
	clientRepo  repositories.ClientRepository
	withTx      TxFunc
	logger      *zap.Logger
}

// NewReconciliationService creates a new reconciliation service.
func NewReconciliationService(
	projectRepo repositories.ProjectRepository,
	clientRepo repositories.ClientRepository,
	withTx TxFunc,
	logger *zap.Logger,
) ReconciliationService {
	return &reconciliationService{
		projectRepo: projectRepo,
		clientRepo:  clientRepo,
		withTx:      withTx,
		logger:      logger.Named("reconciliation"),
	}
}

func (s *reconciliationService) Resolve(ctx context.Context, ownerID uuid.UUID, header models.ImportHeader) (*models.Resolution, error) {
	code := strings.TrimSpace(header.ProjectCode)
	clientName := strings.TrimSpace(header.ClientName)
	if code == "" {
		return nil, &apperrors.ParseError{Marker: "project code", Message: "import header has no project code"}
	}

	project, err := s.projectRepo.FindByCode(ctx, ownerID, code)
	switch {
	case err == nil:
		if sameClient(project.ClientName, clientName) {
			return &models.Resolution{
				Kind:        models.ResolutionMatched,
				ProjectID:   project.ID,
				ProjectCode: project.Code,
			}, nil
		}
		s.logger.Info("Import header conflicts with stored project",
			zap.String("project_code", code),
			zap.String("existing_client", project.ClientName),
			zap.String("header_client", clientName))
		return &models.Resolution{
			Kind:               models.ResolutionConflict,
			ProjectID:          project.ID,
			ProjectCode:        project.Code,
			ExistingClientName: project.ClientName,
			HeaderClientName:   clientName,
		}, nil
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, fmt.Errorf("failed to look up project %q: %w", code, err)
	}

	res := &models.Resolution{
		Kind:          models.ResolutionNewProject,
		ProjectCode:   code,
		SuggestedName: strings.TrimSpace(header.ProjectName),
	}
	if res.SuggestedName == "" {
		res.SuggestedName = code
	}

	client, err := s.clientRepo.FindByName(ctx, ownerID, clientName)
	switch {
	case err == nil:
		id := client.ID
		res.ExistingClientID = &id
	case errors.Is(err, apperrors.ErrNotFound):
		res.ClientNameToCreate = clientName
	default:
		return nil, fmt.Errorf("failed to look up client %q: %w", clientName, err)
	}

	return res, nil
}

func (s *reconciliationService) ConfirmNewProject(ctx context.Context, ownerID uuid.UUID, resolution *models.Resolution, header models.ImportHeader) (*models.Project, error) {
	if resolution == nil {
		return nil, errors.New("no resolution to confirm")
	}
	switch resolution.Kind {
	case models.ResolutionNewProject:
	case models.ResolutionConflict:
		return nil, resolution.Err()
	default:
		return nil, fmt.Errorf("project %q already exists: %w", resolution.ProjectCode, apperrors.ErrConflict)
	}

	project := &models.Project{
		OwnerID: ownerID,
		Code:    resolution.ProjectCode,
		Name:    resolution.SuggestedName,
	}

	err := s.withTx(ctx, func(ctx context.Context) error {
		if resolution.ExistingClientID != nil {
			client, err := s.clientRepo.Get(ctx, *resolution.ExistingClientID)
			if err != nil {
				return fmt.Errorf("failed to load client: %w", err)
			}
			project.ClientID = &client.ID
			project.ClientName = client.Name
		} else {
			name := resolution.ClientNameToCreate
			if name == "" {
				name = strings.TrimSpace(header.ClientName)
			}
			client := &models.Client{OwnerID: ownerID, Name: name}
			if err := s.clientRepo.Create(ctx, client); err != nil {
				return &apperrors.StoreWriteError{Op: "create_client", Err: err}
			}
			project.ClientID = &client.ID
			project.ClientName = client.Name
		}

		if err := s.projectRepo.Create(ctx, project); err != nil {
			if errors.Is(err, apperrors.ErrConflict) {
				return err
			}
			return &apperrors.StoreWriteError{Op: "create_project", Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Created project from import",
		zap.String("project_id", project.ID.String()),
		zap.String("project_code", project.Code),
		zap.String("client", project.ClientName),
		zap.Bool("client_created", resolution.ExistingClientID == nil))

	return project, nil
}

// sameClient compares client names ignoring case and surrounding spaces.
// This is a heuristic; distinct clients whose names differ only in case
// cannot be told apart.
func sameClient(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

var _ ReconciliationService = (*reconciliationService)(nil)
