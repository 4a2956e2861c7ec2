package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/precast-engine/pkg/apperrors"
	"github.com/ekaya-inc/precast-engine/pkg/models"
	"github.com/ekaya-inc/precast-engine/pkg/repositories"
)

// PieceGroupService manages stored piece groups and their release status.
type PieceGroupService interface {
	ListGroups(ctx context.Context, projectID uuid.UUID) ([]*models.PieceGroup, error)
	ListStatuses(ctx context.Context, projectID uuid.UUID) ([]*models.IndividualPieceStatus, error)
	ReleasedIDs(ctx context.Context, projectID uuid.UUID) ([]string, error)

	// SetReleased marks instances as released or not. Every id must have a
	// status row; otherwise nothing changes and ErrNotFound is returned.
	SetReleased(ctx context.Context, projectID uuid.UUID, instanceIDs []string, released bool) error

	// DeleteGroup removes a group together with the status rows of its
	// instances, then recomputes the project's total volume.
	DeleteGroup(ctx context.Context, groupID uuid.UUID) error
}

type pieceGroupService struct {
	projectRepo repositories.ProjectRepository
	groupRepo   repositories.PieceGroupRepository
	statusRepo  repositories.PieceStatusRepository
	withTx      TxFunc
	logger      *zap.Logger
}

// NewPieceGroupService creates a new piece group service.
func NewPieceGroupService(
	projectRepo repositories.ProjectRepository,
	groupRepo repositories.PieceGroupRepository,
	statusRepo repositories.PieceStatusRepository,
	withTx TxFunc,
	logger *zap.Logger,
) PieceGroupService {
	return &pieceGroupService{
		projectRepo: projectRepo,
		groupRepo:   groupRepo,
		statusRepo:  statusRepo,
		withTx:      withTx,
		logger:      logger.Named("piece-group-service"),
	}
}

func (s *pieceGroupService) ListGroups(ctx context.Context, projectID uuid.UUID) ([]*models.PieceGroup, error) {
	return s.groupRepo.ListByProject(ctx, projectID)
}

func (s *pieceGroupService) ListStatuses(ctx context.Context, projectID uuid.UUID) ([]*models.IndividualPieceStatus, error) {
	return s.statusRepo.ListByProject(ctx, projectID)
}

func (s *pieceGroupService) ReleasedIDs(ctx context.Context, projectID uuid.UUID) ([]string, error) {
	return s.statusRepo.ListReleasedIDs(ctx, projectID)
}

func (s *pieceGroupService) SetReleased(ctx context.Context, projectID uuid.UUID, instanceIDs []string, released bool) error {
	ids := slices.Clone(instanceIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if len(ids) == 0 {
		return nil
	}

	err := s.withTx(ctx, func(ctx context.Context) error {
		missing, err := s.statusRepo.SetReleased(ctx, projectID, ids, released)
		if err != nil {
			return &apperrors.StoreWriteError{Op: "set_released", Err: err}
		}
		if len(missing) > 0 {
			return fmt.Errorf("no status for instances %s: %w", strings.Join(missing, ", "), apperrors.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Updated release status",
		zap.String("project_id", projectID.String()),
		zap.Int("instances", len(ids)),
		zap.Bool("released", released))
	return nil
}

func (s *pieceGroupService) DeleteGroup(ctx context.Context, groupID uuid.UUID) error {
	var (
		projectID uuid.UUID
		volumeErr error
	)

	err := s.withTx(ctx, func(ctx context.Context) error {
		group, err := s.groupRepo.Get(ctx, groupID)
		if err != nil {
			return err
		}
		projectID = group.ProjectID

		if err := s.projectRepo.LockForUpdate(ctx, projectID); err != nil {
			return &apperrors.StoreWriteError{Op: "lock_project", Err: err}
		}
		if _, err := s.statusRepo.DeleteForInstances(ctx, group.ProjectID, group.PieceIDs); err != nil {
			return &apperrors.StoreWriteError{Op: "delete_statuses", Err: err}
		}
		if err := s.groupRepo.Delete(ctx, group.ID); err != nil {
			return &apperrors.StoreWriteError{Op: "delete_group", Err: err}
		}

		volumeErr = s.withTx(ctx, func(ctx context.Context) error {
			_, err := recomputeVolume(ctx, s.groupRepo, s.projectRepo, group.ProjectID)
			return err
		})
		return nil
	})
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Error("Failed to delete piece group",
				zap.String("group_id", groupID.String()),
				zap.Error(err))
		}
		return err
	}

	if volumeErr != nil {
		return apperrors.NewPartialWriteError(projectID.String(), volumeErr)
	}

	s.logger.Info("Deleted piece group",
		zap.String("group_id", groupID.String()),
		zap.String("project_id", projectID.String()))
	return nil
}

var _ PieceGroupService = (*pieceGroupService)(nil)
