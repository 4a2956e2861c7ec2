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
	"github.com/ekaya-inc/precast-engine/pkg/pieces"
	"github.com/ekaya-inc/precast-engine/pkg/repositories"
)

// WritePolicy selects how a batch of groups lands in a project.
type WritePolicy string

const (
	// PolicyReplaceAll removes the project's groups before writing.
	PolicyReplaceAll WritePolicy = "replace_all"
	// PolicyAppendOnly keeps existing groups and rejects batches that reuse
	// one of their instance ids.
	PolicyAppendOnly WritePolicy = "append_only"
)

// ParseWritePolicy converts a configuration or CLI value to a WritePolicy.
func ParseWritePolicy(s string) (WritePolicy, error) {
	switch WritePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyReplaceAll:
		return PolicyReplaceAll, nil
	case PolicyAppendOnly:
		return PolicyAppendOnly, nil
	}
	return "", fmt.Errorf("unknown write policy %q (want %s or %s)", s, PolicyReplaceAll, PolicyAppendOnly)
}

// WriteResult describes a completed write.
type WriteResult struct {
	GroupsDeleted int64       `json:"groups_deleted"`
	GroupsWritten int         `json:"groups_written"`
	Statuses      *SyncResult `json:"statuses"`
	TotalVolume   float64     `json:"total_volume"`
}

// PieceWriterService persists piece groups for a project.
type PieceWriterService interface {
	// Write stores groups under the policy, synchronizes instance statuses
	// and recomputes the project's total volume, as one unit of work.
	//
	// When only the volume update fails, the groups stay committed and a
	// *apperrors.PartialWriteError is returned together with the result.
	// Any other failure rolls everything back.
	Write(ctx context.Context, projectID uuid.UUID, groups []models.PieceGroup, policy WritePolicy) (*WriteResult, error)

	// RecomputeVolume sets the project's total volume from its stored groups.
	RecomputeVolume(ctx context.Context, projectID uuid.UUID) (float64, error)
}

type pieceWriterService struct {
	projectRepo repositories.ProjectRepository
	groupRepo   repositories.PieceGroupRepository
	statusSync  StatusSyncService
	withTx      TxFunc
	logger      *zap.Logger
}

// NewPieceWriterService creates a new piece writer.
func NewPieceWriterService(
	projectRepo repositories.ProjectRepository,
	groupRepo repositories.PieceGroupRepository,
	statusSync StatusSyncService,
	withTx TxFunc,
	logger *zap.Logger,
) PieceWriterService {
	return &pieceWriterService{
		projectRepo: projectRepo,
		groupRepo:   groupRepo,
		statusSync:  statusSync,
		withTx:      withTx,
		logger:      logger.Named("piece-writer"),
	}
}

func (s *pieceWriterService) Write(ctx context.Context, projectID uuid.UUID, groups []models.PieceGroup, policy WritePolicy) (*WriteResult, error) {
	if policy != PolicyReplaceAll && policy != PolicyAppendOnly {
		return nil, fmt.Errorf("unknown write policy %q", policy)
	}

	result := &WriteResult{}
	var volumeErr error

	err := s.withTx(ctx, func(ctx context.Context) error {
		if err := s.projectRepo.LockForUpdate(ctx, projectID); err != nil {
			return &apperrors.StoreWriteError{Op: "lock_project", Err: err}
		}

		if policy == PolicyReplaceAll {
			deleted, err := s.groupRepo.DeleteByProject(ctx, projectID)
			if err != nil {
				return &apperrors.StoreWriteError{Op: "delete_groups", Err: err}
			}
			result.GroupsDeleted = deleted
		} else {
			owners, err := s.groupRepo.FindInstanceOwners(ctx, projectID, pieces.InstanceIDs(groups))
			if err != nil {
				return &apperrors.StoreWriteError{Op: "find_instance_owners", Err: err}
			}
			if len(owners) > 0 {
				return fmt.Errorf("%w: %q already belongs to stored group %q",
					apperrors.ErrDuplicateInstance, owners[0].InstanceID, owners[0].GroupName)
			}
		}

		rows := make([]*models.PieceGroup, len(groups))
		for i := range groups {
			g := groups[i]
			g.ID = uuid.Nil
			g.ProjectID = projectID
			rows[i] = &g
		}
		if err := s.groupRepo.CreateBatch(ctx, rows); err != nil {
			return &apperrors.StoreWriteError{Op: "create_groups", Err: err}
		}
		result.GroupsWritten = len(rows)

		sync, err := s.statusSync.Sync(ctx, projectID, groups)
		if err != nil {
			return err
		}
		result.Statuses = sync

		volumeErr = s.withTx(ctx, func(ctx context.Context) error {
			volume, err := recomputeVolume(ctx, s.groupRepo, s.projectRepo, projectID)
			result.TotalVolume = volume
			return err
		})
		return nil
	})
	if err != nil {
		var storeErr *apperrors.StoreWriteError
		if !errors.As(err, &storeErr) && !errors.Is(err, apperrors.ErrDuplicateInstance) {
			err = &apperrors.StoreWriteError{Op: "commit", Err: err}
		}
		s.logger.Error("Piece write failed",
			zap.String("project_id", projectID.String()),
			zap.String("policy", string(policy)),
			zap.Error(err))
		return nil, err
	}

	if volumeErr != nil {
		s.logger.Warn("Pieces saved but total volume update failed",
			zap.String("project_id", projectID.String()),
			zap.Error(volumeErr))
		return result, apperrors.NewPartialWriteError(projectID.String(), volumeErr)
	}

	s.logger.Info("Wrote piece groups",
		zap.String("project_id", projectID.String()),
		zap.String("policy", string(policy)),
		zap.Int64("deleted", result.GroupsDeleted),
		zap.Int("written", result.GroupsWritten),
		zap.Float64("total_volume", result.TotalVolume))

	return result, nil
}

func (s *pieceWriterService) RecomputeVolume(ctx context.Context, projectID uuid.UUID) (float64, error) {
	var volume float64
	err := s.withTx(ctx, func(ctx context.Context) error {
		if err := s.projectRepo.LockForUpdate(ctx, projectID); err != nil {
			return &apperrors.StoreWriteError{Op: "lock_project", Err: err}
		}
		var err error
		volume, err = recomputeVolume(ctx, s.groupRepo, s.projectRepo, projectID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return volume, nil
}

// recomputeVolume derives the project's total volume from every stored
// group, not only the ones just written.
func recomputeVolume(
	ctx context.Context,
	groupRepo repositories.PieceGroupRepository,
	projectRepo repositories.ProjectRepository,
	projectID uuid.UUID,
) (float64, error) {
	groups, err := groupRepo.ListByProject(ctx, projectID)
	if err != nil {
		return 0, &apperrors.StoreWriteError{Op: "list_groups", Err: err}
	}

	volume := pieces.TotalVolume(groups)
	if err := projectRepo.UpdateVolume(ctx, projectID, volume); err != nil {
		return 0, &apperrors.StoreWriteError{Op: "update_volume", Err: err}
	}
	return volume, nil
}

var _ PieceWriterService = (*pieceWriterService)(nil)
