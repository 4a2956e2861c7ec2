package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/precast-engine/pkg/apperrors"
	"github.com/ekaya-inc/precast-engine/pkg/metrics"
	"github.com/ekaya-inc/precast-engine/pkg/models"
	"github.com/ekaya-inc/precast-engine/pkg/repositories"
)

// SyncResult counts the status rows touched by a sync.
type SyncResult struct {
	Created   int `json:"created"`
	Refreshed int `json:"refreshed"`
}

// StatusSyncService keeps one release status row per piece instance.
type StatusSyncService interface {
	// Sync registers every instance id of the groups. Known instances keep
	// their release flag and get the group's current name; unknown ones
	// start unreleased. Rows are never deleted, even for instances that no
	// longer appear in any group.
	Sync(ctx context.Context, projectID uuid.UUID, groups []models.PieceGroup) (*SyncResult, error)
}

type statusSyncService struct {
	statusRepo repositories.PieceStatusRepository
	logger     *zap.Logger
}

// NewStatusSyncService creates a new status synchronizer.
func NewStatusSyncService(statusRepo repositories.PieceStatusRepository, logger *zap.Logger) StatusSyncService {
	return &statusSyncService{
		statusRepo: statusRepo,
		logger:     logger.Named("status-sync"),
	}
}

func (s *statusSyncService) Sync(ctx context.Context, projectID uuid.UUID, groups []models.PieceGroup) (*SyncResult, error) {
	seen := make(map[string]struct{})
	var entries []repositories.StatusUpsert
	for _, g := range groups {
		for _, id := range g.PieceIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			entries = append(entries, repositories.StatusUpsert{InstanceID: id, DisplayName: g.Name})
		}
	}

	if len(entries) == 0 {
		return &SyncResult{}, nil
	}

	res, err := s.statusRepo.Upsert(ctx, projectID, entries)
	if err != nil {
		return nil, &apperrors.StoreWriteError{Op: "upsert_statuses", Err: err}
	}

	metrics.RecordStatusSync(res.Created, res.Refreshed)
	s.logger.Debug("Synchronized piece statuses",
		zap.String("project_id", projectID.String()),
		zap.Int("created", res.Created),
		zap.Int("refreshed", res.Refreshed))

	return &SyncResult{Created: res.Created, Refreshed: res.Refreshed}, nil
}

var _ StatusSyncService = (*statusSyncService)(nil)
