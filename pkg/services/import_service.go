package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/precast-engine/pkg/apperrors"
	"github.com/ekaya-inc/precast-engine/pkg/detailing"
	"github.com/ekaya-inc/precast-engine/pkg/filter"
	"github.com/ekaya-inc/precast-engine/pkg/metrics"
	"github.com/ekaya-inc/precast-engine/pkg/models"
	"github.com/ekaya-inc/precast-engine/pkg/pieces"
	"github.com/ekaya-inc/precast-engine/pkg/repositories"
	"github.com/ekaya-inc/precast-engine/pkg/session"
)

// ErrConfirmationRequired is returned by Commit when the batch would create
// a new project and the caller did not confirm it.
var ErrConfirmationRequired = errors.New("import creates a new project and must be confirmed")

// ImportPreview is everything known about a batch before anything is written.
type ImportPreview struct {
	Header      models.ImportHeader `json:"header"`
	DisplayName string              `json:"display_name"`
	ReportNames []string            `json:"report_names"`
	Groups      []models.PieceGroup `json:"groups"`
	Summary     pieces.Summary      `json:"summary"`
	Warnings    []detailing.Warning `json:"warnings"`
	Resolution  *models.Resolution  `json:"resolution"`
}

// CommitResult describes a committed import.
type CommitResult struct {
	Preview        *ImportPreview  `json:"preview"`
	Project        *models.Project `json:"project"`
	ProjectCreated bool            `json:"project_created"`
	Write          *WriteResult    `json:"write"`
}

// ImportService runs detailing imports end to end.
type ImportService interface {
	// Preview parses, groups and reconciles a batch without writing.
	Preview(ctx context.Context, ownerID uuid.UUID, files []detailing.SourceFile) (*ImportPreview, error)

	// Commit imports a batch. Conflicting batches are refused; batches for
	// unknown projects need confirm to create the project.
	//
	// A *apperrors.PartialWriteError is returned together with the result
	// when the pieces were saved but the total volume was not.
	Commit(ctx context.Context, ownerID uuid.UUID, files []detailing.SourceFile, policy WritePolicy, confirm bool) (*CommitResult, error)

	// Snapshot captures a project's stored groups and release state as a
	// resumable session, with state applied as the filter.
	Snapshot(ctx context.Context, ownerID, projectID uuid.UUID, state filter.State) (*session.Snapshot, error)
}

type importService struct {
	normalizer     *detailing.Normalizer
	reconciliation ReconciliationService
	writer         PieceWriterService
	groups         PieceGroupService
	projectRepo    repositories.ProjectRepository
	withTx         TxFunc
	logger         *zap.Logger
}

// NewImportService creates a new import service.
func NewImportService(
	normalizer *detailing.Normalizer,
	reconciliation ReconciliationService,
	writer PieceWriterService,
	groups PieceGroupService,
	projectRepo repositories.ProjectRepository,
	withTx TxFunc,
	logger *zap.Logger,
) ImportService {
	return &importService{
		normalizer:     normalizer,
		reconciliation: reconciliation,
		writer:         writer,
		groups:         groups,
		projectRepo:    projectRepo,
		withTx:         withTx,
		logger:         logger.Named("import-service"),
	}
}

func (s *importService) Preview(ctx context.Context, ownerID uuid.UUID, files []detailing.SourceFile) (*ImportPreview, error) {
	batch, err := s.normalizer.ParseBatch(files)
	if err != nil {
		return nil, err
	}
	for _, w := range batch.Warnings {
		metrics.RecordWarning(string(w.Kind))
	}

	groups, err := pieces.Group(batch.Records)
	if err != nil {
		return nil, err
	}

	resolution, err := s.reconciliation.Resolve(ctx, ownerID, batch.Header)
	if err != nil {
		return nil, err
	}

	return &ImportPreview{
		Header:      batch.Header,
		DisplayName: batch.DisplayName,
		ReportNames: batch.ReportNames,
		Groups:      groups,
		Summary:     pieces.Summarize(groups),
		Warnings:    batch.Warnings,
		Resolution:  resolution,
	}, nil
}

func (s *importService) Commit(ctx context.Context, ownerID uuid.UUID, files []detailing.SourceFile, policy WritePolicy, confirm bool) (*CommitResult, error) {
	m := metrics.NewImportMetrics(string(policy))
	s.logger.Info("Import begun",
		zap.String("owner_id", ownerID.String()),
		zap.Int("files", len(files)),
		zap.String("policy", string(policy)))

	result, err := s.commit(ctx, ownerID, files, policy, confirm)
	switch {
	case err == nil:
		m.RecordGroups(result.Write.GroupsWritten)
		m.RecordOutcome(metrics.OutcomeSucceeded)
		s.logger.Info("Import succeeded",
			zap.String("project_code", result.Project.Code),
			zap.Bool("project_created", result.ProjectCreated),
			zap.Int("groups", result.Write.GroupsWritten),
			zap.Float64("total_volume", result.Write.TotalVolume))
	case errors.Is(err, apperrors.ErrPartialWrite):
		m.RecordGroups(result.Write.GroupsWritten)
		m.RecordOutcome(metrics.OutcomePartial)
		s.logger.Warn("Import saved pieces without volume update",
			zap.String("project_code", result.Project.Code),
			zap.Error(err))
	case errors.Is(err, apperrors.ErrConflict), errors.Is(err, ErrConfirmationRequired):
		m.RecordOutcome(metrics.OutcomeConflict)
		s.logger.Info("Import needs attention", zap.Error(err))
	default:
		m.RecordOutcome(metrics.OutcomeFailed)
		s.logger.Error("Import failed", zap.Error(err))
	}
	return result, err
}

func (s *importService) commit(ctx context.Context, ownerID uuid.UUID, files []detailing.SourceFile, policy WritePolicy, confirm bool) (*CommitResult, error) {
	preview, err := s.Preview(ctx, ownerID, files)
	if err != nil {
		return nil, err
	}

	res := preview.Resolution
	switch res.Kind {
	case models.ResolutionConflict:
		return nil, res.Err()
	case models.ResolutionNewProject:
		if !confirm {
			return nil, fmt.Errorf("project %q: %w", res.ProjectCode, ErrConfirmationRequired)
		}
	}

	result := &CommitResult{Preview: preview}
	var partialErr error

	err = s.withTx(ctx, func(ctx context.Context) error {
		if res.Kind == models.ResolutionNewProject {
			project, err := s.reconciliation.ConfirmNewProject(ctx, ownerID, res, preview.Header)
			if err != nil {
				return err
			}
			result.Project = project
			result.ProjectCreated = true
		} else {
			project, err := s.projectRepo.Get(ctx, res.ProjectID)
			if err != nil {
				return fmt.Errorf("failed to load project %q: %w", res.ProjectCode, err)
			}
			result.Project = project
		}

		write, err := s.writer.Write(ctx, result.Project.ID, preview.Groups, policy)
		if err != nil && !errors.Is(err, apperrors.ErrPartialWrite) {
			return err
		}
		partialErr = err
		result.Write = write
		result.Project.TotalVolume = write.TotalVolume
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, partialErr
}

func (s *importService) Snapshot(ctx context.Context, ownerID, projectID uuid.UUID, state filter.State) (*session.Snapshot, error) {
	project, err := s.projectRepo.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != ownerID {
		return nil, apperrors.ErrNotFound
	}

	stored, err := s.groups.ListGroups(ctx, projectID)
	if err != nil {
		return nil, err
	}
	released, err := s.groups.ReleasedIDs(ctx, projectID)
	if err != nil {
		return nil, err
	}

	dataset := make([]models.PieceGroup, len(stored))
	for i, g := range stored {
		dataset[i] = *g
	}

	sess := filter.NewSession(dataset).WithStaged(state).Apply()
	return session.New(sess, released, session.Display{
		Label:       project.Name,
		ProjectCode: project.Code,
		SavedAt:     time.Now().UTC(),
	}), nil
}

var _ ImportService = (*importService)(nil)
