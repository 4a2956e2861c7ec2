//go:build integration

package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/precast-engine/pkg/models"
	"github.com/ekaya-inc/precast-engine/pkg/repositories"
	"github.com/ekaya-inc/precast-engine/pkg/testhelpers"
)

func newPostgresWriter() PieceWriterService {
	return NewPieceWriterService(
		repositories.NewProjectRepository(),
		repositories.NewPieceGroupRepository(),
		NewStatusSyncService(repositories.NewPieceStatusRepository(), zap.NewNop()),
		NewTxFunc(),
		zap.NewNop(),
	)
}

func TestWrite_ConcurrentReplaceAllKeepsOneGroupSet(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	ownerID := uuid.New()
	t.Cleanup(func() { engineDB.CleanupOwner(t, ownerID) })

	projectRepo := repositories.NewProjectRepository()
	project := &models.Project{OwnerID: ownerID, Code: "OB-1", Name: "Bldg A", ClientName: "Acme"}
	require.NoError(t, projectRepo.Create(engineDB.TenantContext(t, ownerID), project))

	const writers = 4
	ctxs := make([]context.Context, writers)
	for i := range ctxs {
		ctxs[i] = engineDB.TenantContext(t, ownerID)
	}

	writer := newPostgresWriter()
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			groups := []models.PieceGroup{
				groupWithIDs(fmt.Sprintf("P%d", i), 0.5, fmt.Sprintf("W%d-1", i), fmt.Sprintf("W%d-2", i)),
				groupWithIDs(fmt.Sprintf("V%d", i), 1.0, fmt.Sprintf("W%d-3", i)),
			}
			_, errs[i] = writer.Write(ctxs[i], project.ID, groups, PolicyReplaceAll)
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "writer %d", i)
	}

	ctx := engineDB.TenantContext(t, ownerID)
	stored, err := repositories.NewPieceGroupRepository().ListByProject(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2, "replace-all writers must not interleave")

	got, err := projectRepo.Get(ctx, project.ID)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, got.TotalVolume, 1e-9)
}

func TestWrite_ConcurrentAppendsNeverShareAnInstance(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	ownerID := uuid.New()
	t.Cleanup(func() { engineDB.CleanupOwner(t, ownerID) })

	projectRepo := repositories.NewProjectRepository()
	project := &models.Project{OwnerID: ownerID, Code: "OB-2", Name: "Bldg B", ClientName: "Acme"}
	require.NoError(t, projectRepo.Create(engineDB.TenantContext(t, ownerID), project))

	const writers = 3
	ctxs := make([]context.Context, writers)
	for i := range ctxs {
		ctxs[i] = engineDB.TenantContext(t, ownerID)
	}

	writer := newPostgresWriter()
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			groups := []models.PieceGroup{groupWithIDs(fmt.Sprintf("P%d", i), 1.0, "SHARED-1")}
			_, errs[i] = writer.Write(ctxs[i], project.ID, groups, PolicyAppendOnly)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one append may claim the instance")

	ctx := engineDB.TenantContext(t, ownerID)
	stored, err := repositories.NewPieceGroupRepository().ListByProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}
