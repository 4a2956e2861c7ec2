package services

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/precast-engine/pkg/apperrors"
	"github.com/ekaya-inc/precast-engine/pkg/models"
	"github.com/ekaya-inc/precast-engine/pkg/repositories"
)

// ============================================================================
// In-memory store shared by the repository mocks
// ============================================================================

type statusKey struct {
	projectID  uuid.UUID
	instanceID string
}

type memStore struct {
	projects map[uuid.UUID]*models.Project
	clients  map[uuid.UUID]*models.Client
	groups   []*models.PieceGroup
	statuses map[statusKey]*models.IndividualPieceStatus

	// fail makes the named repository method return the error.
	fail  map[string]error
	calls []string
}

func newMemStore() *memStore {
	return &memStore{
		projects: make(map[uuid.UUID]*models.Project),
		clients:  make(map[uuid.UUID]*models.Client),
		statuses: make(map[statusKey]*models.IndividualPieceStatus),
		fail:     make(map[string]error),
	}
}

func (s *memStore) call(op string) error {
	s.calls = append(s.calls, op)
	return s.fail[op]
}

func (s *memStore) addProject(ownerID uuid.UUID, code, clientName string) *models.Project {
	p := &models.Project{ID: uuid.New(), OwnerID: ownerID, Code: code, Name: "Project " + code, ClientName: clientName}
	s.projects[p.ID] = p
	return p
}

func (s *memStore) addClient(ownerID uuid.UUID, name string) *models.Client {
	c := &models.Client{ID: uuid.New(), OwnerID: ownerID, Name: name}
	s.clients[c.ID] = c
	return c
}

func (s *memStore) projectGroups(projectID uuid.UUID) []*models.PieceGroup {
	var out []*models.PieceGroup
	for _, g := range s.groups {
		if g.ProjectID == projectID {
			out = append(out, g)
		}
	}
	return out
}

func (s *memStore) status(projectID uuid.UUID, id string) *models.IndividualPieceStatus {
	return s.statuses[statusKey{projectID, id}]
}

func (s *memStore) projectRepo() *mockProjectRepo    { return &mockProjectRepo{s} }
func (s *memStore) clientRepo() *mockClientRepo      { return &mockClientRepo{s} }
func (s *memStore) groupRepo() *mockPieceGroupRepo   { return &mockPieceGroupRepo{s} }
func (s *memStore) statusRepo() *mockPieceStatusRepo { return &mockPieceStatusRepo{s} }

// ============================================================================
// Project repository
// ============================================================================

type mockProjectRepo struct{ s *memStore }

func (m *mockProjectRepo) Create(ctx context.Context, project *models.Project) error {
	if err := m.s.call("CreateProject"); err != nil {
		return err
	}
	for _, p := range m.s.projects {
		if p.OwnerID == project.OwnerID && p.Code == project.Code {
			return apperrors.ErrConflict
		}
	}
	project.ID = uuid.New()
	m.s.projects[project.ID] = project
	return nil
}

func (m *mockProjectRepo) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	if err := m.s.call("GetProject"); err != nil {
		return nil, err
	}
	p, ok := m.s.projects[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return p, nil
}

func (m *mockProjectRepo) FindByCode(ctx context.Context, ownerID uuid.UUID, code string) (*models.Project, error) {
	if err := m.s.call("FindProjectByCode"); err != nil {
		return nil, err
	}
	for _, p := range m.s.projects {
		if p.OwnerID == ownerID && p.Code == code {
			return p, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockProjectRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Project, error) {
	var out []*models.Project
	for _, p := range m.s.projects {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProjectRepo) Update(ctx context.Context, project *models.Project) error {
	if _, ok := m.s.projects[project.ID]; !ok {
		return apperrors.ErrNotFound
	}
	m.s.projects[project.ID] = project
	return nil
}

func (m *mockProjectRepo) UpdateVolume(ctx context.Context, id uuid.UUID, volume float64) error {
	if err := m.s.call("UpdateVolume"); err != nil {
		return err
	}
	p, ok := m.s.projects[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	p.TotalVolume = volume
	return nil
}

func (m *mockProjectRepo) LockForUpdate(ctx context.Context, id uuid.UUID) error {
	if err := m.s.call("LockForUpdate"); err != nil {
		return err
	}
	if _, ok := m.s.projects[id]; !ok {
		return apperrors.ErrNotFound
	}
	return nil
}

func (m *mockProjectRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(m.s.projects, id)
	return nil
}

// ============================================================================
// Client repository
// ============================================================================

type mockClientRepo struct{ s *memStore }

func (m *mockClientRepo) Create(ctx context.Context, client *models.Client) error {
	if err := m.s.call("CreateClient"); err != nil {
		return err
	}
	client.ID = uuid.New()
	m.s.clients[client.ID] = client
	return nil
}

func (m *mockClientRepo) Get(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	c, ok := m.s.clients[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return c, nil
}

func (m *mockClientRepo) FindByName(ctx context.Context, ownerID uuid.UUID, name string) (*models.Client, error) {
	if err := m.s.call("FindClientByName"); err != nil {
		return nil, err
	}
	for _, c := range m.s.clients {
		if c.OwnerID == ownerID && strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockClientRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Client, error) {
	var out []*models.Client
	for _, c := range m.s.clients {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}

// ============================================================================
// Piece group repository
// ============================================================================

type mockPieceGroupRepo struct{ s *memStore }

func (m *mockPieceGroupRepo) CreateBatch(ctx context.Context, groups []*models.PieceGroup) error {
	if err := m.s.call("CreateBatch"); err != nil {
		return err
	}
	for _, g := range groups {
		g.ID = uuid.New()
		g.CreatedAt = time.Now()
		stored := *g
		stored.PieceIDs = slices.Clone(g.PieceIDs)
		m.s.groups = append(m.s.groups, &stored)
	}
	return nil
}

func (m *mockPieceGroupRepo) Get(ctx context.Context, id uuid.UUID) (*models.PieceGroup, error) {
	for _, g := range m.s.groups {
		if g.ID == id {
			return g, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockPieceGroupRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.PieceGroup, error) {
	if err := m.s.call("ListByProject"); err != nil {
		return nil, err
	}
	return m.s.projectGroups(projectID), nil
}

func (m *mockPieceGroupRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := m.s.call("DeleteGroup"); err != nil {
		return err
	}
	for i, g := range m.s.groups {
		if g.ID == id {
			m.s.groups = slices.Delete(m.s.groups, i, i+1)
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockPieceGroupRepo) DeleteByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	if err := m.s.call("DeleteByProject"); err != nil {
		return 0, err
	}
	before := len(m.s.groups)
	m.s.groups = slices.DeleteFunc(m.s.groups, func(g *models.PieceGroup) bool {
		return g.ProjectID == projectID
	})
	return int64(before - len(m.s.groups)), nil
}

func (m *mockPieceGroupRepo) FindInstanceOwners(ctx context.Context, projectID uuid.UUID, instanceIDs []string) ([]repositories.InstanceOwner, error) {
	if err := m.s.call("FindInstanceOwners"); err != nil {
		return nil, err
	}
	var owners []repositories.InstanceOwner
	for _, g := range m.s.projectGroups(projectID) {
		for _, id := range g.PieceIDs {
			if slices.Contains(instanceIDs, id) {
				owners = append(owners, repositories.InstanceOwner{InstanceID: id, GroupID: g.ID, GroupName: g.Name})
			}
		}
	}
	return owners, nil
}

// ============================================================================
// Piece status repository
// ============================================================================

type mockPieceStatusRepo struct{ s *memStore }

func (m *mockPieceStatusRepo) Upsert(ctx context.Context, projectID uuid.UUID, entries []repositories.StatusUpsert) (*repositories.UpsertResult, error) {
	if err := m.s.call("UpsertStatuses"); err != nil {
		return nil, err
	}
	res := &repositories.UpsertResult{}
	for _, e := range entries {
		key := statusKey{projectID, e.InstanceID}
		if st, ok := m.s.statuses[key]; ok {
			st.DisplayName = e.DisplayName
			res.Refreshed++
			continue
		}
		m.s.statuses[key] = &models.IndividualPieceStatus{
			ProjectID:   projectID,
			InstanceID:  e.InstanceID,
			DisplayName: e.DisplayName,
		}
		res.Created++
	}
	return res, nil
}

func (m *mockPieceStatusRepo) DeleteForInstances(ctx context.Context, projectID uuid.UUID, instanceIDs []string) (int64, error) {
	if err := m.s.call("DeleteStatuses"); err != nil {
		return 0, err
	}
	var n int64
	for _, id := range instanceIDs {
		key := statusKey{projectID, id}
		if _, ok := m.s.statuses[key]; ok {
			delete(m.s.statuses, key)
			n++
		}
	}
	return n, nil
}

func (m *mockPieceStatusRepo) SetReleased(ctx context.Context, projectID uuid.UUID, instanceIDs []string, released bool) ([]string, error) {
	var missing []string
	now := time.Now()
	for _, id := range instanceIDs {
		st, ok := m.s.statuses[statusKey{projectID, id}]
		if !ok {
			missing = append(missing, id)
			continue
		}
		st.Released = released
		if released {
			st.ReleasedAt = &now
		} else {
			st.ReleasedAt = nil
		}
	}
	return missing, nil
}

func (m *mockPieceStatusRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.IndividualPieceStatus, error) {
	var out []*models.IndividualPieceStatus
	for k, st := range m.s.statuses {
		if k.projectID == projectID {
			out = append(out, st)
		}
	}
	slices.SortFunc(out, func(a, b *models.IndividualPieceStatus) int { return strings.Compare(a.InstanceID, b.InstanceID) })
	return out, nil
}

func (m *mockPieceStatusRepo) ListReleasedIDs(ctx context.Context, projectID uuid.UUID) ([]string, error) {
	var ids []string
	for k, st := range m.s.statuses {
		if k.projectID == projectID && st.Released {
			ids = append(ids, k.instanceID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

var (
	_ repositories.ProjectRepository     = (*mockProjectRepo)(nil)
	_ repositories.ClientRepository      = (*mockClientRepo)(nil)
	_ repositories.PieceGroupRepository  = (*mockPieceGroupRepo)(nil)
	_ repositories.PieceStatusRepository = (*mockPieceStatusRepo)(nil)
)
