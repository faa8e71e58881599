package service

import (
	"context"
	"sync"
	"time"

	"github.com/eidos-ontology/eidos/internal/domain"
	"github.com/google/uuid"
)

// fakeStore is an in-memory implementation of every repository
// interface the merge request service depends on. It mirrors the
// postgres repositories' contracts, including the version
// compare-and-swap on merge request writes.
type fakeStore struct {
	mu       sync.Mutex
	mrs      map[uuid.UUID]*domain.MergeRequest
	changes  map[uuid.UUID][]*domain.MergeRequestChange
	comments map[uuid.UUID][]*domain.MergeRequestComment
	onts     map[uuid.UUID]*domain.Ontology
	entities map[entityKey]*domain.EntityState
	editors  map[string]bool
	managers map[string]bool

	appliedChanges int

	// afterGet, when set, runs once after the next GetByID. Lets tests
	// interleave a concurrent write into the read-modify-write window.
	afterGet func()
}

type entityKey struct {
	ontologyID uuid.UUID
	entityType domain.EntityType
	entityID   uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		mrs:      make(map[uuid.UUID]*domain.MergeRequest),
		changes:  make(map[uuid.UUID][]*domain.MergeRequestChange),
		comments: make(map[uuid.UUID][]*domain.MergeRequestComment),
		onts:     make(map[uuid.UUID]*domain.Ontology),
		entities: make(map[entityKey]*domain.EntityState),
		editors:  make(map[string]bool),
		managers: make(map[string]bool),
	}
}

func (f *fakeStore) setEntity(ontologyID uuid.UUID, entityType domain.EntityType, entityID uuid.UUID, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entities[entityKey{ontologyID, entityType, entityID}] = &domain.EntityState{
		EntityID:  entityID,
		Payload:   payload,
		UpdatedAt: time.Now(),
	}
}

func (f *fakeStore) removeEntity(ontologyID uuid.UUID, entityType domain.EntityType, entityID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entities, entityKey{ontologyID, entityType, entityID})
}

func cloneMR(mr *domain.MergeRequest) *domain.MergeRequest {
	c := *mr
	return &c
}

func cloneChange(ch *domain.MergeRequestChange) *domain.MergeRequestChange {
	c := *ch
	return &c
}

// --- MergeRequestRepository ---

func (f *fakeStore) Create(ctx context.Context, mr *domain.MergeRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := cloneMR(mr)
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	f.mrs[mr.ID] = stored
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.MergeRequest, error) {
	f.mu.Lock()
	stored, ok := f.mrs[id]
	var hook func()
	if ok {
		hook = f.afterGet
		f.afterGet = nil
	}
	f.mu.Unlock()

	if !ok {
		return nil, domain.ErrMergeRequestNotFound
	}
	if hook != nil {
		hook()
	}

	return cloneMR(stored), nil
}

func (f *fakeStore) UpdateWithComment(ctx context.Context, mr *domain.MergeRequest, comment *domain.MergeRequestComment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.casLocked(mr); err != nil {
		return err
	}
	f.appendCommentLocked(comment)
	return nil
}

func (f *fakeStore) ApplyMerge(ctx context.Context, mr *domain.MergeRequest, comment *domain.MergeRequestComment, changes []*domain.MergeRequestChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.casLocked(mr); err != nil {
		return err
	}
	f.appendCommentLocked(comment)

	for _, ch := range changes {
		key := entityKey{mr.OntologyID, ch.EntityType, ch.EntityID}
		switch ch.ChangeType {
		case domain.ChangeDelete:
			delete(f.entities, key)
		default:
			f.entities[key] = &domain.EntityState{
				EntityID:  ch.EntityID,
				Payload:   ch.Payload,
				UpdatedAt: time.Now(),
			}
		}
		f.appliedChanges++
	}
	return nil
}

func (f *fakeStore) UpdateStats(ctx context.Context, mr *domain.MergeRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.mrs[mr.ID]
	if !ok {
		return domain.ErrMergeRequestNotFound
	}
	if stored.Version != mr.Version {
		return domain.ErrVersionConflict
	}
	stored.Stats = mr.Stats
	stored.Version++
	stored.UpdatedAt = time.Now()
	mr.Version++
	return nil
}

func (f *fakeStore) PendingReviewCount(ctx context.Context, ontologyID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, mr := range f.mrs {
		if mr.OntologyID == ontologyID && mr.Status == domain.StatusPendingReview {
			count++
		}
	}
	return count, nil
}

// casLocked replaces the stored merge request if the caller holds the
// current version, mirroring the SQL "WHERE version = $n" guard.
func (f *fakeStore) casLocked(mr *domain.MergeRequest) error {
	stored, ok := f.mrs[mr.ID]
	if !ok {
		return domain.ErrMergeRequestNotFound
	}
	if stored.Version != mr.Version {
		return domain.ErrVersionConflict
	}
	updated := cloneMR(mr)
	updated.CreatedAt = stored.CreatedAt
	updated.Version = stored.Version + 1
	updated.UpdatedAt = time.Now()
	f.mrs[mr.ID] = updated
	mr.Version++
	return nil
}

func (f *fakeStore) appendCommentLocked(comment *domain.MergeRequestComment) {
	c := *comment
	c.CreatedAt = time.Now()
	f.comments[comment.MergeRequestID] = append(f.comments[comment.MergeRequestID], &c)
}

// --- ChangeRepository ---

func (f *fakeStore) CreateChange(ctx context.Context, change *domain.MergeRequestChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := cloneChange(change)
	stored.CreatedAt = time.Now()
	f.changes[change.MergeRequestID] = append(f.changes[change.MergeRequestID], stored)
	return nil
}

func (f *fakeStore) ListByMergeRequest(ctx context.Context, mergeRequestID uuid.UUID) ([]*domain.MergeRequestChange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.MergeRequestChange, 0, len(f.changes[mergeRequestID]))
	for _, ch := range f.changes[mergeRequestID] {
		out = append(out, cloneChange(ch))
	}
	return out, nil
}

func (f *fakeStore) SetConflictFlags(ctx context.Context, flags map[uuid.UUID]bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, hasConflict := range flags {
		found := false
		for _, list := range f.changes {
			for _, ch := range list {
				if ch.ID == id {
					ch.HasConflict = hasConflict
					found = true
				}
			}
		}
		if !found {
			return domain.ErrChangeNotFound
		}
	}
	return nil
}

// --- CommentRepository ---

func (f *fakeStore) CreateComment(ctx context.Context, comment *domain.MergeRequestComment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendCommentLocked(comment)
	return nil
}

func (f *fakeStore) ListCommentsByMergeRequest(ctx context.Context, mergeRequestID uuid.UUID) ([]*domain.MergeRequestComment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.MergeRequestComment, 0, len(f.comments[mergeRequestID]))
	for _, c := range f.comments[mergeRequestID] {
		cc := *c
		out = append(out, &cc)
	}
	return out, nil
}

// --- OntologyRepository / EntityStateRepository ---

func (f *fakeStore) CreateOntology(ctx context.Context, ontology *domain.Ontology) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := *ontology
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	f.onts[ontology.ID] = &o
	return nil
}

func (f *fakeStore) GetOntologyByID(ctx context.Context, id uuid.UUID) (*domain.Ontology, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.onts[id]
	if !ok {
		return nil, domain.ErrOntologyNotFound
	}
	oo := *o
	return &oo, nil
}

func (f *fakeStore) AddCollaborator(ctx context.Context, collaborator *domain.Collaborator) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch collaborator.Role {
	case domain.RoleAdmin:
		f.managers[collaborator.UserID] = true
	default:
		f.editors[collaborator.UserID] = true
	}
	return nil
}

func (f *fakeStore) RemoveCollaborator(ctx context.Context, ontologyID uuid.UUID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.editors[userID] && !f.managers[userID] {
		return domain.ErrCollaboratorNotFound
	}
	delete(f.editors, userID)
	delete(f.managers, userID)
	return nil
}

func (f *fakeStore) GetLiveState(ctx context.Context, ontologyID uuid.UUID, entityType domain.EntityType, entityID uuid.UUID) (*domain.EntityState, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.entities[entityKey{ontologyID, entityType, entityID}]
	if !ok {
		return nil, false, nil
	}
	s := *state
	return &s, true, nil
}

// --- PermissionRepository ---

func (f *fakeStore) CanEdit(ctx context.Context, ontologyID uuid.UUID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.editors[userID] || f.managers[userID], nil
}

func (f *fakeStore) CanManage(ctx context.Context, ontologyID uuid.UUID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.managers[userID], nil
}

// Adapters exposing the repository interface method names that collide
// between repositories (Create, GetByID, ListByMergeRequest).

type fakeChangeRepo struct{ *fakeStore }

func (f fakeChangeRepo) Create(ctx context.Context, change *domain.MergeRequestChange) error {
	return f.CreateChange(ctx, change)
}

type fakeCommentRepo struct{ *fakeStore }

func (f fakeCommentRepo) Create(ctx context.Context, comment *domain.MergeRequestComment) error {
	return f.CreateComment(ctx, comment)
}

func (f fakeCommentRepo) ListByMergeRequest(ctx context.Context, mergeRequestID uuid.UUID) ([]*domain.MergeRequestComment, error) {
	return f.ListCommentsByMergeRequest(ctx, mergeRequestID)
}

type fakeOntologyRepo struct{ *fakeStore }

func (f fakeOntologyRepo) Create(ctx context.Context, ontology *domain.Ontology) error {
	return f.CreateOntology(ctx, ontology)
}

func (f fakeOntologyRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Ontology, error) {
	return f.GetOntologyByID(ctx, id)
}
