package service

import (
	"context"
	"testing"

	"github.com/eidos-ontology/eidos/internal/domain"
	"github.com/eidos-ontology/eidos/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOntologyFixture(t *testing.T) (*OntologyService, *fakeStore) {
	t.Helper()

	log, err := logger.New(&logger.Config{Level: "error", Format: "json"})
	require.NoError(t, err)

	store := newFakeStore()
	return NewOntologyService(fakeOntologyRepo{store}, store, log), store
}

func TestCreateOntology(t *testing.T) {
	svc, _ := newOntologyFixture(t)
	ctx := context.Background()

	ontology, err := svc.CreateOntology(ctx, &CreateOntologyInput{
		Name:        "cell-biology",
		Description: "cellular structures and processes",
		CreatorID:   "owner",
	})
	require.NoError(t, err)
	assert.Equal(t, "cell-biology", ontology.Name)
	assert.Equal(t, "owner", ontology.CreatedBy)
	assert.NotEqual(t, uuid.Nil, ontology.ID)

	got, err := svc.GetOntology(ctx, ontology.ID)
	require.NoError(t, err)
	assert.Equal(t, ontology.ID, got.ID)
}

func TestCreateOntology_Validation(t *testing.T) {
	svc, _ := newOntologyFixture(t)
	ctx := context.Background()

	_, err := svc.CreateOntology(ctx, &CreateOntologyInput{Name: "", CreatorID: "owner"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.CreateOntology(ctx, &CreateOntologyInput{Name: "ok", CreatorID: ""})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestGetOntology_NotFound(t *testing.T) {
	svc, _ := newOntologyFixture(t)

	_, err := svc.GetOntology(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrOntologyNotFound)
}

func TestAddCollaborator(t *testing.T) {
	svc, store := newOntologyFixture(t)
	ctx := context.Background()
	store.managers["owner"] = true

	ontology, err := svc.CreateOntology(ctx, &CreateOntologyInput{Name: "cell-biology", CreatorID: "owner"})
	require.NoError(t, err)

	collaborator, err := svc.AddCollaborator(ctx, ontology.ID, "owner", "alice", domain.RoleEditor)
	require.NoError(t, err)
	assert.Equal(t, "alice", collaborator.UserID)
	assert.Equal(t, domain.RoleEditor, collaborator.Role)
	assert.Equal(t, "owner", collaborator.AddedBy)

	canEdit, err := store.CanEdit(ctx, ontology.ID, "alice")
	require.NoError(t, err)
	assert.True(t, canEdit)
}

func TestAddCollaborator_Errors(t *testing.T) {
	svc, store := newOntologyFixture(t)
	ctx := context.Background()
	store.managers["owner"] = true

	ontology, err := svc.CreateOntology(ctx, &CreateOntologyInput{Name: "cell-biology", CreatorID: "owner"})
	require.NoError(t, err)

	_, err = svc.AddCollaborator(ctx, ontology.ID, "owner", "", domain.RoleEditor)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.AddCollaborator(ctx, ontology.ID, "owner", "alice", domain.CollaboratorRole("viewer"))
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.AddCollaborator(ctx, uuid.New(), "owner", "alice", domain.RoleEditor)
	assert.ErrorIs(t, err, domain.ErrOntologyNotFound)

	_, err = svc.AddCollaborator(ctx, ontology.ID, "alice", "bob", domain.RoleEditor)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRemoveCollaborator(t *testing.T) {
	svc, store := newOntologyFixture(t)
	ctx := context.Background()
	store.managers["owner"] = true

	ontology, err := svc.CreateOntology(ctx, &CreateOntologyInput{Name: "cell-biology", CreatorID: "owner"})
	require.NoError(t, err)

	_, err = svc.AddCollaborator(ctx, ontology.ID, "owner", "alice", domain.RoleEditor)
	require.NoError(t, err)

	err = svc.RemoveCollaborator(ctx, ontology.ID, "alice", "owner")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	require.NoError(t, svc.RemoveCollaborator(ctx, ontology.ID, "owner", "alice"))

	canEdit, err := store.CanEdit(ctx, ontology.ID, "alice")
	require.NoError(t, err)
	assert.False(t, canEdit)

	err = svc.RemoveCollaborator(ctx, ontology.ID, "owner", "alice")
	assert.ErrorIs(t, err, domain.ErrCollaboratorNotFound)
}
