package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/eidos-ontology/eidos/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectConflicts_AddAgainstExistingEntity(t *testing.T) {
	svc, store, ontology := newFixture(t)
	ctx := context.Background()
	mr := createDraft(t, svc, ontology.ID)

	change, err := svc.AddChange(ctx, &AddChangeInput{
		MergeRequestID: mr.ID,
		ActorID:        "author",
		EntityType:     domain.EntityConcept,
		ChangeType:     domain.ChangeAdd,
		Payload:        json.RawMessage(`{"name":"Protista"}`),
	})
	require.NoError(t, err)

	conflicted, err := svc.DetectConflicts(ctx, mr.ID)
	require.NoError(t, err)
	assert.False(t, conflicted, "adding an entity nobody else created is clean")

	// the same entity appears in the ontology through another request
	store.setEntity(ontology.ID, domain.EntityConcept, change.EntityID, []byte(`{"name":"Protista"}`))

	conflicted, err = svc.DetectConflicts(ctx, mr.ID)
	require.NoError(t, err)
	assert.True(t, conflicted)

	changes, err := svc.ListChanges(ctx, mr.ID)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.True(t, changes[0].HasConflict)
}

func TestDetectConflicts_DeleteOfVanishedEntity(t *testing.T) {
	svc, store, ontology := newFixture(t)
	ctx := context.Background()
	mr := createDraft(t, svc, ontology.ID)

	entityID := uuid.New()
	store.setEntity(ontology.ID, domain.EntityIndividual, entityID, []byte(`{"name":"specimen-17"}`))

	_, err := svc.AddChange(ctx, &AddChangeInput{
		MergeRequestID: mr.ID,
		ActorID:        "author",
		EntityType:     domain.EntityIndividual,
		ChangeType:     domain.ChangeDelete,
		EntityID:       entityID,
	})
	require.NoError(t, err)

	conflicted, err := svc.DetectConflicts(ctx, mr.ID)
	require.NoError(t, err)
	assert.False(t, conflicted)

	// somebody else already deleted it
	store.removeEntity(ontology.ID, domain.EntityIndividual, entityID)

	conflicted, err = svc.DetectConflicts(ctx, mr.ID)
	require.NoError(t, err)
	assert.True(t, conflicted)

	got, err := svc.GetMergeRequest(ctx, mr.ID)
	require.NoError(t, err)
	assert.True(t, got.Stats.HasConflicts)
}

func TestDetectConflicts_ModifyIgnoresFormatting(t *testing.T) {
	svc, store, ontology := newFixture(t)
	ctx := context.Background()
	mr := createDraft(t, svc, ontology.ID)

	entityID := uuid.New()
	store.setEntity(ontology.ID, domain.EntityConcept, entityID, []byte(`{"name":"Archaea","rank":"domain"}`))

	_, err := svc.AddChange(ctx, &AddChangeInput{
		MergeRequestID: mr.ID,
		ActorID:        "author",
		EntityType:     domain.EntityConcept,
		ChangeType:     domain.ChangeModify,
		EntityID:       entityID,
		Payload:        json.RawMessage(`{"name":"Archaea","rank":"superkingdom"}`),
	})
	require.NoError(t, err)

	// reserialized with different key order and whitespace, same content
	store.setEntity(ontology.ID, domain.EntityConcept, entityID, []byte(`{ "rank": "domain", "name": "Archaea" }`))

	conflicted, err := svc.DetectConflicts(ctx, mr.ID)
	require.NoError(t, err)
	assert.False(t, conflicted)

	// a real content change does conflict
	store.setEntity(ontology.ID, domain.EntityConcept, entityID, []byte(`{"name":"Archaebacteria","rank":"domain"}`))

	conflicted, err = svc.DetectConflicts(ctx, mr.ID)
	require.NoError(t, err)
	assert.True(t, conflicted)
}

func TestDetectConflicts_Idempotent(t *testing.T) {
	svc, store, ontology := newFixture(t)
	ctx := context.Background()
	mr := createDraft(t, svc, ontology.ID)

	entityID := uuid.New()
	store.setEntity(ontology.ID, domain.EntityConcept, entityID, []byte(`{"name":"Monera"}`))

	_, err := svc.AddChange(ctx, &AddChangeInput{
		MergeRequestID: mr.ID,
		ActorID:        "author",
		EntityType:     domain.EntityConcept,
		ChangeType:     domain.ChangeModify,
		EntityID:       entityID,
		Payload:        json.RawMessage(`{"name":"Monera","deprecated":true}`),
	})
	require.NoError(t, err)
	store.setEntity(ontology.ID, domain.EntityConcept, entityID, []byte(`{"name":"Monera","merged_into":"Bacteria"}`))

	for i := 0; i < 3; i++ {
		conflicted, err := svc.DetectConflicts(ctx, mr.ID)
		require.NoError(t, err)
		assert.True(t, conflicted, "run %d", i)
	}

	changes, err := svc.ListChanges(ctx, mr.ID)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.True(t, changes[0].HasConflict)
	assert.JSONEq(t, `{"name":"Monera"}`, string(changes[0].BaseSnapshot), "detection must not touch snapshots")
}

func TestDetectConflicts_NotFound(t *testing.T) {
	svc, _, _ := newFixture(t)

	_, err := svc.DetectConflicts(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrMergeRequestNotFound)
}

func TestJSONEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"identical", `{"a":1}`, `{"a":1}`, true},
		{"key_order", `{"a":1,"b":2}`, `{"b":2,"a":1}`, true},
		{"whitespace", `{"a": 1}`, `{"a":1}`, true},
		{"nested", `{"a":{"b":[1,2]}}`, `{ "a" : { "b" : [ 1 , 2 ] } }`, true},
		{"different_value", `{"a":1}`, `{"a":2}`, false},
		{"missing_key", `{"a":1}`, `{"a":1,"b":2}`, false},
		{"array_order", `[1,2]`, `[2,1]`, false},
		{"invalid_falls_back_to_bytes", `not json`, `not json`, true},
		{"invalid_differs", `not json`, `also not json`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := jsonEqual(json.RawMessage(tt.a), json.RawMessage(tt.b))
			assert.Equal(t, tt.want, got)
		})
	}
}
