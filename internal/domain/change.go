package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EntityType is the kind of ontology entity a change targets.
type EntityType string

const (
	EntityConcept      EntityType = "concept"
	EntityRelationship EntityType = "relationship"
	EntityIndividual   EntityType = "individual"
)

func (t EntityType) IsValid() bool {
	switch t {
	case EntityConcept, EntityRelationship, EntityIndividual:
		return true
	}
	return false
}

type ChangeType string

const (
	ChangeAdd    ChangeType = "add"
	ChangeModify ChangeType = "modify"
	ChangeDelete ChangeType = "delete"
)

func (t ChangeType) IsValid() bool {
	switch t {
	case ChangeAdd, ChangeModify, ChangeDelete:
		return true
	}
	return false
}

// MergeRequestChange is one atomic proposed mutation. Payload is the
// proposed entity state and is opaque to the workflow. BaseSnapshot is
// the entity state observed when the change was proposed; it is the
// comparison point for conflict detection and is nil for adds.
type MergeRequestChange struct {
	ID             uuid.UUID
	MergeRequestID uuid.UUID
	EntityType     EntityType
	ChangeType     ChangeType
	EntityID       uuid.UUID
	Payload        json.RawMessage
	BaseSnapshot   json.RawMessage
	BaseCapturedAt time.Time
	HasConflict    bool
	CreatedAt      time.Time
}
