package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Ontology is the shared knowledge base collaborators edit through
// merge requests.
type Ontology struct {
	ID          uuid.UUID
	Name        string
	Description string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CollaboratorRole grants a user rights on an ontology. Editors may
// create and submit merge requests; admins may additionally review,
// merge, and manage collaborators. The ontology creator is an implicit
// admin.
type CollaboratorRole string

const (
	RoleEditor CollaboratorRole = "editor"
	RoleAdmin  CollaboratorRole = "admin"
)

func (r CollaboratorRole) IsValid() bool {
	return r == RoleEditor || r == RoleAdmin
}

type Collaborator struct {
	OntologyID uuid.UUID
	UserID     string
	Role       CollaboratorRole
	AddedBy    string
	AddedAt    time.Time
}

// EntityState is the live state of one ontology entity as read for
// conflict detection.
type EntityState struct {
	EntityID  uuid.UUID
	Payload   json.RawMessage
	UpdatedAt time.Time
}
