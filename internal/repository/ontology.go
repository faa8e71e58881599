package repository

import (
	"context"
	"fmt"

	"github.com/eidos-ontology/eidos/internal/domain"
	"github.com/eidos-ontology/eidos/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OntologyRepo struct {
	db     *pgxpool.Pool
	logger *logger.Logger
}

func NewOntologyRepo(db *pgxpool.Pool, logger *logger.Logger) *OntologyRepo {
	return &OntologyRepo{
		db:     db,
		logger: logger.Component("repository/ontology"),
	}
}

func (r *OntologyRepo) Create(ctx context.Context, ontology *domain.Ontology) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO ontologies (id, name, description, created_by)
        VALUES ($1, $2, $3, $4)
    `, ontology.ID, ontology.Name, ontology.Description, ontology.CreatedBy)

	if err != nil {
		return fmt.Errorf("insert ontology: %w", err)
	}

	return nil
}

// GetByID returns ErrOntologyNotFound if the ontology doesn't exist.
func (r *OntologyRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Ontology, error) {
	ontology := &domain.Ontology{}
	err := r.db.QueryRow(ctx, `
        SELECT id, name, description, created_by, created_at, updated_at
        FROM ontologies
        WHERE id = $1
    `, id).Scan(
		&ontology.ID, &ontology.Name, &ontology.Description,
		&ontology.CreatedBy, &ontology.CreatedAt, &ontology.UpdatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrOntologyNotFound
		}
		return nil, fmt.Errorf("query ontology: %w", err)
	}

	return ontology, nil
}

func (r *OntologyRepo) AddCollaborator(ctx context.Context, collaborator *domain.Collaborator) error {
	result, err := r.db.Exec(ctx, `
        INSERT INTO ontology_collaborators (ontology_id, user_id, role, added_by)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (ontology_id, user_id) DO NOTHING
    `, collaborator.OntologyID, collaborator.UserID, collaborator.Role, collaborator.AddedBy)

	if err != nil {
		return fmt.Errorf("insert collaborator: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrCollaboratorExists
	}

	return nil
}

func (r *OntologyRepo) RemoveCollaborator(ctx context.Context, ontologyID uuid.UUID, userID string) error {
	result, err := r.db.Exec(ctx, `
        DELETE FROM ontology_collaborators
        WHERE ontology_id = $1 AND user_id = $2
    `, ontologyID, userID)

	if err != nil {
		return fmt.Errorf("delete collaborator: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrCollaboratorNotFound
	}

	return nil
}

// GetLiveState reads the current state of one entity. Absence of the
// entity is not an error; it is a legitimate answer for the conflict
// detector.
func (r *OntologyRepo) GetLiveState(ctx context.Context, ontologyID uuid.UUID, entityType domain.EntityType, entityID uuid.UUID) (*domain.EntityState, bool, error) {
	state := &domain.EntityState{EntityID: entityID}
	err := r.db.QueryRow(ctx, `
        SELECT payload, updated_at
        FROM ontology_entities
        WHERE ontology_id = $1 AND entity_type = $2 AND entity_id = $3
    `, ontologyID, entityType, entityID).Scan(&state.Payload, &state.UpdatedAt)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("query entity state: %w", err)
	}

	return state, true, nil
}
