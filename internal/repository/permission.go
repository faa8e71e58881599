package repository

import (
	"context"
	"fmt"

	"github.com/eidos-ontology/eidos/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PermissionRepo answers can-edit / can-manage checks from ontology
// ownership and collaborator roles. The ontology creator is always an
// admin; stored roles extend access to other users.
type PermissionRepo struct {
	db     *pgxpool.Pool
	logger *logger.Logger
}

func NewPermissionRepo(db *pgxpool.Pool, logger *logger.Logger) *PermissionRepo {
	return &PermissionRepo{
		db:     db,
		logger: logger.Component("repository/permission"),
	}
}

// CanEdit reports whether the user may propose changes: the creator,
// an admin, or an editor collaborator.
func (r *PermissionRepo) CanEdit(ctx context.Context, ontologyID uuid.UUID, userID string) (bool, error) {
	var allowed bool
	err := r.db.QueryRow(ctx, `
        SELECT EXISTS(
            SELECT 1 FROM ontologies
            WHERE id = $1 AND created_by = $2
            UNION ALL
            SELECT 1 FROM ontology_collaborators
            WHERE ontology_id = $1 AND user_id = $2 AND role IN ('editor', 'admin')
        )
    `, ontologyID, userID).Scan(&allowed)

	if err != nil {
		return false, fmt.Errorf("check edit permission: %w", err)
	}

	return allowed, nil
}

// CanManage reports whether the user may review, merge, and administer:
// the creator or an admin collaborator.
func (r *PermissionRepo) CanManage(ctx context.Context, ontologyID uuid.UUID, userID string) (bool, error) {
	var allowed bool
	err := r.db.QueryRow(ctx, `
        SELECT EXISTS(
            SELECT 1 FROM ontologies
            WHERE id = $1 AND created_by = $2
            UNION ALL
            SELECT 1 FROM ontology_collaborators
            WHERE ontology_id = $1 AND user_id = $2 AND role = 'admin'
        )
    `, ontologyID, userID).Scan(&allowed)

	if err != nil {
		return false, fmt.Errorf("check manage permission: %w", err)
	}

	return allowed, nil
}
