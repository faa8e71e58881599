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

type MergeRequestRepo struct {
	db     *pgxpool.Pool
	logger *logger.Logger
}

func NewMergeRequestRepo(db *pgxpool.Pool, logger *logger.Logger) *MergeRequestRepo {
	return &MergeRequestRepo{
		db:     db,
		logger: logger.Component("repository/mergerequest"),
	}
}

const mergeRequestColumns = `
    id, ontology_id, title, description, status, priority,
    created_by, assigned_reviewer, reviewed_by, review_comments,
    concepts_added, concepts_modified, concepts_deleted,
    relationships_added, relationships_modified, relationships_deleted,
    individuals_added, individuals_modified, individuals_deleted,
    has_conflicts, version,
    created_at, updated_at, submitted_at, reviewed_at, merged_at`

// Create persists a new merge request in draft status. The database
// assigns created_at/updated_at; the caller re-reads via GetByID.
func (r *MergeRequestRepo) Create(ctx context.Context, mr *domain.MergeRequest) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO merge_requests (
            id, ontology_id, title, description, status, priority,
            created_by, assigned_reviewer, reviewed_by, review_comments, version
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `, mr.ID, mr.OntologyID, mr.Title, mr.Description, mr.Status, mr.Priority,
		mr.CreatedBy, mr.AssignedReviewer, mr.ReviewedBy, mr.ReviewComments, mr.Version)

	if err != nil {
		return fmt.Errorf("insert merge request: %w", err)
	}

	return nil
}

// GetByID retrieves a merge request with its derived statistics.
// Returns ErrMergeRequestNotFound if it doesn't exist.
func (r *MergeRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.MergeRequest, error) {
	row := r.db.QueryRow(ctx, `SELECT`+mergeRequestColumns+` FROM merge_requests WHERE id = $1`, id)

	mr, err := scanMergeRequest(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrMergeRequestNotFound
		}
		return nil, fmt.Errorf("scan merge request: %w", err)
	}

	return mr, nil
}

// UpdateWithComment writes the merge request's mutable fields and the
// transition's audit comment inside one transaction. The UPDATE is
// guarded by a compare-and-swap on version; a stale version yields
// ErrVersionConflict so the caller can re-fetch and retry.
func (r *MergeRequestRepo) UpdateWithComment(ctx context.Context, mr *domain.MergeRequest, comment *domain.MergeRequestComment) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		if err := r.updateLocked(ctx, tx, mr); err != nil {
			return err
		}
		return insertComment(ctx, tx, comment)
	})
}

// ApplyMerge commits a merge transition: the status update, the audit
// comment, and the application of every change payload to the
// ontology's entity table succeed or fail together.
func (r *MergeRequestRepo) ApplyMerge(ctx context.Context, mr *domain.MergeRequest, comment *domain.MergeRequestComment, changes []*domain.MergeRequestChange) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		if err := r.updateLocked(ctx, tx, mr); err != nil {
			return err
		}

		if err := insertComment(ctx, tx, comment); err != nil {
			return err
		}

		for _, change := range changes {
			if err := applyChange(ctx, tx, mr.OntologyID, change); err != nil {
				return fmt.Errorf("apply change %s: %w", change.ID, err)
			}
		}

		return nil
	})
}

// UpdateStats rewrites the nine counters and aggregate conflict flag,
// compare-and-swapped on version like every other write.
func (r *MergeRequestRepo) UpdateStats(ctx context.Context, mr *domain.MergeRequest) error {
	result, err := r.db.Exec(ctx, `
        UPDATE merge_requests
        SET concepts_added = $1, concepts_modified = $2, concepts_deleted = $3,
            relationships_added = $4, relationships_modified = $5, relationships_deleted = $6,
            individuals_added = $7, individuals_modified = $8, individuals_deleted = $9,
            has_conflicts = $10,
            version = version + 1, updated_at = NOW()
        WHERE id = $11 AND version = $12
    `, mr.Stats.ConceptsAdded, mr.Stats.ConceptsModified, mr.Stats.ConceptsDeleted,
		mr.Stats.RelationshipsAdded, mr.Stats.RelationshipsModified, mr.Stats.RelationshipsDeleted,
		mr.Stats.IndividualsAdded, mr.Stats.IndividualsModified, mr.Stats.IndividualsDeleted,
		mr.Stats.HasConflicts, mr.ID, mr.Version)

	if err != nil {
		return fmt.Errorf("update stats: %w", err)
	}

	if result.RowsAffected() == 0 {
		return r.classifyMissedWrite(ctx, mr.ID)
	}

	mr.Version++
	return nil
}

// PendingReviewCount counts merge requests awaiting review on an ontology.
func (r *MergeRequestRepo) PendingReviewCount(ctx context.Context, ontologyID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
        SELECT COUNT(*) FROM merge_requests
        WHERE ontology_id = $1 AND status = $2
    `, ontologyID, domain.StatusPendingReview).Scan(&count)

	if err != nil {
		return 0, fmt.Errorf("count pending review: %w", err)
	}

	return count, nil
}

// updateLocked performs the CAS-guarded UPDATE of all mutable fields.
func (r *MergeRequestRepo) updateLocked(ctx context.Context, tx pgx.Tx, mr *domain.MergeRequest) error {
	result, err := tx.Exec(ctx, `
        UPDATE merge_requests
        SET status = $1, priority = $2,
            assigned_reviewer = $3, reviewed_by = $4, review_comments = $5,
            submitted_at = $6, reviewed_at = $7, merged_at = $8,
            version = version + 1, updated_at = NOW()
        WHERE id = $9 AND version = $10
    `, mr.Status, mr.Priority,
		mr.AssignedReviewer, mr.ReviewedBy, mr.ReviewComments,
		mr.SubmittedAt, mr.ReviewedAt, mr.MergedAt,
		mr.ID, mr.Version)

	if err != nil {
		return fmt.Errorf("update merge request: %w", err)
	}

	if result.RowsAffected() == 0 {
		return r.classifyMissedWrite(ctx, mr.ID)
	}

	mr.Version++
	return nil
}

// classifyMissedWrite distinguishes a deleted row from a stale version
// after a CAS update touched nothing.
func (r *MergeRequestRepo) classifyMissedWrite(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM merge_requests WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check merge request exists: %w", err)
	}
	if !exists {
		return domain.ErrMergeRequestNotFound
	}
	return domain.ErrVersionConflict
}

func insertComment(ctx context.Context, tx pgx.Tx, comment *domain.MergeRequestComment) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO merge_request_comments (id, merge_request_id, author_id, text, change_id, kind)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, comment.ID, comment.MergeRequestID, comment.AuthorID, comment.Text, comment.ChangeID, comment.Kind)

	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}

	return nil
}

// applyChange writes one proposed mutation into the entity table.
func applyChange(ctx context.Context, tx pgx.Tx, ontologyID uuid.UUID, change *domain.MergeRequestChange) error {
	switch change.ChangeType {
	case domain.ChangeAdd, domain.ChangeModify:
		_, err := tx.Exec(ctx, `
            INSERT INTO ontology_entities (ontology_id, entity_type, entity_id, payload)
            VALUES ($1, $2, $3, $4)
            ON CONFLICT (ontology_id, entity_type, entity_id)
            DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()
        `, ontologyID, change.EntityType, change.EntityID, change.Payload)
		return err

	case domain.ChangeDelete:
		_, err := tx.Exec(ctx, `
            DELETE FROM ontology_entities
            WHERE ontology_id = $1 AND entity_type = $2 AND entity_id = $3
        `, ontologyID, change.EntityType, change.EntityID)
		return err

	default:
		return fmt.Errorf("unknown change type %q", change.ChangeType)
	}
}

func scanMergeRequest(row pgx.Row) (*domain.MergeRequest, error) {
	mr := &domain.MergeRequest{}
	err := row.Scan(
		&mr.ID, &mr.OntologyID, &mr.Title, &mr.Description, &mr.Status, &mr.Priority,
		&mr.CreatedBy, &mr.AssignedReviewer, &mr.ReviewedBy, &mr.ReviewComments,
		&mr.Stats.ConceptsAdded, &mr.Stats.ConceptsModified, &mr.Stats.ConceptsDeleted,
		&mr.Stats.RelationshipsAdded, &mr.Stats.RelationshipsModified, &mr.Stats.RelationshipsDeleted,
		&mr.Stats.IndividualsAdded, &mr.Stats.IndividualsModified, &mr.Stats.IndividualsDeleted,
		&mr.Stats.HasConflicts, &mr.Version,
		&mr.CreatedAt, &mr.UpdatedAt, &mr.SubmittedAt, &mr.ReviewedAt, &mr.MergedAt,
	)
	if err != nil {
		return nil, err
	}
	return mr, nil
}

// withTx executes a function within a database transaction.
// Automatically handles commit/rollback based on error status.
func (r *MergeRequestRepo) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				r.logger.Error("failed to rollback transaction",
					"error", rbErr,
					"original_error", err,
				)
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
