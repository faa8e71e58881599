package repository

import (
	"context"
	"fmt"

	"github.com/eidos-ontology/eidos/internal/domain"
	"github.com/eidos-ontology/eidos/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ChangeRepo struct {
	db     *pgxpool.Pool
	logger *logger.Logger
}

func NewChangeRepo(db *pgxpool.Pool, logger *logger.Logger) *ChangeRepo {
	return &ChangeRepo{
		db:     db,
		logger: logger.Component("repository/change"),
	}
}

func (r *ChangeRepo) Create(ctx context.Context, change *domain.MergeRequestChange) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO merge_request_changes (
            id, merge_request_id, entity_type, change_type, entity_id,
            payload, base_snapshot, base_captured_at, has_conflict
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, change.ID, change.MergeRequestID, change.EntityType, change.ChangeType,
		change.EntityID, change.Payload, change.BaseSnapshot, change.BaseCapturedAt, change.HasConflict)

	if err != nil {
		return fmt.Errorf("insert change: %w", err)
	}

	return nil
}

// ListByMergeRequest returns a merge request's changes in insertion order.
func (r *ChangeRepo) ListByMergeRequest(ctx context.Context, mergeRequestID uuid.UUID) ([]*domain.MergeRequestChange, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, merge_request_id, entity_type, change_type, entity_id,
               payload, base_snapshot, base_captured_at, has_conflict, created_at
        FROM merge_request_changes
        WHERE merge_request_id = $1
        ORDER BY created_at, id
    `, mergeRequestID)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	changes := []*domain.MergeRequestChange{}
	for rows.Next() {
		change := &domain.MergeRequestChange{}
		if err := rows.Scan(
			&change.ID, &change.MergeRequestID, &change.EntityType, &change.ChangeType,
			&change.EntityID, &change.Payload, &change.BaseSnapshot, &change.BaseCapturedAt,
			&change.HasConflict, &change.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		changes = append(changes, change)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return changes, nil
}

// SetConflictFlags updates has_conflict per change in one transaction
// so a partially applied detection pass is never observable.
func (r *ChangeRepo) SetConflictFlags(ctx context.Context, flags map[uuid.UUID]bool) error {
	if len(flags) == 0 {
		return nil
	}

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

	for id, hasConflict := range flags {
		tag, execErr := tx.Exec(ctx, `
            UPDATE merge_request_changes SET has_conflict = $1 WHERE id = $2
        `, hasConflict, id)
		if execErr != nil {
			err = fmt.Errorf("update conflict flag: %w", execErr)
			return err
		}
		if tag.RowsAffected() == 0 {
			err = domain.ErrChangeNotFound
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
