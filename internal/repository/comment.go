package repository

import (
	"context"
	"fmt"

	"github.com/eidos-ontology/eidos/internal/domain"
	"github.com/eidos-ontology/eidos/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CommentRepo is insert-only: the schema has no update or delete path
// for comments, preserving the audit history of a review.
type CommentRepo struct {
	db     *pgxpool.Pool
	logger *logger.Logger
}

func NewCommentRepo(db *pgxpool.Pool, logger *logger.Logger) *CommentRepo {
	return &CommentRepo{
		db:     db,
		logger: logger.Component("repository/comment"),
	}
}

func (r *CommentRepo) Create(ctx context.Context, comment *domain.MergeRequestComment) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO merge_request_comments (id, merge_request_id, author_id, text, change_id, kind)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, comment.ID, comment.MergeRequestID, comment.AuthorID, comment.Text, comment.ChangeID, comment.Kind)

	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}

	return nil
}

// ListByMergeRequest returns the audit trail in insertion order.
func (r *CommentRepo) ListByMergeRequest(ctx context.Context, mergeRequestID uuid.UUID) ([]*domain.MergeRequestComment, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, merge_request_id, author_id, text, change_id, kind, created_at
        FROM merge_request_comments
        WHERE merge_request_id = $1
        ORDER BY created_at, id
    `, mergeRequestID)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	comments := []*domain.MergeRequestComment{}
	for rows.Next() {
		comment := &domain.MergeRequestComment{}
		if err := rows.Scan(
			&comment.ID, &comment.MergeRequestID, &comment.AuthorID,
			&comment.Text, &comment.ChangeID, &comment.Kind, &comment.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, comment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return comments, nil
}
