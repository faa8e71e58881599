package domain

import (
	"time"

	"github.com/google/uuid"
)

// CommentKind separates human remarks from workflow-generated narration.
type CommentKind string

const (
	CommentKindUser   CommentKind = "user"
	CommentKindSystem CommentKind = "system"
)

// MergeRequestComment is one entry in a merge request's append-only
// audit trail. Construct via NewUserComment or NewSystemComment so the
// kind always matches how the comment came to be.
type MergeRequestComment struct {
	ID             uuid.UUID
	MergeRequestID uuid.UUID
	AuthorID       string
	Text           string
	ChangeID       *uuid.UUID // optional anchor to one proposed change
	Kind           CommentKind
	CreatedAt      time.Time
}

// NewUserComment builds a human remark, optionally scoped to a change.
func NewUserComment(mergeRequestID uuid.UUID, authorID, text string, changeID *uuid.UUID) *MergeRequestComment {
	return &MergeRequestComment{
		ID:             uuid.New(),
		MergeRequestID: mergeRequestID,
		AuthorID:       authorID,
		Text:           text,
		ChangeID:       changeID,
		Kind:           CommentKindUser,
	}
}

// NewSystemComment builds workflow narration attributed to the acting
// user. System comments never anchor to a specific change.
func NewSystemComment(mergeRequestID uuid.UUID, actorID, text string) *MergeRequestComment {
	return &MergeRequestComment{
		ID:             uuid.New(),
		MergeRequestID: mergeRequestID,
		AuthorID:       actorID,
		Text:           text,
		Kind:           CommentKindSystem,
	}
}
