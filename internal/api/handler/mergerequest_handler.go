package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/eidos-ontology/eidos/internal/domain"
	"github.com/eidos-ontology/eidos/internal/pkg/logger"
	"github.com/eidos-ontology/eidos/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type MergeRequestHandler struct {
	mrService *service.MergeRequestService
	logger    *logger.Logger
}

func NewMergeRequestHandler(mrService *service.MergeRequestService, logger *logger.Logger) *MergeRequestHandler {
	return &MergeRequestHandler{
		mrService: mrService,
		logger:    logger.Component("handler/mergerequest"),
	}
}

func (h *MergeRequestHandler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/submit", h.Submit)
	r.Post("/{id}/approve", h.Approve)
	r.Post("/{id}/reject", h.Reject)
	r.Post("/{id}/request-changes", h.RequestChanges)
	r.Post("/{id}/merge", h.Merge)
	r.Post("/{id}/close", h.Close)
	r.Post("/{id}/changes", h.AddChange)
	r.Get("/{id}/changes", h.ListChanges)
	r.Post("/{id}/comments", h.AddComment)
	r.Get("/{id}/comments", h.ListComments)
	r.Post("/{id}/detect-conflicts", h.DetectConflicts)

	return r
}

type StatsResponse struct {
	ConceptsAdded         int  `json:"concepts_added"`
	ConceptsModified      int  `json:"concepts_modified"`
	ConceptsDeleted       int  `json:"concepts_deleted"`
	RelationshipsAdded    int  `json:"relationships_added"`
	RelationshipsModified int  `json:"relationships_modified"`
	RelationshipsDeleted  int  `json:"relationships_deleted"`
	IndividualsAdded      int  `json:"individuals_added"`
	IndividualsModified   int  `json:"individuals_modified"`
	IndividualsDeleted    int  `json:"individuals_deleted"`
	HasConflicts          bool `json:"has_conflicts"`
}

type MergeRequestResponse struct {
	ID               uuid.UUID     `json:"id"`
	OntologyID       uuid.UUID     `json:"ontology_id"`
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	Status           string        `json:"status"`
	Priority         string        `json:"priority"`
	CreatedBy        string        `json:"created_by"`
	AssignedReviewer string        `json:"assigned_reviewer,omitempty"`
	ReviewedBy       string        `json:"reviewed_by,omitempty"`
	ReviewComments   string        `json:"review_comments,omitempty"`
	Stats            StatsResponse `json:"stats"`
	Version          int64         `json:"version"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	SubmittedAt      *time.Time    `json:"submitted_at,omitempty"`
	ReviewedAt       *time.Time    `json:"reviewed_at,omitempty"`
	MergedAt         *time.Time    `json:"merged_at,omitempty"`
}

func toMergeRequestResponse(mr *domain.MergeRequest) *MergeRequestResponse {
	return &MergeRequestResponse{
		ID:               mr.ID,
		OntologyID:       mr.OntologyID,
		Title:            mr.Title,
		Description:      mr.Description,
		Status:           string(mr.Status),
		Priority:         string(mr.Priority),
		CreatedBy:        mr.CreatedBy,
		AssignedReviewer: mr.AssignedReviewer,
		ReviewedBy:       mr.ReviewedBy,
		ReviewComments:   mr.ReviewComments,
		Stats: StatsResponse{
			ConceptsAdded:         mr.Stats.ConceptsAdded,
			ConceptsModified:      mr.Stats.ConceptsModified,
			ConceptsDeleted:       mr.Stats.ConceptsDeleted,
			RelationshipsAdded:    mr.Stats.RelationshipsAdded,
			RelationshipsModified: mr.Stats.RelationshipsModified,
			RelationshipsDeleted:  mr.Stats.RelationshipsDeleted,
			IndividualsAdded:      mr.Stats.IndividualsAdded,
			IndividualsModified:   mr.Stats.IndividualsModified,
			IndividualsDeleted:    mr.Stats.IndividualsDeleted,
			HasConflicts:          mr.Stats.HasConflicts,
		},
		Version:     mr.Version,
		CreatedAt:   mr.CreatedAt,
		UpdatedAt:   mr.UpdatedAt,
		SubmittedAt: mr.SubmittedAt,
		ReviewedAt:  mr.ReviewedAt,
		MergedAt:    mr.MergedAt,
	}
}

type ChangeResponse struct {
	ID             uuid.UUID       `json:"id"`
	MergeRequestID uuid.UUID       `json:"merge_request_id"`
	EntityType     string          `json:"entity_type"`
	ChangeType     string          `json:"change_type"`
	EntityID       uuid.UUID       `json:"entity_id"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	BaseSnapshot   json.RawMessage `json:"base_snapshot,omitempty"`
	BaseCapturedAt time.Time       `json:"base_captured_at"`
	HasConflict    bool            `json:"has_conflict"`
	CreatedAt      time.Time       `json:"created_at"`
}

func toChangeResponse(c *domain.MergeRequestChange) *ChangeResponse {
	return &ChangeResponse{
		ID:             c.ID,
		MergeRequestID: c.MergeRequestID,
		EntityType:     string(c.EntityType),
		ChangeType:     string(c.ChangeType),
		EntityID:       c.EntityID,
		Payload:        c.Payload,
		BaseSnapshot:   c.BaseSnapshot,
		BaseCapturedAt: c.BaseCapturedAt,
		HasConflict:    c.HasConflict,
		CreatedAt:      c.CreatedAt,
	}
}

type CommentResponse struct {
	ID             uuid.UUID  `json:"id"`
	MergeRequestID uuid.UUID  `json:"merge_request_id"`
	AuthorID       string     `json:"author_id"`
	Text           string     `json:"text"`
	ChangeID       *uuid.UUID `json:"change_id,omitempty"`
	Kind           string     `json:"kind"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toCommentResponse(c *domain.MergeRequestComment) *CommentResponse {
	return &CommentResponse{
		ID:             c.ID,
		MergeRequestID: c.MergeRequestID,
		AuthorID:       c.AuthorID,
		Text:           c.Text,
		ChangeID:       c.ChangeID,
		Kind:           string(c.Kind),
		CreatedAt:      c.CreatedAt,
	}
}

type CreateMergeRequestRequest struct {
	OntologyID  uuid.UUID `json:"ontology_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatorID   string    `json:"creator_id"`
	Priority    string    `json:"priority"`
}

func (h *MergeRequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateMergeRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", "error", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	mr, err := h.mrService.CreateMergeRequest(r.Context(), &service.CreateMergeRequestInput{
		OntologyID:  req.OntologyID,
		Title:       req.Title,
		Description: req.Description,
		CreatorID:   req.CreatorID,
		Priority:    domain.Priority(req.Priority),
	})
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, toMergeRequestResponse(mr), h.logger)
}

func (h *MergeRequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	mr, err := h.mrService.GetMergeRequest(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, toMergeRequestResponse(mr), h.logger)
}

type SubmitRequest struct {
	UserID     string `json:"user_id"`
	ReviewerID string `json:"reviewer_id"`
}

func (h *MergeRequestHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", "error", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.mrService.Submit(r.Context(), id, req.UserID, req.ReviewerID); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type ReviewRequest struct {
	ReviewerID string `json:"reviewer_id"`
	Comments   string `json:"comments"`
}

func (h *MergeRequestHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.reviewAction(w, r, h.mrService.Approve)
}

func (h *MergeRequestHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.reviewAction(w, r, h.mrService.Reject)
}

func (h *MergeRequestHandler) RequestChanges(w http.ResponseWriter, r *http.Request) {
	h.reviewAction(w, r, h.mrService.RequestChanges)
}

// reviewAction handles the shared shape of approve / reject /
// request-changes requests.
func (h *MergeRequestHandler) reviewAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, id uuid.UUID, reviewerID, comments string) error) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", "error", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := action(r.Context(), id, req.ReviewerID, req.Comments); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type UserRequest struct {
	UserID string `json:"user_id"`
}

type MergeResponse struct {
	Merged bool `json:"merged"`
}

func (h *MergeRequestHandler) Merge(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req UserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", "error", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	merged, err := h.mrService.Merge(r.Context(), id, req.UserID)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, MergeResponse{Merged: merged}, h.logger)
}

func (h *MergeRequestHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req UserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", "error", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.mrService.Close(r.Context(), id, req.UserID); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type AddChangeRequest struct {
	UserID     string          `json:"user_id"`
	EntityType string          `json:"entity_type"`
	ChangeType string          `json:"change_type"`
	EntityID   uuid.UUID       `json:"entity_id"`
	Payload    json.RawMessage `json:"payload"`
}

func (h *MergeRequestHandler) AddChange(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req AddChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", "error", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	change, err := h.mrService.AddChange(r.Context(), &service.AddChangeInput{
		MergeRequestID: id,
		ActorID:        req.UserID,
		EntityType:     domain.EntityType(req.EntityType),
		ChangeType:     domain.ChangeType(req.ChangeType),
		EntityID:       req.EntityID,
		Payload:        req.Payload,
	})
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, toChangeResponse(change), h.logger)
}

func (h *MergeRequestHandler) ListChanges(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	changes, err := h.mrService.ListChanges(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	out := make([]*ChangeResponse, 0, len(changes))
	for _, c := range changes {
		out = append(out, toChangeResponse(c))
	}

	writeJSON(w, http.StatusOK, out, h.logger)
}

type AddCommentRequest struct {
	UserID   string     `json:"user_id"`
	Text     string     `json:"text"`
	ChangeID *uuid.UUID `json:"change_id"`
}

func (h *MergeRequestHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req AddCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", "error", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	comment, err := h.mrService.AddComment(r.Context(), id, req.UserID, req.Text, req.ChangeID)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, toCommentResponse(comment), h.logger)
}

func (h *MergeRequestHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	comments, err := h.mrService.ListComments(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	out := make([]*CommentResponse, 0, len(comments))
	for _, c := range comments {
		out = append(out, toCommentResponse(c))
	}

	writeJSON(w, http.StatusOK, out, h.logger)
}

type DetectConflictsResponse struct {
	HasConflicts bool `json:"has_conflicts"`
}

func (h *MergeRequestHandler) DetectConflicts(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	hasConflicts, err := h.mrService.DetectConflicts(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, DetectConflictsResponse{HasConflicts: hasConflicts}, h.logger)
}

func (h *MergeRequestHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Warn("invalid merge request id", "error", err)
		http.Error(w, "invalid merge request id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
