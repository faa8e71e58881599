package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/eidos-ontology/eidos/internal/domain"
	"github.com/eidos-ontology/eidos/internal/pkg/logger"
	"github.com/eidos-ontology/eidos/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type OntologyHandler struct {
	ontologyService *service.OntologyService
	mrService       *service.MergeRequestService
	logger          *logger.Logger
}

func NewOntologyHandler(ontologyService *service.OntologyService, mrService *service.MergeRequestService, logger *logger.Logger) *OntologyHandler {
	return &OntologyHandler{
		ontologyService: ontologyService,
		mrService:       mrService,
		logger:          logger.Component("handler/ontology"),
	}
}

func (h *OntologyHandler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/collaborators", h.AddCollaborator)
	r.Delete("/{id}/collaborators/{userID}", h.RemoveCollaborator)
	r.Get("/{id}/merge-requests/pending-count", h.PendingReviewCount)

	return r
}

type OntologyResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toOntologyResponse(o *domain.Ontology) *OntologyResponse {
	return &OntologyResponse{
		ID:          o.ID,
		Name:        o.Name,
		Description: o.Description,
		CreatedBy:   o.CreatedBy,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

type CreateOntologyRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatorID   string `json:"creator_id"`
}

func (h *OntologyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOntologyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", "error", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ontology, err := h.ontologyService.CreateOntology(r.Context(), &service.CreateOntologyInput{
		Name:        req.Name,
		Description: req.Description,
		CreatorID:   req.CreatorID,
	})
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, toOntologyResponse(ontology), h.logger)
}

func (h *OntologyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	ontology, err := h.ontologyService.GetOntology(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, toOntologyResponse(ontology), h.logger)
}

type AddCollaboratorRequest struct {
	ActorID string `json:"actor_id"`
	UserID  string `json:"user_id"`
	Role    string `json:"role"`
}

type CollaboratorResponse struct {
	OntologyID uuid.UUID `json:"ontology_id"`
	UserID     string    `json:"user_id"`
	Role       string    `json:"role"`
	AddedBy    string    `json:"added_by"`
}

func (h *OntologyHandler) AddCollaborator(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req AddCollaboratorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", "error", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	collaborator, err := h.ontologyService.AddCollaborator(r.Context(), id, req.ActorID, req.UserID, domain.CollaboratorRole(req.Role))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, CollaboratorResponse{
		OntologyID: collaborator.OntologyID,
		UserID:     collaborator.UserID,
		Role:       string(collaborator.Role),
		AddedBy:    collaborator.AddedBy,
	}, h.logger)
}

func (h *OntologyHandler) RemoveCollaborator(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	userID := chi.URLParam(r, "userID")
	actorID := r.URL.Query().Get("actor_id")

	if err := h.ontologyService.RemoveCollaborator(r.Context(), id, actorID, userID); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type PendingReviewCountResponse struct {
	Count int `json:"count"`
}

func (h *OntologyHandler) PendingReviewCount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	count, err := h.mrService.PendingReviewCount(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, PendingReviewCountResponse{Count: count}, h.logger)
}

func (h *OntologyHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Warn("invalid ontology id", "error", err)
		http.Error(w, "invalid ontology id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
