package service

import (
	"context"
	"fmt"

	"github.com/eidos-ontology/eidos/internal/domain"
	"github.com/eidos-ontology/eidos/internal/pkg/logger"
	"github.com/eidos-ontology/eidos/internal/repository"
	. "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
)

type OntologyService struct {
	repo     repository.OntologyRepository
	permRepo repository.PermissionRepository
	logger   *logger.Logger
}

func NewOntologyService(repo repository.OntologyRepository, permRepo repository.PermissionRepository, logger *logger.Logger) *OntologyService {
	return &OntologyService{
		repo:     repo,
		permRepo: permRepo,
		logger:   logger.Component("service/ontology"),
	}
}

type CreateOntologyInput struct {
	Name        string
	Description string
	CreatorID   string
}

func (in *CreateOntologyInput) validate() error {
	return ValidateStruct(in,
		Field(&in.Name, Required, Length(1, 255)),
		Field(&in.Description, Length(0, 10000)),
		Field(&in.CreatorID, Required, Length(1, 255)),
	)
}

func (s *OntologyService) CreateOntology(ctx context.Context, in *CreateOntologyInput) (*domain.Ontology, error) {
	if err := in.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	ontology := &domain.Ontology{
		ID:          uuid.New(),
		Name:        in.Name,
		Description: in.Description,
		CreatedBy:   in.CreatorID,
	}

	if err := s.repo.Create(ctx, ontology); err != nil {
		return nil, fmt.Errorf("create ontology: %w", err)
	}

	created, err := s.repo.GetByID(ctx, ontology.ID)
	if err != nil {
		return nil, fmt.Errorf("get created ontology: %w", err)
	}

	s.logger.Info("ontology created",
		"ontology_id", created.ID,
		"name", created.Name,
		"created_by", created.CreatedBy,
	)

	return created, nil
}

func (s *OntologyService) GetOntology(ctx context.Context, id uuid.UUID) (*domain.Ontology, error) {
	ontology, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get ontology: %w", err)
	}
	return ontology, nil
}

// AddCollaborator grants a role on an ontology. Only users with manage
// permission may grant roles.
func (s *OntologyService) AddCollaborator(ctx context.Context, ontologyID uuid.UUID, actorID, userID string, role domain.CollaboratorRole) (*domain.Collaborator, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, role)
	}

	if _, err := s.repo.GetByID(ctx, ontologyID); err != nil {
		return nil, fmt.Errorf("get ontology: %w", err)
	}

	ok, err := s.permRepo.CanManage(ctx, ontologyID, actorID)
	if err != nil {
		return nil, fmt.Errorf("check manage permission: %w", err)
	}
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	collaborator := &domain.Collaborator{
		OntologyID: ontologyID,
		UserID:     userID,
		Role:       role,
		AddedBy:    actorID,
	}

	if err := s.repo.AddCollaborator(ctx, collaborator); err != nil {
		return nil, fmt.Errorf("add collaborator: %w", err)
	}

	s.logger.Info("collaborator added",
		"ontology_id", ontologyID,
		"user_id", userID,
		"role", role,
		"added_by", actorID,
	)

	return collaborator, nil
}

// RemoveCollaborator revokes a previously granted role. Only users
// with manage permission may revoke.
func (s *OntologyService) RemoveCollaborator(ctx context.Context, ontologyID uuid.UUID, actorID, userID string) error {
	if _, err := s.repo.GetByID(ctx, ontologyID); err != nil {
		return fmt.Errorf("get ontology: %w", err)
	}

	ok, err := s.permRepo.CanManage(ctx, ontologyID, actorID)
	if err != nil {
		return fmt.Errorf("check manage permission: %w", err)
	}
	if !ok {
		return domain.ErrUnauthorized
	}

	if err := s.repo.RemoveCollaborator(ctx, ontologyID, userID); err != nil {
		return fmt.Errorf("remove collaborator: %w", err)
	}

	s.logger.Info("collaborator removed",
		"ontology_id", ontologyID,
		"user_id", userID,
		"removed_by", actorID,
	)

	return nil
}
