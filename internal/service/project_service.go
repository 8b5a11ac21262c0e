package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/account-service/internal/model"
	"github.com/iliyamo/account-service/internal/repository"
)

// CreateProjectInput is a validated project creation request.
type CreateProjectInput struct {
	Name        string
	URL         string
	Type        string
	Description *string
}

// ProjectService manages projects and their members.
type ProjectService struct {
	projects ProjectStore
	users    UserStore
}

func NewProjectService(projects ProjectStore, users UserStore) *ProjectService {
	return &ProjectService{projects: projects, users: users}
}

// Create stores a project and makes its creator an Administrator member.
func (s *ProjectService) Create(ctx context.Context, ownerID string, in CreateProjectInput) (model.Project, error) {
	typ := in.Type
	if typ == "" {
		typ = model.ProjectSoftware
	}
	p := model.Project{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		URL:         strings.TrimSpace(in.URL),
		Type:        typ,
		Description: in.Description,
	}
	owner := model.Member{UserID: ownerID, ProjectID: p.ID, Role: model.MemberAdministrator}
	if err := s.projects.Create(ctx, p, owner); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.Project{}, fmt.Errorf("%w: project url already in use", ErrConflict)
		}
		return model.Project{}, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

// ListForUser returns the projects userID belongs to.
func (s *ProjectService) ListForUser(ctx context.Context, userID string) ([]model.Project, error) {
	return s.projects.ListForUser(ctx, userID)
}

// AddMember adds userID to a project.  Only Administrator members of the
// project may add others.
func (s *ProjectService) AddMember(ctx context.Context, actorID, projectID, userID, role string) (model.Member, error) {
	if role == "" {
		role = model.MemberMember
	}
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Member{}, fmt.Errorf("%w: project not found", ErrNotFound)
		}
		return model.Member{}, err
	}
	actor, err := s.projects.GetMember(ctx, projectID, actorID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return model.Member{}, err
	}
	if err != nil || actor.Role != model.MemberAdministrator {
		return model.Member{}, fmt.Errorf("%w: only project administrators can add members", ErrForbidden)
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Member{}, fmt.Errorf("%w: user not found", ErrNotFound)
		}
		return model.Member{}, err
	}

	m := model.Member{UserID: userID, ProjectID: projectID, Role: role}
	if err := s.projects.AddMember(ctx, m); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.Member{}, fmt.Errorf("%w: user is already a member", ErrConflict)
		}
		return model.Member{}, fmt.Errorf("add member: %w", err)
	}
	return m, nil
}
