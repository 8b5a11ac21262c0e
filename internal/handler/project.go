package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/account-service/internal/model"
	"github.com/iliyamo/account-service/internal/service"
)

// ProjectHandler exposes project creation, listing and membership.
type ProjectHandler struct {
	projects *service.ProjectService
}

func NewProjectHandler(projects *service.ProjectService) *ProjectHandler {
	if projects == nil {
		panic("nil ProjectService passed to NewProjectHandler")
	}
	return &ProjectHandler{projects: projects}
}

type createProjectReq struct {
	Name        string  `json:"name" validate:"required,max=255"`
	URL         string  `json:"url" validate:"required,max=255"`
	Type        string  `json:"type" validate:"omitempty,oneof=Software Marketing Business"`
	Description *string `json:"description"`
}

type addMemberReq struct {
	UserID string `json:"userId" validate:"required"`
	Role   string `json:"role" validate:"omitempty,oneof=Administrator Member Viewer"`
}

func (r *createProjectReq) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.URL = strings.TrimSpace(r.URL)
}

type projectResp struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	Type        string    `json:"type"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

type memberResp struct {
	UserID    string `json:"userId"`
	ProjectID string `json:"projectId"`
	Role      string `json:"role"`
}

func toProjectResp(p model.Project) projectResp {
	return projectResp{ID: p.ID, Name: p.Name, URL: p.URL, Type: p.Type, Description: p.Description, CreatedAt: p.CreatedAt}
}

// Create stores a project owned by the caller.
func (h *ProjectHandler) Create(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req createProjectReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	project, err := h.projects.Create(ctx, p.User.ID, service.CreateProjectInput{
		Name:        req.Name,
		URL:         req.URL,
		Type:        req.Type,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, toProjectResp(project))
}

// List returns the projects the caller belongs to.
func (h *ProjectHandler) List(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	projects, err := h.projects.ListForUser(ctx, p.User.ID)
	if err != nil {
		return err
	}
	out := make([]projectResp, 0, len(projects))
	for _, pr := range projects {
		out = append(out, toProjectResp(pr))
	}
	return ok(c, http.StatusOK, out)
}

// AddMember adds a user to the project in the path.
func (h *ProjectHandler) AddMember(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req addMemberReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	m, err := h.projects.AddMember(ctx, p.User.ID, c.Param("id"), req.UserID, req.Role)
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, memberResp{UserID: m.UserID, ProjectID: m.ProjectID, Role: m.Role})
}
