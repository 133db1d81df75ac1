package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/capitao/athena-tasks/internal/apperrors"
	"github.com/capitao/athena-tasks/internal/models"
	"github.com/capitao/athena-tasks/internal/services"
)

type ProjectHandler struct {
	projects *services.ProjectService
}

func NewProjectHandler(projects *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

// ListProjects returns all projects.
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	projects, err := h.projects.List()
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// GetProject returns a single project by id.
func (h *ProjectHandler) GetProject(c *gin.Context) {
	project, err := h.projects.Get(c.Param("id"))
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": project})
}

type createProjectRequest struct {
	Name        string             `json:"name"`
	Code        string             `json:"code"`
	Description string             `json:"description"`
	Color       string             `json:"color"`
	Links       map[string]*string `json:"links"`
}

// CreateProject creates a new active project.
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, "")
		return
	}

	project, err := h.projects.Create(services.CreateProjectInput{
		Name:        req.Name,
		Code:        req.Code,
		Description: req.Description,
		Color:       req.Color,
		Links:       req.Links,
	})
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"project": project})
}

type projectStatusRequest struct {
	Status models.ProjectStatus `json:"status"`
}

// SetProjectStatus transitions a project to a new status.
func (h *ProjectHandler) SetProjectStatus(c *gin.Context) {
	var req projectStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, "")
		return
	}

	project, err := h.projects.Transition(c.Param("id"), req.Status)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": project})
}
