package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/capitao/athena-tasks/internal/apperrors"
	"github.com/capitao/athena-tasks/internal/models"
	"github.com/capitao/athena-tasks/internal/services"
	"github.com/capitao/athena-tasks/internal/utils"
)

type TaskHandler struct {
	tasks *services.TaskService
}

func NewTaskHandler(tasks *services.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// ListTasks returns active tasks, optionally filtered by status, project,
// assignee, priority, or tag.
func (h *TaskHandler) ListTasks(c *gin.Context) {
	filter := services.TaskFilter{
		Status:     models.TaskStatus(c.Query("status")),
		ProjectID:  c.Query("project_id"),
		AssignedTo: models.Assignee(c.Query("assigned_to")),
		Priority:   models.TaskPriority(c.Query("priority")),
		Tag:        c.Query("tag"),
	}
	tasks, err := h.tasks.List(filter)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	params := utils.GetPaginationParams(c)
	start, end := params.Window(len(tasks))
	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks[start:end],
		"pagination": utils.PaginationResponse{
			Limit:  params.Limit,
			Offset: params.Offset,
			Total:  len(tasks),
		},
	})
}

// GetTask returns a single task by id, from the active collection or the
// archives.
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, err := h.tasks.Get(c.Param("id"))
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

type createTaskRequest struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	ProjectID   string              `json:"project_id"`
	Priority    models.TaskPriority `json:"priority"`
	AssignedTo  models.Assignee     `json:"assigned_to"`
	CreatedBy   string              `json:"created_by"`
	Tags        []string            `json:"tags"`
	Deadline    *time.Time          `json:"deadline"`
	Links       map[string]*string  `json:"links"`
	Source      *models.Source      `json:"source"`
	Subtasks    []string            `json:"subtasks"`
}

// CreateTask creates a new task in the backlog.
func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, "")
		return
	}

	task, err := h.tasks.Create(services.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		ProjectID:   req.ProjectID,
		Priority:    req.Priority,
		AssignedTo:  req.AssignedTo,
		CreatedBy:   req.CreatedBy,
		Tags:        req.Tags,
		Deadline:    req.Deadline,
		Links:       req.Links,
		Source:      req.Source,
		Subtasks:    req.Subtasks,
	})
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task": task})
}

type updateTaskRequest struct {
	Title         *string              `json:"title"`
	Description   *string              `json:"description"`
	ProjectID     *string              `json:"project_id"`
	Status        *models.TaskStatus   `json:"status"`
	Priority      *models.TaskPriority `json:"priority"`
	AssignedTo    *models.Assignee     `json:"assigned_to"`
	Tags          *[]string            `json:"tags"`
	Deadline      *time.Time           `json:"deadline"`
	ClearDeadline bool                 `json:"clear_deadline"`
	Links         map[string]*string   `json:"links"`
	By            string               `json:"by"`
}

// UpdateTask applies a partial update; status changes go through the
// transition guard.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, "")
		return
	}

	task, err := h.tasks.Update(c.Param("id"), services.UpdateTaskInput{
		Title:         req.Title,
		Description:   req.Description,
		ProjectID:     req.ProjectID,
		Status:        req.Status,
		Priority:      req.Priority,
		AssignedTo:    req.AssignedTo,
		Tags:          req.Tags,
		Deadline:      req.Deadline,
		ClearDeadline: req.ClearDeadline,
		Links:         req.Links,
		By:            req.By,
	})
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

type completeTaskRequest struct {
	Summary          string   `json:"summary"`
	FilesChanged     []string `json:"files_changed"`
	TimeSpentMinutes int      `json:"time_spent_minutes"`
	By               string   `json:"by"`
}

// CompleteTask marks a task done with a completion report.
func (h *TaskHandler) CompleteTask(c *gin.Context) {
	var req completeTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, "")
		return
	}

	task, err := h.tasks.Complete(c.Param("id"), services.CompleteTaskInput{
		Summary:          req.Summary,
		FilesChanged:     req.FilesChanged,
		TimeSpentMinutes: req.TimeSpentMinutes,
		By:               req.By,
	})
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

type reopenTaskRequest struct {
	Reason string `json:"reason"`
	By     string `json:"by"`
}

// ReopenTask moves a done task back to the backlog.
func (h *TaskHandler) ReopenTask(c *gin.Context) {
	var req reopenTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, "")
		return
	}

	task, err := h.tasks.Reopen(c.Param("id"), services.ReopenTaskInput{
		Reason: req.Reason,
		By:     req.By,
	})
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

type verifyTaskRequest struct {
	Passed bool   `json:"passed"`
	Notes  string `json:"notes"`
	By     string `json:"by"`
}

// VerifyTask records a verification result on the task's report.
func (h *TaskHandler) VerifyTask(c *gin.Context) {
	var req verifyTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, "")
		return
	}

	task, err := h.tasks.Verify(c.Param("id"), services.VerifyTaskInput{
		Passed: req.Passed,
		Notes:  req.Notes,
		By:     req.By,
	})
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

type subtaskRequest struct {
	Title string `json:"title"`
	By    string `json:"by"`
}

// AddSubtask appends a subtask to a task.
func (h *TaskHandler) AddSubtask(c *gin.Context) {
	var req subtaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, "")
		return
	}

	task, err := h.tasks.AddSubtask(c.Param("id"), req.Title, req.By)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task": task})
}

// ToggleSubtask flips a subtask's done flag.
func (h *TaskHandler) ToggleSubtask(c *gin.Context) {
	task, err := h.tasks.ToggleSubtask(c.Param("id"), c.Param("subtask_id"), c.Query("by"))
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

// RemoveSubtask deletes a subtask from a task.
func (h *TaskHandler) RemoveSubtask(c *gin.Context) {
	task, err := h.tasks.RemoveSubtask(c.Param("id"), c.Param("subtask_id"), c.Query("by"))
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}
