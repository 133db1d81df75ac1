package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/capitao/athena-tasks/internal/apperrors"
	"github.com/capitao/athena-tasks/internal/models"
	"github.com/capitao/athena-tasks/internal/store"
)

// Collection names.
const (
	TasksCollection    = "tasks"
	ProjectsCollection = "projects"

	archiveDir    = "archive"
	archivePrefix = "archive/tasks-"
)

const (
	titleMinLen        = 3
	titleMaxLen        = 200
	subtaskTitleMaxLen = 60
)

// TaskService owns the task lifecycle: creation defaults, field validation,
// the status transition guard, and the completion/reopen/verify flows.
// Every mutation is a single locked read-modify-write through the store.
type TaskService struct {
	store *store.Store
	now   func() time.Time
}

// NewTaskService creates a TaskService backed by the given store.
func NewTaskService(st *store.Store) *TaskService {
	return &TaskService{store: st, now: time.Now}
}

// CreateTaskInput represents input for creating a task. Zero values take
// the documented defaults.
type CreateTaskInput struct {
	Title       string
	Description string
	ProjectID   string
	Priority    models.TaskPriority
	AssignedTo  models.Assignee
	CreatedBy   string
	Tags        []string
	Deadline    *time.Time
	Links       map[string]*string
	Source      *models.Source
	Subtasks    []string
}

// UpdateTaskInput represents a partial update. Nil fields are untouched.
type UpdateTaskInput struct {
	Title         *string
	Description   *string
	ProjectID     *string
	Status        *models.TaskStatus
	Priority      *models.TaskPriority
	AssignedTo    *models.Assignee
	Tags          *[]string
	Deadline      *time.Time
	ClearDeadline bool
	Links         map[string]*string
	By            string
}

// CompleteTaskInput represents input for marking a task done.
type CompleteTaskInput struct {
	Summary          string
	FilesChanged     []string
	TimeSpentMinutes int
	By               string
}

// ReopenTaskInput represents input for reopening a done task.
type ReopenTaskInput struct {
	Reason string
	By     string
}

// VerifyTaskInput represents input for recording a verification result.
type VerifyTaskInput struct {
	Passed bool
	Notes  string
	By     string
}

// TaskFilter narrows List results.
type TaskFilter struct {
	Status     models.TaskStatus
	ProjectID  string
	AssignedTo models.Assignee
	Priority   models.TaskPriority
	Tag        string
}

// List returns active tasks matching the filter, in collection order.
func (s *TaskService) List(filter TaskFilter) ([]models.Task, error) {
	tasks, err := store.ReadAs[models.Task](s.store, TasksCollection)
	if err != nil {
		return nil, err
	}
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.ProjectID != "" && t.ProjectID != filter.ProjectID {
			continue
		}
		if filter.AssignedTo != "" && t.AssignedTo != filter.AssignedTo {
			continue
		}
		if filter.Priority != "" && t.Priority != filter.Priority {
			continue
		}
		if filter.Tag != "" && !containsString(t.Tags, filter.Tag) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Get returns a task by id, searching the active collection first and then
// the archives. Archived tasks are read-only.
func (s *TaskService) Get(id string) (*models.Task, error) {
	tasks, err := store.ReadAs[models.Task](s.store, TasksCollection)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		if tasks[i].ID == id {
			return &tasks[i], nil
		}
	}

	months, err := s.store.List(archiveDir)
	if err != nil {
		return nil, err
	}
	for _, month := range months {
		archived, err := store.ReadAs[models.Task](s.store, month)
		if err != nil {
			return nil, err
		}
		for i := range archived {
			if archived[i].ID == id {
				return &archived[i], nil
			}
		}
	}
	return nil, apperrors.NewNotFound("task %s not found", id)
}

// Create validates the input, fills defaults, and appends the new task to
// the active collection.
func (s *TaskService) Create(input CreateTaskInput) (*models.Task, error) {
	if err := validateTitle(input.Title); err != nil {
		return nil, err
	}

	if input.Priority == "" {
		input.Priority = models.PriorityMedium
	} else if !input.Priority.Valid() {
		return nil, apperrors.NewValidation("invalid priority %q", input.Priority)
	}
	if input.AssignedTo == "" {
		input.AssignedTo = models.AssigneeShared
	} else if !input.AssignedTo.Valid() {
		return nil, apperrors.NewValidation("invalid assignee %q", input.AssignedTo)
	}
	if input.CreatedBy == "" {
		input.CreatedBy = string(models.AssigneeWilson)
	}

	if input.ProjectID != "" {
		if err := s.ensureProjectExists(input.ProjectID); err != nil {
			return nil, err
		}
	}

	links, err := normalizeLinks(input.Links)
	if err != nil {
		return nil, err
	}
	if links == nil {
		links = map[string]*string{}
	}

	source := models.Source{Type: models.SourceTypeManual}
	if input.Source != nil {
		source = *input.Source
		if source.Type == "" {
			source.Type = models.SourceTypeManual
		}
	}

	now := s.now().UTC()
	task := models.Task{
		ID:          newTaskID(now),
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		ProjectID:   input.ProjectID,
		Status:      models.TaskStatusBacklog,
		Priority:    input.Priority,
		AssignedTo:  input.AssignedTo,
		CreatedBy:   input.CreatedBy,
		Tags:        uniqueStrings(input.Tags),
		Deadline:    input.Deadline,
		Subtasks:    []models.Subtask{},
		Links:       links,
		Source:      source,
		CreatedAt:   now,
		UpdatedAt:   now,
		Activity:    []models.ActivityEntry{},
	}
	for _, title := range input.Subtasks {
		if err := validateSubtaskTitle(title); err != nil {
			return nil, err
		}
		task.SubtaskSeq++
		task.Subtasks = append(task.Subtasks, models.Subtask{
			ID:    subtaskID(task.SubtaskSeq),
			Title: strings.TrimSpace(title),
		})
	}
	task.LogActivity(now, input.CreatedBy, models.ActivityCreated, "")

	_, err = store.MutateAs[models.Task](s.store, TasksCollection, func(tasks []models.Task) ([]models.Task, error) {
		return append(tasks, task), nil
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// Update applies a generic field update. Status changes go through the
// transition table; done is terminal on this path.
func (s *TaskService) Update(id string, input UpdateTaskInput) (*models.Task, error) {
	if input.Title != nil {
		if err := validateTitle(*input.Title); err != nil {
			return nil, err
		}
	}
	if input.Status != nil && !input.Status.Valid() {
		return nil, apperrors.NewValidation("invalid status %q", *input.Status)
	}
	if input.Priority != nil && !input.Priority.Valid() {
		return nil, apperrors.NewValidation("invalid priority %q", *input.Priority)
	}
	if input.AssignedTo != nil && !input.AssignedTo.Valid() {
		return nil, apperrors.NewValidation("invalid assignee %q", *input.AssignedTo)
	}
	links, err := normalizeLinks(input.Links)
	if err != nil {
		return nil, err
	}
	if input.ProjectID != nil && *input.ProjectID != "" {
		if err := s.ensureProjectExists(*input.ProjectID); err != nil {
			return nil, err
		}
	}

	by := actorOrDefault(input.By)
	return s.mutateTask(id, func(t *models.Task, now time.Time) error {
		var changed []string
		if input.Title != nil {
			t.Title = strings.TrimSpace(*input.Title)
			changed = append(changed, "title")
		}
		if input.Description != nil {
			t.Description = *input.Description
			changed = append(changed, "description")
		}
		if input.ProjectID != nil {
			t.ProjectID = *input.ProjectID
			changed = append(changed, "project_id")
		}
		if input.Priority != nil {
			t.Priority = *input.Priority
			changed = append(changed, "priority")
		}
		if input.AssignedTo != nil {
			t.AssignedTo = *input.AssignedTo
			changed = append(changed, "assigned_to")
		}
		if input.Tags != nil {
			t.Tags = uniqueStrings(*input.Tags)
			changed = append(changed, "tags")
		}
		if input.ClearDeadline {
			t.Deadline = nil
			changed = append(changed, "deadline")
		} else if input.Deadline != nil {
			t.Deadline = input.Deadline
			changed = append(changed, "deadline")
		}
		for field, value := range links {
			if t.Links == nil {
				t.Links = map[string]*string{}
			}
			t.Links[field] = value
			changed = append(changed, "links."+field)
		}

		if input.Status != nil {
			from, to := t.Status, *input.Status
			if !from.CanTransitionTo(to) {
				return apperrors.NewInvalidTransition("cannot transition task from %s to %s", from, to)
			}
			t.Status = to
			if to == models.TaskStatusDone {
				t.CompletedAt = &now
			}
			t.LogActivity(now, by, models.ActivityStatusChanged, fmt.Sprintf("%s → %s", from, to))
		} else if len(changed) > 0 {
			t.LogActivity(now, by, models.ActivityUpdated, strings.Join(changed, ", "))
		}
		return nil
	})
}

// Complete marks a task done with a completion report. Only legal from
// in_progress or in_review.
func (s *TaskService) Complete(id string, input CompleteTaskInput) (*models.Task, error) {
	if strings.TrimSpace(input.Summary) == "" {
		return nil, apperrors.NewValidation("completion requires a non-empty summary")
	}
	by := actorOrDefault(input.By)
	return s.mutateTask(id, func(t *models.Task, now time.Time) error {
		if t.Status != models.TaskStatusInProgress && t.Status != models.TaskStatusInReview {
			return apperrors.NewInvalidTransition("cannot complete task with status %s", t.Status)
		}
		from := t.Status
		t.Status = models.TaskStatusDone
		t.CompletedAt = &now
		t.Report = &models.Report{
			Summary:          strings.TrimSpace(input.Summary),
			FilesChanged:     input.FilesChanged,
			TimeSpentMinutes: input.TimeSpentMinutes,
		}
		t.LogActivity(now, by, models.ActivityStatusChanged, fmt.Sprintf("%s → %s", from, models.TaskStatusDone))
		t.LogActivity(now, by, models.ActivityCompleted, t.Report.Summary)
		return nil
	})
}

// Reopen moves a done task back to backlog. It requires a reason and clears
// the completion record; completion is not casually undone through a
// generic field patch.
func (s *TaskService) Reopen(id string, input ReopenTaskInput) (*models.Task, error) {
	if strings.TrimSpace(input.Reason) == "" {
		return nil, apperrors.NewValidation("reopening requires a non-empty reason")
	}
	by := actorOrDefault(input.By)
	return s.mutateTask(id, func(t *models.Task, now time.Time) error {
		if t.Status != models.TaskStatusDone {
			return apperrors.NewInvalidTransition("cannot reopen task with status %s", t.Status)
		}
		t.Status = models.TaskStatusBacklog
		t.CompletedAt = nil
		t.Report = nil
		t.LogActivity(now, by, models.ActivityReopened, strings.TrimSpace(input.Reason))
		return nil
	})
}

// Verify records a verification result on the task's completion report. A
// passing verification while the task is still in_progress advances it to
// in_review.
func (s *TaskService) Verify(id string, input VerifyTaskInput) (*models.Task, error) {
	by := actorOrDefault(input.By)
	return s.mutateTask(id, func(t *models.Task, now time.Time) error {
		if t.Report == nil {
			return apperrors.NewValidation("task %s has no completion report to verify", id)
		}
		passed := input.Passed
		t.Report.Verified = &passed
		t.Report.VerifiedAt = &now
		t.Report.VerificationNotes = input.Notes
		if passed && t.Status == models.TaskStatusInProgress {
			t.Status = models.TaskStatusInReview
			t.LogActivity(now, by, models.ActivityStatusChanged,
				fmt.Sprintf("%s → %s", models.TaskStatusInProgress, models.TaskStatusInReview))
		}
		result := "failed"
		if passed {
			result = "passed"
		}
		t.LogActivity(now, by, models.ActivityVerified, result)
		return nil
	})
}

// AddSubtask appends a subtask with the next sequential id.
func (s *TaskService) AddSubtask(id, title, by string) (*models.Task, error) {
	if err := validateSubtaskTitle(title); err != nil {
		return nil, err
	}
	by = actorOrDefault(by)
	return s.mutateTask(id, func(t *models.Task, now time.Time) error {
		t.SubtaskSeq++
		sub := models.Subtask{ID: subtaskID(t.SubtaskSeq), Title: strings.TrimSpace(title)}
		t.Subtasks = append(t.Subtasks, sub)
		t.LogActivity(now, by, models.ActivitySubtaskAdded, sub.ID)
		return nil
	})
}

// ToggleSubtask flips a subtask's done flag.
func (s *TaskService) ToggleSubtask(id, subtaskID, by string) (*models.Task, error) {
	by = actorOrDefault(by)
	return s.mutateTask(id, func(t *models.Task, now time.Time) error {
		i := t.FindSubtask(subtaskID)
		if i < 0 {
			return apperrors.NewNotFound("subtask %s not found on task %s", subtaskID, id)
		}
		t.Subtasks[i].Done = !t.Subtasks[i].Done
		t.LogActivity(now, by, models.ActivitySubtaskToggled, subtaskID)
		return nil
	})
}

// RemoveSubtask deletes a subtask. Its id is never reused.
func (s *TaskService) RemoveSubtask(id, subtaskID, by string) (*models.Task, error) {
	by = actorOrDefault(by)
	return s.mutateTask(id, func(t *models.Task, now time.Time) error {
		i := t.FindSubtask(subtaskID)
		if i < 0 {
			return apperrors.NewNotFound("subtask %s not found on task %s", subtaskID, id)
		}
		t.Subtasks = append(t.Subtasks[:i], t.Subtasks[i+1:]...)
		t.LogActivity(now, by, models.ActivitySubtaskRemoved, subtaskID)
		return nil
	})
}

// mutateTask runs fn against the task with the given id inside a single
// locked mutation of the active collection, bumping updated_at on success.
func (s *TaskService) mutateTask(id string, fn func(t *models.Task, now time.Time) error) (*models.Task, error) {
	var updated *models.Task
	_, err := store.MutateAs[models.Task](s.store, TasksCollection, func(tasks []models.Task) ([]models.Task, error) {
		for i := range tasks {
			if tasks[i].ID != id {
				continue
			}
			now := s.now().UTC()
			if err := fn(&tasks[i], now); err != nil {
				return nil, err
			}
			tasks[i].UpdatedAt = now
			t := tasks[i]
			updated = &t
			return tasks, nil
		}
		return nil, apperrors.NewNotFound("task %s not found", id)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *TaskService) ensureProjectExists(projectID string) error {
	projects, err := store.ReadAs[models.Project](s.store, ProjectsCollection)
	if err != nil {
		return err
	}
	for i := range projects {
		if projects[i].ID == projectID {
			return nil
		}
	}
	return apperrors.NewValidation("project %s does not exist", projectID)
}

func validateTitle(title string) error {
	n := len(strings.TrimSpace(title))
	if n < titleMinLen || n > titleMaxLen {
		return apperrors.NewValidation("title must be %d-%d characters, got %d", titleMinLen, titleMaxLen, n)
	}
	return nil
}

func validateSubtaskTitle(title string) error {
	n := len(strings.TrimSpace(title))
	if n == 0 || n > subtaskTitleMaxLen {
		return apperrors.NewValidation("subtask title must be 1-%d characters, got %d", subtaskTitleMaxLen, n)
	}
	return nil
}

func newTaskID(now time.Time) string {
	return fmt.Sprintf("task_%d_%s", now.UnixMilli(), uuid.NewString()[:8])
}

func subtaskID(seq int) string {
	return fmt.Sprintf("st_%03d", seq)
}

func actorOrDefault(by string) string {
	if by == "" {
		return string(models.AssigneeWilson)
	}
	return by
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
