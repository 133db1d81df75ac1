package services

import (
	"regexp"
	"strings"
	"time"

	"github.com/capitao/athena-tasks/internal/apperrors"
	"github.com/capitao/athena-tasks/internal/models"
	"github.com/capitao/athena-tasks/internal/store"
)

const projectNameMaxLen = 60

var projectCodeRe = regexp.MustCompile(`^[A-Z]{2,5}$`)

// ProjectService owns project creation and the project status transition
// guard, including the referential check against the task store.
type ProjectService struct {
	store *store.Store
	now   func() time.Time
}

// NewProjectService creates a ProjectService backed by the given store.
func NewProjectService(st *store.Store) *ProjectService {
	return &ProjectService{store: st, now: time.Now}
}

// CreateProjectInput represents input for creating a project.
type CreateProjectInput struct {
	Name        string
	Code        string
	Description string
	Color       string
	Links       map[string]*string
}

// List returns all projects.
func (s *ProjectService) List() ([]models.Project, error) {
	return store.ReadAs[models.Project](s.store, ProjectsCollection)
}

// Get returns a project by id.
func (s *ProjectService) Get(id string) (*models.Project, error) {
	projects, err := store.ReadAs[models.Project](s.store, ProjectsCollection)
	if err != nil {
		return nil, err
	}
	for i := range projects {
		if projects[i].ID == id {
			return &projects[i], nil
		}
	}
	return nil, apperrors.NewNotFound("project %s not found", id)
}

// Create validates the input and appends the new project. The id is derived
// from the name; id and code uniqueness are checked under the collection
// lock.
func (s *ProjectService) Create(input CreateProjectInput) (*models.Project, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" || len(name) > projectNameMaxLen {
		return nil, apperrors.NewValidation("project name must be 1-%d characters", projectNameMaxLen)
	}
	if !projectCodeRe.MatchString(input.Code) {
		return nil, apperrors.NewValidation("project code must be 2-5 uppercase letters, got %q", input.Code)
	}
	links, err := normalizeLinks(input.Links)
	if err != nil {
		return nil, err
	}
	if links == nil {
		links = map[string]*string{}
	}

	project := models.Project{
		ID:          "proj_" + slugify(name),
		Name:        name,
		Code:        input.Code,
		Description: input.Description,
		Status:      models.ProjectStatusActive,
		Color:       input.Color,
		CreatedAt:   s.now().UTC(),
		Links:       links,
	}

	_, err = store.MutateAs[models.Project](s.store, ProjectsCollection, func(projects []models.Project) ([]models.Project, error) {
		for i := range projects {
			if projects[i].ID == project.ID {
				return nil, apperrors.NewValidation("project id %s already exists", project.ID)
			}
			if projects[i].Code == project.Code {
				return nil, apperrors.NewValidation("project code %s already exists", project.Code)
			}
		}
		return append(projects, project), nil
	})
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// Transition moves a project to a new status per the transition table.
// Completing a project requires that no task referencing it is still open.
func (s *ProjectService) Transition(id string, to models.ProjectStatus) (*models.Project, error) {
	if !to.Valid() {
		return nil, apperrors.NewValidation("invalid project status %q", to)
	}

	// The referential check reads the task store before the project
	// mutation; the two collections are not locked together.
	if to == models.ProjectStatusCompleted {
		open, err := s.countOpenTasks(id)
		if err != nil {
			return nil, err
		}
		if open > 0 {
			return nil, apperrors.NewReferential("cannot complete project %s: %d task(s) are not done", id, open)
		}
	}

	var updated *models.Project
	_, err := store.MutateAs[models.Project](s.store, ProjectsCollection, func(projects []models.Project) ([]models.Project, error) {
		for i := range projects {
			if projects[i].ID != id {
				continue
			}
			from := projects[i].Status
			if !from.CanTransitionTo(to) {
				return nil, apperrors.NewInvalidTransition("cannot transition project from %s to %s", from, to)
			}
			projects[i].Status = to
			p := projects[i]
			updated = &p
			return projects, nil
		}
		return nil, apperrors.NewNotFound("project %s not found", id)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *ProjectService) countOpenTasks(projectID string) (int, error) {
	tasks, err := store.ReadAs[models.Task](s.store, TasksCollection)
	if err != nil {
		return 0, err
	}
	open := 0
	for _, t := range tasks {
		if t.ProjectID == projectID && t.Status != models.TaskStatusDone {
			open++
		}
	}
	return open, nil
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(name string) string {
	s := slugRe.ReplaceAllString(strings.ToLower(name), "_")
	return strings.Trim(s, "_")
}
