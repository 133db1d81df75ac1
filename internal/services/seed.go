package services

import (
	"time"

	"github.com/capitao/athena-tasks/internal/models"
	"github.com/capitao/athena-tasks/internal/store"
)

// Seed resets the task collection and writes the initial set of projects.
func Seed(st *store.Store) error {
	_, err := store.MutateAs[models.Task](st, TasksCollection, func([]models.Task) ([]models.Task, error) {
		return []models.Task{}, nil
	})
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	emptyLinks := func() map[string]*string {
		return map[string]*string{"website": nil, "gdrive_folder": nil, "github_repo": nil}
	}
	projects := []models.Project{
		{
			ID:          "proj_capitao",
			Name:        "capitao.consulting",
			Code:        "CAP",
			Description: "Professional consultancy firm",
			Status:      models.ProjectStatusActive,
			Color:       "#3B82F6",
			CreatedAt:   now,
			Links:       emptyLinks(),
		},
		{
			ID:          "proj_petvitaclub",
			Name:        "PetVitaClub",
			Code:        "PVC",
			Description: "Natural pet food e-commerce — validation phase",
			Status:      models.ProjectStatusActive,
			Color:       "#10B981",
			CreatedAt:   now,
			Links:       emptyLinks(),
		},
		{
			ID:          "proj_automation",
			Name:        "Automation Tools",
			Code:        "AUT",
			Description: "Micro-automation tools and scripts",
			Status:      models.ProjectStatusActive,
			Color:       "#8B5CF6",
			CreatedAt:   now,
			Links:       emptyLinks(),
		},
		{
			ID:          "proj_personal",
			Name:        "Personal",
			Code:        "PER",
			Description: "Personal tasks and projects",
			Status:      models.ProjectStatusActive,
			Color:       "#6B7280",
			CreatedAt:   now,
			Links:       emptyLinks(),
		},
	}

	_, err = store.MutateAs[models.Project](st, ProjectsCollection, func([]models.Project) ([]models.Project, error) {
		return projects, nil
	})
	return err
}
