package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitao/athena-tasks/internal/models"
	"github.com/capitao/athena-tasks/internal/store"
)

func TestSeedResetsTasksAndWritesProjects(t *testing.T) {
	st, err := store.New(t.TempDir())
	require.NoError(t, err)

	_, err = store.MutateAs(st, TasksCollection, func(tasks []models.Task) ([]models.Task, error) {
		return append(tasks, models.Task{ID: "t_stale", Title: "stale fixture"}), nil
	})
	require.NoError(t, err)

	require.NoError(t, Seed(st))

	tasks, err := store.ReadAs[models.Task](st, TasksCollection)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	projects, err := store.ReadAs[models.Project](st, ProjectsCollection)
	require.NoError(t, err)
	require.Len(t, projects, 4)

	codes := make([]string, 0, len(projects))
	for _, p := range projects {
		codes = append(codes, p.Code)
		assert.Equal(t, models.ProjectStatusActive, p.Status)
	}
	assert.ElementsMatch(t, []string{"CAP", "PVC", "AUT", "PER"}, codes)
}
