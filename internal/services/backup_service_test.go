package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitao/athena-tasks/internal/apperrors"
	"github.com/capitao/athena-tasks/internal/models"
	"github.com/capitao/athena-tasks/internal/store"
)

func newBackupFixture(t *testing.T) (*BackupService, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	return NewBackupService(st, filepath.Join(st.Dir(), "backups")), st
}

func TestSnapshotCopiesActiveCollection(t *testing.T) {
	svc, st := newBackupFixture(t)
	now := time.Date(2026, 8, 31, 14, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_, err := store.MutateAs(st, TasksCollection, func(tasks []models.Task) ([]models.Task, error) {
		return append(tasks, models.Task{ID: "t1", Title: "snapshot fixture"}), nil
	})
	require.NoError(t, err)

	path, err := svc.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "tasks-2026-08-31-14.json", filepath.Base(path))

	original, err := os.ReadFile(st.FilePath(TasksCollection))
	require.NoError(t, err)
	snapshot, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, snapshot)
}

func TestSnapshotOfAbsentCollectionIsEmptyArray(t *testing.T) {
	svc, _ := newBackupFixture(t)

	path, err := svc.Snapshot()
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), data)
}

func TestPruneRemovesOnlyOldSnapshots(t *testing.T) {
	svc, _ := newBackupFixture(t)
	require.NoError(t, os.MkdirAll(svc.dir, 0o755))

	oldPath := filepath.Join(svc.dir, "tasks-2026-08-20-10.json")
	freshPath := filepath.Join(svc.dir, "tasks-2026-08-31-10.json")
	require.NoError(t, os.WriteFile(oldPath, []byte("[]"), 0o644))
	require.NoError(t, os.WriteFile(freshPath, []byte("[]"), 0o644))

	oldTime := time.Now().Add(-72 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, oldTime, oldTime))

	_, err := svc.Snapshot()
	require.NoError(t, err)

	_, err = os.Stat(oldPath)
	assert.True(t, os.IsNotExist(err), "snapshot older than 48h should be pruned")
	_, err = os.Stat(freshPath)
	assert.NoError(t, err, "snapshot within 48h should survive")
}

func TestManualBackupRateLimited(t *testing.T) {
	svc, _ := newBackupFixture(t)
	base := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	current := base
	svc.now = func() time.Time { return current }

	_, err := svc.Manual()
	require.NoError(t, err)

	current = base.Add(30 * time.Second)
	_, err = svc.Manual()
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeRateLimited, apperrors.CodeOf(err))

	current = base.Add(61 * time.Second)
	_, err = svc.Manual()
	require.NoError(t, err)
}
