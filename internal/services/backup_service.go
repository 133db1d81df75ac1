package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/capitao/athena-tasks/internal/apperrors"
	"github.com/capitao/athena-tasks/internal/store"
)

const (
	backupInterval     = time.Hour
	backupStartupDelay = 10 * time.Second
	backupPruneAfter   = 48 * time.Hour
	manualBackupEvery  = 60 * time.Second
)

// BackupService takes point-in-time snapshots of the active task collection
// and prunes old ones. Snapshot names carry an hour-granularity timestamp,
// so at most one snapshot file exists per hour.
type BackupService struct {
	store  *store.Store
	dir    string
	now    func() time.Time
	logger *slog.Logger

	mu         sync.Mutex
	lastManual time.Time
}

// NewBackupService creates a BackupService writing snapshots under dir.
func NewBackupService(st *store.Store, dir string) *BackupService {
	return &BackupService{
		store:  st,
		dir:    dir,
		now:    time.Now,
		logger: slog.With("component", "backup"),
	}
}

// Snapshot copies the active task collection into a timestamped file and
// prunes snapshots older than 48 hours. It returns the snapshot path.
func (s *BackupService) Snapshot() (string, error) {
	data, err := s.store.Export(TasksCollection)
	if err != nil {
		return "", fmt.Errorf("failed to read active collection: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup dir: %w", err)
	}
	name := fmt.Sprintf("tasks-%s.json", s.now().UTC().Format("2006-01-02-15"))
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	s.logger.Info("snapshot written", "path", path)

	s.prune()
	return path, nil
}

// Manual triggers a snapshot, rate-limited to one per 60 seconds. A
// rate-limited call performs no I/O.
func (s *BackupService) Manual() (string, error) {
	s.mu.Lock()
	now := s.now()
	if !s.lastManual.IsZero() && now.Sub(s.lastManual) < manualBackupEvery {
		s.mu.Unlock()
		return "", apperrors.NewRateLimited("manual backup allowed at most once per %s", manualBackupEvery)
	}
	s.lastManual = now
	s.mu.Unlock()

	return s.Snapshot()
}

// prune removes snapshot files whose modification time is older than the
// 48-hour horizon. Failures are logged, not fatal.
func (s *BackupService) prune() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("failed to list backup dir", "error", err)
		return
	}
	horizon := s.now().Add(-backupPruneAfter)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(horizon) {
			path := filepath.Join(s.dir, e.Name())
			if err := os.Remove(path); err != nil {
				s.logger.Warn("failed to prune snapshot", "path", path, "error", err)
			} else {
				s.logger.Info("pruned snapshot", "path", path)
			}
		}
	}
}

// Count returns the number of snapshot files currently on disk.
func (s *BackupService) Count() int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			n++
		}
	}
	return n
}

// Start runs the rotation loop until ctx is cancelled: one snapshot shortly
// after startup, then hourly, then a best-effort final snapshot during
// shutdown.
func (s *BackupService) Start(ctx context.Context) {
	startup := time.NewTimer(backupStartupDelay)
	defer startup.Stop()
	select {
	case <-ctx.Done():
		return
	case <-startup.C:
		if _, err := s.Snapshot(); err != nil {
			s.logger.Error("startup snapshot failed", "error", err)
		}
	}

	ticker := time.NewTicker(backupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if _, err := s.Snapshot(); err != nil {
				s.logger.Error("shutdown snapshot failed", "error", err)
			}
			return
		case <-ticker.C:
			if _, err := s.Snapshot(); err != nil {
				s.logger.Error("scheduled snapshot failed", "error", err)
			}
		}
	}
}
