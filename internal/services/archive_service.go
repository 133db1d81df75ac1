package services

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/capitao/athena-tasks/internal/models"
	"github.com/capitao/athena-tasks/internal/store"
)

const (
	// Tasks stay in the active collection for 30 days after completion.
	archiveAfter = 30 * 24 * time.Hour

	archiveMarkerCollection = "archive_runs"
	archiveCheckInterval    = time.Hour
)

// ArchiveService migrates aged, completed tasks out of the active collection
// into month-keyed archive collections. Both phases are idempotent, so a
// crash between them is healed by the next run.
type ArchiveService struct {
	store  *store.Store
	now    func() time.Time
	logger *slog.Logger
}

// NewArchiveService creates an ArchiveService backed by the given store.
func NewArchiveService(st *store.Store) *ArchiveService {
	return &ArchiveService{
		store:  st,
		now:    time.Now,
		logger: slog.With("component", "archive"),
	}
}

// archiveMarker records the last month an archival pass ran for, persisted
// so a missed schedule window is caught on the next check after restart.
type archiveMarker struct {
	Month string    `json:"month"`
	RanAt time.Time `json:"ran_at"`
}

// Run performs one archival pass and returns the number of tasks archived
// per month key. A task qualifies when it is done and its completed_at is
// older than the 30-day cutoff.
func (s *ArchiveService) Run() (map[string]int, error) {
	now := s.now().UTC()
	cutoff := now.Add(-archiveAfter)

	tasks, err := store.ReadAs[models.Task](s.store, TasksCollection)
	if err != nil {
		return nil, err
	}

	byMonth := make(map[string][]models.Task)
	for _, t := range tasks {
		if qualifiesForArchive(t, cutoff) {
			month := t.CompletedAt.UTC().Format("2006-01")
			byMonth[month] = append(byMonth[month], t)
		}
	}
	if len(byMonth) == 0 {
		return map[string]int{}, nil
	}

	months := make([]string, 0, len(byMonth))
	for month := range byMonth {
		months = append(months, month)
	}
	sort.Strings(months)

	// Phase one: append each group to its monthly collection, skipping ids
	// already present so a re-run after a partial failure adds nothing twice.
	archived := make(map[string]int, len(months))
	moved := make(map[string]bool)
	for _, month := range months {
		group := byMonth[month]
		count := 0
		_, err := store.MutateAs[models.Task](s.store, archivePrefix+month, func(existing []models.Task) ([]models.Task, error) {
			present := make(map[string]bool, len(existing))
			for _, t := range existing {
				present[t.ID] = true
			}
			for _, t := range group {
				if present[t.ID] {
					continue
				}
				at := now
				t.ArchivedAt = &at
				t.LogActivity(now, "system", models.ActivityArchived, month)
				existing = append(existing, t)
				count++
			}
			return existing, nil
		})
		if err != nil {
			return nil, err
		}
		archived[month] = count
		for _, t := range group {
			moved[t.ID] = true
		}
	}

	// Phase two: rewrite the active collection without the archived ids.
	// Qualification is re-checked inside the lock so a task reopened in the
	// meantime is left alone.
	_, err = store.MutateAs[models.Task](s.store, TasksCollection, func(current []models.Task) ([]models.Task, error) {
		kept := current[:0]
		for _, t := range current {
			if moved[t.ID] && qualifiesForArchive(t, cutoff) {
				continue
			}
			kept = append(kept, t)
		}
		return kept, nil
	})
	if err != nil {
		return nil, err
	}

	total := 0
	for _, n := range archived {
		total += n
	}
	s.logger.Info("archival pass completed", "archived", total, "months", len(months))
	return archived, nil
}

func qualifiesForArchive(t models.Task, cutoff time.Time) bool {
	return t.Status == models.TaskStatusDone && t.CompletedAt != nil && t.CompletedAt.Before(cutoff)
}

// Start runs the scheduler until ctx is cancelled: an hourly check that
// triggers a pass when the persisted marker is from an earlier month than
// the current one.
func (s *ArchiveService) Start(ctx context.Context) {
	ticker := time.NewTicker(archiveCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.checkSchedule(); err != nil {
				s.logger.Error("scheduled archival failed", "error", err)
			}
		}
	}
}

func (s *ArchiveService) checkSchedule() error {
	month := s.now().UTC().Format("2006-01")

	markers, err := store.ReadAs[archiveMarker](s.store, archiveMarkerCollection)
	if err != nil {
		return err
	}
	if len(markers) > 0 && markers[0].Month >= month {
		return nil
	}

	if _, err := s.Run(); err != nil {
		return err
	}

	_, err = store.MutateAs[archiveMarker](s.store, archiveMarkerCollection, func([]archiveMarker) ([]archiveMarker, error) {
		return []archiveMarker{{Month: month, RanAt: s.now().UTC()}}, nil
	})
	return err
}
