package services

import (
	"sort"
	"sync"
	"time"

	"github.com/capitao/athena-tasks/internal/apperrors"
	"github.com/capitao/athena-tasks/internal/models"
	"github.com/capitao/athena-tasks/internal/store"
)

const statsCacheTTL = 60 * time.Second

// Stats periods.
const (
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodAll   = "all"
)

// AssigneeStats summarizes one actor's throughput in the period.
type AssigneeStats struct {
	Completed            int     `json:"completed"`
	VerificationPassRate float64 `json:"verification_pass_rate"`
}

// ProjectStats summarizes completion progress for one project.
type ProjectStats struct {
	Total             int     `json:"total"`
	Done              int     `json:"done"`
	CompletionPercent float64 `json:"completion_percent"`
}

// SystemStats reports process-level counters.
type SystemStats struct {
	UptimeSeconds    int64 `json:"uptime_seconds"`
	BackupCount      int   `json:"backup_count"`
	ArchiveFileCount int   `json:"archive_file_count"`
}

// Stats is the computed analytics payload for one (period, project) request.
type Stats struct {
	Period                string                            `json:"period"`
	Project               string                            `json:"project,omitempty"`
	GeneratedAt           time.Time                         `json:"generated_at"`
	Created               int                               `json:"created"`
	Completed             int                               `json:"completed"`
	CompletionRate        float64                           `json:"completion_rate"`
	AvgCompletionHours    float64                           `json:"avg_completion_hours"`
	MedianCompletionHours float64                           `json:"median_completion_hours"`
	ByPriority            map[models.TaskPriority]int       `json:"by_priority"`
	ByStatus              map[models.TaskStatus]int         `json:"by_status"`
	Overdue               int                               `json:"overdue"`
	Assignees             map[models.Assignee]AssigneeStats `json:"assignees"`
	Projects              map[string]ProjectStats           `json:"projects"`
	System                SystemStats                       `json:"system"`
}

type statsCacheEntry struct {
	stats    *Stats
	computed time.Time
}

// StatsService computes read-only analytics over the union of the active
// collection and every archive collection, with a short-lived cache keyed by
// (period, project).
type StatsService struct {
	store     *store.Store
	backups   *BackupService
	now       func() time.Time
	startedAt time.Time

	mu    sync.Mutex
	cache map[string]statsCacheEntry
}

// NewStatsService creates a StatsService. backups may be nil when no
// rotator is running (e.g. one-shot CLI invocations).
func NewStatsService(st *store.Store, backups *BackupService) *StatsService {
	now := time.Now
	return &StatsService{
		store:     st,
		backups:   backups,
		now:       now,
		startedAt: now(),
		cache:     make(map[string]statsCacheEntry),
	}
}

// Get returns stats for the period and optional project filter. A result
// computed less than 60 seconds ago for the same key is returned unchanged.
func (s *StatsService) Get(period, project string) (*Stats, error) {
	switch period {
	case PeriodWeek, PeriodMonth, PeriodAll:
	case "":
		period = PeriodAll
	default:
		return nil, apperrors.NewValidation("invalid period %q: must be week, month, or all", period)
	}

	key := period + "|" + project
	now := s.now()

	s.mu.Lock()
	if entry, ok := s.cache[key]; ok && now.Sub(entry.computed) < statsCacheTTL {
		s.mu.Unlock()
		return entry.stats, nil
	}
	s.mu.Unlock()

	stats, err := s.compute(period, project, now.UTC())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[key] = statsCacheEntry{stats: stats, computed: now}
	s.mu.Unlock()
	return stats, nil
}

func (s *StatsService) compute(period, project string, now time.Time) (*Stats, error) {
	tasks, archiveCount, err := s.allTasks()
	if err != nil {
		return nil, err
	}

	var since time.Time
	switch period {
	case PeriodWeek:
		since = now.AddDate(0, 0, -7)
	case PeriodMonth:
		since = now.AddDate(0, 0, -30)
	}

	stats := &Stats{
		Period:      period,
		Project:     project,
		GeneratedAt: now,
		ByPriority:  make(map[models.TaskPriority]int),
		ByStatus:    make(map[models.TaskStatus]int),
		Assignees:   make(map[models.Assignee]AssigneeStats),
		Projects:    make(map[string]ProjectStats),
	}

	var latencies []float64
	type verifyCount struct{ verified, passed int }
	verifications := make(map[models.Assignee]verifyCount)

	for _, t := range tasks {
		if project != "" && t.ProjectID != project {
			continue
		}

		createdIn := since.IsZero() || !t.CreatedAt.Before(since)
		completedIn := t.CompletedAt != nil && (since.IsZero() || !t.CompletedAt.Before(since))

		if createdIn {
			stats.Created++
			stats.ByPriority[t.Priority]++
			stats.ByStatus[t.Status]++
		}
		if completedIn {
			stats.Completed++
			latencies = append(latencies, t.CompletedAt.Sub(t.CreatedAt).Hours())

			a := stats.Assignees[t.AssignedTo]
			a.Completed++
			stats.Assignees[t.AssignedTo] = a
			if t.Report != nil && t.Report.Verified != nil {
				vc := verifications[t.AssignedTo]
				vc.verified++
				if *t.Report.Verified {
					vc.passed++
				}
				verifications[t.AssignedTo] = vc
			}
		}
		if t.Deadline != nil && t.Deadline.Before(now) && t.Status != models.TaskStatusDone {
			stats.Overdue++
		}

		if t.ProjectID != "" {
			p := stats.Projects[t.ProjectID]
			p.Total++
			if t.Status == models.TaskStatusDone {
				p.Done++
			}
			stats.Projects[t.ProjectID] = p
		}
	}

	if stats.Created > 0 {
		stats.CompletionRate = float64(stats.Completed) / float64(stats.Created)
	}
	stats.AvgCompletionHours, stats.MedianCompletionHours = meanAndMedian(latencies)
	for assignee, vc := range verifications {
		a := stats.Assignees[assignee]
		if vc.verified > 0 {
			a.VerificationPassRate = float64(vc.passed) / float64(vc.verified)
		}
		stats.Assignees[assignee] = a
	}
	for id, p := range stats.Projects {
		if p.Total > 0 {
			p.CompletionPercent = 100 * float64(p.Done) / float64(p.Total)
		}
		stats.Projects[id] = p
	}

	stats.System = SystemStats{
		UptimeSeconds:    int64(s.now().Sub(s.startedAt).Seconds()),
		ArchiveFileCount: archiveCount,
	}
	if s.backups != nil {
		stats.System.BackupCount = s.backups.Count()
	}
	return stats, nil
}

// allTasks returns the de-duplicated union of the active collection and all
// archive collections. The active record wins for a duplicated id.
func (s *StatsService) allTasks() ([]models.Task, int, error) {
	tasks, err := store.ReadAs[models.Task](s.store, TasksCollection)
	if err != nil {
		return nil, 0, err
	}
	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		seen[t.ID] = true
	}

	months, err := s.store.List(archiveDir)
	if err != nil {
		return nil, 0, err
	}
	for _, month := range months {
		archived, err := store.ReadAs[models.Task](s.store, month)
		if err != nil {
			return nil, 0, err
		}
		for _, t := range archived {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			tasks = append(tasks, t)
		}
	}
	return tasks, len(months), nil
}

func meanAndMedian(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(len(sorted))

	mid := len(sorted) / 2
	median := sorted[mid]
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}
	return mean, median
}
