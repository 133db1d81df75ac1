package models

import "time"

type TaskStatus string

const (
	TaskStatusBacklog    TaskStatus = "backlog"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusBlocked    TaskStatus = "blocked"
	TaskStatusInReview   TaskStatus = "in_review"
	TaskStatusDone       TaskStatus = "done"
)

// Valid reports whether s is one of the known task statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusBacklog, TaskStatusInProgress, TaskStatusBlocked, TaskStatusInReview, TaskStatusDone:
		return true
	}
	return false
}

type TaskPriority string

const (
	PriorityCritical TaskPriority = "critical"
	PriorityHigh     TaskPriority = "high"
	PriorityMedium   TaskPriority = "medium"
	PriorityLow      TaskPriority = "low"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Assignee identifies one of the two collaborating actors, or both.
type Assignee string

const (
	AssigneeWilson Assignee = "wilson"
	AssigneeAthena Assignee = "athena"
	AssigneeShared Assignee = "shared"
)

func (a Assignee) Valid() bool {
	switch a {
	case AssigneeWilson, AssigneeAthena, AssigneeShared:
		return true
	}
	return false
}

// taskTransitions lists the statuses reachable from each status through a
// generic update. done is terminal on this path; reopening a done task is a
// separate, intent-carrying operation.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusBacklog:    {TaskStatusInProgress, TaskStatusBlocked, TaskStatusDone},
	TaskStatusInProgress: {TaskStatusBlocked, TaskStatusInReview, TaskStatusDone},
	TaskStatusBlocked:    {TaskStatusBacklog, TaskStatusInProgress},
	TaskStatusInReview:   {TaskStatusDone, TaskStatusInProgress},
	TaskStatusDone:       {},
}

// CanTransitionTo reports whether a generic update may move a task from s to to.
func (s TaskStatus) CanTransitionTo(to TaskStatus) bool {
	for _, next := range taskTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Subtask is a checklist item owned by a task. IDs are sequential per task
// (st_001, st_002, ...) and are never reused after removal.
type Subtask struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// Source records where a task came from. Type defaults to "manual"; the
// remaining fields are only set for tasks captured from email.
type Source struct {
	Type       string     `json:"type"`
	Sender     string     `json:"sender,omitempty"`
	Subject    string     `json:"subject,omitempty"`
	ReceivedAt *time.Time `json:"received_at,omitempty"`
	Excerpt    string     `json:"excerpt,omitempty"`
}

const SourceTypeManual = "manual"

// Report is the completion record attached to a task when it is marked done.
type Report struct {
	Summary           string     `json:"summary"`
	FilesChanged      []string   `json:"files_changed,omitempty"`
	TimeSpentMinutes  int        `json:"time_spent_minutes,omitempty"`
	Verified          *bool      `json:"verified,omitempty"`
	VerifiedAt        *time.Time `json:"verified_at,omitempty"`
	VerificationNotes string     `json:"verification_notes,omitempty"`
}

// ActivityEntry is one event in a task's append-only history.
type ActivityEntry struct {
	At     time.Time `json:"at"`
	By     string    `json:"by"`
	Action string    `json:"action"`
	Detail string    `json:"detail,omitempty"`
}

// Activity actions.
const (
	ActivityCreated        = "created"
	ActivityUpdated        = "updated"
	ActivityStatusChanged  = "status_changed"
	ActivityCompleted      = "completed"
	ActivityReopened       = "reopened"
	ActivityVerified       = "verified"
	ActivityArchived       = "archived"
	ActivitySubtaskAdded   = "subtask_added"
	ActivitySubtaskToggled = "subtask_toggled"
	ActivitySubtaskRemoved = "subtask_removed"
)

type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	ProjectID   string       `json:"project_id,omitempty"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	AssignedTo  Assignee     `json:"assigned_to"`
	CreatedBy   string       `json:"created_by"`
	Tags        []string     `json:"tags"`
	Deadline    *time.Time   `json:"deadline,omitempty"`
	Subtasks    []Subtask    `json:"subtasks"`
	// SubtaskSeq is the highest subtask sequence number ever assigned,
	// persisted so removed ids are not handed out again.
	SubtaskSeq  int                `json:"subtask_seq,omitempty"`
	Links       map[string]*string `json:"links"`
	Source      Source             `json:"source"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	ArchivedAt  *time.Time         `json:"archived_at,omitempty"`
	Report      *Report            `json:"report,omitempty"`
	Activity    []ActivityEntry    `json:"activity"`
}

// LogActivity appends one entry to the task's history.
func (t *Task) LogActivity(at time.Time, by, action, detail string) {
	t.Activity = append(t.Activity, ActivityEntry{At: at, By: by, Action: action, Detail: detail})
}

// FindSubtask returns the index of the subtask with the given id, or -1.
func (t *Task) FindSubtask(id string) int {
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == id {
			return i
		}
	}
	return -1
}
