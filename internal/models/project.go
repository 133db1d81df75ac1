package models

import "time"

type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusPaused    ProjectStatus = "paused"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusArchived  ProjectStatus = "archived"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusActive, ProjectStatusPaused, ProjectStatusCompleted, ProjectStatusArchived:
		return true
	}
	return false
}

var projectTransitions = map[ProjectStatus][]ProjectStatus{
	ProjectStatusActive:    {ProjectStatusPaused, ProjectStatusCompleted},
	ProjectStatusPaused:    {ProjectStatusActive, ProjectStatusArchived},
	ProjectStatusCompleted: {ProjectStatusArchived, ProjectStatusActive},
	ProjectStatusArchived:  {ProjectStatusActive},
}

// CanTransitionTo reports whether a project may move from s to to.
func (s ProjectStatus) CanTransitionTo(to ProjectStatus) bool {
	for _, next := range projectTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type Project struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Code        string             `json:"code"`
	Description string             `json:"description,omitempty"`
	Status      ProjectStatus      `json:"status"`
	Color       string             `json:"color,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	Links       map[string]*string `json:"links"`
}
