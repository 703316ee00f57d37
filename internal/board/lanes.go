package board

import (
	"time"

	"github.com/tgienger/taskboard/internal/models"
)

// TaskLane orders tasks TODO, IN PROGRESS, DONE. Moving a task to DONE
// stamps its completion time if it has none.
var TaskLane = Lane[models.Task, models.TaskStatus]{
	Name:     "Task",
	Statuses: models.TaskStatuses,
	ID:       func(t *models.Task) int64 { return t.ID },
	Label:    func(t *models.Task) string { return t.Title },
	Get: func(t *models.Task) State[models.TaskStatus] {
		return State[models.TaskStatus]{Status: t.Status, CompletedAt: t.CompletedAt}
	},
	Set: func(t *models.Task, s State[models.TaskStatus]) {
		t.Status = s.Status
		t.CompletedAt = s.CompletedAt
	},
	Stamp: func(next State[models.TaskStatus], now time.Time) State[models.TaskStatus] {
		if next.Status == models.StatusDone && next.CompletedAt == nil {
			next.CompletedAt = &now
		}
		return next
	},
	StatusLabel: models.TaskStatus.Label,
}

// ProjectLane orders projects PLANNED, ACTIVE, COMPLETED, ARCHIVED
var ProjectLane = Lane[models.Project, models.ProjectStatus]{
	Name:     "Project",
	Statuses: models.ProjectStatuses,
	ID:       func(p *models.Project) int64 { return p.ID },
	Label:    func(p *models.Project) string { return p.Name },
	Get: func(p *models.Project) State[models.ProjectStatus] {
		return State[models.ProjectStatus]{Status: p.Status}
	},
	Set: func(p *models.Project, s State[models.ProjectStatus]) {
		p.Status = s.Status
	},
	StatusLabel: models.ProjectStatus.Label,
}

// Column is one status column of a board
type Column[T any, S comparable] struct {
	Status S
	Items  []T
}

// Columns groups items by status in lane order. Items whose status is not
// part of the lane are left out.
func Columns[T any, S comparable](lane Lane[T, S], items []T) []Column[T, S] {
	cols := make([]Column[T, S], len(lane.Statuses))
	for i, s := range lane.Statuses {
		cols[i] = Column[T, S]{Status: s}
	}
	for i := range items {
		if idx := lane.Index(lane.Get(&items[i]).Status); idx >= 0 {
			cols[idx].Items = append(cols[idx].Items, items[i])
		}
	}
	return cols
}
