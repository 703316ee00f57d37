// Package board holds the logic shared by every board and dashboard screen:
// filtering loaded collections, grouping them into status columns, moving
// entities between columns optimistically, and summarizing them.
package board

import (
	"strings"
	"time"

	"github.com/tgienger/taskboard/internal/models"
)

// Predicate reports whether an item belongs in a filtered view
type Predicate[T any] func(T) bool

// Filter returns the items matching every predicate, in source order. The
// source slice is never modified; with no predicates the result is a copy.
func Filter[T any](items []T, preds ...Predicate[T]) []T {
	out := make([]T, 0, len(items))
next:
	for _, it := range items {
		for _, p := range preds {
			if !p(it) {
				continue next
			}
		}
		out = append(out, it)
	}
	return out
}

// dayKey is the calendar day of t in its own offset, the day the backend
// wrote.
func dayKey(t time.Time) string { return t.Format(time.DateOnly) }

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), sub)
}

// TaskCriteria selects tasks. Zero values mean "match all"; Vital is nil
// when unset.
type TaskCriteria struct {
	Search      string
	Status      models.TaskStatus
	Priority    models.Priority
	ProjectID   int64
	AssigneeID  int64
	Vital       *bool
	CreatedFrom *time.Time // inclusive, by day
	DueBy       *time.Time // inclusive, by day; tasks without a due date never match
	DueOn       *time.Time
}

// IsZero reports whether no criterion is set
func (c TaskCriteria) IsZero() bool {
	return c == TaskCriteria{}
}

// Predicates builds the chain for c. projectNames lets the search match a
// task through the name of the project it belongs to.
func (c TaskCriteria) Predicates(projectNames map[int64]string) []Predicate[models.Task] {
	var preds []Predicate[models.Task]

	if q := strings.ToLower(strings.TrimSpace(c.Search)); q != "" {
		preds = append(preds, func(t models.Task) bool {
			return containsFold(t.Title, q) ||
				containsFold(t.Description, q) ||
				containsFold(projectNames[t.ProjectID], q)
		})
	}
	if c.Status != "" {
		status := c.Status
		preds = append(preds, func(t models.Task) bool { return t.Status == status })
	}
	if c.Priority != "" {
		priority := c.Priority
		preds = append(preds, func(t models.Task) bool { return t.Priority == priority })
	}
	if c.ProjectID != 0 {
		id := c.ProjectID
		preds = append(preds, func(t models.Task) bool { return t.ProjectID == id })
	}
	if c.AssigneeID != 0 {
		id := c.AssigneeID
		preds = append(preds, func(t models.Task) bool { return t.AssigneeID == id })
	}
	if c.Vital != nil {
		vital := *c.Vital
		preds = append(preds, func(t models.Task) bool { return t.Vital == vital })
	}
	if c.CreatedFrom != nil {
		from := dayKey(*c.CreatedFrom)
		preds = append(preds, func(t models.Task) bool {
			return !t.CreatedAt.IsZero() && dayKey(t.CreatedAt) >= from
		})
	}
	if c.DueBy != nil {
		by := dayKey(*c.DueBy)
		preds = append(preds, func(t models.Task) bool {
			return t.DueDate != nil && dayKey(*t.DueDate) <= by
		})
	}
	if c.DueOn != nil {
		on := dayKey(*c.DueOn)
		preds = append(preds, func(t models.Task) bool {
			return t.DueDate != nil && dayKey(*t.DueDate) == on
		})
	}
	return preds
}

// FilterTasks applies c to tasks
func FilterTasks(tasks []models.Task, c TaskCriteria, projectNames map[int64]string) []models.Task {
	return Filter(tasks, c.Predicates(projectNames)...)
}

// ProjectCriteria selects projects. Zero values mean "match all".
type ProjectCriteria struct {
	Search    string
	Status    models.ProjectStatus
	StartFrom *time.Time // inclusive, by day
	EndBy     *time.Time // inclusive, by day
}

func (c ProjectCriteria) IsZero() bool {
	return c == ProjectCriteria{}
}

func (c ProjectCriteria) Predicates() []Predicate[models.Project] {
	var preds []Predicate[models.Project]

	if q := strings.ToLower(strings.TrimSpace(c.Search)); q != "" {
		preds = append(preds, func(p models.Project) bool {
			return containsFold(p.Name, q) || containsFold(p.Description, q)
		})
	}
	if c.Status != "" {
		status := c.Status
		preds = append(preds, func(p models.Project) bool { return p.Status == status })
	}
	if c.StartFrom != nil {
		from := dayKey(*c.StartFrom)
		preds = append(preds, func(p models.Project) bool {
			return p.StartDate != nil && dayKey(*p.StartDate) >= from
		})
	}
	if c.EndBy != nil {
		by := dayKey(*c.EndBy)
		preds = append(preds, func(p models.Project) bool {
			return p.EndDate != nil && dayKey(*p.EndDate) <= by
		})
	}
	return preds
}

func FilterProjects(projects []models.Project, c ProjectCriteria) []models.Project {
	return Filter(projects, c.Predicates()...)
}

// ProjectIDs projects the tasks' project references into a set
func ProjectIDs(tasks []models.Task) map[int64]struct{} {
	ids := make(map[int64]struct{}, len(tasks))
	for _, t := range tasks {
		if t.ProjectID != 0 {
			ids[t.ProjectID] = struct{}{}
		}
	}
	return ids
}

// ProjectsIn selects the projects whose id is in ids, in source order
func ProjectsIn(projects []models.Project, ids map[int64]struct{}) []models.Project {
	return Filter(projects, func(p models.Project) bool {
		_, ok := ids[p.ID]
		return ok
	})
}

// AssignedTo returns the tasks assigned to userID
func AssignedTo(tasks []models.Task, userID int64) []models.Task {
	return Filter(tasks, func(t models.Task) bool { return t.AssigneeID == userID })
}
