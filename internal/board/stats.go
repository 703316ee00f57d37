package board

import (
	"math"
	"time"

	"github.com/tgienger/taskboard/internal/models"
)

// Assignee is a user and the number of tasks assigned to them
type Assignee struct {
	ID    int64
	Name  string
	Count int
}

// NoAssignee is returned by TopAssignee when no task is assigned
var NoAssignee = Assignee{Name: "N/A"}

const unknownUser = "Unknown User"

// Summary holds the dashboard counters
type Summary struct {
	Total             int
	ByStatus          map[models.TaskStatus]int
	InProgress        int
	Overdue           int
	ActiveProjects    int
	CompletedProjects int
	TopAssignee       Assignee
}

// Summarize scans the loaded collections. It is recomputed on every load.
func Summarize(tasks []models.Task, projects []models.Project, users []models.User, now time.Time) Summary {
	s := Summary{
		Total:    len(tasks),
		ByStatus: make(map[models.TaskStatus]int, len(models.TaskStatuses)),
	}
	for _, t := range tasks {
		s.ByStatus[t.Status]++
		if t.Overdue(now) {
			s.Overdue++
		}
	}
	s.InProgress = s.ByStatus[models.StatusInProgress]

	for _, p := range projects {
		switch p.Status {
		case models.ProjectActive:
			s.ActiveProjects++
		case models.ProjectCompleted:
			s.CompletedProjects++
		}
	}
	s.TopAssignee = TopAssignee(tasks, users)
	return s
}

// MemberLoad counts tasks per assignee in first-seen order. Unassigned tasks
// are skipped.
func MemberLoad(tasks []models.Task, users []models.User) []Assignee {
	names := models.UserNames(users)
	var load []Assignee
	index := make(map[int64]int)
	for _, t := range tasks {
		if t.AssigneeID == 0 {
			continue
		}
		i, ok := index[t.AssigneeID]
		if !ok {
			name, known := names[t.AssigneeID]
			if !known {
				name = unknownUser
			}
			i = len(load)
			index[t.AssigneeID] = i
			load = append(load, Assignee{ID: t.AssigneeID, Name: name})
		}
		load[i].Count++
	}
	return load
}

// TopAssignee returns the assignee with the strictly greatest task count.
// Ties go to whoever was seen first.
func TopAssignee(tasks []models.Task, users []models.User) Assignee {
	top := NoAssignee
	for _, a := range MemberLoad(tasks, users) {
		if a.Count > top.Count {
			top = a
		}
	}
	return top
}

// CompletionPercent is round(100*done/total), or 0 when total is 0
func CompletionPercent(done, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(done) / float64(total)))
}

// Progress is a project's completion
type Progress struct {
	Project models.Project
	Tasks   int
	Done    int
	Percent int
}

// ProjectProgress computes completion for each project, in project order
func ProjectProgress(projects []models.Project, tasks []models.Task) []Progress {
	type counts struct{ total, done int }
	byProject := make(map[int64]counts, len(projects))
	for _, t := range tasks {
		c := byProject[t.ProjectID]
		c.total++
		if t.Status == models.StatusDone {
			c.done++
		}
		byProject[t.ProjectID] = c
	}

	out := make([]Progress, len(projects))
	for i, p := range projects {
		c := byProject[p.ID]
		out[i] = Progress{Project: p, Tasks: c.total, Done: c.done, Percent: CompletionPercent(c.done, c.total)}
	}
	return out
}

// Completion returns the percentage of tasks that are done
func Completion(tasks []models.Task) int {
	done := 0
	for _, t := range tasks {
		if t.Status == models.StatusDone {
			done++
		}
	}
	return CompletionPercent(done, len(tasks))
}
