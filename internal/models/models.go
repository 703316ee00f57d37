package models

import (
	"strings"
	"time"
)

// TaskStatus is the kanban column a task sits in
type TaskStatus string

const (
	StatusTodo       TaskStatus = "TODO"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusDone       TaskStatus = "DONE"
)

// TaskStatuses lists task statuses in board order
var TaskStatuses = []TaskStatus{StatusTodo, StatusInProgress, StatusDone}

// Label returns the status with underscores replaced, e.g. "IN PROGRESS"
func (s TaskStatus) Label() string { return strings.ReplaceAll(string(s), "_", " ") }

// Priority of a task
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// ProjectStatus is the kanban column a project sits in
type ProjectStatus string

const (
	ProjectPlanned   ProjectStatus = "PLANNED"
	ProjectActive    ProjectStatus = "ACTIVE"
	ProjectCompleted ProjectStatus = "COMPLETED"
	ProjectArchived  ProjectStatus = "ARCHIVED"
)

var ProjectStatuses = []ProjectStatus{ProjectPlanned, ProjectActive, ProjectCompleted, ProjectArchived}

func (s ProjectStatus) Label() string { return string(s) }

// Role gates which screens a user may reach. Values match the backend's
// wire format.
type Role string

const (
	RoleAdmin   Role = "ROLE_ADMIN"
	RoleManager Role = "ROLE_MANAGER"
	RoleUser    Role = "ROLE_USER"
)

var Roles = []Role{RoleAdmin, RoleManager, RoleUser}

// ParseRole accepts "ADMIN", "ROLE_ADMIN" and the double-prefixed
// "ROLE_ROLE_ADMIN" some backends emit. Unknown values return "".
func ParseRole(s string) Role {
	s = strings.ToUpper(strings.TrimSpace(s))
	for strings.HasPrefix(s, "ROLE_") {
		s = strings.TrimPrefix(s, "ROLE_")
	}
	switch r := Role("ROLE_" + s); r {
	case RoleAdmin, RoleManager, RoleUser:
		return r
	}
	return ""
}

// Label returns the role without its prefix, e.g. "MANAGER"
func (r Role) Label() string { return strings.TrimPrefix(string(r), "ROLE_") }

// Task represents a single task
type Task struct {
	ID          int64      `json:"id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	ProjectID   int64      `json:"projectId"`
	AssigneeID  int64      `json:"assigneeId"`
	ReporterID  int64      `json:"reporterId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt,omitzero"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Vital       bool       `json:"vital"`
}

// Overdue reports whether the task is past due and not done
func (t Task) Overdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && t.Status != StatusDone
}

// Project represents a project
type Project struct {
	ID            int64         `json:"id,omitempty"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Status        ProjectStatus `json:"status"`
	OwnerID       int64         `json:"ownerId"`
	StartDate     *time.Time    `json:"startDate,omitempty"`
	EndDate       *time.Time    `json:"endDate,omitempty"`
	TeamMemberIDs []int64       `json:"teamMemberIds"`
}

// User represents an account. Password is write-only: an empty value is
// omitted from request bodies so the backend keeps the previous one.
type User struct {
	ID        int64      `json:"id,omitempty"`
	Username  string     `json:"username"`
	FullName  string     `json:"fullName"`
	Email     string     `json:"email"`
	Password  string     `json:"password,omitempty"`
	Role      Role       `json:"role"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// Comment represents a comment on a task
type Comment struct {
	ID        int64     `json:"id,omitempty"`
	TaskID    int64     `json:"taskId"`
	AuthorID  int64     `json:"authorId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// ProjectNames indexes project names by id
func ProjectNames(projects []Project) map[int64]string {
	names := make(map[int64]string, len(projects))
	for _, p := range projects {
		names[p.ID] = p.Name
	}
	return names
}

// UserNames indexes user full names by id
func UserNames(users []User) map[int64]string {
	names := make(map[int64]string, len(users))
	for _, u := range users {
		names[u.ID] = u.FullName
	}
	return names
}
