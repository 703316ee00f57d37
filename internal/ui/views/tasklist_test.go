package views

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/taskboard/internal/models"
)

func seedPersonalTasks(t *testing.T, e *env) (todo, done models.Task) {
	t.Helper()
	other := e.backend.AddUser(models.User{Username: "lena", FullName: "Lena Park", Role: models.RoleUser})
	apollo := e.backend.AddProject(models.Project{Name: "Apollo", Status: models.ProjectActive})
	gemini := e.backend.AddProject(models.Project{Name: "Gemini", Status: models.ProjectActive})
	e.backend.AddProject(models.Project{Name: "Mercury", Status: models.ProjectActive})

	todo = e.backend.AddTask(models.Task{Title: "Write tests", Status: models.StatusTodo, Priority: models.PriorityHigh, ProjectID: apollo.ID, AssigneeID: e.me.ID, DueDate: day("2025-03-12")})
	done = e.backend.AddTask(models.Task{Title: "Fix login", Status: models.StatusDone, Priority: models.PriorityLow, ProjectID: gemini.ID, AssigneeID: e.me.ID, Vital: true})
	e.backend.AddTask(models.Task{Title: "Not mine", Status: models.StatusTodo, Priority: models.PriorityLow, ProjectID: apollo.ID, AssigneeID: other.ID, Vital: true})
	return todo, done
}

func TestMyDashboard(t *testing.T) {
	e := newEnv(t, member())
	todo, _ := seedPersonalTasks(t, e)

	v := NewMyDashboardView(e.deps)
	v.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	pump(t, v, v.Init())
	require.True(t, v.loaded)
	require.Len(t, v.tasks.Items(), 2)

	view := v.View()
	assert.Contains(t, view, "My Dashboard")
	assert.Contains(t, view, "50%")
	assert.Contains(t, view, "Apollo, Gemini")
	assert.NotContains(t, view, "Mercury")
	assert.NotContains(t, view, "Not mine")

	out := send(t, v, runes("s"))
	assert.Equal(t, []Toast{{Text: `Task "Write tests" moved from TODO to IN PROGRESS`}}, toasts(out))
	stored, _ := e.backend.Task(todo.ID)
	assert.Equal(t, models.StatusInProgress, stored.Status)
}

func TestMyDashboardStatusWraps(t *testing.T) {
	e := newEnv(t, member())
	_, done := seedPersonalTasks(t, e)

	v := NewMyDashboardView(e.deps)
	pump(t, v, v.Init())

	v.Update(keyDown)
	require.Equal(t, 1, v.cursor)
	send(t, v, runes("s"))

	stored, _ := e.backend.Task(done.ID)
	assert.Equal(t, models.StatusTodo, stored.Status, "the next status after DONE is TODO")

	_, cmd := v.Update(runes("H"))
	assert.Nil(t, cmd, "there is nothing before TODO")
}

func TestMyDashboardFilterByDueDay(t *testing.T) {
	e := newEnv(t, member())
	seedPersonalTasks(t, e)

	v := NewMyDashboardView(e.deps)
	pump(t, v, v.Init())

	v.Update(runes("f"))
	require.NotNil(t, v.filterForm)
	v.filterForm.set("dueOn", "2025-03-12")
	v.Update(keySave)
	require.Nil(t, v.filterForm)

	visible := v.visible()
	require.Len(t, visible, 1)
	assert.Equal(t, "Write tests", visible[0].Title)

	v.Update(runes("x"))
	assert.Len(t, v.visible(), 2)
}

func TestVitalView(t *testing.T) {
	e := newEnv(t, member())
	seedPersonalTasks(t, e)

	v := NewVitalView(e.deps)
	assert.Equal(t, "Vital", v.Title())
	pump(t, v, v.Init())

	assert.Equal(t, 1, e.backend.Count("GET", "/tasks/vital"))
	for _, task := range v.tasks.Items() {
		assert.True(t, task.Vital)
	}
}
