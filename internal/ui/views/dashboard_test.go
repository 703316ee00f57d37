package views

import (
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/taskboard/internal/models"
)

func newDashboard(t *testing.T) (*env, *DashboardView, map[string]int64) {
	t.Helper()
	e := newEnv(t, manager())
	kenji := e.backend.AddUser(member())
	lena := e.backend.AddUser(models.User{Username: "lena", FullName: "Lena Park", Role: models.RoleUser})

	apollo := e.backend.AddProject(models.Project{Name: "Apollo", Status: models.ProjectActive, OwnerID: e.me.ID})
	gemini := e.backend.AddProject(models.Project{Name: "Gemini", Status: models.ProjectCompleted, OwnerID: e.me.ID})
	e.backend.AddProject(models.Project{Name: "Mercury", Status: models.ProjectPlanned, OwnerID: e.me.ID})

	e.backend.AddTask(models.Task{Title: "Build rocket", Status: models.StatusInProgress, Priority: models.PriorityHigh, ProjectID: apollo.ID, AssigneeID: kenji.ID, DueDate: day("2025-03-01")})
	e.backend.AddTask(models.Task{Title: "Test engines", Status: models.StatusDone, Priority: models.PriorityMedium, ProjectID: apollo.ID, AssigneeID: kenji.ID})
	e.backend.AddTask(models.Task{Title: "Write report", Status: models.StatusDone, Priority: models.PriorityLow, ProjectID: gemini.ID, AssigneeID: lena.ID})

	v := NewDashboardView(e.deps)
	v.Update(tea.WindowSizeMsg{Width: 120, Height: 50})
	pump(t, v, v.Init())
	require.True(t, v.loaded)
	return e, v, map[string]int64{"apollo": apollo.ID, "gemini": gemini.ID, "kenji": kenji.ID, "lena": lena.ID}
}

func rowNames(v *DashboardView) []string {
	var names []string
	for _, r := range v.rows {
		names = append(names, r.Project.Name)
	}
	return names
}

func TestDashboardSummary(t *testing.T) {
	_, v, ids := newDashboard(t)

	sum := v.summary
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 1, sum.InProgress)
	assert.Equal(t, 1, sum.Overdue, "the in-progress task was due before now")
	assert.Equal(t, 1, sum.ActiveProjects)
	assert.Equal(t, 1, sum.CompletedProjects)
	assert.Equal(t, ids["kenji"], sum.TopAssignee.ID)
	assert.Equal(t, 2, sum.TopAssignee.Count)

	view := v.View()
	assert.Contains(t, view, "Kenji Sato (2)")
	assert.Equal(t, []string{"Apollo", "Gemini", "Mercury"}, rowNames(v))
}

func TestDashboardFilterNarrowsProjects(t *testing.T) {
	_, v, ids := newDashboard(t)

	v.Update(runes("f"))
	require.NotNil(t, v.filterForm)
	assert.True(t, v.Capturing())
	v.filterForm.set("assignee", fmt.Sprint(ids["lena"]))
	v.Update(keySave)

	assert.Nil(t, v.filterForm)
	assert.Equal(t, []string{"Gemini"}, rowNames(v))
	assert.Equal(t, 100, v.rows[0].Percent)

	v.Update(runes("x"))
	assert.Equal(t, []string{"Apollo", "Gemini", "Mercury"}, rowNames(v))

	v.Update(runes("f"))
	v.filterForm.set("status", string(models.StatusInProgress))
	v.Update(keySave)
	assert.Equal(t, []string{"Apollo"}, rowNames(v))
	assert.Equal(t, 50, v.rows[0].Percent, "progress counts every task of the project")
}

func TestDashboardSearch(t *testing.T) {
	_, v, _ := newDashboard(t)

	v.Update(runes("/"))
	v.Update(runes("report"))
	assert.Equal(t, []string{"Gemini"}, rowNames(v))

	v.Update(keyEsc)
	assert.False(t, v.Capturing())

	v.Update(runes("/"))
	v.Update(runes("nothing matches this"))
	assert.Empty(t, v.rows)
	assert.Contains(t, v.View(), "No projects match")
}

func TestDashboardProjectDetail(t *testing.T) {
	_, v, ids := newDashboard(t)

	v.Update(keyEnter)
	require.NotNil(t, v.detail)
	assert.Equal(t, ids["apollo"], v.detail.Project.ID)

	view := v.View()
	assert.Contains(t, view, "Build rocket")
	assert.Contains(t, view, "Team load")
	assert.Contains(t, view, "Kenji Sato")

	v.Update(keyEsc)
	assert.Nil(t, v.detail)

	v.Update(keyDown)
	v.Update(keyDown)
	v.Update(keyEnter)
	require.NotNil(t, v.detail)
	assert.Equal(t, "Mercury", v.detail.Project.Name)
	assert.Contains(t, v.View(), "No tasks in this project")
}

func TestDashboardLoadFailureToasts(t *testing.T) {
	e := newEnv(t, manager())
	e.backend.Fail["GET /projects"] = 500

	v := NewDashboardView(e.deps)
	out := pump(t, v, v.Init())
	got := toasts(out)
	require.Len(t, got, 1)
	assert.True(t, got[0].Err)
	assert.Contains(t, got[0].Text, "Failed to load dashboard")
	assert.False(t, v.loaded)
}
