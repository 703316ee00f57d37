package views

import (
	"fmt"
	"net/http"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/taskboard/internal/models"
)

type taskFixture struct {
	*env
	worker  models.User
	project models.Project
	task    models.Task
	view    *TasksView
}

func newTaskFixture(t *testing.T) *taskFixture {
	t.Helper()
	e := newEnv(t, manager())
	f := &taskFixture{env: e}
	f.worker = e.backend.AddUser(member())
	f.project = e.backend.AddProject(models.Project{Name: "Apollo", Status: models.ProjectActive, OwnerID: e.me.ID})
	f.task = e.backend.AddTask(models.Task{
		Title:      "Ship it",
		Status:     models.StatusTodo,
		Priority:   models.PriorityHigh,
		ProjectID:  f.project.ID,
		AssigneeID: f.worker.ID,
	})

	f.view = NewTasksView(e.deps)
	f.view.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	pump(t, f.view, f.view.Init())
	require.True(t, f.view.loaded)
	return f
}

func (f *taskFixture) item(id int64) models.Task {
	for _, t := range f.view.board.Items() {
		if t.ID == id {
			return t
		}
	}
	return models.Task{}
}

func TestTaskMoveIsOptimistic(t *testing.T) {
	f := newTaskFixture(t)

	_, cmd := f.view.Update(runes("L"))
	require.NotNil(t, cmd)
	assert.Equal(t, models.StatusInProgress, f.item(f.task.ID).Status, "the card moves before the request completes")
	assert.True(t, f.view.board.mover.Pending(f.task.ID))
	assert.Contains(t, f.view.View(), "saving…")

	out := pump(t, f.view, cmd)
	assert.Equal(t, []Toast{{Text: `Task "Ship it" moved from TODO to IN PROGRESS`}}, toasts(out))
	assert.False(t, f.view.board.mover.Pending(f.task.ID))

	stored, ok := f.backend.Task(f.task.ID)
	require.True(t, ok)
	assert.Equal(t, models.StatusInProgress, stored.Status)
	assert.Equal(t, 1, f.backend.Count(http.MethodPatch, fmt.Sprintf("/tasks/%d/status", f.task.ID)))
}

func TestTaskMoveRollsBackOnFailure(t *testing.T) {
	f := newTaskFixture(t)
	f.backend.Fail["PATCH /tasks/{id}/status"] = http.StatusInternalServerError

	out := send(t, f.view, runes("L"))

	got := toasts(out)
	require.Len(t, got, 1)
	assert.True(t, got[0].Err)
	assert.Contains(t, got[0].Text, `Failed to move Task "Ship it" to IN PROGRESS`)
	assert.Equal(t, models.StatusTodo, f.item(f.task.ID).Status)
	assert.False(t, hasUnauthorized(out))

	stored, _ := f.backend.Task(f.task.ID)
	assert.Equal(t, models.StatusTodo, stored.Status)
}

func TestTaskMoveToDoneRollsBackCompletion(t *testing.T) {
	f := newTaskFixture(t)
	send(t, f.view, runes("L"))
	require.Equal(t, models.StatusInProgress, f.item(f.task.ID).Status)

	f.backend.Fail["PATCH /tasks/{id}/status"] = http.StatusBadGateway
	_, cmd := f.view.Update(runes("L"))
	assert.NotNil(t, f.item(f.task.ID).CompletedAt, "moving to DONE stamps a completion time")

	pump(t, f.view, cmd)
	got := f.item(f.task.ID)
	assert.Equal(t, models.StatusInProgress, got.Status)
	assert.Nil(t, got.CompletedAt)
}

func TestTaskMoveUnauthorizedSignsOut(t *testing.T) {
	f := newTaskFixture(t)
	f.backend.Fail["PATCH /tasks/{id}/status"] = http.StatusUnauthorized

	out := send(t, f.view, runes("L"))
	assert.True(t, hasUnauthorized(out))
	assert.Equal(t, models.StatusTodo, f.item(f.task.ID).Status)
}

func TestStaleMoveResultIsIgnored(t *testing.T) {
	f := newTaskFixture(t)

	_, first := f.view.Update(runes("L"))
	_, second := f.view.Update(runes("L"))
	require.Equal(t, models.StatusDone, f.item(f.task.ID).Status)

	firstMsgs := execCmd(first)
	secondMsgs := execCmd(second)

	out := send(t, f.view, secondMsgs...)
	assert.Equal(t, []Toast{{Text: `Task "Ship it" moved from IN PROGRESS to DONE`}}, toasts(out))

	out = send(t, f.view, firstMsgs...)
	assert.Empty(t, out, "a superseded result produces no notice")
	assert.Equal(t, models.StatusDone, f.item(f.task.ID).Status)
	assert.False(t, f.view.board.mover.Pending(f.task.ID))
}

func TestTaskMoveAtLastColumnDoesNothing(t *testing.T) {
	f := newTaskFixture(t)
	_, cmd := f.view.Update(runes("H"))
	assert.Nil(t, cmd)
	assert.Equal(t, models.StatusTodo, f.item(f.task.ID).Status)
}

func TestResultsOfAnotherScreenAreIgnored(t *testing.T) {
	f := newTaskFixture(t)
	other := NewTasksView(f.deps)

	for _, msg := range execCmd(f.view.load()) {
		other.Update(msg)
	}
	assert.False(t, other.loaded)
	assert.Empty(t, other.board.Items())
}

func TestCreateTask(t *testing.T) {
	f := newTaskFixture(t)

	f.view.Update(runes("n"))
	require.NotNil(t, f.view.form)
	assert.True(t, f.view.Capturing())

	f.view.form.set("title", "Write docs")
	f.view.form.set("description", "Cover the CLI flags")
	f.view.form.set("project", fmt.Sprint(f.project.ID))
	f.view.form.set("assignee", fmt.Sprint(f.worker.ID))
	f.view.form.set("priority", string(models.PriorityLow))
	f.view.form.set("dueDate", "2025-04-01")

	out := send(t, f.view, keySave)
	assert.Equal(t, []Toast{{Text: `Task "Write docs" saved`}}, toasts(out))
	assert.Nil(t, f.view.form)
	require.Len(t, f.view.board.Items(), 2, "the board reloads after saving")
	assert.Equal(t, 1, f.backend.Count(http.MethodPost, "/tasks"))

	var created models.Task
	for _, task := range f.view.board.Items() {
		if task.Title == "Write docs" {
			created = task
		}
	}
	assert.Equal(t, models.StatusTodo, created.Status)
	assert.Equal(t, models.PriorityLow, created.Priority)
	assert.Equal(t, f.worker.ID, created.AssigneeID)
	require.NotNil(t, created.DueDate)
	assert.Equal(t, "2025-04-01", formatDay(created.DueDate))
}

func TestCreateTaskShowsFieldErrors(t *testing.T) {
	f := newTaskFixture(t)
	f.view.Update(runes("n"))
	f.view.form.set("dueDate", "next week")

	out := send(t, f.view, keySave)
	assert.Empty(t, out)
	require.NotNil(t, f.view.form)
	for _, field := range []string{"title", "project", "assignee", "dueDate"} {
		assert.Contains(t, f.view.form.errs, field)
	}
	assert.Equal(t, 0, f.view.form.focus, "focus jumps to the first bad field")
	assert.Zero(t, f.backend.Count(http.MethodPost, "/tasks"))

	f.view.Update(keyEsc)
	assert.Nil(t, f.view.form)
}

func TestEditTaskToDoneSetsCompletion(t *testing.T) {
	f := newTaskFixture(t)
	f.view.Update(runes("e"))
	require.NotNil(t, f.view.form)
	assert.Equal(t, "Ship it", f.view.form.value("title"))

	f.view.form.set("status", string(models.StatusDone))
	send(t, f.view, keySave)

	stored, _ := f.backend.Task(f.task.ID)
	assert.Equal(t, models.StatusDone, stored.Status)
	require.NotNil(t, stored.CompletedAt)
	assert.True(t, stored.CompletedAt.Equal(testNow))
}

func TestDeleteTaskAfterConfirm(t *testing.T) {
	f := newTaskFixture(t)

	f.view.Update(runes("d"))
	require.True(t, f.view.confirmingDelete)
	assert.Contains(t, f.view.View(), "Delete Task?")

	f.view.Update(runes("n"))
	assert.False(t, f.view.confirmingDelete)
	_, ok := f.backend.Task(f.task.ID)
	assert.True(t, ok)

	f.view.Update(runes("d"))
	out := send(t, f.view, runes("y"))
	assert.Equal(t, []Toast{{Text: "Task deleted"}}, toasts(out))
	_, ok = f.backend.Task(f.task.ID)
	assert.False(t, ok)
	assert.Empty(t, f.view.board.Items())
}

func TestTaskComments(t *testing.T) {
	f := newTaskFixture(t)
	f.backend.AddComment(models.Comment{TaskID: f.task.ID, AuthorID: f.worker.ID, Content: "On it"})

	send(t, f.view, keyEnter)
	require.Equal(t, f.task.ID, f.view.viewing)
	require.Len(t, f.view.comments, 1)
	assert.Contains(t, f.view.View(), "On it")

	f.view.Update(runes("c"))
	require.True(t, f.view.commentInputFocused)
	assert.True(t, f.view.Capturing())
	f.view.Update(runes("Looks good"))
	send(t, f.view, keySave)

	assert.False(t, f.view.commentInputFocused)
	require.Len(t, f.view.comments, 2)
	added := f.view.comments[1]
	assert.Equal(t, "Looks good", added.Content)
	assert.Equal(t, f.me.ID, added.AuthorID)

	f.view.Update(keyDown)
	f.view.Update(runes("d"))
	require.True(t, f.view.confirmingDelete)
	send(t, f.view, runes("y"))
	require.Len(t, f.view.comments, 1)
	assert.Equal(t, "On it", f.view.comments[0].Content)

	f.view.Update(keyEsc)
	assert.Zero(t, f.view.viewing)
}

func TestTaskDetailCyclesStatus(t *testing.T) {
	f := newTaskFixture(t)
	send(t, f.view, keyEnter)

	out := send(t, f.view, runes("s"))
	assert.Equal(t, []Toast{{Text: `Task "Ship it" moved from TODO to IN PROGRESS`}}, toasts(out))
	assert.Equal(t, models.StatusInProgress, f.item(f.task.ID).Status)
}

func TestTaskSearchAndFilter(t *testing.T) {
	f := newTaskFixture(t)
	f.backend.AddTask(models.Task{Title: "Plan sprint", Status: models.StatusDone, Priority: models.PriorityLow, ProjectID: f.project.ID, AssigneeID: f.worker.ID})
	send(t, f.view, runes("r"))
	require.Len(t, f.view.board.Items(), 2)

	visible := func() int {
		n := 0
		for _, col := range f.view.board.columns() {
			n += len(col.Items)
		}
		return n
	}
	assert.Equal(t, 2, visible())

	f.view.Update(runes("/"))
	assert.True(t, f.view.Capturing())
	f.view.Update(runes("plan"))
	assert.Equal(t, 1, visible())
	f.view.Update(keyEsc)
	assert.False(t, f.view.Capturing())

	f.view.Update(runes("x"))
	assert.Equal(t, 2, visible())

	f.view.Update(runes("f"))
	require.NotNil(t, f.view.filterForm)
	f.view.filterForm.set("priority", string(models.PriorityHigh))
	f.view.Update(keySave)
	assert.Nil(t, f.view.filterForm)
	assert.Equal(t, 1, visible())
	assert.Equal(t, "Ship it", f.view.board.Selected().Title)

	f.view.Update(runes("f"))
	f.view.filterForm.set("dueBy", "tomorrow")
	f.view.Update(keySave)
	require.NotNil(t, f.view.filterForm, "a bad date keeps the form open")
	assert.Contains(t, f.view.filterForm.errs, "dueBy")
}

func TestMyTasksIsReadOnly(t *testing.T) {
	e := newEnv(t, member())
	other := e.backend.AddUser(models.User{Username: "lena", FullName: "Lena", Role: models.RoleUser})
	p := e.backend.AddProject(models.Project{Name: "Apollo", Status: models.ProjectActive})
	mine := e.backend.AddTask(models.Task{Title: "Mine", Status: models.StatusTodo, Priority: models.PriorityLow, ProjectID: p.ID, AssigneeID: e.me.ID})
	e.backend.AddTask(models.Task{Title: "Theirs", Status: models.StatusTodo, Priority: models.PriorityLow, ProjectID: p.ID, AssigneeID: other.ID})

	v := NewMyTasksView(e.deps)
	pump(t, v, v.Init())
	require.Len(t, v.board.Items(), 1)
	assert.Equal(t, mine.ID, v.board.Items()[0].ID)
	assert.Equal(t, "My Tasks", v.Title())

	v.Update(runes("n"))
	assert.Nil(t, v.form)
	v.Update(runes("d"))
	assert.False(t, v.confirmingDelete)

	send(t, v, runes("L"))
	stored, _ := e.backend.Task(mine.ID)
	assert.Equal(t, models.StatusInProgress, stored.Status)
}
