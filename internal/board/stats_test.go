package board

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/taskboard/internal/models"
)

func TestCompletionPercent(t *testing.T) {
	assert.Equal(t, 0, CompletionPercent(0, 0))
	assert.Equal(t, 67, CompletionPercent(2, 3))
	assert.Equal(t, 33, CompletionPercent(1, 3))
	assert.Equal(t, 100, CompletionPercent(5, 5))

	for total := 0; total <= 50; total++ {
		for done := 0; done <= total; done++ {
			p := CompletionPercent(done, total)
			assert.GreaterOrEqual(t, p, 0)
			assert.LessOrEqual(t, p, 100)
		}
	}
}

func TestProjectProgress(t *testing.T) {
	projects := []models.Project{{ID: 1, Name: "Alpha"}, {ID: 2, Name: "Empty"}}
	tasks := []models.Task{
		{ProjectID: 1, Status: models.StatusDone},
		{ProjectID: 1, Status: models.StatusDone},
		{ProjectID: 1, Status: models.StatusTodo},
	}
	progress := ProjectProgress(projects, tasks)
	require.Len(t, progress, 2)
	assert.Equal(t, 3, progress[0].Tasks)
	assert.Equal(t, 2, progress[0].Done)
	assert.Equal(t, 67, progress[0].Percent)
	assert.Equal(t, 0, progress[1].Percent)

	assert.Equal(t, 67, Completion(tasks))
}

func TestTopAssignee(t *testing.T) {
	users := []models.User{{ID: 1, FullName: "Amara"}, {ID: 2, FullName: "Kwame"}}

	top := TopAssignee([]models.Task{{AssigneeID: 1}, {AssigneeID: 2}, {AssigneeID: 1}}, users)
	assert.Equal(t, "Amara", top.Name)
	assert.Equal(t, 2, top.Count)

	// first seen wins a tie
	top = TopAssignee([]models.Task{{AssigneeID: 2}, {AssigneeID: 1}, {AssigneeID: 1}, {AssigneeID: 2}}, users)
	assert.Equal(t, "Kwame", top.Name)

	assert.Equal(t, NoAssignee, TopAssignee([]models.Task{{Title: "unassigned"}}, users))
	assert.Equal(t, 0, TopAssignee(nil, users).Count)

	top = TopAssignee([]models.Task{{AssigneeID: 9}}, users)
	assert.Equal(t, "Unknown User", top.Name)
	assert.Equal(t, 1, top.Count)
}

func TestMemberLoadOrder(t *testing.T) {
	users := []models.User{{ID: 1, FullName: "Amara"}, {ID: 2, FullName: "Kwame"}}
	load := MemberLoad([]models.Task{{AssigneeID: 2}, {AssigneeID: 1}, {AssigneeID: 2}, {}}, users)
	assert.Equal(t, []Assignee{{ID: 2, Name: "Kwame", Count: 2}, {ID: 1, Name: "Amara", Count: 1}}, load)
}

func TestSummarize(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-48 * time.Hour)
	future := now.Add(48 * time.Hour)

	tasks := []models.Task{
		{Status: models.StatusTodo, DueDate: &past, AssigneeID: 1},
		{Status: models.StatusDone, DueDate: &past, AssigneeID: 1},
		{Status: models.StatusInProgress, DueDate: &future},
		{Status: models.StatusInProgress},
	}
	projects := []models.Project{
		{Status: models.ProjectActive},
		{Status: models.ProjectActive},
		{Status: models.ProjectCompleted},
		{Status: models.ProjectArchived},
	}
	s := Summarize(tasks, projects, []models.User{{ID: 1, FullName: "Amara"}}, now)

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.InProgress)
	assert.Equal(t, 1, s.ByStatus[models.StatusTodo])
	assert.Equal(t, 1, s.Overdue)
	assert.Equal(t, 2, s.ActiveProjects)
	assert.Equal(t, 1, s.CompletedProjects)
	assert.Equal(t, Assignee{ID: 1, Name: "Amara", Count: 2}, s.TopAssignee)
}
