package report

import (
	"bytes"
	"testing"
	"time"

	"teamflow/backend/internal/models"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	project := models.Project{ID: uuid.Must(uuid.NewV4()), Name: "Launch"}
	todo := models.Section{ID: uuid.Must(uuid.NewV4()), Name: "To Do", Position: 0}
	done := models.Section{ID: uuid.Must(uuid.NewV4()), Name: "Done", Position: 1}
	ada := &models.User{Name: "Ada"}

	tasks := []models.Task{
		{SectionID: todo.ID, Priority: models.PriorityHigh, DueDate: &yesterday, Assignee: ada},
		{SectionID: todo.ID, Priority: models.PriorityHigh, DueDate: &tomorrow, Assignee: ada},
		{SectionID: done.ID, Priority: models.PriorityLow, Completed: true, DueDate: &yesterday},
	}

	r := Build(project, []models.Section{done, todo}, tasks, now)

	assert.Equal(t, 3, r.Total)
	assert.Equal(t, 1, r.Completed)
	assert.Equal(t, 1, r.Overdue, "completed tasks are never overdue")
	assert.InDelta(t, 1.0/3.0, r.CompletionRate, 0.0001)

	assert.Equal(t, []Bucket{{Name: "To Do", Total: 2}, {Name: "Done", Total: 1, Completed: 1}}, r.BySection)
	assert.Equal(t, []Bucket{
		{Name: "urgent"},
		{Name: "high", Total: 2},
		{Name: "medium"},
		{Name: "low", Total: 1, Completed: 1},
	}, r.ByPriority)
	assert.Equal(t, []Bucket{{Name: "Ada", Total: 2}, {Name: "Unassigned", Total: 1, Completed: 1}}, r.ByAssignee)
}

func TestBuild_EmptyProject(t *testing.T) {
	r := Build(models.Project{Name: "Empty"}, nil, nil, time.Now())

	assert.Zero(t, r.Total)
	assert.Zero(t, r.CompletionRate)
	assert.Empty(t, r.ByAssignee)
	assert.Len(t, r.ByPriority, 4)
}

func TestRenderPDF(t *testing.T) {
	r := Build(models.Project{Name: "Café roadmap"}, []models.Section{{Name: "To Do"}}, nil, time.Now())

	var buf bytes.Buffer
	require.NoError(t, RenderPDF(&buf, r))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}
