// Package report computes project analytics and renders them as PDF.
package report

import (
	"sort"
	"time"

	"teamflow/backend/internal/models"

	"github.com/gofrs/uuid"
)

const unassignedLabel = "Unassigned"

// Bucket counts tasks sharing one attribute value.
type Bucket struct {
	Name      string `json:"name"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
}

type Report struct {
	ProjectID      uuid.UUID `json:"project_id"`
	ProjectName    string    `json:"project_name"`
	GeneratedAt    time.Time `json:"generated_at"`
	Total          int       `json:"total"`
	Completed      int       `json:"completed"`
	Overdue        int       `json:"overdue"`
	CompletionRate float64   `json:"completion_rate"`
	BySection      []Bucket  `json:"by_section"`
	ByPriority     []Bucket  `json:"by_priority"`
	ByAssignee     []Bucket  `json:"by_assignee"`
}

var priorityOrder = []models.Priority{
	models.PriorityUrgent, models.PriorityHigh, models.PriorityMedium, models.PriorityLow,
}

// Build summarises the project's native tasks. Tasks need Assignee loaded
// for the per-assignee breakdown to carry names.
func Build(project models.Project, sections []models.Section, tasks []models.Task, now time.Time) Report {
	r := Report{
		ProjectID:   project.ID,
		ProjectName: project.Name,
		GeneratedAt: now.UTC(),
		BySection:   make([]Bucket, 0, len(sections)),
		ByPriority:  make([]Bucket, 0, len(priorityOrder)),
		ByAssignee:  []Bucket{},
	}

	ordered := append([]models.Section(nil), sections...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })
	sectionIdx := make(map[uuid.UUID]int, len(ordered))
	for i, s := range ordered {
		sectionIdx[s.ID] = i
		r.BySection = append(r.BySection, Bucket{Name: s.Name})
	}

	priorityIdx := make(map[models.Priority]int, len(priorityOrder))
	for i, p := range priorityOrder {
		priorityIdx[p] = i
		r.ByPriority = append(r.ByPriority, Bucket{Name: string(p)})
	}

	assignees := map[string]*Bucket{}
	var assigneeNames []string

	for _, t := range tasks {
		r.Total++
		if t.Completed {
			r.Completed++
		}
		if t.Overdue(now) {
			r.Overdue++
		}
		if i, ok := sectionIdx[t.SectionID]; ok {
			count(&r.BySection[i], t)
		}
		if i, ok := priorityIdx[t.Priority]; ok {
			count(&r.ByPriority[i], t)
		}

		name := unassignedLabel
		if t.Assignee != nil {
			name = t.Assignee.Name
		}
		b, ok := assignees[name]
		if !ok {
			b = &Bucket{Name: name}
			assignees[name] = b
			assigneeNames = append(assigneeNames, name)
		}
		count(b, t)
	}

	for _, name := range assigneeNames {
		r.ByAssignee = append(r.ByAssignee, *assignees[name])
	}
	sort.SliceStable(r.ByAssignee, func(i, j int) bool {
		if r.ByAssignee[i].Total != r.ByAssignee[j].Total {
			return r.ByAssignee[i].Total > r.ByAssignee[j].Total
		}
		return r.ByAssignee[i].Name < r.ByAssignee[j].Name
	})

	if r.Total > 0 {
		r.CompletionRate = float64(r.Completed) / float64(r.Total)
	}
	return r
}

func count(b *Bucket, t models.Task) {
	b.Total++
	if t.Completed {
		b.Completed++
	}
}
