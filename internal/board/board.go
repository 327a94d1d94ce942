// Package board builds the read model of a project: its sections with the
// native tasks and the tasks linked in from other projects.
package board

import (
	"sort"
	"time"

	"teamflow/backend/internal/models"

	"github.com/gofrs/uuid"
)

type UserRef struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Avatar string    `json:"avatar,omitempty"`
}

type ProjectRef struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Color string    `json:"color"`
}

type TagRef struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Color string    `json:"color"`
}

// Counts summarises a task's children for card badges.
type Counts struct {
	Subtasks          int `json:"subtasks"`
	SubtasksCompleted int `json:"subtasks_completed"`
	Comments          int `json:"comments"`
	Attachments       int `json:"attachments"`
}

type Card struct {
	ID          uuid.UUID       `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Priority    models.Priority `json:"priority"`
	Completed   bool            `json:"completed"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
	Position    int             `json:"position"`
	SectionID   uuid.UUID       `json:"section_id"`
	ProjectID   uuid.UUID       `json:"project_id"`
	AssigneeID  *uuid.UUID      `json:"assignee_id,omitempty"`
	Assignee    *UserRef        `json:"assignee,omitempty"`
	CreatorID   uuid.UUID       `json:"creator_id"`
	CreatedAt   time.Time       `json:"created_at"`
	Tags        []TagRef        `json:"tags"`
	Counts      Counts          `json:"counts"`

	// Linked cards render in this board through a TaskProject row;
	// LinkedFrom is the task's origin project.
	Linked     bool        `json:"linked"`
	LinkedFrom *ProjectRef `json:"linked_from,omitempty"`
}

type Section struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Position int       `json:"position"`
	Cards    []Card    `json:"cards"`
}

type Board struct {
	ProjectID   uuid.UUID `json:"project_id"`
	TeamID      uuid.UUID `json:"team_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color"`
	Sections    []Section `json:"sections"`
}

// TaskCount is the number of cards across all sections.
func (b Board) TaskCount() int {
	n := 0
	for _, s := range b.Sections {
		n += len(s.Cards)
	}
	return n
}

// Input is everything Compose needs, loaded by the caller.
type Input struct {
	Project models.Project
	// Sections of Project in any order.
	Sections []models.Section
	// Native tasks whose origin is Project, with Assignee and Tags loaded.
	Native []models.Task
	// Links targeting Project, with Task (and its Assignee, Tags, Project) loaded.
	Links  []models.TaskProject
	Counts map[uuid.UUID]Counts
}

// Compose orders sections by position, places native tasks by position
// (creation time breaks ties) and appends each linked task to the section
// its link targets, in link creation order.
func Compose(in Input) Board {
	b := Board{
		ProjectID:   in.Project.ID,
		TeamID:      in.Project.TeamID,
		Name:        in.Project.Name,
		Description: in.Project.Description,
		Color:       in.Project.Color,
		Sections:    make([]Section, 0, len(in.Sections)),
	}

	sections := append([]models.Section(nil), in.Sections...)
	sort.SliceStable(sections, func(i, j int) bool {
		if sections[i].Position != sections[j].Position {
			return sections[i].Position < sections[j].Position
		}
		return sections[i].CreatedAt.Before(sections[j].CreatedAt)
	})

	index := make(map[uuid.UUID]int, len(sections))
	for i, s := range sections {
		index[s.ID] = i
		b.Sections = append(b.Sections, Section{ID: s.ID, Name: s.Name, Position: s.Position, Cards: []Card{}})
	}

	native := append([]models.Task(nil), in.Native...)
	sort.SliceStable(native, func(i, j int) bool {
		if native[i].Position != native[j].Position {
			return native[i].Position < native[j].Position
		}
		return native[i].CreatedAt.Before(native[j].CreatedAt)
	})
	for _, t := range native {
		i, ok := index[t.SectionID]
		if !ok {
			continue
		}
		b.Sections[i].Cards = append(b.Sections[i].Cards, newCard(t, in.Counts[t.ID]))
	}

	links := append([]models.TaskProject(nil), in.Links...)
	sort.SliceStable(links, func(i, j int) bool {
		return links[i].CreatedAt.Before(links[j].CreatedAt)
	})
	for _, l := range links {
		i, ok := index[l.SectionID]
		if !ok || l.Task == nil || l.Task.ProjectID == in.Project.ID {
			continue
		}
		card := newCard(*l.Task, in.Counts[l.TaskID])
		card.Linked = true
		card.LinkedFrom = &ProjectRef{ID: l.Task.ProjectID}
		if l.Task.Project != nil {
			card.LinkedFrom.Name = l.Task.Project.Name
			card.LinkedFrom.Color = l.Task.Project.Color
		}
		b.Sections[i].Cards = append(b.Sections[i].Cards, card)
	}

	return b
}

func newCard(t models.Task, counts Counts) Card {
	c := Card{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		Completed:   t.Completed,
		DueDate:     t.DueDate,
		Position:    t.Position,
		SectionID:   t.SectionID,
		ProjectID:   t.ProjectID,
		AssigneeID:  t.AssigneeID,
		CreatorID:   t.CreatorID,
		CreatedAt:   t.CreatedAt,
		Tags:        make([]TagRef, 0, len(t.Tags)),
		Counts:      counts,
	}
	if t.Assignee != nil {
		c.Assignee = &UserRef{ID: t.Assignee.ID, Name: t.Assignee.Name, Avatar: t.Assignee.Avatar}
	}
	for _, tag := range t.Tags {
		c.Tags = append(c.Tags, TagRef{ID: tag.ID, Name: tag.Name, Color: tag.Color})
	}
	return c
}
