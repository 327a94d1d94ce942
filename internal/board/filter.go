package board

import (
	"fmt"
	"strings"
)

const (
	StatusCompleted  = "completed"
	StatusIncomplete = "incomplete"
	// Unassigned as an assignee filter matches cards without an assignee.
	Unassigned = "unassigned"
	// All is accepted for any filter and means "not set".
	All = "all"
)

type Filter struct {
	Priority   string `form:"priority" json:"priority,omitempty"`
	AssigneeID string `form:"assignee" json:"assignee,omitempty"`
	Status     string `form:"status" json:"status,omitempty"`
	SearchText string `form:"search" json:"search,omitempty"`
}

func set(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.EqualFold(v, All)
}

func (f Filter) IsZero() bool {
	return !set(f.Priority) && !set(f.AssigneeID) && !set(f.Status) && !set(f.SearchText)
}

// Validate rejects a status other than completed, incomplete or all.
func (f Filter) Validate() error {
	if !set(f.Status) {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(f.Status)) {
	case StatusCompleted, StatusIncomplete:
		return nil
	}
	return fmt.Errorf("unknown status %q", f.Status)
}

func (f Filter) Match(c Card) bool {
	if set(f.Priority) && !strings.EqualFold(string(c.Priority), strings.TrimSpace(f.Priority)) {
		return false
	}
	if set(f.AssigneeID) {
		want := strings.TrimSpace(f.AssigneeID)
		if strings.EqualFold(want, Unassigned) {
			if c.AssigneeID != nil {
				return false
			}
		} else if c.AssigneeID == nil || !strings.EqualFold(c.AssigneeID.String(), want) {
			return false
		}
	}
	if set(f.Status) {
		switch strings.ToLower(strings.TrimSpace(f.Status)) {
		case StatusCompleted:
			if !c.Completed {
				return false
			}
		case StatusIncomplete:
			if c.Completed {
				return false
			}
		}
	}
	if set(f.SearchText) {
		needle := strings.ToLower(strings.TrimSpace(f.SearchText))
		if !strings.Contains(strings.ToLower(c.Title), needle) {
			return false
		}
	}
	return true
}

// ApplyFilters returns a copy of b holding only the cards that match every
// set filter. Section structure, including empty sections, is preserved and
// b is left untouched.
func ApplyFilters(b Board, f Filter) Board {
	out := b
	out.Sections = make([]Section, len(b.Sections))
	for i, s := range b.Sections {
		cards := make([]Card, 0, len(s.Cards))
		for _, c := range s.Cards {
			if f.Match(c) {
				cards = append(cards, c.clone())
			}
		}
		out.Sections[i] = Section{ID: s.ID, Name: s.Name, Position: s.Position, Cards: cards}
	}
	return out
}

func (c Card) clone() Card {
	out := c
	if c.DueDate != nil {
		d := *c.DueDate
		out.DueDate = &d
	}
	if c.AssigneeID != nil {
		id := *c.AssigneeID
		out.AssigneeID = &id
	}
	if c.Assignee != nil {
		a := *c.Assignee
		out.Assignee = &a
	}
	if c.LinkedFrom != nil {
		p := *c.LinkedFrom
		out.LinkedFrom = &p
	}
	out.Tags = append(make([]TagRef, 0, len(c.Tags)), c.Tags...)
	return out
}

