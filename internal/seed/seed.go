// Package seed loads demo fixtures from YAML and applies them through the
// services, so seeded data passes the same validation and fan-out as data
// created over HTTP.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"time"

	"teamflow/backend/internal/apperr"
	"teamflow/backend/internal/logging"
	"teamflow/backend/internal/models"
	"teamflow/backend/internal/services"

	"github.com/gofrs/uuid"
	"gopkg.in/yaml.v3"
)

//go:embed demo.yaml
var demoFixtures []byte

// ErrAlreadySeeded is returned when the first fixture user already exists.
var ErrAlreadySeeded = errors.New("seed: database already contains fixture users")

type Fixtures struct {
	Users []User `yaml:"users"`
	Tags  []Tag  `yaml:"tags"`
	Teams []Team `yaml:"teams"`
	Goals []Goal `yaml:"goals"`
}

type User struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type Tag struct {
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
}

type Member struct {
	Email string          `yaml:"email"`
	Role  models.TeamRole `yaml:"role"`
}

type Team struct {
	Name     string    `yaml:"name"`
	Owner    string    `yaml:"owner"`
	Members  []Member  `yaml:"members"`
	Projects []Project `yaml:"projects"`
}

type Project struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Color       string `yaml:"color"`
	// Sections replaces the default sections when set.
	Sections []string `yaml:"sections"`
	Tasks    []Task   `yaml:"tasks"`
}

type Comment struct {
	Author  string `yaml:"author"`
	Content string `yaml:"content"`
}

type Link struct {
	Project string `yaml:"project"`
	Section string `yaml:"section"`
}

type Task struct {
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	Section     string    `yaml:"section"`
	Assignee    string    `yaml:"assignee"`
	Priority    string    `yaml:"priority"`
	DueInDays   *int      `yaml:"due_in_days"`
	Completed   bool      `yaml:"completed"`
	Tags        []string  `yaml:"tags"`
	Comments    []Comment `yaml:"comments"`
	Links       []Link    `yaml:"links"`
}

type Goal struct {
	Owner       string `yaml:"owner"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Status      string `yaml:"status"`
	Progress    int    `yaml:"progress"`
	DueInDays   *int   `yaml:"due_in_days"`
}

func Load(r io.Reader) (*Fixtures, error) {
	var f Fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("seed: parse fixtures: %w", err)
	}
	return &f, nil
}

// Demo returns the embedded demo workspace.
func Demo() (*Fixtures, error) {
	return Load(bytes.NewReader(demoFixtures))
}

type Services struct {
	Auth     services.AuthService
	Teams    services.TeamService
	Projects services.ProjectService
	Tasks    services.TaskService
	Links    services.LinkService
	Comments services.CommentService
	Tags     services.TagService
	Goals    services.GoalService
}

type Result struct {
	Users    int
	Teams    int
	Projects int
	Tasks    int
	Links    int
	Goals    int
}

type Seeder struct {
	svc    Services
	logger *logging.Logger
	now    func() time.Time
}

func NewSeeder(svc Services, logger *logging.Logger) *Seeder {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Seeder{svc: svc, logger: logger.WithComponent("seed"), now: time.Now}
}

type projectRef struct {
	id       uuid.UUID
	sections map[string]uuid.UUID
}

type pendingLink struct {
	actor  services.Actor
	taskID uuid.UUID
	link   Link
}

// run holds the lookups built while applying one fixture set.
type run struct {
	*Seeder
	users    map[string]services.Actor
	tags     map[string]uuid.UUID
	projects map[string]projectRef
	links    []pendingLink
	result   Result
}

func (s *Seeder) Apply(ctx context.Context, f *Fixtures) (*Result, error) {
	r := &run{
		Seeder:   s,
		users:    make(map[string]services.Actor),
		tags:     make(map[string]uuid.UUID),
		projects: make(map[string]projectRef),
	}

	for i, u := range f.Users {
		user, err := s.svc.Auth.Register(ctx, services.RegistrationRequest{Name: u.Name, Email: u.Email, Password: u.Password})
		if err != nil {
			if i == 0 && errors.Is(err, apperr.ErrConflict) {
				return nil, ErrAlreadySeeded
			}
			return nil, fmt.Errorf("seed: user %s: %w", u.Email, err)
		}
		r.users[u.Email] = services.Actor{ID: user.ID, Name: user.Name}
		r.result.Users++
	}

	if len(f.Tags) > 0 {
		admin, err := r.actor(f.Users[0].Email)
		if err != nil {
			return nil, err
		}
		for _, t := range f.Tags {
			tag, err := s.svc.Tags.CreateTag(ctx, admin, t.Name, t.Color)
			if err != nil {
				return nil, fmt.Errorf("seed: tag %s: %w", t.Name, err)
			}
			r.tags[t.Name] = tag.ID
		}
	}

	for _, t := range f.Teams {
		if err := r.team(ctx, t); err != nil {
			return nil, err
		}
	}

	for _, pl := range r.links {
		target, ok := r.projects[pl.link.Project]
		if !ok {
			return nil, fmt.Errorf("seed: link to unknown project %q", pl.link.Project)
		}
		sectionID, ok := target.sections[pl.link.Section]
		if !ok {
			return nil, fmt.Errorf("seed: link to unknown section %q in %q", pl.link.Section, pl.link.Project)
		}
		if _, err := s.svc.Links.LinkTask(ctx, pl.actor, pl.taskID, target.id, sectionID); err != nil {
			return nil, fmt.Errorf("seed: link into %s: %w", pl.link.Project, err)
		}
		r.result.Links++
	}

	for _, g := range f.Goals {
		if err := r.goal(ctx, g); err != nil {
			return nil, err
		}
	}

	s.logger.Info("fixtures applied",
		"users", r.result.Users,
		"teams", r.result.Teams,
		"projects", r.result.Projects,
		"tasks", r.result.Tasks,
		"links", r.result.Links,
		"goals", r.result.Goals,
	)
	return &r.result, nil
}

func (r *run) actor(email string) (services.Actor, error) {
	a, ok := r.users[email]
	if !ok {
		return services.Actor{}, fmt.Errorf("seed: unknown user %q", email)
	}
	return a, nil
}

func (r *run) dueDate(days *int) *time.Time {
	if days == nil {
		return nil
	}
	d := r.now().UTC().Truncate(24*time.Hour).AddDate(0, 0, *days)
	return &d
}

func (r *run) team(ctx context.Context, t Team) error {
	owner, err := r.actor(t.Owner)
	if err != nil {
		return err
	}
	team, err := r.svc.Teams.CreateTeam(ctx, owner, t.Name)
	if err != nil {
		return fmt.Errorf("seed: team %s: %w", t.Name, err)
	}
	r.result.Teams++

	for _, m := range t.Members {
		if _, err := r.svc.Teams.InviteMember(ctx, owner, team.ID, m.Email, m.Role); err != nil {
			return fmt.Errorf("seed: invite %s to %s: %w", m.Email, t.Name, err)
		}
	}
	for _, p := range t.Projects {
		if err := r.project(ctx, owner, team.ID, p); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) project(ctx context.Context, owner services.Actor, teamID uuid.UUID, p Project) error {
	project, err := r.svc.Projects.CreateProject(ctx, owner, teamID, services.CreateProjectInput{
		Name:        p.Name,
		Description: p.Description,
		Color:       p.Color,
	})
	if err != nil {
		return fmt.Errorf("seed: project %s: %w", p.Name, err)
	}
	r.result.Projects++

	sections, err := r.sections(ctx, owner, project, p.Sections)
	if err != nil {
		return fmt.Errorf("seed: sections of %s: %w", p.Name, err)
	}
	r.projects[p.Name] = projectRef{id: project.ID, sections: sections}

	for _, t := range p.Tasks {
		if err := r.task(ctx, owner, project.ID, sections, t); err != nil {
			return fmt.Errorf("seed: task %q in %s: %w", t.Title, p.Name, err)
		}
	}
	return nil
}

// sections renames the defaults in order, creates any extra and drops the
// defaults left over.
func (r *run) sections(ctx context.Context, owner services.Actor, project *models.Project, want []string) (map[string]uuid.UUID, error) {
	out := make(map[string]uuid.UUID)
	defaults := project.Sections
	if len(want) == 0 {
		for _, s := range defaults {
			out[s.Name] = s.ID
		}
		return out, nil
	}

	for i, name := range want {
		if i < len(defaults) {
			s, err := r.svc.Projects.RenameSection(ctx, owner, defaults[i].ID, name)
			if err != nil {
				return nil, err
			}
			out[s.Name] = s.ID
			continue
		}
		s, err := r.svc.Projects.CreateSection(ctx, owner, project.ID, name)
		if err != nil {
			return nil, err
		}
		out[s.Name] = s.ID
	}
	for i := len(want); i < len(defaults); i++ {
		if err := r.svc.Projects.DeleteSection(ctx, owner, defaults[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *run) task(ctx context.Context, owner services.Actor, projectID uuid.UUID, sections map[string]uuid.UUID, t Task) error {
	sectionID, ok := sections[t.Section]
	if !ok {
		return fmt.Errorf("unknown section %q", t.Section)
	}
	in := services.CreateTaskInput{
		ProjectID:   projectID,
		SectionID:   sectionID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		DueDate:     r.dueDate(t.DueInDays),
	}
	if t.Assignee != "" {
		assignee, err := r.actor(t.Assignee)
		if err != nil {
			return err
		}
		in.AssigneeID = &assignee.ID
	}

	task, err := r.svc.Tasks.CreateTask(ctx, owner, in)
	if err != nil {
		return err
	}
	r.result.Tasks++

	if t.Completed {
		done := true
		if _, err := r.svc.Tasks.UpdateTask(ctx, owner, task.ID, services.UpdateTaskInput{Completed: &done}); err != nil {
			return err
		}
	}
	for _, name := range t.Tags {
		tagID, ok := r.tags[name]
		if !ok {
			return fmt.Errorf("unknown tag %q", name)
		}
		if err := r.svc.Tags.AddTagToTask(ctx, owner, task.ID, tagID); err != nil {
			return err
		}
	}
	for _, c := range t.Comments {
		author, err := r.actor(c.Author)
		if err != nil {
			return err
		}
		if _, err := r.svc.Comments.AddComment(ctx, author, task.ID, c.Content); err != nil {
			return err
		}
	}
	for _, l := range t.Links {
		r.links = append(r.links, pendingLink{actor: owner, taskID: task.ID, link: l})
	}
	return nil
}

func (r *run) goal(ctx context.Context, g Goal) error {
	owner, err := r.actor(g.Owner)
	if err != nil {
		return err
	}
	in := services.GoalInput{
		Title:       &g.Title,
		Description: &g.Description,
		Progress:    &g.Progress,
		DueDate:     r.dueDate(g.DueInDays),
	}
	if g.Status != "" {
		in.Status = &g.Status
	}
	if _, err := r.svc.Goals.CreateGoal(ctx, owner, in); err != nil {
		return fmt.Errorf("seed: goal %s: %w", g.Title, err)
	}
	r.result.Goals++
	return nil
}
