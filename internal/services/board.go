package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"teamflow/backend/internal/apperr"
	"teamflow/backend/internal/board"
	"teamflow/backend/internal/cache"
	"teamflow/backend/internal/logging"
	"teamflow/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type BoardService interface {
	GetBoard(ctx context.Context, actor Actor, projectID uuid.UUID, filter board.Filter) (*board.Board, error)
	Overview(ctx context.Context, actor Actor, projectID uuid.UUID) (*ProjectOverview, error)
	InvalidateProjects(ctx context.Context, projectIDs ...uuid.UUID)
}

type SectionSummary struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Total     int       `json:"total"`
	Completed int       `json:"completed"`
}

type ActivityItem struct {
	ID        uuid.UUID              `json:"id"`
	Action    models.ActivityAction  `json:"action"`
	Details   models.ActivityDetails `json:"details,omitempty"`
	TaskID    uuid.UUID              `json:"task_id"`
	TaskTitle string                 `json:"task_title"`
	User      board.UserRef          `json:"user"`
	CreatedAt time.Time              `json:"created_at"`
}

type ProjectOverview struct {
	ProjectID uuid.UUID        `json:"project_id"`
	Name      string           `json:"name"`
	Total     int              `json:"total"`
	Completed int              `json:"completed"`
	Sections  []SectionSummary `json:"sections"`
	Activity  []ActivityItem   `json:"activity"`
}

const overviewActivityLimit = 20

// BoardServiceImpl serves composed boards through an optional cache. A nil
// cache composes on every read.
type BoardServiceImpl struct {
	db     *gorm.DB
	cache  cache.Cache
	ttl    time.Duration
	logger *logging.Logger

	// generations counts invalidations per project. A board composed under
	// an older generation is never left in the cache.
	mu          sync.Mutex
	generations map[uuid.UUID]uint64
}

func NewBoardService(db *gorm.DB, c cache.Cache, ttl time.Duration, logger *logging.Logger) *BoardServiceImpl {
	if logger == nil {
		logger = logging.Nop()
	}
	return &BoardServiceImpl{
		db:          db,
		cache:       c,
		ttl:         ttl,
		logger:      logger.WithComponent("board"),
		generations: make(map[uuid.UUID]uint64),
	}
}

func boardKey(projectID uuid.UUID) string {
	return fmt.Sprintf("board:%s", projectID)
}

func (s *BoardServiceImpl) GetBoard(ctx context.Context, actor Actor, projectID uuid.UUID, filter board.Filter) (*board.Board, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if err := filter.Validate(); err != nil {
		return nil, apperr.Validation("invalid filter: %v", err)
	}

	db := s.db.WithContext(ctx)
	project, _, err := projectForActor(db, actor, projectID)
	if err != nil {
		return nil, err
	}

	b, err := s.cached(ctx, db, project)
	if err != nil {
		return nil, err
	}
	if !filter.IsZero() {
		filtered := board.ApplyFilters(*b, filter)
		return &filtered, nil
	}
	return b, nil
}

func (s *BoardServiceImpl) generation(projectID uuid.UUID) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[projectID]
}

func (s *BoardServiceImpl) cached(ctx context.Context, db *gorm.DB, project *models.Project) (*board.Board, error) {
	key := boardKey(project.ID)
	gen := s.generation(project.ID)
	if s.cache != nil {
		var b board.Board
		err := s.cache.Get(ctx, key, &b)
		if err == nil {
			return &b, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("board cache read failed", "project_id", project.ID.String(), "error", err)
		}
	}

	b, err := compose(db, project)
	if err != nil {
		return nil, err
	}
	if s.cache != nil && s.ttl > 0 {
		s.store(ctx, project.ID, gen, b)
	}
	return b, nil
}

// store caches b unless the project was invalidated since gen was read. An
// invalidation that lands during the write removes the entry again.
func (s *BoardServiceImpl) store(ctx context.Context, projectID uuid.UUID, gen uint64, b *board.Board) {
	if s.generation(projectID) != gen {
		return
	}
	key := boardKey(projectID)
	if err := s.cache.Set(ctx, key, b, s.ttl); err != nil {
		s.logger.Warn("board cache write failed", "project_id", projectID.String(), "error", err)
		return
	}
	if s.generation(projectID) != gen {
		if err := s.cache.Delete(context.WithoutCancel(ctx), key); err != nil {
			s.logger.Warn("board cache invalidation failed", "keys", []string{key}, "error", err)
		}
	}
}

// InvalidateProjects drops cached boards. Failures are logged; the entries
// still expire on their TTL.
func (s *BoardServiceImpl) InvalidateProjects(ctx context.Context, projectIDs ...uuid.UUID) {
	if s.cache == nil || len(projectIDs) == 0 {
		return
	}
	seen := make(map[uuid.UUID]bool, len(projectIDs))
	keys := make([]string, 0, len(projectIDs))
	s.mu.Lock()
	for _, id := range projectIDs {
		if !seen[id] {
			seen[id] = true
			s.generations[id]++
			keys = append(keys, boardKey(id))
		}
	}
	s.mu.Unlock()
	if err := s.cache.Delete(context.WithoutCancel(ctx), keys...); err != nil {
		s.logger.Warn("board cache invalidation failed", "keys", keys, "error", err)
	}
}

// WarmRecent composes and caches the boards of the most recently updated
// projects, newest first.
func (s *BoardServiceImpl) WarmRecent(ctx context.Context, limit, concurrency int) (cache.WarmupResult, error) {
	if s.cache == nil || s.ttl <= 0 || limit <= 0 {
		return cache.WarmupResult{}, nil
	}

	var projects []models.Project
	err := s.db.WithContext(ctx).Order("updated_at DESC").Limit(limit).Find(&projects).Error
	if err != nil {
		return cache.WarmupResult{}, apperr.Internal(err)
	}

	warmer := cache.NewWarmer(s.cache, concurrency, s.logger)
	for i := range projects {
		project := projects[i]
		gen := s.generation(project.ID)
		warmer.Add(cache.WarmupJob{
			Key:      boardKey(project.ID),
			TTL:      s.ttl,
			Priority: len(projects) - i,
			Load: func(ctx context.Context) (interface{}, error) {
				return compose(s.db.WithContext(ctx), &project)
			},
			Stale: func() bool { return s.generation(project.ID) != gen },
		})
	}
	return warmer.Warm(ctx), nil
}

func compose(db *gorm.DB, project *models.Project) (*board.Board, error) {
	var sections []models.Section
	if err := db.Where("project_id = ?", project.ID).Find(&sections).Error; err != nil {
		return nil, apperr.Internal(err)
	}

	var native []models.Task
	if err := db.Preload("Assignee").Preload("Tags").Where("project_id = ?", project.ID).Find(&native).Error; err != nil {
		return nil, apperr.Internal(err)
	}

	var links []models.TaskProject
	err := db.Preload("Task.Assignee").Preload("Task.Tags").Preload("Task.Project").
		Where("project_id = ?", project.ID).
		Find(&links).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}

	ids := make([]uuid.UUID, 0, len(native)+len(links))
	for _, t := range native {
		ids = append(ids, t.ID)
	}
	for _, l := range links {
		ids = append(ids, l.TaskID)
	}
	counts, err := taskCounts(db, ids)
	if err != nil {
		return nil, err
	}

	b := board.Compose(board.Input{
		Project:  *project,
		Sections: sections,
		Native:   native,
		Links:    links,
		Counts:   counts,
	})
	return &b, nil
}

type countRow struct {
	TaskID uuid.UUID
	Total  int
	Done   int
}

func taskCounts(db *gorm.DB, taskIDs []uuid.UUID) (map[uuid.UUID]board.Counts, error) {
	counts := make(map[uuid.UUID]board.Counts, len(taskIDs))
	if len(taskIDs) == 0 {
		return counts, nil
	}

	var subtasks []countRow
	err := db.Model(&models.Subtask{}).
		Select("task_id, COUNT(*) AS total, SUM(CASE WHEN completed THEN 1 ELSE 0 END) AS done").
		Where("task_id IN ?", taskIDs).
		Group("task_id").
		Scan(&subtasks).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	for _, r := range subtasks {
		c := counts[r.TaskID]
		c.Subtasks, c.SubtasksCompleted = r.Total, r.Done
		counts[r.TaskID] = c
	}

	tally := func(model any, apply func(*board.Counts, int)) error {
		var rows []countRow
		err := db.Model(model).
			Select("task_id, COUNT(*) AS total").
			Where("task_id IN ?", taskIDs).
			Group("task_id").
			Scan(&rows).Error
		if err != nil {
			return apperr.Internal(err)
		}
		for _, r := range rows {
			c := counts[r.TaskID]
			apply(&c, r.Total)
			counts[r.TaskID] = c
		}
		return nil
	}
	if err := tally(&models.Comment{}, func(c *board.Counts, n int) { c.Comments = n }); err != nil {
		return nil, err
	}
	if err := tally(&models.Attachment{}, func(c *board.Counts, n int) { c.Attachments = n }); err != nil {
		return nil, err
	}
	return counts, nil
}

func (s *BoardServiceImpl) Overview(ctx context.Context, actor Actor, projectID uuid.UUID) (*ProjectOverview, error) {
	b, err := s.GetBoard(ctx, actor, projectID, board.Filter{})
	if err != nil {
		return nil, err
	}

	overview := &ProjectOverview{
		ProjectID: b.ProjectID,
		Name:      b.Name,
		Sections:  make([]SectionSummary, 0, len(b.Sections)),
		Activity:  []ActivityItem{},
	}
	for _, sec := range b.Sections {
		summary := SectionSummary{ID: sec.ID, Name: sec.Name, Total: len(sec.Cards)}
		for _, c := range sec.Cards {
			if c.Completed {
				summary.Completed++
			}
		}
		overview.Total += summary.Total
		overview.Completed += summary.Completed
		overview.Sections = append(overview.Sections, summary)
	}

	var logs []models.ActivityLog
	err = s.db.WithContext(ctx).
		Preload("User").
		Preload("Task").
		Joins("JOIN tasks ON tasks.id = activity_logs.task_id").
		Where("tasks.project_id = ?", projectID).
		Order("activity_logs.created_at DESC").
		Limit(overviewActivityLimit).
		Find(&logs).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	for _, l := range logs {
		item := ActivityItem{ID: l.ID, Action: l.Action, TaskID: l.TaskID, CreatedAt: l.CreatedAt}
		if details, err := l.Payload(); err == nil {
			item.Details = details
		} else {
			s.logger.Warn("undecodable activity details", "activity_id", l.ID.String(), "error", err)
		}
		if l.Task != nil {
			item.TaskTitle = l.Task.Title
		}
		if l.User != nil {
			item.User = board.UserRef{ID: l.User.ID, Name: l.User.Name, Avatar: l.User.Avatar}
		}
		overview.Activity = append(overview.Activity, item)
	}
	return overview, nil
}
