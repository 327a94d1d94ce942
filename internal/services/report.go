package services

import (
	"context"
	"time"

	"teamflow/backend/internal/apperr"
	"teamflow/backend/internal/models"
	"teamflow/backend/internal/report"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type ReportService interface {
	ProjectReport(ctx context.Context, actor Actor, projectID uuid.UUID) (*report.Report, error)
}

type ReportServiceImpl struct {
	db  *gorm.DB
	now func() time.Time
}

func NewReportService(db *gorm.DB) *ReportServiceImpl {
	return &ReportServiceImpl{db: db, now: time.Now}
}

// ProjectReport covers the project's own tasks; linked tasks are reported
// by their origin project.
func (s *ReportServiceImpl) ProjectReport(ctx context.Context, actor Actor, projectID uuid.UUID) (*report.Report, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	project, _, err := projectForActor(db, actor, projectID)
	if err != nil {
		return nil, err
	}

	var sections []models.Section
	if err := db.Where("project_id = ?", project.ID).Find(&sections).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	var tasks []models.Task
	if err := db.Preload("Assignee").Where("project_id = ?", project.ID).Find(&tasks).Error; err != nil {
		return nil, apperr.Internal(err)
	}

	r := report.Build(*project, sections, tasks, s.now())
	return &r, nil
}
