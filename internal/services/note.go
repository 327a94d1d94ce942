package services

import (
	"context"
	"strings"

	"teamflow/backend/internal/apperr"
	"teamflow/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// NoteService manages personal notes. Another user's note is reported as
// not found.
type NoteService interface {
	ListNotes(ctx context.Context, actor Actor) ([]models.Note, error)
	CreateNote(ctx context.Context, actor Actor, title, content string) (*models.Note, error)
	UpdateNote(ctx context.Context, actor Actor, noteID uuid.UUID, title, content *string) (*models.Note, error)
	TogglePin(ctx context.Context, actor Actor, noteID uuid.UUID) (*models.Note, error)
	DeleteNote(ctx context.Context, actor Actor, noteID uuid.UUID) error
}

type NoteServiceImpl struct {
	db *gorm.DB
}

func NewNoteService(db *gorm.DB) *NoteServiceImpl {
	return &NoteServiceImpl{db: db}
}

func (s *NoteServiceImpl) ListNotes(ctx context.Context, actor Actor) ([]models.Note, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	var notes []models.Note
	err := s.db.WithContext(ctx).
		Where("user_id = ?", actor.ID).
		Order("pinned DESC").
		Order("updated_at DESC").
		Find(&notes).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return notes, nil
}

func (s *NoteServiceImpl) CreateNote(ctx context.Context, actor Actor, title, content string) (*models.Note, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled"
	}
	note := models.Note{Title: title, Content: content, UserID: actor.ID}
	if err := s.db.WithContext(ctx).Create(&note).Error; err != nil {
		return nil, apperr.FromDB(err, "note")
	}
	return &note, nil
}

func (s *NoteServiceImpl) own(db *gorm.DB, actor Actor, noteID uuid.UUID) (*models.Note, error) {
	var note models.Note
	if err := db.First(&note, "id = ? AND user_id = ?", noteID, actor.ID).Error; err != nil {
		return nil, apperr.FromDB(err, "note")
	}
	return &note, nil
}

func (s *NoteServiceImpl) UpdateNote(ctx context.Context, actor Actor, noteID uuid.UUID, title, content *string) (*models.Note, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	note, err := s.own(db, actor, noteID)
	if err != nil {
		return nil, err
	}
	changes := map[string]any{}
	if title != nil {
		t := strings.TrimSpace(*title)
		if t == "" {
			return nil, apperr.Validation("note title is required")
		}
		note.Title = t
		changes["title"] = t
	}
	if content != nil {
		note.Content = *content
		changes["content"] = *content
	}
	if len(changes) > 0 {
		if err := db.Model(note).Updates(changes).Error; err != nil {
			return nil, apperr.Internal(err)
		}
	}
	return note, nil
}

func (s *NoteServiceImpl) TogglePin(ctx context.Context, actor Actor, noteID uuid.UUID) (*models.Note, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	note, err := s.own(db, actor, noteID)
	if err != nil {
		return nil, err
	}
	note.Pinned = !note.Pinned
	if err := db.Model(note).Update("pinned", note.Pinned).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	return note, nil
}

func (s *NoteServiceImpl) DeleteNote(ctx context.Context, actor Actor, noteID uuid.UUID) error {
	if err := actor.validate(); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", noteID, actor.ID).Delete(&models.Note{})
	if res.Error != nil {
		return apperr.Internal(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("note")
	}
	return nil
}
