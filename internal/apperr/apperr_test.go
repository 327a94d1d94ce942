package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"teamflow/backend/internal/apperr"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIs_MatchesSentinelByKind(t *testing.T) {
	err := apperr.NotFound("task")

	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.False(t, errors.Is(err, apperr.ErrConflict))
	assert.Equal(t, "task not found", err.Error())
}

func TestIs_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("link task: %w", apperr.InvalidOperation("task is already in this project"))

	assert.True(t, errors.Is(err, apperr.ErrInvalidOperation))
	assert.Equal(t, apperr.KindInvalidOperation, apperr.KindOf(err))
}

func TestKindOf_ForeignError(t *testing.T) {
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(errors.New("boom")))
}

func TestFromDB(t *testing.T) {
	tests := []struct {
		name string
		in   error
		kind apperr.Kind
	}{
		{"record not found", gorm.ErrRecordNotFound, apperr.KindNotFound},
		{"duplicated key", gorm.ErrDuplicatedKey, apperr.KindConflict},
		{"other", errors.New("connection reset"), apperr.KindInternal},
		{"already typed", apperr.Forbidden("nope"), apperr.KindForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := apperr.FromDB(tt.in, "project")
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}

	assert.NoError(t, apperr.FromDB(nil, "project"))
}

func TestInternal_KeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := apperr.Internal(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
}
