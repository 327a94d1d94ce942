package handlers

import (
	"errors"
	"net/http"

	"teamflow/backend/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

var kindStatus = map[apperr.Kind]int{
	apperr.KindUnauthenticated:  http.StatusUnauthorized,
	apperr.KindNotFound:         http.StatusNotFound,
	apperr.KindValidation:       http.StatusBadRequest,
	apperr.KindForbidden:        http.StatusForbidden,
	apperr.KindConflict:         http.StatusConflict,
	apperr.KindInvalidOperation: http.StatusUnprocessableEntity,
}

// StatusFor maps a service error to its HTTP status.
func StatusFor(err error) int {
	if status, ok := kindStatus[apperr.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": kind, "message": msg}. Internal errors are
// attached to the context for the request logger and never echoed back.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	kind := apperr.KindOf(err)
	message := "internal server error"
	var appErr *apperr.Error
	if kind != apperr.KindInternal && errors.As(err, &appErr) && appErr.Message != "" {
		message = appErr.Message
	}
	c.AbortWithStatusJSON(StatusFor(err), gin.H{
		"error":   kind.String(),
		"message": message,
	})
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, apperr.Validation("invalid request body: %v", err))
		return false
	}
	return true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.FromString(c.Param(name))
	if err != nil {
		respondError(c, apperr.Validation("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}
