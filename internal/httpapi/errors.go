package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"assistdeck/internal/chat"
	"assistdeck/internal/generator"
	"assistdeck/internal/providers"
	"assistdeck/internal/session"
	"assistdeck/internal/state"
)

func (s *Server) fail(c *gin.Context, err error) {
	var verrs providers.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "fields": verrs})
	case errors.Is(err, state.ErrProviderNotFound),
		errors.Is(err, state.ErrAssistantNotFound),
		errors.Is(err, session.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, state.ErrAssistantIncomplete),
		errors.Is(err, generator.ErrDraftIncomplete):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, state.ErrNoActiveProvider),
		errors.Is(err, generator.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, generator.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.cfg.Logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
