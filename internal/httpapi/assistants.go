package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"assistdeck/internal/assistant"
	"assistdeck/internal/providers"
)

func (s *Server) listAssistants(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"assistants": s.cfg.Assistants.List()})
}

func (s *Server) getAssistant(c *gin.Context) {
	def, err := s.cfg.Assistants.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, def)
}

func (s *Server) addAssistant(c *gin.Context) {
	var def assistant.Definition
	if err := c.ShouldBindJSON(&def); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	def.ID = ""
	added, err := s.cfg.Assistants.Add(c.Request.Context(), def)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, added)
}

func (s *Server) updateAssistant(c *gin.Context) {
	var patch assistant.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	updated, err := s.cfg.Assistants.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteAssistant(c *gin.Context) {
	if err := s.cfg.Assistants.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) resetAssistants(c *gin.Context) {
	list, err := s.cfg.Assistants.Reset(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assistants": list})
}

type chatRequest struct {
	History []providers.Turn `json:"history"`
	Message string           `json:"message"`
}

func (s *Server) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	res, err := s.cfg.Chat.Send(c.Request.Context(), c.Param("id"), req.History, req.Message)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
