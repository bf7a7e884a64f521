package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"assistdeck/internal/assistant"
)

func (s *Server) startSession(c *gin.Context) {
	sess, err := s.cfg.Generator.Start(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (s *Server) getSession(c *gin.Context) {
	sess, err := s.cfg.Generator.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Server) discardSession(c *gin.Context) {
	if err := s.cfg.Generator.Discard(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type messageRequest struct {
	Message string `json:"message"`
}

func (s *Server) sendGeneratorMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	reply, err := s.cfg.Generator.Send(c.Request.Context(), c.Param("id"), req.Message)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (s *Server) updateDraft(c *gin.Context) {
	var patch assistant.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	sess, err := s.cfg.Generator.UpdateDraft(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Server) resetSession(c *gin.Context) {
	sess, err := s.cfg.Generator.Reset(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Server) saveSession(c *gin.Context) {
	saved, err := s.cfg.Generator.Save(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}
