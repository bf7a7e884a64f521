// Package httpapi exposes the registry, assistants, chat and generator as a
// JSON API for a front-end.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"assistdeck/internal/chat"
	"assistdeck/internal/generator"
	"assistdeck/internal/providers"
	"assistdeck/internal/state"
)

type Config struct {
	Registry    *state.Registry
	Assistants  *state.Assistants
	Chat        *chat.Service
	Generator   *generator.Service
	Build       func(providers.Config) (providers.Provider, error)
	Logger      zerolog.Logger
	HealthPath  string
	MetricsPath string
	AllowOrigin string
}

type Server struct {
	cfg Config
}

func NewRouter(cfg Config) *gin.Engine {
	s := &Server{cfg: cfg}

	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())
	if cfg.AllowOrigin != "" {
		r.Use(cors(cfg.AllowOrigin))
	}

	if cfg.HealthPath != "" {
		r.GET(cfg.HealthPath, func(c *gin.Context) {
			c.String(http.StatusOK, "ok")
		})
	}
	if cfg.MetricsPath != "" {
		r.GET(cfg.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")

	api.GET("/presets", s.listPresets)
	api.GET("/providers", s.listProviders)
	api.POST("/providers", s.addProvider)
	api.POST("/providers/test", s.testDraftProvider)
	api.PATCH("/providers/:id", s.updateProvider)
	api.DELETE("/providers/:id", s.deleteProvider)
	api.POST("/providers/:id/activate", s.activateProvider)
	api.POST("/providers/:id/test", s.testProvider)

	api.GET("/assistants", s.listAssistants)
	api.POST("/assistants", s.addAssistant)
	api.POST("/assistants/reset", s.resetAssistants)
	api.GET("/assistants/:id", s.getAssistant)
	api.PATCH("/assistants/:id", s.updateAssistant)
	api.DELETE("/assistants/:id", s.deleteAssistant)
	api.POST("/assistants/:id/chat", s.chat)

	gen := api.Group("/generator/sessions")
	gen.POST("", s.startSession)
	gen.GET("/:id", s.getSession)
	gen.DELETE("/:id", s.discardSession)
	gen.POST("/:id/messages", s.sendGeneratorMessage)
	gen.PATCH("/:id/draft", s.updateDraft)
	gen.POST("/:id/reset", s.resetSession)
	gen.POST("/:id/save", s.saveSession)

	return r
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		ev := s.cfg.Logger.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = s.cfg.Logger.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(started)).
			Msg("http request")
	}
}

func cors(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

