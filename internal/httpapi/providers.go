package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"assistdeck/internal/providers"
)

type providerRequest struct {
	Preset    string `json:"preset"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	BaseURL   string `json:"baseUrl"`
	APIKey    string `json:"apiKey"`
	ModelName string `json:"modelName"`
}

// config fills blank fields from the named preset, if any.
func (r providerRequest) config() (providers.Config, bool) {
	cfg := providers.Config{
		Name:      r.Name,
		Kind:      r.Kind,
		BaseURL:   r.BaseURL,
		APIKey:    r.APIKey,
		ModelName: r.ModelName,
	}
	if r.Preset == "" {
		return cfg, true
	}
	p, ok := providers.LookupPreset(r.Preset)
	if !ok {
		return cfg, false
	}
	if cfg.Name == "" {
		cfg.Name = p.Name
	}
	if cfg.Kind == "" {
		cfg.Kind = p.Kind
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = p.BaseURL
	}
	if cfg.ModelName == "" {
		cfg.ModelName = p.Model
	}
	return cfg, true
}

func redacted(p providers.Config) providers.Config {
	p.APIKey = providers.RedactKey(p.APIKey)
	return p
}

type presetView struct {
	Key string `json:"key"`
	providers.Preset
}

func (s *Server) listPresets(c *gin.Context) {
	out := make([]presetView, 0)
	for _, k := range providers.PresetKeys() {
		p, _ := providers.LookupPreset(k)
		out = append(out, presetView{Key: k, Preset: p})
	}
	c.JSON(http.StatusOK, gin.H{"presets": out})
}

func (s *Server) listProviders(c *gin.Context) {
	snap := s.cfg.Registry.Snapshot()
	for i := range snap.Providers {
		snap.Providers[i] = redacted(snap.Providers[i])
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) addProvider(c *gin.Context) {
	var req providerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	cfg, ok := req.config()
	if !ok {
		badRequest(c, "unknown preset")
		return
	}
	added, err := s.cfg.Registry.Add(c.Request.Context(), cfg)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, redacted(added))
}

func (s *Server) updateProvider(c *gin.Context) {
	var patch providers.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	updated, err := s.cfg.Registry.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, redacted(updated))
}

func (s *Server) deleteProvider(c *gin.Context) {
	if err := s.cfg.Registry.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) activateProvider(c *gin.Context) {
	if err := s.cfg.Registry.SetActive(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	active, _ := s.cfg.Registry.Active()
	c.JSON(http.StatusOK, redacted(active))
}

func (s *Server) testProvider(c *gin.Context) {
	cfg, err := s.cfg.Registry.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.probe(c, cfg)
}

// testDraftProvider probes a config that has not been saved yet.
func (s *Server) testDraftProvider(c *gin.Context) {
	var req providerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	cfg, ok := req.config()
	if !ok {
		badRequest(c, "unknown preset")
		return
	}
	if cfg.Name == "" {
		cfg.Name = cfg.BaseURL
	}
	s.probe(c, cfg)
}

func (s *Server) probe(c *gin.Context, cfg providers.Config) {
	client, err := s.cfg.Build(cfg)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, client.Test(c.Request.Context()))
}
