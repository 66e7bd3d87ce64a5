package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kerrizor/ckb/internal/anim"
)

// descriptorView is the JSON shape of one catalog entry.
type descriptorView struct {
	GUID        string      `json:"guid"`
	Name        string      `json:"name"`
	Version     string      `json:"version"`
	Year        string      `json:"year"`
	Author      string      `json:"author"`
	License     string      `json:"license"`
	Description string      `json:"description,omitempty"`
	Params      []paramView `json:"params"`
}

type paramView struct {
	Type    string      `json:"type"`
	Name    string      `json:"name"`
	Prefix  string      `json:"prefix,omitempty"`
	Postfix string      `json:"postfix,omitempty"`
	Default interface{} `json:"default,omitempty"`
	Minimum interface{} `json:"minimum,omitempty"`
	Maximum interface{} `json:"maximum,omitempty"`
}

func viewOf(d anim.Descriptor) descriptorView {
	v := descriptorView{
		GUID:        d.GUID.String(),
		Name:        d.Name,
		Version:     d.Version,
		Year:        d.Year,
		Author:      d.Author,
		License:     d.License,
		Description: d.Description,
		Params:      make([]paramView, 0, len(d.Params)),
	}
	for _, p := range d.Params {
		v.Params = append(v.Params, paramView{
			Type:    p.Type.String(),
			Name:    p.Name,
			Prefix:  p.Prefix,
			Postfix: p.Postfix,
			Default: p.Default,
			Minimum: p.Minimum,
			Maximum: p.Maximum,
		})
	}
	return v
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listAnimations(c *gin.Context) {
	list := s.catalog.List()
	out := make([]descriptorView, 0, len(list))
	for _, d := range list {
		out = append(out, viewOf(d))
	}
	c.JSON(http.StatusOK, gin.H{"animations": out})
}

func (s *Server) rescan(c *gin.Context) {
	accepted := s.catalog.Discover(s.cfg.Anim.ScriptDir)
	if s.metrics != nil {
		s.metrics.ScriptsDiscovered.Set(float64(len(accepted)))
		s.metrics.ScriptsRejected.Add(float64(s.catalog.Rejected()))
	}
	c.JSON(http.StatusOK, gin.H{"discovered": len(accepted)})
}

// createInstanceRequest binds a script to a key subset and parameter
// overrides. Omitted keys bind the whole layout; omitted params use
// the descriptor defaults.
type createInstanceRequest struct {
	GUID   string                 `json:"guid" binding:"required"`
	Keys   []string               `json:"keys"`
	Keymap map[string]anim.KeyPos `json:"keymap"`
	Params map[string]interface{} `json:"params"`
}

func (s *Server) createInstance(c *gin.Context) {
	var req createInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	guid, err := uuid.Parse(req.GUID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid guid"})
		return
	}
	inst := s.catalog.CloneForUse(guid)
	if inst == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown animation"})
		return
	}

	keymap := s.keymap
	if len(req.Keymap) > 0 {
		keymap = anim.KeyMap(req.Keymap)
	}
	keys := req.Keys
	if len(keys) == 0 {
		keys = keymap.Keys()
	}

	desc := inst.Descriptor()
	values := desc.DefaultParams()
	for name, value := range req.Params {
		if desc.HasParam(name) {
			values[name] = value
		}
	}

	inst.Init(keymap, keys, values)
	id := uuid.New().String()
	s.sched.Add(id, inst)
	s.log.Info("created animation instance",
		zap.String("id", id), zap.String("animation", desc.Name))

	c.JSON(http.StatusCreated, gin.H{"id": id, "animation": viewOf(desc)})
}

func (s *Server) deleteInstance(c *gin.Context) {
	if !s.sched.Remove(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown instance"})
		return
	}
	c.Status(http.StatusNoContent)
}

type updateParamsRequest struct {
	Params map[string]interface{} `json:"params" binding:"required"`
}

func (s *Server) updateParams(c *gin.Context) {
	var req updateParamsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := c.Param("id")
	desc, ok := s.sched.Descriptor(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown instance"})
		return
	}
	values := desc.DefaultParams()
	for name, value := range req.Params {
		if desc.HasParam(name) {
			values[name] = value
		}
	}
	s.sched.UpdateParameters(id, values)
	c.Status(http.StatusNoContent)
}

func (s *Server) retrigger(c *gin.Context) {
	if !s.sched.Retrigger(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown instance"})
		return
	}
	c.Status(http.StatusNoContent)
}

type keypressRequest struct {
	Key     string `json:"key" binding:"required"`
	Pressed *bool  `json:"pressed" binding:"required"`
}

func (s *Server) keypress(c *gin.Context) {
	var req keypressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !s.sched.Keypress(c.Param("id"), req.Key, *req.Pressed) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown instance"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) colors(c *gin.Context) {
	colors, ok := s.sched.Colors(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown instance"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"colors": colors})
}
