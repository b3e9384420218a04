package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"backstage/internal/game"
	"backstage/internal/models"
	"backstage/internal/remote"
	"backstage/internal/store"
)

// --- Gameplay ---

func (s *Server) handleStartGame(c *gin.Context) {
	var req struct {
		ProfileID string `json:"profile_id"`
		Name      string `json:"name"`
		Genre     string `json:"genre"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.ProfileID == "" {
		req.ProfileID = "slot1"
	}
	if req.Genre == "" {
		req.Genre = "pop"
	}

	if err := s.session.StartGame(req.ProfileID, req.Name, req.Genre); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	settings := s.session.LoadSettings(req.ProfileID)
	s.clock.SetSpeed(settings.ClockSpeed)

	c.JSON(http.StatusCreated, gin.H{
		"profile_id": req.ProfileID,
		"player":     s.session.Player(),
		"date":       s.clock.ISODate(),
	})
}

func (s *Server) handleTrainSkill(c *gin.Context) {
	var req struct {
		Skill string `json:"skill"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := s.session.TrainSkill(req.Skill); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, game.ErrNoGame) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"player": s.session.Player()})
}

func (s *Server) handleWriteSong(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	song, err := s.session.WriteSong(req.Title)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"song": song})
}

func (s *Server) handlePassWeek(c *gin.Context) {
	date, err := s.session.PassWeek()
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"date":   date.Format("2006-01-02"),
		"player": s.session.Player(),
	})
}

func (s *Server) handleGameState(c *gin.Context) {
	player := s.session.Player()
	if player == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No active game"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"player": player,
		"date":   s.clock.ISODate(),
		"mood":   s.industry.Mood(),
	})
}

// --- Persistence ---

func (s *Server) handleSaveNow(c *gin.Context) {
	if err := s.coordinator.SaveNow(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": true, "hash": s.coordinator.LastGoodHash()})
}

func (s *Server) handleListSlots(c *gin.Context) {
	recs, err := s.store.GetAll(store.ColSaves)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	slots := make([]models.SlotMetadata, 0, len(recs))
	for _, r := range recs {
		var meta models.SlotMetadata
		if err := json.Unmarshal(r.Payload, &meta); err == nil {
			slots = append(slots, meta)
		}
	}
	c.JSON(http.StatusOK, gin.H{"slots": slots})
}

func (s *Server) handleLoadSlot(c *gin.Context) {
	id := c.Param("id")
	if err := s.coordinator.LoadSnapshot(id); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"player": s.session.Player(),
		"date":   s.clock.ISODate(),
	})
}

func (s *Server) handleDeleteSlot(c *gin.Context) {
	id := c.Param("id")
	if err := s.store.Delete(store.ColGameData, id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := s.store.Delete(store.ColSaves, id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (s *Server) handleExport(c *gin.Context) {
	payload, err := s.coordinator.Export()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", "attachment; filename=backstage-save.json")
	c.Data(http.StatusOK, "application/json", payload)
}

func (s *Server) handleImport(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable body"})
		return
	}
	if err := s.coordinator.Import(payload); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": true})
}

func (s *Server) handleRecover(c *gin.Context) {
	if err := s.coordinator.RecoverFromBackup(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recovered": true, "player": s.session.Player()})
}

func (s *Server) handleSync(c *gin.Context) {
	if s.syncer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Cloud sync is not configured"})
		return
	}
	res, err := s.syncer.SyncAll()
	if err != nil {
		if errors.Is(err, remote.ErrRemoteNewer) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// --- Settings ---

func (s *Server) handleGetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.session.LoadSettings(c.Param("id")))
}

func (s *Server) handlePutSettings(c *gin.Context) {
	var cfg game.Settings
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := s.session.SaveSettings(c.Param("id"), cfg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// --- Simulation readouts ---

func (s *Server) handleTrends(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"trends":  s.industry.Trends(),
		"history": s.industry.TrendHistory(),
	})
}

func (s *Server) handleMood(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"mood": s.industry.Mood(),
		"buzz": s.industry.CurrentBuzz(),
	})
}

func (s *Server) handleEvents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"events": s.industry.ActiveEvents()})
}

func (s *Server) handleCharts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"charts": s.session.Charts()})
}

func (s *Server) handleNews(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"news": s.session.News()})
}
