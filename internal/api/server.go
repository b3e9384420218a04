package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"backstage/internal/clock"
	"backstage/internal/config"
	"backstage/internal/game"
	"backstage/internal/remote"
	"backstage/internal/save"
	"backstage/internal/sim"
	"backstage/internal/store"
)

type Server struct {
	cfg         *config.Config
	session     *game.Session
	coordinator *save.Coordinator
	store       store.Store
	industry    *sim.IndustrySim
	clock       *clock.SimClock
	syncer      *remote.Syncer // nil when cloud sync is disabled
	hub         *Hub
	router      *gin.Engine
}

func New(cfg *config.Config, session *game.Session, coord *save.Coordinator,
	st store.Store, industry *sim.IndustrySim, simClock *clock.SimClock,
	syncer *remote.Syncer, hub *Hub) *Server {

	if cfg.Server.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode) // Set to Release for production
	}

	s := &Server{
		cfg:         cfg,
		session:     session,
		coordinator: coord,
		store:       st,
		industry:    industry,
		clock:       simClock,
		syncer:      syncer,
		hub:         hub,
		router:      gin.Default(),
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	s.router.Use(cors.New(corsConfig))
}

func (s *Server) setupRoutes() {
	// Health Check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "backstage"})
	})

	// Push channel for notifications and live events
	s.router.GET("/ws", func(c *gin.Context) {
		s.hub.Serve(c.Writer, c.Request)
	})

	v1 := s.router.Group("/api/v1")
	{
		// ==========================================
		// GAMEPLAY (the browser client's action surface)
		// ==========================================
		v1.POST("/game/start", s.handleStartGame)
		v1.POST("/game/train", s.handleTrainSkill)
		v1.POST("/game/song", s.handleWriteSong)
		v1.POST("/game/week", s.handlePassWeek)
		v1.GET("/game/state", s.handleGameState)

		// ==========================================
		// PERSISTENCE
		// ==========================================
		v1.POST("/save", s.handleSaveNow)
		v1.GET("/saves", s.handleListSlots)
		v1.POST("/saves/:id/load", s.handleLoadSlot)
		v1.GET("/export", s.handleExport)

		// Settings
		v1.GET("/settings/:id", s.handleGetSettings)
		v1.PUT("/settings/:id", s.handlePutSettings)

		// ==========================================
		// SIMULATION READOUTS
		// ==========================================
		v1.GET("/sim/trends", s.handleTrends)
		v1.GET("/sim/mood", s.handleMood)
		v1.GET("/sim/events", s.handleEvents)
		v1.GET("/sim/charts", s.handleCharts)
		v1.GET("/sim/news", s.handleNews)

		// ==========================================
		// DESTRUCTIVE / ADMIN (JWT required)
		// ==========================================
		protected := v1.Group("/")
		protected.Use(RequireAuth([]byte(s.cfg.Server.JWTSecret)))
		{
			protected.DELETE("/saves/:id", RequireRole("admin"), s.handleDeleteSlot)
			protected.POST("/import", RequireRole("admin"), s.handleImport)
			protected.POST("/recover", RequireRole("admin"), s.handleRecover)
			protected.POST("/sync", RequireRole("admin"), s.handleSync)
		}
	}
}

// Start runs the server on the configured port
func (s *Server) Start(addr string) error {
	return s.router.Run(addr)
}

// Router exposes the engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
