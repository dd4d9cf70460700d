package http

import (
	stdhttp "net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/relaychat/relaychat-server/internal/auth"
	"github.com/relaychat/relaychat-server/internal/config"
	"github.com/relaychat/relaychat-server/internal/core"
	"github.com/relaychat/relaychat-server/internal/store"
)

// NewServer builds the HTTP server: REST API, WebSocket endpoints and the
// static UI.
func NewServer(registry *core.Registry, pipeline *core.Pipeline, authService *auth.Service, st store.Store, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	if cfg.StaticDir != "" {
		router.Static("/static", cfg.StaticDir)
		router.GET("/", func(c *gin.Context) {
			c.File(filepath.Join(cfg.StaticDir, "index.html"))
		})
		router.GET("/favicon.ico", func(c *gin.Context) {
			c.File(filepath.Join(cfg.StaticDir, "favicon.ico"))
		})
	}

	apiHandlers := NewAPIHandlers(authService, logger)
	userHandlers := NewUserHandlers(st, logger)
	historyHandlers := NewHistoryHandlers(st, logger)
	wsHandler := NewWSHandler(authService, registry, pipeline, cfg.WSFrameLimit, logger)

	api := router.Group("/api")
	api.POST("/signup", apiHandlers.Signup)
	api.POST("/register", apiHandlers.Signup) // legacy alias
	api.POST("/login", apiHandlers.Login)
	api.POST("/signin", apiHandlers.Login) // legacy alias
	api.POST("/refresh", apiHandlers.Refresh)

	authed := api.Group("", AuthMiddleware(authService, logger))
	authed.GET("/search-users", userHandlers.SearchUsers)
	authed.GET("/dialogs", userHandlers.Dialogs)
	authed.GET("/dm", historyHandlers.DirectHistory)
	authed.GET("/room", historyHandlers.RoomHistory)

	ws := router.Group("/ws")
	ws.GET("/notify", wsHandler.Notify)
	ws.GET("/dm/:peer", wsHandler.Direct)
	ws.GET("/room/:room", wsHandler.Room)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.JSON(stdhttp.StatusOK, gin.H{"ok": true})
}
