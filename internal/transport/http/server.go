package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/eidolonFIRE/xcNav-reflector/internal/config"
	"github.com/eidolonFIRE/xcNav-reflector/internal/core"
)

// NewServer builds the HTTP server: the WebSocket endpoint plus a small
// read-only REST surface.
func NewServer(svc *core.Service, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(LoggerMiddleware(logger), gin.Recovery())

	router.GET("/health", healthHandler)
	router.GET("/ws", gin.WrapH(NewWSHandler(svc, logger)))

	groups := NewGroupHandlers(svc, logger)
	api := router.Group("/api")
	{
		api.GET("/stats", groups.Stats)
		api.GET("/groups/:id", groups.GetGroup)
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
