package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/fanchat-io/fanchat-server/internal/config"
	"github.com/fanchat-io/fanchat-server/internal/service/chat"
	"github.com/fanchat-io/fanchat-server/internal/store"
)

// NewServer builds the HTTP server with all routes wired.
func NewServer(st store.Store, svc *chat.Service, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(st, svc, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter builds the gin handler tree. Split out so tests can drive it
// with httptest.
func NewRouter(st store.Store, svc *chat.Service, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	identity := HeaderIdentity()
	if cfg.LocalMode {
		identity = LocalIdentity(cfg.LocalUser)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(logger))
	router.Use(CurrentUserMiddleware(identity))
	router.Use(UTCOffsetMiddleware())
	router.Use(GripMiddleware(cfg.GripVerifyKey))

	rooms := NewRoomHandlers(st, cfg, logger)
	messages := NewMessageHandlers(svc, logger)
	admin := NewAdminHandlers(svc, logger)

	router.GET("/health", healthHandler)
	router.GET("/", rooms.Index)
	router.GET("/room/:slug", rooms.Room)
	router.GET("/room/:slug/messages", rooms.Messages)

	// Mutations require an API key; reads and the stream hold do not.
	keyed := router.Group("/", RequireAPIKey(cfg.APIKeys, cfg.LocalMode))
	keyed.POST("/room/:slug/messages", messages.Send)
	keyed.DELETE("/room/:slug/messages/:id", messages.Delete)

	adminGroup := router.Group("/admin", RequireAdminKey(cfg.AdminKey, cfg.LocalMode))
	adminGroup.DELETE("/room/:slug", admin.ClearRoom)
	adminGroup.DELETE("/room/:slug/:user", admin.ClearRoom)
	adminGroup.DELETE("/users/:user", admin.ClearUser)

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
