package app

import (
	"github.com/gin-gonic/gin"

	"github.com/stagium/backend/internal/platform/logger"
	"github.com/stagium/backend/internal/server"
)

func wireRouter(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		Log:            log,
		ServiceName:    "stagium-backend",
		UploadRoot:     cfg.UploadRoot,
		StageHandler:   handlers.Stage,
		AuthMiddleware: middleware.Auth,
	})
}
