package server

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/stagium/backend/internal/http/handlers"
	"github.com/stagium/backend/internal/http/middleware"
	"github.com/stagium/backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	UploadRoot     string
	StageHandler   *handlers.StageHandler
	AuthMiddleware *middleware.AuthMiddleware
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.AttachRequestContext())
	router.Use(middleware.RequestLogger(cfg.Log))
	router.Use(middleware.CORS())
	router.Use(otelgin.Middleware(cfg.ServiceName))

	// Public
	router.GET("/healthcheck", handlers.HealthCheck)
	router.Static("/files/notes_service", cfg.UploadRoot)

	// Protected
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())
	{
		api.POST("/stages", cfg.StageHandler.CreateStage)
		api.PUT("/stages/:stageId", cfg.StageHandler.ReplaceStage)
		api.PUT("/stages/:stageId/changer-statut", cfg.StageHandler.ChangeStatus)
		api.GET("/stages/:stageId/:type", cfg.StageHandler.GetStage)
		api.DELETE("/stages/:stageId", cfg.StageHandler.DeleteStage)
	}

	return router
}
