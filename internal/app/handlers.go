package app

import (
	"github.com/stagium/backend/internal/http/handlers"
	"github.com/stagium/backend/internal/platform/logger"
)

type Handlers struct {
	Stage *handlers.StageHandler
}

func wireHandlers(log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Stage: handlers.NewStageHandler(log, services.Placement, services.Status),
	}
}
