package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/stagium/backend/internal/clients/redis"
	"github.com/stagium/backend/internal/platform/doctools"
	"github.com/stagium/backend/internal/platform/filestore"
	"github.com/stagium/backend/internal/platform/logger"
	"github.com/stagium/backend/internal/platform/sendgrid"
	"github.com/stagium/backend/internal/services"
)

type Services struct {
	Placement  services.PlacementService
	Status     services.StatusService
	Dispatcher services.Dispatcher
	DocRef     services.DocRefValidator
	Files      filestore.Store
	Cache      redis.StageCache
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos) (Services, error) {
	log.Info("Wiring services...")

	mailer, err := sendgrid.NewFromEnv(log)
	if err != nil {
		return Services{}, fmt.Errorf("init sendgrid client: %w", err)
	}

	files, err := filestore.New(log, cfg.UploadRoot)
	if err != nil {
		return Services{}, fmt.Errorf("init filestore: %w", err)
	}

	tools := doctools.New(log)
	if err := tools.AssertReady(context.Background()); err != nil {
		log.Warn("Document tooling unavailable, PDF reference checks will fail", "error", err)
	}

	var cache redis.StageCache
	if cfg.CacheEnabled {
		cache, err = redis.NewStageCache(log)
		if err != nil {
			return Services{}, fmt.Errorf("init stage cache: %w", err)
		}
	}

	dispatcher := services.NewDispatcher(log, mailer, r.NotificationLog, cfg.NotifyConcurrency)
	docref := services.NewDocRefValidator(log, tools)

	placement := services.NewPlacementService(db, log,
		r.Stage, r.Groupe, r.Rotation, r.AffectationFinale, r.Utilisateur,
		files, dispatcher, cache)
	status := services.NewStatusService(db, log,
		r.Stage, r.Groupe, r.AffectationFinale, r.NoteService, r.Utilisateur,
		docref, files, dispatcher, cache)

	return Services{
		Placement:  placement,
		Status:     status,
		Dispatcher: dispatcher,
		DocRef:     docref,
		Files:      files,
		Cache:      cache,
	}, nil
}
