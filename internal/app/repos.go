package app

import (
	"gorm.io/gorm"

	"github.com/stagium/backend/internal/data/repos"
	"github.com/stagium/backend/internal/platform/logger"
)

type Repos struct {
	Stage             repos.StageRepo
	Groupe            repos.GroupeRepo
	Rotation          repos.RotationRepo
	AffectationFinale repos.AffectationFinaleRepo
	NoteService       repos.NoteServiceRepo
	Utilisateur       repos.UtilisateurRepo
	NotificationLog   repos.NotificationLogRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Stage:             repos.NewStageRepo(db, log),
		Groupe:            repos.NewGroupeRepo(db, log),
		Rotation:          repos.NewRotationRepo(db, log),
		AffectationFinale: repos.NewAffectationFinaleRepo(db, log),
		NoteService:       repos.NewNoteServiceRepo(db, log),
		Utilisateur:       repos.NewUtilisateurRepo(db, log),
		NotificationLog:   repos.NewNotificationLogRepo(db, log),
	}
}
