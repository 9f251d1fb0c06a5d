package repos

import (
	"github.com/stagium/backend/internal/data/repos/directory"
	"github.com/stagium/backend/internal/data/repos/notifications"
	"github.com/stagium/backend/internal/data/repos/placement"
)

type StageRepo = placement.StageRepo
type GroupeRepo = placement.GroupeRepo
type RotationRepo = placement.RotationRepo
type AffectationFinaleRepo = placement.AffectationFinaleRepo
type NoteServiceRepo = placement.NoteServiceRepo

type UtilisateurRepo = directory.UtilisateurRepo

type NotificationLogRepo = notifications.LogRepo

var NewStageRepo = placement.NewStageRepo
var NewGroupeRepo = placement.NewGroupeRepo
var NewRotationRepo = placement.NewRotationRepo
var NewAffectationFinaleRepo = placement.NewAffectationFinaleRepo
var NewNoteServiceRepo = placement.NewNoteServiceRepo
var NewUtilisateurRepo = directory.NewUtilisateurRepo
var NewNotificationLogRepo = notifications.NewLogRepo
