package app

import (
	"gorm.io/gorm"

	"github.com/portakall/retromeet/internal/data/repos"
	"github.com/portakall/retromeet/internal/platform/logger"
)

type Repos struct {
	Participant        repos.ParticipantRepo
	Project            repos.ProjectRepo
	ProjectParticipant repos.ProjectParticipantRepo
	Response           repos.ResponseRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Participant:        repos.NewParticipantRepo(db, log),
		Project:            repos.NewProjectRepo(db, log),
		ProjectParticipant: repos.NewProjectParticipantRepo(db, log),
		Response:           repos.NewResponseRepo(db, log),
	}
}
