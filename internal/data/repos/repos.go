package repos

import (
	"gorm.io/gorm"

	"github.com/portakall/retromeet/internal/data/repos/retro"
	"github.com/portakall/retromeet/internal/platform/logger"
)

type ParticipantRepo = retro.ParticipantRepo
type ProjectRepo = retro.ProjectRepo
type ProjectParticipantRepo = retro.ProjectParticipantRepo
type ResponseRepo = retro.ResponseRepo
type RefinedText = retro.RefinedText

func NewParticipantRepo(db *gorm.DB, log *logger.Logger) ParticipantRepo {
	return retro.NewParticipantRepo(db, log)
}

func NewProjectRepo(db *gorm.DB, log *logger.Logger) ProjectRepo {
	return retro.NewProjectRepo(db, log)
}

func NewProjectParticipantRepo(db *gorm.DB, log *logger.Logger) ProjectParticipantRepo {
	return retro.NewProjectParticipantRepo(db, log)
}

func NewResponseRepo(db *gorm.DB, log *logger.Logger) ResponseRepo {
	return retro.NewResponseRepo(db, log)
}
