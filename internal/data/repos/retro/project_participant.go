package retro

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/portakall/retromeet/internal/domain"
	"github.com/portakall/retromeet/internal/pkg/dbctx"
	"github.com/portakall/retromeet/internal/platform/logger"
)

type ProjectParticipantRepo interface {
	// Add is idempotent; added reports whether a new row was written.
	Add(dbc dbctx.Context, projectID, participantID uint) (added bool, err error)
	Exists(dbc dbctx.Context, projectID, participantID uint) (bool, error)
	ListParticipantIDs(dbc dbctx.Context, projectID uint) ([]uint, error)
}

type projectParticipantRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectParticipantRepo(db *gorm.DB, baseLog *logger.Logger) ProjectParticipantRepo {
	return &projectParticipantRepo{
		db:  db,
		log: baseLog.With("repo", "ProjectParticipantRepo"),
	}
}

func (r *projectParticipantRepo) Add(dbc dbctx.Context, projectID, participantID uint) (bool, error) {
	transaction := dbc.DB(r.db)
	row := &types.ProjectParticipant{ProjectID: projectID, ParticipantID: participantID}
	res := transaction.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "participant_id"}},
			DoNothing: true,
		}).
		Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *projectParticipantRepo) Exists(dbc dbctx.Context, projectID, participantID uint) (bool, error) {
	transaction := dbc.DB(r.db)
	var n int64
	err := transaction.
		Model(&types.ProjectParticipant{}).
		Where("project_id = ? AND participant_id = ?", projectID, participantID).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *projectParticipantRepo) ListParticipantIDs(dbc dbctx.Context, projectID uint) ([]uint, error) {
	transaction := dbc.DB(r.db)
	var ids []uint
	err := transaction.
		Model(&types.ProjectParticipant{}).
		Where("project_id = ?", projectID).
		Order("joined_at ASC, id ASC").
		Pluck("participant_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
