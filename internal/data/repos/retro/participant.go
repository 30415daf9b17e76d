package retro

import (
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/portakall/retromeet/internal/domain"
	"github.com/portakall/retromeet/internal/pkg/dbctx"
	domainerrs "github.com/portakall/retromeet/internal/pkg/errors"
	"github.com/portakall/retromeet/internal/platform/logger"
)

type ParticipantRepo interface {
	Create(dbc dbctx.Context, p *types.Participant) (*types.Participant, error)
	GetByID(dbc dbctx.Context, id uint) (*types.Participant, error)
	GetByName(dbc dbctx.Context, name string) (*types.Participant, error)
	GetOrCreateByName(dbc dbctx.Context, name string) (*types.Participant, error)
	List(dbc dbctx.Context) ([]*types.Participant, error)
	ListByProject(dbc dbctx.Context, projectID uint) ([]*types.Participant, error)
	UpdateAvatar(dbc dbctx.Context, id uint, avatarPath string) error
	Delete(dbc dbctx.Context, id uint) error
}

type participantRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewParticipantRepo(db *gorm.DB, baseLog *logger.Logger) ParticipantRepo {
	return &participantRepo{
		db:  db,
		log: baseLog.With("repo", "ParticipantRepo"),
	}
}

func (r *participantRepo) Create(dbc dbctx.Context, p *types.Participant) (*types.Participant, error) {
	transaction := dbc.DB(r.db)
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return nil, domainerrs.InvalidArgumentf("participant name required")
	}
	p.Name = strings.TrimSpace(p.Name)
	if err := transaction.Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// GetByID returns ErrNotFound when the participant does not exist.
func (r *participantRepo) GetByID(dbc dbctx.Context, id uint) (*types.Participant, error) {
	transaction := dbc.DB(r.db)
	var p types.Participant
	err := transaction.Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainerrs.NotFoundf("participant %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *participantRepo) GetByName(dbc dbctx.Context, name string) (*types.Participant, error) {
	transaction := dbc.DB(r.db)
	var p types.Participant
	err := transaction.Where("name = ?", strings.TrimSpace(name)).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainerrs.NotFoundf("participant %q", name)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetOrCreateByName tolerates a concurrent insert of the same name by
// re-reading after an ignored conflict.
func (r *participantRepo) GetOrCreateByName(dbc dbctx.Context, name string) (*types.Participant, error) {
	transaction := dbc.DB(r.db)
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domainerrs.InvalidArgumentf("participant name required")
	}
	p := &types.Participant{Name: name}
	res := transaction.
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(p)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 && p.ID != 0 {
		r.log.Debug("Participant created", "participant_id", p.ID)
		return p, nil
	}
	return r.GetByName(dbc, name)
}

func (r *participantRepo) List(dbc dbctx.Context) ([]*types.Participant, error) {
	transaction := dbc.DB(r.db)
	var out []*types.Participant
	if err := transaction.Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListByProject returns associated participants in join order.
func (r *participantRepo) ListByProject(dbc dbctx.Context, projectID uint) ([]*types.Participant, error) {
	transaction := dbc.DB(r.db)
	var out []*types.Participant
	err := transaction.
		Joins("JOIN project_participants pp ON pp.participant_id = participants.id").
		Where("pp.project_id = ?", projectID).
		Order("pp.joined_at ASC, pp.id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *participantRepo) UpdateAvatar(dbc dbctx.Context, id uint, avatarPath string) error {
	transaction := dbc.DB(r.db)
	res := transaction.
		Model(&types.Participant{}).
		Where("id = ?", id).
		Update("avatar_path", avatarPath)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domainerrs.NotFoundf("participant %d", id)
	}
	return nil
}

// Delete removes the participant together with its project associations and
// responses in one transaction.
func (r *participantRepo) Delete(dbc dbctx.Context, id uint) error {
	transaction := dbc.DB(r.db)
	return transaction.Transaction(func(txx *gorm.DB) error {
		if err := txx.Where("participant_id = ?", id).Delete(&types.ProjectParticipant{}).Error; err != nil {
			return err
		}
		if err := txx.Where("participant_id = ?", id).Delete(&types.Response{}).Error; err != nil {
			return err
		}
		res := txx.Where("id = ?", id).Delete(&types.Participant{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domainerrs.NotFoundf("participant %d", id)
		}
		r.log.Info("Participant deleted", "participant_id", id)
		return nil
	})
}
