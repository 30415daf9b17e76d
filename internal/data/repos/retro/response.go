package retro

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	types "github.com/portakall/retromeet/internal/domain"
	"github.com/portakall/retromeet/internal/pkg/dbctx"
	domainerrs "github.com/portakall/retromeet/internal/pkg/errors"
	"github.com/portakall/retromeet/internal/platform/logger"
)

// RefinedText is one participant's refined narrative for a project.
type RefinedText struct {
	ParticipantID uint
	Text          string
}

type ResponseRepo interface {
	Create(dbc dbctx.Context, r *types.Response) (*types.Response, error)
	GetByID(dbc dbctx.Context, id uint) (*types.Response, error)
	ListByProject(dbc dbctx.Context, projectID uint) ([]*types.Response, error)
	ListByParticipantProject(dbc dbctx.Context, participantID, projectID uint) ([]*types.Response, error)
	SetRefinedForParticipant(dbc dbctx.Context, participantID, projectID uint, text string) (int64, error)
	ListLatestRefinedPerParticipant(dbc dbctx.Context, projectID uint) ([]RefinedText, error)
}

type responseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResponseRepo(db *gorm.DB, baseLog *logger.Logger) ResponseRepo {
	return &responseRepo{
		db:  db,
		log: baseLog.With("repo", "ResponseRepo"),
	}
}

func (r *responseRepo) Create(dbc dbctx.Context, resp *types.Response) (*types.Response, error) {
	transaction := dbc.DB(r.db)
	if resp == nil {
		return nil, domainerrs.InvalidArgumentf("response required")
	}
	if resp.ParticipantID == 0 || resp.ProjectID == 0 {
		return nil, domainerrs.InvalidArgumentf("participant and project required")
	}
	if err := transaction.Create(resp).Error; err != nil {
		return nil, err
	}
	return resp, nil
}

func (r *responseRepo) GetByID(dbc dbctx.Context, id uint) (*types.Response, error) {
	transaction := dbc.DB(r.db)
	var out types.Response
	err := transaction.Preload("Participant").Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainerrs.NotFoundf("response %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListByProject returns rows in creation order with Participant preloaded.
func (r *responseRepo) ListByProject(dbc dbctx.Context, projectID uint) ([]*types.Response, error) {
	transaction := dbc.DB(r.db)
	var out []*types.Response
	err := transaction.
		Preload("Participant").
		Where("project_id = ?", projectID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *responseRepo) ListByParticipantProject(dbc dbctx.Context, participantID, projectID uint) ([]*types.Response, error) {
	transaction := dbc.DB(r.db)
	var out []*types.Response
	err := transaction.
		Where("participant_id = ? AND project_id = ?", participantID, projectID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetRefinedForParticipant writes text to every row of the pair in a single
// statement, so the rows never disagree.
func (r *responseRepo) SetRefinedForParticipant(dbc dbctx.Context, participantID, projectID uint, text string) (int64, error) {
	transaction := dbc.DB(r.db)
	res := transaction.
		Model(&types.Response{}).
		Where("participant_id = ? AND project_id = ?", participantID, projectID).
		Update("refined_response", text)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// ListLatestRefinedPerParticipant returns at most one refined text per
// participant, ordered by each participant's first refined row.
//
// Rows of one participant should never disagree. If they do, the most recent
// row (created_at, then id) wins and the divergence is logged at Warn. That
// tie-break is a local choice so the result is deterministic; callers must not
// rely on it.
func (r *responseRepo) ListLatestRefinedPerParticipant(dbc dbctx.Context, projectID uint) ([]RefinedText, error) {
	transaction := dbc.DB(r.db)
	var rows []*types.Response
	err := transaction.
		Select("id", "participant_id", "refined_response", "created_at").
		Where("project_id = ? AND refined_response IS NOT NULL", projectID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	index := map[uint]int{}
	out := make([]RefinedText, 0, len(rows))
	for _, row := range rows {
		text := row.Refined()
		i, seen := index[row.ParticipantID]
		if !seen {
			index[row.ParticipantID] = len(out)
			out = append(out, RefinedText{ParticipantID: row.ParticipantID, Text: text})
			continue
		}
		if strings.TrimSpace(out[i].Text) != strings.TrimSpace(text) {
			r.log.Warn("Refined responses diverge for participant; using most recent",
				"project_id", projectID,
				"participant_id", row.ParticipantID,
				"response_id", row.ID,
			)
		}
		out[i].Text = text
	}
	return out, nil
}
