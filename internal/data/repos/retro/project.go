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

type ProjectRepo interface {
	Create(dbc dbctx.Context, p *types.Project) (*types.Project, error)
	GetByID(dbc dbctx.Context, id uint) (*types.Project, error)
	GetByName(dbc dbctx.Context, name string) (*types.Project, error)
	List(dbc dbctx.Context) ([]*types.Project, error)
}

type projectRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectRepo(db *gorm.DB, baseLog *logger.Logger) ProjectRepo {
	return &projectRepo{
		db:  db,
		log: baseLog.With("repo", "ProjectRepo"),
	}
}

func (r *projectRepo) Create(dbc dbctx.Context, p *types.Project) (*types.Project, error) {
	transaction := dbc.DB(r.db)
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return nil, domainerrs.InvalidArgumentf("project name required")
	}
	p.Name = strings.TrimSpace(p.Name)
	if err := transaction.Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

func (r *projectRepo) GetByID(dbc dbctx.Context, id uint) (*types.Project, error) {
	transaction := dbc.DB(r.db)
	var p types.Project
	err := transaction.Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainerrs.NotFoundf("project %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *projectRepo) GetByName(dbc dbctx.Context, name string) (*types.Project, error) {
	transaction := dbc.DB(r.db)
	var p types.Project
	err := transaction.Where("name = ?", strings.TrimSpace(name)).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainerrs.NotFoundf("project %q", name)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *projectRepo) List(dbc dbctx.Context) ([]*types.Project, error) {
	transaction := dbc.DB(r.db)
	var out []*types.Project
	if err := transaction.Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
