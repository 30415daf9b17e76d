package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/portakall/retromeet/internal/data/repos"
	types "github.com/portakall/retromeet/internal/domain"
	"github.com/portakall/retromeet/internal/pkg/dbctx"
	domainerrs "github.com/portakall/retromeet/internal/pkg/errors"
	"github.com/portakall/retromeet/internal/platform/logger"
)

type ProjectService interface {
	Create(ctx context.Context, name string) (*types.Project, error)
	Get(ctx context.Context, id uint) (*types.Project, error)
	List(ctx context.Context) ([]*types.Project, error)
	// AddParticipant joins the named participant to the project, creating the
	// participant on first use. Re-adding is a no-op.
	AddParticipant(ctx context.Context, projectID uint, name string) (*types.Participant, error)
	ListParticipants(ctx context.Context, projectID uint) ([]*types.Participant, error)
}

type projectService struct {
	db           *gorm.DB
	log          *logger.Logger
	projects     repos.ProjectRepo
	participants repos.ParticipantRepo
	members      repos.ProjectParticipantRepo
}

func NewProjectService(db *gorm.DB, log *logger.Logger, projects repos.ProjectRepo, participants repos.ParticipantRepo, members repos.ProjectParticipantRepo) ProjectService {
	return &projectService{
		db:           db,
		log:          log.With("service", "ProjectService"),
		projects:     projects,
		participants: participants,
		members:      members,
	}
}

func (s *projectService) Create(ctx context.Context, name string) (*types.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domainerrs.InvalidArgumentf("project name required")
	}
	var out *types.Project
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.New(ctx).WithTx(tx)
		_, err := s.projects.GetByName(dbc, name)
		switch {
		case err == nil:
			return domainerrs.InvalidArgumentf("project %q already exists", name)
		case !errors.Is(err, domainerrs.ErrNotFound):
			return err
		}
		out, err = s.projects.Create(dbc, &types.Project{Name: name})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Project created", "project_id", out.ID)
	return out, nil
}

func (s *projectService) Get(ctx context.Context, id uint) (*types.Project, error) {
	return s.projects.GetByID(dbctx.New(ctx), id)
}

func (s *projectService) List(ctx context.Context) ([]*types.Project, error) {
	return s.projects.List(dbctx.New(ctx))
}

func (s *projectService) AddParticipant(ctx context.Context, projectID uint, name string) (*types.Participant, error) {
	var out *types.Participant
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.New(ctx).WithTx(tx)
		if _, err := s.projects.GetByID(dbc, projectID); err != nil {
			return err
		}
		p, err := s.participants.GetOrCreateByName(dbc, name)
		if err != nil {
			return err
		}
		added, err := s.members.Add(dbc, projectID, p.ID)
		if err != nil {
			return err
		}
		if added {
			s.log.Info("Participant joined project", "project_id", projectID, "participant_id", p.ID)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *projectService) ListParticipants(ctx context.Context, projectID uint) ([]*types.Participant, error) {
	dbc := dbctx.New(ctx)
	if _, err := s.projects.GetByID(dbc, projectID); err != nil {
		return nil, err
	}
	return s.participants.ListByProject(dbc, projectID)
}
