package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/portakall/retromeet/internal/data/repos"
	types "github.com/portakall/retromeet/internal/domain"
	"github.com/portakall/retromeet/internal/pkg/dbctx"
	"github.com/portakall/retromeet/internal/platform/artifacts"
	"github.com/portakall/retromeet/internal/platform/avatar"
	"github.com/portakall/retromeet/internal/platform/logger"
)

type AvatarService interface {
	// EnsureAvatar renders and stores an initials avatar unless the
	// participant already has one.
	EnsureAvatar(ctx context.Context, participantID uint) (*types.Participant, error)
	// EnsureProjectAvatars runs EnsureAvatar for every project member and
	// reports how many avatars were created.
	EnsureProjectAvatars(ctx context.Context, projectID uint) (int, error)
}

type avatarService struct {
	log          *logger.Logger
	renderer     *avatar.Renderer
	store        artifacts.Store
	participants repos.ParticipantRepo
}

func NewAvatarService(log *logger.Logger, renderer *avatar.Renderer, store artifacts.Store, participants repos.ParticipantRepo) AvatarService {
	return &avatarService{
		log:          log.With("service", "AvatarService"),
		renderer:     renderer,
		store:        store,
		participants: participants,
	}
}

func (as *avatarService) EnsureAvatar(ctx context.Context, participantID uint) (*types.Participant, error) {
	dbc := dbctx.New(ctx)
	p, err := as.participants.GetByID(dbc, participantID)
	if err != nil {
		return nil, err
	}
	if p.AvatarPath != nil && strings.TrimSpace(*p.AvatarPath) != "" {
		return p, nil
	}
	if err := as.create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (as *avatarService) EnsureProjectAvatars(ctx context.Context, projectID uint) (int, error) {
	members, err := as.participants.ListByProject(dbctx.New(ctx), projectID)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, p := range members {
		if p.AvatarPath != nil && strings.TrimSpace(*p.AvatarPath) != "" {
			continue
		}
		if err := as.create(ctx, p); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func (as *avatarService) create(ctx context.Context, p *types.Participant) error {
	png, err := as.renderer.Render(p.Name)
	if err != nil {
		return fmt.Errorf("render avatar: %w", err)
	}
	key := artifacts.AvatarKey(p.ID)
	if err := as.store.Write(ctx, key, "image/png", png); err != nil {
		return fmt.Errorf("failed to upload participant avatar: %w", err)
	}
	url := as.store.URL(key)
	if err := as.participants.UpdateAvatar(dbctx.New(ctx), p.ID, url); err != nil {
		return err
	}
	p.AvatarPath = &url
	as.log.Info("Avatar created", "participant_id", p.ID, "key", key)
	return nil
}
