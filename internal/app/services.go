package app

import (
	"context"

	"gorm.io/gorm"

	"github.com/portakall/retromeet/internal/chatsurface"
	"github.com/portakall/retromeet/internal/modules/retro"
	"github.com/portakall/retromeet/internal/platform/avatar"
	"github.com/portakall/retromeet/internal/platform/logger"
	"github.com/portakall/retromeet/internal/realtime"
	"github.com/portakall/retromeet/internal/services"
)

type Services struct {
	Notifier  services.RetroNotifier
	Pipeline  retro.Usecases
	Responses services.ResponseService
	Projects  services.ProjectService
	Avatars   services.AvatarService
	Chat      services.ChatSessionManager
}

// wireServices builds the domain services. baseCtx bounds background work
// such as the chat session task.
func wireServices(baseCtx context.Context, db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, clients Clients, hub *realtime.SSEHub) (Services, error) {
	log.Info("Wiring services...")

	var emitter services.SSEEmitter = &services.HubEmitter{Hub: hub}
	if clients.Bus != nil {
		emitter = &services.BusEmitter{Bus: clients.Bus, Log: log}
	}
	notifier := services.NewRetroNotifier(emitter)

	pipeline := retro.New(retro.UsecasesDeps{
		DB:                   db,
		Log:                  log,
		AI:                   clients.AI,
		Artifacts:            clients.Artifacts,
		Topics:               clients.Topics,
		Notify:               notifier,
		Participants:         repos.Participant,
		Projects:             repos.Project,
		Responses:            repos.Response,
		RelevanceConcurrency: cfg.RelevanceConcurrency,
	})

	responseService := services.NewResponseService(
		db,
		log,
		repos.Participant,
		repos.Project,
		repos.ProjectParticipant,
		repos.Response,
		clients.Artifacts,
		pipeline,
		notifier,
	)
	projectService := services.NewProjectService(db, log, repos.Project, repos.Participant, repos.ProjectParticipant)

	renderer, err := avatar.NewRenderer(cfg.AvatarSize)
	if err != nil {
		return Services{}, err
	}
	avatarService := services.NewAvatarService(log, renderer, clients.Artifacts, repos.Participant)

	chatServer := chatsurface.NewServer(log, cfg.Chat, clients.AI, responseService)
	chatSessions := services.NewChatSessionManager(baseCtx, log, chatServer, notifier, cfg.ChatSession)

	return Services{
		Notifier:  notifier,
		Pipeline:  pipeline,
		Responses: responseService,
		Projects:  projectService,
		Avatars:   avatarService,
		Chat:      chatSessions,
	}, nil
}
