package app

import (
	"gorm.io/gorm"

	"github.com/portakall/retromeet/internal/http"
	httpH "github.com/portakall/retromeet/internal/http/handlers"
	"github.com/portakall/retromeet/internal/observability"
	"github.com/portakall/retromeet/internal/platform/logger"
	"github.com/portakall/retromeet/internal/realtime"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Project  *httpH.ProjectHandler
	Response *httpH.ResponseHandler
	Pipeline *httpH.PipelineHandler
	Chat     *httpH.ChatHandler
	Realtime *httpH.RealtimeHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, services Services, hub *realtime.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:   httpH.NewHealthHandler(db),
		Project:  httpH.NewProjectHandler(services.Projects, services.Responses),
		Response: httpH.NewResponseHandler(services.Responses),
		Pipeline: httpH.NewPipelineHandler(services.Pipeline),
		Chat:     httpH.NewChatHandler(services.Chat),
		Realtime: httpH.NewRealtimeHandler(log, hub, services.Projects),
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers) *http.Server {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.ServiceName
	}
	staticDir := ""
	if cfg.ArtifactStore == "" || cfg.ArtifactStore == ArtifactStoreLocal {
		staticDir = cfg.ArtifactDir
	}
	return http.NewServer(http.RouterConfig{
		Log:             log,
		Metrics:         observability.Current(),
		ServiceName:     serviceName,
		CORSOrigins:     cfg.CORSOrigins,
		StaticDir:       staticDir,
		HealthHandler:   handlers.Health,
		ProjectHandler:  handlers.Project,
		ResponseHandler: handlers.Response,
		PipelineHandler: handlers.Pipeline,
		ChatHandler:     handlers.Chat,
		RealtimeHandler: handlers.Realtime,
	})
}
