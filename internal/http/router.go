package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/portakall/retromeet/internal/http/handlers"
	httpMW "github.com/portakall/retromeet/internal/http/middleware"
	"github.com/portakall/retromeet/internal/observability"
	"github.com/portakall/retromeet/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins string
	// StaticDir, when set, serves local artifacts under /static.
	StaticDir string

	HealthHandler   *httpH.HealthHandler
	ProjectHandler  *httpH.ProjectHandler
	ResponseHandler *httpH.ResponseHandler
	PipelineHandler *httpH.PipelineHandler
	ChatHandler     *httpH.ChatHandler
	RealtimeHandler *httpH.RealtimeHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.StaticDir != "" {
		r.Static("/static", cfg.StaticDir)
	}

	api := r.Group("/api")
	{
		// Projects
		if cfg.ProjectHandler != nil {
			api.POST("/projects", cfg.ProjectHandler.CreateProject)
			api.GET("/projects", cfg.ProjectHandler.ListProjects)
			api.GET("/projects/:id", cfg.ProjectHandler.GetProject)
			api.POST("/projects/:id/participants", cfg.ProjectHandler.AddParticipant)
			api.GET("/projects/:id/participants", cfg.ProjectHandler.ListParticipants)
			api.GET("/projects/:id/responses", cfg.ProjectHandler.ListResponses)
		}

		// Responses
		if cfg.ResponseHandler != nil {
			api.POST("/responses", cfg.ResponseHandler.Submit)
			api.POST("/responses/chat", cfg.ResponseHandler.SubmitChat)
			api.GET("/responses/:id", cfg.ResponseHandler.Get)
		}

		// Synthesis
		if cfg.PipelineHandler != nil {
			api.POST("/projects/:id/participants/:pid/refine", cfg.PipelineHandler.Refine)
			api.POST("/projects/:id/topics", cfg.PipelineHandler.ExtractTopics)
			api.GET("/projects/:id/topics", cfg.PipelineHandler.GetTopics)
			api.POST("/projects/:id/topic_responses", cfg.PipelineHandler.TopicResponses)
			api.POST("/projects/:id/summary", cfg.PipelineHandler.GenerateSummary)
			api.PUT("/projects/:id/summary", cfg.PipelineHandler.UpdateSummary)
			api.GET("/projects/:id/summary", cfg.PipelineHandler.GetSummary)
		}

		// Chat session
		if cfg.ChatHandler != nil {
			api.POST("/chat/generate-link", cfg.ChatHandler.GenerateLink)
			api.GET("/chat/status", cfg.ChatHandler.Status)
			api.POST("/chat/stop-chat", cfg.ChatHandler.Stop)
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			api.GET("/projects/:id/events", cfg.RealtimeHandler.ProjectEvents)
		}
	}

	return r
}
