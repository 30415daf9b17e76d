package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/portakall/retromeet/internal/http/response"
	"github.com/portakall/retromeet/internal/platform/logger"
	"github.com/portakall/retromeet/internal/realtime"
	"github.com/portakall/retromeet/internal/services"
)

type RealtimeHandler struct {
	log      *logger.Logger
	hub      *realtime.SSEHub
	projects services.ProjectService
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub, projects services.ProjectService) *RealtimeHandler {
	return &RealtimeHandler{
		log:      log.With("handler", "RealtimeHandler"),
		hub:      hub,
		projects: projects,
	}
}

// GET /api/projects/:id/events
func (h *RealtimeHandler) ProjectEvents(c *gin.Context) {
	projectID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if h.projects != nil {
		if _, err := h.projects.Get(c.Request.Context(), projectID); err != nil {
			response.RespondAPIError(c, err)
			return
		}
	}

	client := h.hub.NewSSEClient()
	h.hub.AddChannel(client, realtime.ProjectChannel(projectID))
	h.log.Debug("SSE stream open", "project_id", projectID, "sse_client_id", client.ID.String())

	h.hub.ServeHTTP(c.Writer, c.Request, client)
	h.hub.CloseClient(client)
}
