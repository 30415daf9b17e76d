package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/portakall/retromeet/internal/chatsurface"
	"github.com/portakall/retromeet/internal/http/response"
	"github.com/portakall/retromeet/internal/services"
)

type ChatHandler struct {
	sessions services.ChatSessionManager
}

func NewChatHandler(sessions services.ChatSessionManager) *ChatHandler {
	return &ChatHandler{sessions: sessions}
}

type chatParticipantReq struct {
	ID         uint   `json:"id"`
	Name       string `json:"name" binding:"required"`
	AvatarPath string `json:"avatar_path"`
}

type generateLinkReq struct {
	ProjectID    uint                 `json:"project_id" binding:"required"`
	Participants []chatParticipantReq `json:"participants" binding:"dive"`
}

// POST /api/chat/generate-link
func (h *ChatHandler) GenerateLink(c *gin.Context) {
	var req generateLinkReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	participants := make([]chatsurface.Participant, 0, len(req.Participants))
	for _, p := range req.Participants {
		participants = append(participants, chatsurface.Participant{ID: p.ID, Name: p.Name, AvatarPath: p.AvatarPath})
	}
	status, err := h.sessions.Start(c.Request.Context(), req.ProjectID, participants)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, status)
}

// GET /api/chat/status?projectId=
func (h *ChatHandler) Status(c *gin.Context) {
	var projectID *uint
	if v := strings.TrimSpace(c.Query("projectId")); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_project_id", fmt.Errorf("invalid projectId %q", v))
			return
		}
		id := uint(n)
		projectID = &id
	}
	response.RespondOK(c, h.sessions.Status(projectID))
}

// POST /api/chat/stop-chat
func (h *ChatHandler) Stop(c *gin.Context) {
	if err := h.sessions.Stop(c.Request.Context()); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"message": "Chat session stopped.", "status": h.sessions.Status(nil)})
}
