package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/portakall/retromeet/internal/http/response"
	"github.com/portakall/retromeet/internal/services"
)

type ResponseHandler struct {
	responses services.ResponseService
}

func NewResponseHandler(responses services.ResponseService) *ResponseHandler {
	return &ResponseHandler{responses: responses}
}

type submitResponseReq struct {
	ParticipantName string `json:"participant_name" binding:"required"`
	ProjectID       uint   `json:"project_id" binding:"required"`
	Question        string `json:"question" binding:"required"`
	ResponseText    string `json:"response_text" binding:"required"`
}

type submitChatReq struct {
	ParticipantName string `json:"participant_name" binding:"required"`
	ProjectID       uint   `json:"project_id" binding:"required"`
	ChatContent     string `json:"chat_content" binding:"required"`
	Question        string `json:"question"`
}

// POST /api/responses
func (h *ResponseHandler) Submit(c *gin.Context) {
	var req submitResponseReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	resp, err := h.responses.SubmitResponse(c.Request.Context(), services.SubmitResponseInput{
		ParticipantName: req.ParticipantName,
		ProjectID:       req.ProjectID,
		Question:        req.Question,
		Text:            req.ResponseText,
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"response": resp})
}

// POST /api/responses/chat
func (h *ResponseHandler) SubmitChat(c *gin.Context) {
	var req submitChatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	resp, err := h.responses.SubmitChatTranscript(c.Request.Context(), services.SubmitChatInput{
		ParticipantName: req.ParticipantName,
		ProjectID:       req.ProjectID,
		Question:        req.Question,
		Content:         req.ChatContent,
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"response": resp})
}

// GET /api/responses/:id
func (h *ResponseHandler) Get(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.responses.GetResponse(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"response": resp})
}
