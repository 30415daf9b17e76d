package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	types "github.com/portakall/retromeet/internal/domain"
	retrodomain "github.com/portakall/retromeet/internal/domain/retro"
	"github.com/portakall/retromeet/internal/http/response"
	"github.com/portakall/retromeet/internal/modules/retro"
)

// Pipeline is the synthesis surface the API exposes. retro.Usecases
// implements it.
type Pipeline interface {
	Refine(ctx context.Context, in retro.RefineInput) (retro.RefineOutput, error)
	ExtractTopics(ctx context.Context, projectID uint) (retro.TopicsOutput, error)
	CachedTopics(ctx context.Context, projectID uint) (retro.TopicsOutput, error)
	RelevantSnippets(ctx context.Context, projectID uint, topic string) ([]types.ParticipantRelevance, error)
	GenerateSummary(ctx context.Context, projectID uint) (retro.SummaryOutput, error)
	UpdateSummary(ctx context.Context, projectID uint, doc types.SummaryDocument) (retro.SummaryOutput, error)
	GetSummary(ctx context.Context, projectID uint) (retro.SummaryOutput, error)
}

type PipelineHandler struct {
	pipeline Pipeline
}

func NewPipelineHandler(pipeline Pipeline) *PipelineHandler {
	return &PipelineHandler{pipeline: pipeline}
}

// POST /api/projects/:id/participants/:pid/refine
func (h *PipelineHandler) Refine(c *gin.Context) {
	projectID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	participantID, ok := uintParam(c, "pid")
	if !ok {
		return
	}
	out, err := h.pipeline.Refine(c.Request.Context(), retro.RefineInput{ParticipantID: participantID, ProjectID: projectID})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, out)
}

// POST /api/projects/:id/topics
func (h *PipelineHandler) ExtractTopics(c *gin.Context) {
	projectID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	out, err := h.pipeline.ExtractTopics(c.Request.Context(), projectID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/projects/:id/topics
func (h *PipelineHandler) GetTopics(c *gin.Context) {
	projectID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	out, err := h.pipeline.CachedTopics(c.Request.Context(), projectID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, out)
}

type topicReq struct {
	Topic string `json:"topic" binding:"required"`
}

// POST /api/projects/:id/topic_responses
func (h *PipelineHandler) TopicResponses(c *gin.Context) {
	projectID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req topicReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	out, err := h.pipeline.RelevantSnippets(c.Request.Context(), projectID, req.Topic)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if out == nil {
		out = []types.ParticipantRelevance{}
	}
	response.RespondOK(c, gin.H{"topic": req.Topic, "participants": out})
}

// POST /api/projects/:id/summary
func (h *PipelineHandler) GenerateSummary(c *gin.Context) {
	projectID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	out, err := h.pipeline.GenerateSummary(c.Request.Context(), projectID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, out)
}

// PUT /api/projects/:id/summary
func (h *PipelineHandler) UpdateSummary(c *gin.Context) {
	projectID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	doc, err := retrodomain.DecodeSummaryDocument(raw)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_summary", err)
		return
	}
	out, err := h.pipeline.UpdateSummary(c.Request.Context(), projectID, doc)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/projects/:id/summary
func (h *PipelineHandler) GetSummary(c *gin.Context) {
	projectID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	out, err := h.pipeline.GetSummary(c.Request.Context(), projectID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, out)
}
