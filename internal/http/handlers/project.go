package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/portakall/retromeet/internal/http/response"
	"github.com/portakall/retromeet/internal/services"
)

type ProjectHandler struct {
	projects  services.ProjectService
	responses services.ResponseService
}

func NewProjectHandler(projects services.ProjectService, responses services.ResponseService) *ProjectHandler {
	return &ProjectHandler{projects: projects, responses: responses}
}

type nameReq struct {
	Name string `json:"name" binding:"required"`
}

// POST /api/projects
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var req nameReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	project, err := h.projects.Create(c.Request.Context(), req.Name)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"project": project})
}

// GET /api/projects
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	projects, err := h.projects.List(c.Request.Context())
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"projects": projects})
}

// GET /api/projects/:id
func (h *ProjectHandler) GetProject(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	project, err := h.projects.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"project": project})
}

// POST /api/projects/:id/participants
func (h *ProjectHandler) AddParticipant(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req nameReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	participant, err := h.projects.AddParticipant(c.Request.Context(), id, req.Name)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"participant": participant})
}

// GET /api/projects/:id/participants
func (h *ProjectHandler) ListParticipants(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	participants, err := h.projects.ListParticipants(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"participants": participants})
}

// GET /api/projects/:id/responses
func (h *ProjectHandler) ListResponses(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	rows, err := h.responses.ListProjectResponses(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"responses": rows})
}
