package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portakall/retromeet/internal/chatsurface"
	types "github.com/portakall/retromeet/internal/domain"
	"github.com/portakall/retromeet/internal/modules/retro"
	domainerrs "github.com/portakall/retromeet/internal/pkg/errors"
	"github.com/portakall/retromeet/internal/services"
)

type fakePipeline struct {
	relevance []types.ParticipantRelevance
	summary   *types.SummaryDocument
	err       error
	topic     string
}

func (f *fakePipeline) Refine(_ context.Context, in retro.RefineInput) (retro.RefineOutput, error) {
	if f.err != nil {
		return retro.RefineOutput{}, f.err
	}
	return retro.RefineOutput{ParticipantID: in.ParticipantID, ProjectID: in.ProjectID, Narrative: "n", RowsUpdated: 2}, nil
}

func (f *fakePipeline) ExtractTopics(_ context.Context, id uint) (retro.TopicsOutput, error) {
	return retro.TopicsOutput{ProjectID: id, Topics: []string{"CI", "Planning"}}, f.err
}

func (f *fakePipeline) CachedTopics(_ context.Context, id uint) (retro.TopicsOutput, error) {
	return retro.TopicsOutput{ProjectID: id}, domainerrs.NotFoundf("no cached topics for project %d", id)
}

func (f *fakePipeline) RelevantSnippets(_ context.Context, _ uint, topic string) ([]types.ParticipantRelevance, error) {
	f.topic = topic
	return f.relevance, f.err
}

func (f *fakePipeline) GenerateSummary(_ context.Context, id uint) (retro.SummaryOutput, error) {
	if f.err != nil {
		return retro.SummaryOutput{}, f.err
	}
	return retro.SummaryOutput{ProjectID: id, Document: types.SummaryDocument{Title: "T", ActionItems: []types.ActionItem{}}}, nil
}

func (f *fakePipeline) UpdateSummary(_ context.Context, id uint, doc types.SummaryDocument) (retro.SummaryOutput, error) {
	f.summary = &doc
	return retro.SummaryOutput{ProjectID: id, Document: doc}, nil
}

func (f *fakePipeline) GetSummary(_ context.Context, id uint) (retro.SummaryOutput, error) {
	return retro.SummaryOutput{}, domainerrs.NotFoundf("summary for project %d", id)
}

type fakeSessions struct {
	started      []uint
	participants []chatsurface.Participant
	stopped      int
	lastQuery    *uint
}

func (f *fakeSessions) Start(_ context.Context, projectID uint, ps []chatsurface.Participant) (services.SessionStatus, error) {
	f.started = append(f.started, projectID)
	f.participants = ps
	return services.SessionStatus{State: services.SessionStarting, Message: services.StatusMessageInitializing}, nil
}

func (f *fakeSessions) Stop(context.Context) error {
	f.stopped++
	return nil
}

func (f *fakeSessions) Status(projectID *uint) services.SessionStatus {
	f.lastQuery = projectID
	return services.SessionStatus{State: services.SessionIdle, Message: services.StatusMessageNotRunning}
}

func do(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func pipelineRouter(p Pipeline) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewPipelineHandler(p)
	r := gin.New()
	r.POST("/projects/:id/participants/:pid/refine", h.Refine)
	r.POST("/projects/:id/topics", h.ExtractTopics)
	r.GET("/projects/:id/topics", h.GetTopics)
	r.POST("/projects/:id/topic_responses", h.TopicResponses)
	r.POST("/projects/:id/summary", h.GenerateSummary)
	r.PUT("/projects/:id/summary", h.UpdateSummary)
	r.GET("/projects/:id/summary", h.GetSummary)
	return r
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error.Code
}

func TestPipelineHandlerRoutes(t *testing.T) {
	p := &fakePipeline{relevance: []types.ParticipantRelevance{{ParticipantID: 1, ParticipantName: "Alice", Snippets: []string{"CI was slow"}}}}
	r := pipelineRouter(p)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{name: "refine", method: http.MethodPost, path: "/projects/7/participants/3/refine", status: http.StatusOK},
		{name: "bad project id", method: http.MethodPost, path: "/projects/abc/topics", status: http.StatusBadRequest, code: "invalid_id"},
		{name: "zero project id", method: http.MethodPost, path: "/projects/0/topics", status: http.StatusBadRequest, code: "invalid_id"},
		{name: "topics", method: http.MethodPost, path: "/projects/7/topics", status: http.StatusOK},
		{name: "no cached topics", method: http.MethodGet, path: "/projects/7/topics", status: http.StatusNotFound, code: "not_found"},
		{name: "relevance", method: http.MethodPost, path: "/projects/7/topic_responses", body: `{"topic":"CI"}`, status: http.StatusOK},
		{name: "relevance missing topic", method: http.MethodPost, path: "/projects/7/topic_responses", body: `{}`, status: http.StatusBadRequest, code: "invalid_request"},
		{name: "summary", method: http.MethodPost, path: "/projects/7/summary", status: http.StatusOK},
		{name: "missing summary", method: http.MethodGet, path: "/projects/7/summary", status: http.StatusNotFound, code: "not_found"},
		{name: "update summary missing key", method: http.MethodPut, path: "/projects/7/summary", body: `{"title":"x"}`, status: http.StatusBadRequest, code: "invalid_summary"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, r, tc.method, tc.path, tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			if tc.code != "" {
				assert.Equal(t, tc.code, errorCode(t, rec))
			}
		})
	}
	assert.Equal(t, "CI", p.topic)
}

func TestPipelineHandlerRelevanceBody(t *testing.T) {
	r := pipelineRouter(&fakePipeline{relevance: []types.ParticipantRelevance{{ParticipantID: 1, ParticipantName: "Alice", Snippets: []string{"CI was slow"}}}})
	rec := do(t, r, http.MethodPost, "/projects/7/topic_responses", `{"topic":"CI"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Topic        string `json:"topic"`
		Participants []struct {
			ParticipantName  string   `json:"participant_name"`
			RelevantSnippets []string `json:"relevant_snippets"`
		} `json:"participants"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "CI", body.Topic)
	require.Len(t, body.Participants, 1)
	assert.Equal(t, []string{"CI was slow"}, body.Participants[0].RelevantSnippets)

	empty := do(t, pipelineRouter(&fakePipeline{}), http.MethodPost, "/projects/7/topic_responses", `{"topic":"CI"}`)
	assert.JSONEq(t, `{"topic":"CI","participants":[]}`, empty.Body.String())
}

func TestPipelineHandlerMapsDomainErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "empty content", err: domainerrs.EmptyContentf("nothing"), status: http.StatusUnprocessableEntity, code: "empty_content"},
		{name: "malformed", err: domainerrs.Malformed("summary", "nope", nil), status: http.StatusBadGateway, code: "malformed_output"},
		{name: "internal", err: assert.AnError, status: http.StatusInternalServerError, code: "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, pipelineRouter(&fakePipeline{err: tc.err}), http.MethodPost, "/projects/7/summary", "")
			require.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, errorCode(t, rec))
		})
	}
}

func TestPipelineHandlerUpdateSummary(t *testing.T) {
	p := &fakePipeline{}
	r := pipelineRouter(p)
	body := `{"title":"Sprint","overview":"o","key_themes":"k","positives":"p","improvements":"i","action_items":[{"description":"fix CI","priority":"High"}]}`
	rec := do(t, r, http.MethodPut, "/projects/7/summary", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, p.summary)
	assert.Equal(t, "fix CI", p.summary.ActionItems[0].Description)
}

func TestChatHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sessions := &fakeSessions{}
	h := NewChatHandler(sessions)
	r := gin.New()
	r.POST("/chat/generate-link", h.GenerateLink)
	r.GET("/chat/status", h.Status)
	r.POST("/chat/stop-chat", h.Stop)

	rec := do(t, r, http.MethodPost, "/chat/generate-link", `{"project_id":4,"participants":[{"id":1,"name":"Alice","avatar_path":"/static/a.png"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []uint{4}, sessions.started)
	assert.Equal(t, []chatsurface.Participant{{ID: 1, Name: "Alice", AvatarPath: "/static/a.png"}}, sessions.participants)

	rec = do(t, r, http.MethodPost, "/chat/generate-link", `{"participants":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodGet, "/chat/status?projectId=4", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, sessions.lastQuery)
	assert.EqualValues(t, 4, *sessions.lastQuery)
	assert.JSONEq(t, `{"state":"idle","message":"Chat session is not running."}`, rec.Body.String())

	rec = do(t, r, http.MethodGet, "/chat/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, sessions.lastQuery)

	rec = do(t, r, http.MethodGet, "/chat/status?projectId=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPost, "/chat/stop-chat", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, sessions.stopped)
}
