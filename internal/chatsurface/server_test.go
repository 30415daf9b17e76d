package chatsurface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portakall/retromeet/internal/platform/logger"
)

type recorded struct {
	Question string
	Text     string
}

type fakeRecorder struct {
	mu          sync.Mutex
	answers     []recorded
	transcripts []recorded
	failAnswers bool
}

func (f *fakeRecorder) RecordAnswer(_ context.Context, _ uint, _ string, question, answer string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, recorded{question, answer})
	if f.failAnswers {
		return errors.New("db down")
	}
	return nil
}

func (f *fakeRecorder) RecordTranscript(_ context.Context, _ uint, _ string, question, transcript string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts = append(f.transcripts, recorded{question, transcript})
	return nil
}

type ackAI struct{ err error }

func (a ackAI) GenerateText(context.Context, string, string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	return "Thanks, noted.", nil
}

func testServer(t *testing.T, rec ResponseRecorder, ai ackAI) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, err := logger.New("test")
	require.NoError(t, err)
	return NewServer(log, Config{Addr: "127.0.0.1:0", Questions: []string{"Q one?", "Q two?"}}, ai, rec)
}

func do(t *testing.T, h http.Handler, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	out := map[string]any{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w.Code, out
}

func TestConversationFlow(t *testing.T) {
	rec := &fakeRecorder{}
	s := testServer(t, rec, ackAI{})
	eng := s.newSession(LaunchConfig{ProjectID: 7, Participants: []Participant{{ID: 1, Name: "Alice"}}}).engine()

	code, body := do(t, eng, http.MethodPost, "/conversations/Alice/messages", map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusConflict, code)

	code, body = do(t, eng, http.MethodPost, "/conversations/Alice/start", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Q one?", body["question"])
	assert.Contains(t, body["greeting"], "Hello Alice!")
	assert.Contains(t, body["greeting"], "1. Q one?\n2. Q two?\n")

	code, body = do(t, eng, http.MethodPost, "/conversations/Alice/messages", map[string]string{"message": "first try"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Thanks, noted.\n\n"+advanceHint, body["reply"])
	assert.Equal(t, false, body["completed"])

	_, _ = do(t, eng, http.MethodPost, "/conversations/Alice/messages", map[string]string{"message": "better answer"})
	_, body = do(t, eng, http.MethodPost, "/conversations/Alice/messages", map[string]string{"message": " Next "})
	assert.Equal(t, "**Question 2:** Q two?", body["reply"])
	assert.Equal(t, "Q two?", body["question"])

	_, _ = do(t, eng, http.MethodPost, "/conversations/Alice/messages", map[string]string{"message": "second"})
	_, body = do(t, eng, http.MethodPost, "/conversations/Alice/messages", map[string]string{"message": "go on"})
	assert.Equal(t, true, body["completed"])
	assert.Equal(t, completedMessage, body["reply"])

	_, body = do(t, eng, http.MethodPost, "/conversations/Alice/messages", map[string]string{"message": "more"})
	assert.Equal(t, true, body["completed"])

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []recorded{{"Q one?", "first try"}, {"Q one?", "better answer"}, {"Q two?", "second"}}, rec.answers)
	require.Len(t, rec.transcripts, 1)
	tr := rec.transcripts[0]
	assert.Equal(t, TranscriptQuestion, tr.Question)
	assert.Contains(t, tr.Text, "**Question:** Q one?\n\n**User Response:** better answer\n\n**Assistant Response:** Thanks, noted.")
	assert.NotContains(t, tr.Text, "**User Response:** first try")
	assert.Contains(t, tr.Text, "**Full Conversation:**")
	assert.Contains(t, tr.Text, "**User:** first try")
}

func TestConversationFallbacks(t *testing.T) {
	rec := &fakeRecorder{failAnswers: true}
	s := testServer(t, rec, ackAI{err: errors.New("timeout")})
	eng := s.newSession(LaunchConfig{ProjectID: 7, Participants: []Participant{{Name: "Bob"}}}).engine()

	code, _ := do(t, eng, http.MethodPost, "/conversations/Mallory/start", nil)
	assert.Equal(t, http.StatusNotFound, code)

	_, _ = do(t, eng, http.MethodPost, "/conversations/Bob/start", nil)
	code, _ = do(t, eng, http.MethodPost, "/conversations/Bob/messages", map[string]string{"message": "  "})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := do(t, eng, http.MethodPost, "/conversations/Bob/messages", map[string]string{"message": "an answer"})
	require.Equal(t, http.StatusOK, code)
	assert.True(t, strings.HasPrefix(body["reply"].(string), fallbackReply))

	// skipping every question finishes without a transcript
	_, _ = do(t, eng, http.MethodPost, "/conversations/Bob/start", nil)
	_, _ = do(t, eng, http.MethodPost, "/conversations/Bob/messages", map[string]string{"message": "next"})
	_, body = do(t, eng, http.MethodPost, "/conversations/Bob/messages", map[string]string{"message": "next"})
	assert.Equal(t, true, body["completed"])
	assert.Empty(t, rec.transcripts)

	code, body = do(t, eng, http.MethodGet, "/participants", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["participants"], 1)
}

// slowRecorder takes longer than the reply budget to store an answer and
// reports whether its context was still live when it finished.
type slowRecorder struct {
	fakeRecorder
	delay  time.Duration
	ctxErr error
}

func (s *slowRecorder) RecordAnswer(ctx context.Context, projectID uint, name, question, answer string) error {
	time.Sleep(s.delay)
	s.mu.Lock()
	s.ctxErr = ctx.Err()
	s.mu.Unlock()
	return s.fakeRecorder.RecordAnswer(ctx, projectID, name, question, answer)
}

type ctxAI struct{}

func (ctxAI) GenerateText(ctx context.Context, _, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "Thanks, noted.", nil
}

func TestSlowRecordingKeepsItsOwnBudget(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log, err := logger.New("test")
	require.NoError(t, err)
	rec := &slowRecorder{delay: 150 * time.Millisecond}
	s := NewServer(log, Config{
		Addr:          "127.0.0.1:0",
		Questions:     []string{"Q one?"},
		ReplyTimeout:  50 * time.Millisecond,
		RecordTimeout: 5 * time.Second,
	}, ctxAI{}, rec)
	eng := s.newSession(LaunchConfig{ProjectID: 7, Participants: []Participant{{ID: 1, Name: "Alice"}}}).engine()

	_, _ = do(t, eng, http.MethodPost, "/conversations/Alice/start", nil)
	code, body := do(t, eng, http.MethodPost, "/conversations/Alice/messages", map[string]string{"message": "slow answer"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Thanks, noted.\n\n"+advanceHint, body["reply"])

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.NoError(t, rec.ctxErr)
	assert.Equal(t, []recorded{{"Q one?", "slow answer"}}, rec.answers)
}

func TestLaunchPublishesAndCloses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log, err := logger.New("test")
	require.NoError(t, err)
	s := NewServer(log, Config{Addr: "127.0.0.1:0", PublicBaseURL: "https://retro.example.com/"}, nil, &fakeRecorder{})

	h, err := s.Launch(context.Background(), LaunchConfig{ProjectID: 3})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(h.LocalURL(), "http://127.0.0.1:"))
	require.Eventually(t, func() bool { return h.PublicURL() != "" }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, "https://retro.example.com", h.PublicURL())

	require.NoError(t, h.Close())
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("surface did not stop")
	}
	assert.NoError(t, h.Err())
	assert.NoError(t, h.Close())
}

func TestLaunchStopsWhenContextEnds(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log, err := logger.New("test")
	require.NoError(t, err)
	s := NewServer(log, Config{Addr: "127.0.0.1:0"}, nil, &fakeRecorder{})

	ctx, cancel := context.WithCancel(context.Background())
	h, err := s.Launch(ctx, LaunchConfig{ProjectID: 3})
	require.NoError(t, err)
	assert.Empty(t, h.PublicURL())
	cancel()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("surface did not stop after cancel")
	}
}

func TestParseQuestions(t *testing.T) {
	qs, err := ParseQuestions([]byte("questions:\n  - \"What went well?\"\n  - \"  \"\n  - What should change?\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"What went well?", "What should change?"}, qs)

	_, err = ParseQuestions([]byte("questions: []\n"))
	assert.Error(t, err)
	_, err = ParseQuestions([]byte("questions: [unterminated\n"))
	assert.Error(t, err)
}
