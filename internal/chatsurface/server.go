package chatsurface

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/portakall/retromeet/internal/http/response"
	"github.com/portakall/retromeet/internal/modules/retro/steps"
	"github.com/portakall/retromeet/internal/platform/logger"
	"github.com/portakall/retromeet/internal/platform/openai"
)

const fallbackReply = "Thank you for sharing that."

// Server launches chat surfaces. Each Launch binds a fresh listener.
type Server struct {
	log      *logger.Logger
	cfg      Config
	ai       openai.Client
	recorder ResponseRecorder
}

func NewServer(log *logger.Logger, cfg Config, ai openai.Client, recorder ResponseRecorder) *Server {
	if len(cfg.Questions) == 0 {
		cfg.Questions = DefaultQuestions()
	}
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = 30 * time.Second
	}
	if cfg.RecordTimeout <= 0 {
		cfg.RecordTimeout = 150 * time.Second
	}
	return &Server{
		log:      log.With("component", "ChatSurface"),
		cfg:      cfg,
		ai:       ai,
		recorder: recorder,
	}
}

func (s *Server) Launch(ctx context.Context, lc LaunchConfig) (Handle, error) {
	if lc.ProjectID == 0 {
		return nil, fmt.Errorf("chat surface: project id required")
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("chat surface listen %s: %w", s.cfg.Addr, err)
	}

	sess := s.newSession(lc)
	h := &handle{
		log:   s.log.With("project_id", lc.ProjectID),
		srv:   &http.Server{Handler: sess.engine(), ReadHeaderTimeout: 10 * time.Second},
		local: localURL(ln.Addr()),
		done:  make(chan struct{}),
	}
	go h.serve(ln)
	go h.publish(ctx, s.cfg.PublicBaseURL)
	go func() {
		select {
		case <-ctx.Done():
			_ = h.Close()
		case <-h.done:
		}
	}()
	h.log.Info("Chat surface listening", "local_url", h.local, "participants", len(lc.Participants))
	return h, nil
}

func localURL(addr net.Addr) string {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return "http://" + addr.String()
	}
	host := tcp.IP.String()
	if tcp.IP == nil || tcp.IP.IsUnspecified() {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, fmt.Sprint(tcp.Port))
}

type handle struct {
	log   *logger.Logger
	srv   *http.Server
	local string

	mu     sync.RWMutex
	public string
	err    error

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

func (h *handle) LocalURL() string { return h.local }

func (h *handle) PublicURL() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.public
}

func (h *handle) Done() <-chan struct{} { return h.done }

func (h *handle) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

func (h *handle) Close() error {
	h.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.srv.Shutdown(ctx); err != nil {
			h.closeErr = err
			_ = h.srv.Close()
		}
	})
	return h.closeErr
}

func (h *handle) serve(ln net.Listener) {
	defer close(h.done)
	err := h.srv.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		h.mu.Lock()
		h.err = err
		h.mu.Unlock()
		h.log.Error("Chat surface stopped", "error", err)
		return
	}
	h.log.Info("Chat surface closed")
}

// publish exposes base as the public URL once the surface answers its own
// health probe. Without a base URL nothing is published and callers fall
// back to the local URL.
func (h *handle) publish(ctx context.Context, base string) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return
	}
	client := &http.Client{Timeout: time.Second}
	for i := 0; i < 50; i++ {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		default:
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.local+"/healthz", nil)
		if err != nil {
			return
		}
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				h.mu.Lock()
				h.public = base
				h.mu.Unlock()
				h.log.Info("Chat surface public URL available", "public_url", base)
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	h.log.Warn("Chat surface never became reachable for publishing", "local_url", h.local)
}

// session is the state of one launched surface.
type session struct {
	log           *logger.Logger
	ai            openai.Client
	recorder      ResponseRecorder
	projectID     uint
	questions     []string
	replyTimeout  time.Duration
	recordTimeout time.Duration
	byName        map[string]Participant
	ordered       []Participant

	mu    sync.Mutex
	convs map[string]*conversation
}

func (s *Server) newSession(lc LaunchConfig) *session {
	sess := &session{
		log:           s.log.With("project_id", lc.ProjectID),
		ai:            s.ai,
		recorder:      s.recorder,
		projectID:     lc.ProjectID,
		questions:     s.cfg.Questions,
		replyTimeout:  s.cfg.ReplyTimeout,
		recordTimeout: s.cfg.RecordTimeout,
		byName:        map[string]Participant{},
		convs:         map[string]*conversation{},
	}
	for _, p := range lc.Participants {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			continue
		}
		if _, dup := sess.byName[name]; dup {
			continue
		}
		p.Name = name
		sess.byName[name] = p
		sess.ordered = append(sess.ordered, p)
	}
	return sess
}

func (sess *session) engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type"},
	}))
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/participants", sess.listParticipants)
	r.POST("/conversations/:participant/start", sess.start)
	r.POST("/conversations/:participant/messages", sess.message)
	return r
}

func (sess *session) listParticipants(c *gin.Context) {
	response.RespondOK(c, gin.H{"project_id": sess.projectID, "participants": sess.ordered})
}

func (sess *session) participant(c *gin.Context) (Participant, bool) {
	name := strings.TrimSpace(c.Param("participant"))
	p, ok := sess.byName[name]
	if !ok {
		response.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("participant %q is not part of this session", name))
	}
	return p, ok
}

type startResponse struct {
	Greeting       string   `json:"greeting"`
	Questions      []string `json:"questions"`
	Question       string   `json:"question"`
	QuestionNumber int      `json:"question_number"`
}

// start begins (or restarts) the participant's conversation.
func (sess *session) start(c *gin.Context) {
	p, ok := sess.participant(c)
	if !ok {
		return
	}
	conv := newConversation(p.Name, sess.questions)
	sess.mu.Lock()
	sess.convs[p.Name] = conv
	sess.mu.Unlock()

	response.RespondOK(c, startResponse{
		Greeting:       conv.history[0].Content,
		Questions:      sess.questions,
		Question:       conv.currentQuestion(),
		QuestionNumber: 1,
	})
}

type messageRequest struct {
	Message string `json:"message"`
}

type messageResponse struct {
	Reply     string `json:"reply"`
	Question  string `json:"question,omitempty"`
	Completed bool   `json:"completed"`
}

func (sess *session) message(c *gin.Context) {
	p, ok := sess.participant(c)
	if !ok {
		return
	}
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("message is required"))
		return
	}
	sess.mu.Lock()
	conv, ok := sess.convs[p.Name]
	sess.mu.Unlock()
	if !ok {
		response.RespondError(c, http.StatusConflict, "not_started", fmt.Errorf("start the conversation first"))
		return
	}
	response.RespondOK(c, sess.handleMessage(c.Request.Context(), conv, strings.TrimSpace(req.Message)))
}

func (sess *session) handleMessage(ctx context.Context, conv *conversation, msg string) messageResponse {
	conv.mu.Lock()
	defer conv.mu.Unlock()

	conv.say(roleUser, msg)
	if conv.completed() {
		return conv.reply("The retrospective is complete. Thank you!", true)
	}

	if isAdvance(msg) {
		if !conv.advance() {
			return conv.reply(conv.questionLine(), false)
		}
		if len(conv.answers) > 0 {
			// the exchange is recorded on a detached context so a client
			// disconnect does not lose the transcript
			recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sess.recordTimeout)
			defer cancel()
			conv.say(roleAssistant, completedMessage)
			if err := sess.recorder.RecordTranscript(recCtx, sess.projectID, conv.participant, TranscriptQuestion, conv.transcript()); err != nil {
				sess.log.Warn("Could not record chat transcript", "participant_name", conv.participant, "error", err)
			}
			return messageResponse{Reply: completedMessage, Completed: true}
		}
		return conv.reply(completedMessage, true)
	}

	question := conv.currentQuestion()
	conv.recordAnswer(msg)
	recCtx, cancelRec := context.WithTimeout(context.WithoutCancel(ctx), sess.recordTimeout)
	defer cancelRec()
	if err := sess.recorder.RecordAnswer(recCtx, sess.projectID, conv.participant, question, msg); err != nil {
		sess.log.Warn("Could not record chat answer", "participant_name", conv.participant, "error", err)
	}

	ackCtx, cancelAck := context.WithTimeout(context.WithoutCancel(ctx), sess.replyTimeout)
	defer cancelAck()
	ack := sess.acknowledge(ackCtx, question, msg)
	conv.setReply(ack)
	return conv.reply(ack+"\n\n"+advanceHint, false)
}

const completedMessage = "Thank you for participating in the retrospective meeting! Your responses have been recorded."

func (c *conversation) reply(text string, completed bool) messageResponse {
	c.say(roleAssistant, text)
	return messageResponse{Reply: text, Question: c.currentQuestion(), Completed: completed}
}

func (sess *session) acknowledge(ctx context.Context, question, answer string) string {
	if sess.ai == nil {
		return fallbackReply
	}
	system, user := steps.ChatReplyPrompts(question, answer)
	text, err := sess.ai.GenerateText(ctx, system, user)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			sess.log.Warn("Chat acknowledgement failed; using fallback", "error", err)
		}
		return fallbackReply
	}
	return strings.TrimSpace(text)
}
