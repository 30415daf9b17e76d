package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/portakall/retromeet/internal/chatsurface"
	"github.com/portakall/retromeet/internal/observability"
	domainerrs "github.com/portakall/retromeet/internal/pkg/errors"
	"github.com/portakall/retromeet/internal/platform/envutil"
	"github.com/portakall/retromeet/internal/platform/logger"
)

type SessionState string

const (
	SessionIdle     SessionState = "idle"
	SessionStarting SessionState = "starting"
	SessionLive     SessionState = "live"
)

const (
	StatusMessageNotRunning   = "Chat session is not running."
	StatusMessageInitializing = "Chat session is initializing."
	StatusMessageWrongProject = "Chat session is running for a different project."
	StatusMessageLinkPending  = "Chat session is running; link pending."
	StatusMessageReady        = "Chat session is live."
)

type SessionStatus struct {
	State     SessionState `json:"state"`
	ProjectID *uint        `json:"project_id,omitempty"`
	Link      string       `json:"link,omitempty"`
	Message   string       `json:"message"`
	Error     string       `json:"error,omitempty"`
}

type ChatSessionConfig struct {
	PollAttempts  int
	PollInterval  time.Duration
	StopTimeout   time.Duration
	SwitchTimeout time.Duration
}

func ChatSessionConfigFromEnv() ChatSessionConfig {
	return ChatSessionConfig{
		PollAttempts:  envutil.Int("CHAT_PUBLIC_URL_POLL_ATTEMPTS", 10),
		PollInterval:  envutil.Millis("CHAT_PUBLIC_URL_POLL_INTERVAL_MS", time.Second),
		StopTimeout:   envutil.Seconds("CHAT_STOP_TIMEOUT_SECONDS", 10*time.Second),
		SwitchTimeout: envutil.Seconds("CHAT_SWITCH_TIMEOUT_SECONDS", 5*time.Second),
	}
}

// ChatSessionManager owns the single process-wide chat session.
type ChatSessionManager interface {
	Start(ctx context.Context, projectID uint, participants []chatsurface.Participant) (SessionStatus, error)
	Stop(ctx context.Context) error
	Status(projectID *uint) SessionStatus
}

type chatSessionManager struct {
	log      *logger.Logger
	launcher chatsurface.Launcher
	notify   RetroNotifier
	cfg      ChatSessionConfig
	baseCtx  context.Context

	// handoff serialises Start and Stop so a teardown and the launch that
	// follows it never interleave with another caller's.
	handoff sync.Mutex

	mu        sync.Mutex
	state     SessionState
	projectID uint
	bound     bool
	handle    chatsurface.Handle
	link      string
	termErr   error
	cancel    context.CancelFunc
	taskDone  chan struct{}
	// gen identifies the current session; a task only writes state while
	// its generation is still current.
	gen uint64
}

// NewChatSessionManager builds the manager. Background tasks derive from
// baseCtx, so cancelling it tears the session down.
func NewChatSessionManager(baseCtx context.Context, log *logger.Logger, launcher chatsurface.Launcher, notify RetroNotifier, cfg ChatSessionConfig) ChatSessionManager {
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 10 * time.Second
	}
	if cfg.SwitchTimeout <= 0 {
		cfg.SwitchTimeout = 5 * time.Second
	}
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &chatSessionManager{
		log:      log.With("service", "ChatSessionManager"),
		launcher: launcher,
		notify:   notify,
		cfg:      cfg,
		baseCtx:  baseCtx,
		state:    SessionIdle,
	}
}

func (m *chatSessionManager) Start(ctx context.Context, projectID uint, participants []chatsurface.Participant) (SessionStatus, error) {
	if projectID == 0 {
		return SessionStatus{}, domainerrs.InvalidArgumentf("project id required")
	}
	m.handoff.Lock()
	defer m.handoff.Unlock()

	m.mu.Lock()
	if m.state != SessionIdle && m.projectID == projectID {
		st := m.statusLocked(&projectID)
		m.mu.Unlock()
		m.log.Debug("Chat session already active for project", "project_id", projectID, "state", st.State)
		return st, nil
	}
	switching := m.state != SessionIdle
	m.mu.Unlock()

	if switching {
		m.log.Info("Switching chat session to another project", "project_id", projectID)
		m.stopLocked(ctx, m.cfg.SwitchTimeout)
	}

	taskCtx, cancel := context.WithCancel(m.baseCtx)
	done := make(chan struct{})

	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.state = SessionStarting
	m.projectID = projectID
	m.bound = false
	m.handle = nil
	m.link = ""
	m.termErr = nil
	m.cancel = cancel
	m.taskDone = done
	st := m.statusLocked(&projectID)
	m.mu.Unlock()

	cfg := chatsurface.LaunchConfig{
		ProjectID:    projectID,
		Participants: append([]chatsurface.Participant(nil), participants...),
	}
	go m.run(taskCtx, gen, cfg, done)

	m.log.Info("Chat session starting", "project_id", projectID, "participants", len(participants))
	m.changed(ctx, projectID, "starting", st)
	return st, nil
}

func (m *chatSessionManager) Stop(ctx context.Context) error {
	m.handoff.Lock()
	defer m.handoff.Unlock()
	m.stopLocked(ctx, m.cfg.StopTimeout)
	return nil
}

// stopLocked tears the session down. Callers hold handoff. A task that does
// not exit within timeout is logged and abandoned.
func (m *chatSessionManager) stopLocked(ctx context.Context, timeout time.Duration) {
	m.mu.Lock()
	h, cancel, done, projectID := m.handle, m.cancel, m.taskDone, m.projectID
	wasActive := m.state != SessionIdle
	m.gen++
	m.state = SessionIdle
	m.projectID = 0
	m.bound = false
	m.handle = nil
	m.link = ""
	m.termErr = nil
	m.cancel = nil
	m.taskDone = nil
	m.mu.Unlock()

	if h != nil {
		if err := h.Close(); err != nil {
			m.log.Warn("Closing chat surface failed", "project_id", projectID, "error", err)
		}
	}
	if cancel != nil {
		cancel()
	}
	if done != nil {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			m.log.Warn("Chat session task did not exit in time",
				"project_id", projectID,
				"timeout", timeout.String(),
				"error", domainerrs.ErrResourceBusy,
			)
		}
	}
	if wasActive {
		m.log.Info("Chat session stopped", "project_id", projectID)
		m.changed(ctx, projectID, "stopped", SessionStatus{State: SessionIdle, Message: StatusMessageNotRunning})
	}
}

func (m *chatSessionManager) Status(projectID *uint) SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked(projectID)
}

func (m *chatSessionManager) statusLocked(projectID *uint) SessionStatus {
	if m.termErr != nil {
		return SessionStatus{
			State:   SessionIdle,
			Message: fmt.Sprintf("Chat session failed: %v", m.termErr),
			Error:   m.termErr.Error(),
		}
	}
	if !m.taskAliveLocked() {
		return SessionStatus{State: SessionIdle, Message: StatusMessageNotRunning}
	}
	active := m.projectID
	if !m.bound {
		return SessionStatus{State: SessionStarting, Message: StatusMessageInitializing}
	}
	if projectID != nil && *projectID != active {
		return SessionStatus{State: m.state, ProjectID: &active, Message: StatusMessageWrongProject}
	}
	if m.link != "" {
		return SessionStatus{State: m.state, ProjectID: &active, Link: m.link, Message: StatusMessageReady}
	}
	return SessionStatus{State: m.state, ProjectID: &active, Message: StatusMessageLinkPending}
}

func (m *chatSessionManager) taskAliveLocked() bool {
	if m.taskDone == nil {
		return false
	}
	select {
	case <-m.taskDone:
		return false
	default:
		return true
	}
}

// run is the background task of one session generation.
func (m *chatSessionManager) run(ctx context.Context, gen uint64, cfg chatsurface.LaunchConfig, done chan struct{}) {
	var err error
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("chat session panicked: %v", r)
		}
		m.finish(gen, cfg.ProjectID, err)
	}()
	err = m.serve(ctx, gen, cfg)
}

func (m *chatSessionManager) serve(ctx context.Context, gen uint64, cfg chatsurface.LaunchConfig) error {
	h, err := m.launcher.Launch(ctx, cfg)
	if err != nil {
		return fmt.Errorf("launch chat surface: %w", err)
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		_ = h.Close()
		return nil
	}
	m.handle = h
	m.bound = true
	m.mu.Unlock()

	link, ok := m.awaitLink(ctx, h)
	if ok {
		m.mu.Lock()
		current := m.gen == gen
		if current {
			m.link = link
			m.state = SessionLive
		}
		st := m.statusLocked(&cfg.ProjectID)
		m.mu.Unlock()
		if current {
			m.log.Info("Chat session live", "project_id", cfg.ProjectID, "link", link)
			m.changed(ctx, cfg.ProjectID, "live", st)
		}
	}

	select {
	case <-h.Done():
		return h.Err()
	case <-ctx.Done():
		_ = h.Close()
		<-h.Done()
		return nil
	}
}

// awaitLink polls the surface for its public URL and falls back to the local
// URL once the attempts are used up. ok is false when the surface or the
// task ended first.
func (m *chatSessionManager) awaitLink(ctx context.Context, h chatsurface.Handle) (string, bool) {
	for i := 0; i < m.cfg.PollAttempts; i++ {
		if url := h.PublicURL(); url != "" {
			return url, true
		}
		timer := time.NewTimer(m.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", false
		case <-h.Done():
			timer.Stop()
			return "", false
		case <-timer.C:
		}
	}
	if url := h.PublicURL(); url != "" {
		return url, true
	}
	m.log.Warn("Public chat URL unavailable; using local URL", "local_url", h.LocalURL())
	return h.LocalURL(), true
}

// finish forces Idle when the task of the current generation ends. An error
// is kept for Status until the next Start or Stop.
func (m *chatSessionManager) finish(gen uint64, projectID uint, err error) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.state = SessionIdle
	m.bound = false
	m.handle = nil
	m.link = ""
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	st := SessionStatus{State: SessionIdle, Message: StatusMessageNotRunning}
	if err != nil {
		m.termErr = err
		st = m.statusLocked(nil)
	}
	m.mu.Unlock()

	if err != nil {
		m.log.Error("Chat session ended with error", "project_id", projectID, "error", err)
	} else {
		m.log.Info("Chat session ended", "project_id", projectID)
	}
	m.changed(m.baseCtx, projectID, "ended", st)
}

func (m *chatSessionManager) changed(ctx context.Context, projectID uint, event string, st SessionStatus) {
	observability.Current().ObserveChatSession(event, st.State == SessionLive)
	if m.notify != nil {
		m.notify.ChatSessionStatusChanged(ctx, projectID, st)
	}
}
