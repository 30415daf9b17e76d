// Package chatsurface serves the interactive retrospective chat that
// collects raw answers for one project at a time.
package chatsurface

import (
	"context"
	"time"

	"github.com/portakall/retromeet/internal/platform/envutil"
	"github.com/portakall/retromeet/internal/platform/logger"
)

type Participant struct {
	ID         uint   `json:"id"`
	Name       string `json:"name"`
	AvatarPath string `json:"avatar_path,omitempty"`
}

type LaunchConfig struct {
	ProjectID    uint
	Participants []Participant
}

// Handle is a running chat surface. PublicURL is empty until the surface is
// reachable. Done is closed once the surface stopped serving.
type Handle interface {
	LocalURL() string
	PublicURL() string
	Close() error
	Done() <-chan struct{}
	Err() error
}

type Launcher interface {
	Launch(ctx context.Context, cfg LaunchConfig) (Handle, error)
}

// ResponseRecorder persists what participants say in the chat.
type ResponseRecorder interface {
	RecordAnswer(ctx context.Context, projectID uint, participantName, question, answer string) error
	RecordTranscript(ctx context.Context, projectID uint, participantName, question, transcript string) error
}

type Config struct {
	Addr          string
	PublicBaseURL string
	Questions     []string
	ReplyTimeout  time.Duration
	// RecordTimeout bounds storing an answer, which includes refining it.
	RecordTimeout time.Duration
}

// ConfigFromEnv reads CHAT_* variables. A questions file that cannot be
// loaded falls back to the default questions.
func ConfigFromEnv(log *logger.Logger) Config {
	cfg := Config{
		Addr:          envutil.String("CHAT_SERVER_ADDR", "0.0.0.0:8081"),
		PublicBaseURL: envutil.String("CHAT_PUBLIC_BASE_URL", ""),
		Questions:     DefaultQuestions(),
		ReplyTimeout:  envutil.Seconds("CHAT_REPLY_TIMEOUT_SECONDS", 30*time.Second),
		RecordTimeout: envutil.Seconds("CHAT_RECORD_TIMEOUT_SECONDS", 150*time.Second),
	}
	if path := envutil.String("CHAT_QUESTIONS_FILE", ""); path != "" {
		qs, err := LoadQuestions(path)
		if err != nil {
			log.Warn("Could not load chat questions; using defaults", "path", path, "error", err)
		} else {
			cfg.Questions = qs
		}
	}
	return cfg
}
