// Package artifacts persists generated files (chat transcripts, summaries,
// avatars) under stable keys. Writes replace any previous content atomically.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var ErrNotFound = errors.New("artifact not found")

type Store interface {
	Write(ctx context.Context, key, contentType string, data []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
	URL(key string) string
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// SafeName reduces a display name to a key-safe token.
func SafeName(name string) string {
	s := unsafeNameChars.ReplaceAllString(strings.TrimSpace(name), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "anonymous"
	}
	return s
}

// ChatTranscriptKey names a transcript by participant and time down to the
// microsecond, so transcripts stored within the same second do not collide.
func ChatTranscriptKey(projectID uint, participantName string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("chat_responses/project_%d_%s_%s_%06d.md", projectID, SafeName(participantName), at.Format("20060102_150405"), at.Nanosecond()/1000)
}

func SummaryKey(projectID uint) string {
	return fmt.Sprintf("summaries/project_%d_summary.json", projectID)
}

func AvatarKey(participantID uint) string {
	return fmt.Sprintf("avatars/participant_%d.png", participantID)
}

func cleanKey(key string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", fmt.Errorf("artifact key required")
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." || part == "" {
			return "", fmt.Errorf("invalid artifact key %q", key)
		}
	}
	return key, nil
}
