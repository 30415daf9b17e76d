package steps

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/portakall/retromeet/internal/data/repos"
	"github.com/portakall/retromeet/internal/pkg/dbctx"
	domainerrs "github.com/portakall/retromeet/internal/pkg/errors"
	"github.com/portakall/retromeet/internal/platform/artifacts"
	"github.com/portakall/retromeet/internal/platform/logger"
	"github.com/portakall/retromeet/internal/platform/openai"
)

const (
	StageTopics = "topics"
	MaxTopics   = 7
)

type TopicsDeps struct {
	Log       *logger.Logger
	AI        openai.Client
	Projects  repos.ProjectRepo
	Responses repos.ResponseRepo
	// Artifacts is optional; without it transcript files are not read.
	Artifacts artifacts.Store
}

type TopicsInput struct {
	ProjectID uint
}

type TopicsOutput struct {
	ProjectID uint     `json:"project_id"`
	Topics    []string `json:"topics"`
}

// ExtractTopics asks for the project's discussion topics over every piece of
// text collected so far: original answers, refined narratives and transcripts.
func ExtractTopics(ctx context.Context, deps TopicsDeps, in TopicsInput) (TopicsOutput, error) {
	out := TopicsOutput{ProjectID: in.ProjectID}
	if deps.Log == nil || deps.AI == nil || deps.Projects == nil || deps.Responses == nil {
		return out, fmt.Errorf("topics: missing deps")
	}
	dbc := dbctx.New(ctx)

	if _, err := deps.Projects.GetByID(dbc, in.ProjectID); err != nil {
		return out, err
	}
	rows, err := deps.Responses.ListByProject(dbc, in.ProjectID)
	if err != nil {
		return out, fmt.Errorf("load responses: %w", err)
	}
	if len(rows) == 0 {
		return out, domainerrs.NotFoundf("no responses for project %d", in.ProjectID)
	}

	parts := make([]string, 0, len(rows)*2)
	for _, r := range rows {
		if s := strings.TrimSpace(r.OriginalResponse); s != "" {
			parts = append(parts, s)
		}
		if s := strings.TrimSpace(r.Refined()); s != "" {
			parts = append(parts, s)
		}
		if path := r.TranscriptPath(); path != "" && deps.Artifacts != nil {
			raw, err := deps.Artifacts.Read(ctx, path)
			if err != nil {
				deps.Log.Warn("Could not read chat transcript", "path", path, "response_id", r.ID, "error", err)
				continue
			}
			if s := strings.TrimSpace(string(raw)); s != "" {
				parts = append(parts, s)
			}
		}
	}
	allText := strings.Join(parts, "\n\n")
	if strings.TrimSpace(allText) == "" {
		return out, domainerrs.NotFoundf("no text content in responses for project %d", in.ProjectID)
	}
	deps.Log.Debug("Aggregated text for topic extraction", "project_id", in.ProjectID, "chars", len(allText))

	raw, err := deps.AI.GenerateText(ctx, topicsSystemPrompt, topicsUserPrompt(allText))
	if err != nil {
		return out, domainerrs.Generation(StageTopics, err)
	}
	recovered, err := RecoverJSONArray(raw)
	if err != nil {
		return out, domainerrs.Malformed(StageTopics, raw, err)
	}
	topics := NormalizeTopics(recovered, MaxTopics)
	if len(topics) == 0 {
		return out, domainerrs.Malformed(StageTopics, raw, errors.New("no usable topics"))
	}
	out.Topics = topics
	return out, nil
}

// NormalizeTopics trims, drops blanks and case-insensitive duplicates (first
// occurrence wins) and keeps at most max entries.
func NormalizeTopics(in []string, max int) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}
