package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/portakall/retromeet/internal/data/repos"
	types "github.com/portakall/retromeet/internal/domain"
	"github.com/portakall/retromeet/internal/observability"
	"github.com/portakall/retromeet/internal/pkg/dbctx"
	domainerrs "github.com/portakall/retromeet/internal/pkg/errors"
	"github.com/portakall/retromeet/internal/platform/logger"
	"github.com/portakall/retromeet/internal/platform/openai"
)

const (
	StageRelevance         = "relevance"
	DefaultRelevanceFanout = 4
)

type RelevanceDeps struct {
	Log       *logger.Logger
	AI        openai.Client
	Projects  repos.ProjectRepo
	Responses repos.ResponseRepo
	// Concurrency bounds the in-flight generation calls. <= 0 uses DefaultRelevanceFanout.
	Concurrency int
}

type RelevanceInput struct {
	ProjectID uint
	Topic     string
}

type relevanceVerdict struct {
	IsRelevant *bool    `json:"is_relevant"`
	Snippets   []string `json:"snippets"`
}

type participantText struct {
	id         uint
	name       string
	avatarPath string
	texts      []string
}

// RelevantSnippets classifies each participant's text against topic. A
// participant whose call fails or returns malformed output is left out; the
// call as a whole still succeeds. Results follow the order participants first
// appear in the project's responses.
func RelevantSnippets(ctx context.Context, deps RelevanceDeps, in RelevanceInput) ([]types.ParticipantRelevance, error) {
	if deps.Log == nil || deps.AI == nil || deps.Projects == nil || deps.Responses == nil {
		return nil, fmt.Errorf("relevance: missing deps")
	}
	topic := strings.TrimSpace(in.Topic)
	if topic == "" {
		return nil, domainerrs.InvalidArgumentf("topic is required")
	}
	dbc := dbctx.New(ctx)
	if _, err := deps.Projects.GetByID(dbc, in.ProjectID); err != nil {
		return nil, err
	}
	rows, err := deps.Responses.ListByProject(dbc, in.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("load responses: %w", err)
	}

	participants := groupParticipantTexts(rows)
	if len(participants) == 0 {
		return []types.ParticipantRelevance{}, nil
	}

	limit := deps.Concurrency
	if limit <= 0 {
		limit = DefaultRelevanceFanout
	}
	results := make([]*types.ParticipantRelevance, len(participants))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, p := range participants {
		i, p := i, p
		g.Go(func() error {
			results[i] = classifyParticipant(ctx, deps, p, topic)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]types.ParticipantRelevance, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	deps.Log.Info("Relevance analysis finished",
		"project_id", in.ProjectID,
		"topic", topic,
		"participants", len(participants),
		"relevant", len(out),
	)
	return out, nil
}

// groupParticipantTexts keeps, per participant, the refined text of each row
// when present and the original answer otherwise. Repeats of the same text
// (the shared narrative) are kept once.
func groupParticipantTexts(rows []*types.Response) []*participantText {
	index := map[uint]*participantText{}
	ordered := make([]*participantText, 0)
	for _, r := range rows {
		p, ok := index[r.ParticipantID]
		if !ok {
			p = &participantText{id: r.ParticipantID}
			if r.Participant != nil {
				p.name = r.Participant.Name
				p.avatarPath = r.Participant.AvatarPathOrEmpty()
			}
			index[r.ParticipantID] = p
			ordered = append(ordered, p)
		}
		text := strings.TrimSpace(r.Refined())
		if text == "" {
			text = strings.TrimSpace(r.OriginalResponse)
		}
		if text == "" || containsString(p.texts, text) {
			continue
		}
		p.texts = append(p.texts, text)
	}

	out := ordered[:0]
	for _, p := range ordered {
		if len(p.texts) > 0 {
			out = append(out, p)
		}
	}
	return out
}

func classifyParticipant(ctx context.Context, deps RelevanceDeps, p *participantText, topic string) *types.ParticipantRelevance {
	log := deps.Log.With("participant_id", p.id, "topic", topic)
	raw, err := deps.AI.GenerateText(ctx, relevanceSystemPrompt, relevanceUserPrompt(strings.Join(p.texts, participantSeparator), topic))
	if err != nil {
		log.Warn("Relevance generation failed; participant excluded", "error", err)
		return nil
	}
	snippets, relevant, err := ParseRelevance(raw)
	if err != nil {
		observability.Current().IncMalformed(StageRelevance)
		log.Warn("Relevance output malformed; participant excluded", "error", err, "raw", raw)
		return nil
	}
	if !relevant || len(snippets) == 0 {
		return nil
	}
	return &types.ParticipantRelevance{
		ParticipantID:   p.id,
		ParticipantName: p.name,
		AvatarPath:      p.avatarPath,
		Snippets:        snippets,
	}
}

// ParseRelevance strictly decodes {"is_relevant": bool, "snippets": [string]}.
// No fence stripping or substring recovery is attempted.
func ParseRelevance(raw string) ([]string, bool, error) {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(raw)))
	var v relevanceVerdict
	if err := dec.Decode(&v); err != nil {
		return nil, false, err
	}
	if dec.More() {
		return nil, false, errors.New("trailing data after relevance object")
	}
	if v.IsRelevant == nil {
		return nil, false, errors.New("is_relevant missing")
	}
	return compactStrings(v.Snippets), *v.IsRelevant, nil
}

func containsString(list []string, s string) bool {
	for _, it := range list {
		if it == s {
			return true
		}
	}
	return false
}
