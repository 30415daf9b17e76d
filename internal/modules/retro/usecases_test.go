package retro

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portakall/retromeet/internal/data/repos"
	"github.com/portakall/retromeet/internal/data/repos/testutil"
	types "github.com/portakall/retromeet/internal/domain"
	"github.com/portakall/retromeet/internal/pkg/dbctx"
	domainerrs "github.com/portakall/retromeet/internal/pkg/errors"
	"github.com/portakall/retromeet/internal/platform/artifacts"
)

type scriptedAI struct {
	mu    sync.Mutex
	calls int
}

// GenerateText answers by task: the refine prompt asks for a speech, the
// topics prompt for a JSON array, relevance for a verdict object and the
// summary prompt for a document.
func (s *scriptedAI) GenerateText(_ context.Context, system, user string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	switch {
	case strings.Contains(system, "first-person speech"):
		return "I liked the demo, but the build kept breaking and reviews were slow.", nil
	case strings.Contains(system, "discussion topics"):
		return "```json\n[\"Build stability\", \"Review turnaround\"]\n```", nil
	case strings.Contains(system, "textual context and relevance"):
		return `{"is_relevant": true, "snippets": ["the build kept breaking"]}`, nil
	default:
		return `{"title":"T","overview":"o","key_themes":"k","positives":"p","improvements":"i","action_items":[{"description":"Fix the build","priority":"High"}]}`, nil
	}
}

type memCache struct {
	mu     sync.Mutex
	topics map[uint][]string
}

func (c *memCache) Get(_ context.Context, id uint) ([]string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.topics[id]
	return t, ok, nil
}

func (c *memCache) Set(_ context.Context, id uint, topics []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics[id] = topics
	return nil
}

func (c *memCache) Invalidate(_ context.Context, id uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.topics, id)
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) add(e string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) ResponseRefined(context.Context, uint, uint) { n.add("refined") }
func (n *recordingNotifier) TopicsExtracted(context.Context, uint, []string) {
	n.add("topics")
}
func (n *recordingNotifier) SummaryUpdated(context.Context, uint, types.SummaryDocument) {
	n.add("summary")
}

func TestPipelineAliceScenario(t *testing.T) {
	ctx := context.Background()
	log := testutil.Logger(t)
	db := testutil.DB(t)
	store, err := artifacts.NewLocalStore(log, t.TempDir(), "")
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	topicCache := &memCache{topics: map[uint][]string{}}
	responses := repos.NewResponseRepo(db, log)
	uc := New(UsecasesDeps{
		DB:           db,
		Log:          log,
		AI:           &scriptedAI{},
		Artifacts:    store,
		Topics:       topicCache,
		Notify:       notifier,
		Participants: repos.NewParticipantRepo(db, log),
		Projects:     repos.NewProjectRepo(db, log),
		Responses:    responses,
	})

	proj := &types.Project{ID: 7, Name: "Project Seven"}
	require.NoError(t, db.Create(proj).Error)
	alice := testutil.SeedParticipant(t, ctx, db, "Alice")
	testutil.SeedMembership(t, ctx, db, proj.ID, alice.ID)
	at := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	for i, q := range []string{"What went well?", "What didn't go well?", "What should we try?"} {
		testutil.SeedResponse(t, ctx, db, alice.ID, proj.ID, q, "answer "+q, nil, at.Add(time.Duration(i)*time.Second))
	}

	refined, err := uc.Refine(ctx, RefineInput{ParticipantID: alice.ID, ProjectID: 7})
	require.NoError(t, err)
	require.NotEmpty(t, refined.Narrative)

	rows, err := responses.ListByParticipantProject(dbctx.Context{Ctx: ctx}, alice.ID, 7)
	require.NoError(t, err)
	for _, r := range rows {
		assert.Equal(t, refined.Narrative, r.Refined())
	}

	topics, err := uc.ExtractTopics(ctx, 7)
	require.NoError(t, err)
	require.NotEmpty(t, topics.Topics)
	assert.LessOrEqual(t, len(topics.Topics), 7)

	cached, err := uc.CachedTopics(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, topics.Topics, cached.Topics)

	relevant, err := uc.RelevantSnippets(ctx, 7, topics.Topics[0])
	require.NoError(t, err)
	require.LessOrEqual(t, len(relevant), 1)
	require.Len(t, relevant, 1)
	assert.Equal(t, alice.ID, relevant[0].ParticipantID)
	assert.NotEmpty(t, relevant[0].Snippets)

	summary, err := uc.GenerateSummary(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, summary.Document.ActionItems, 1)

	got, err := uc.GetSummary(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, summary.Document, got.Document)

	// a new refinement makes the cached topics stale
	_, err = uc.Refine(ctx, RefineInput{ParticipantID: alice.ID, ProjectID: 7})
	require.NoError(t, err)
	_, err = uc.CachedTopics(ctx, 7)
	require.ErrorIs(t, err, domainerrs.ErrNotFound)

	assert.Equal(t, []string{"refined", "topics", "summary", "refined"}, notifier.events)
}
