package steps

import (
	"context"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/portakall/retromeet/internal/data/repos"
	"github.com/portakall/retromeet/internal/data/repos/testutil"
	types "github.com/portakall/retromeet/internal/domain"
	"github.com/portakall/retromeet/internal/platform/artifacts"
	"github.com/portakall/retromeet/internal/platform/logger"
)

type aiCall struct {
	System string
	User   string
}

// fakeAI answers each call through respond and records it. Safe for
// concurrent use.
type fakeAI struct {
	mu      sync.Mutex
	calls   []aiCall
	respond func(system, user string) (string, error)
}

func (f *fakeAI) GenerateText(ctx context.Context, system, user string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, aiCall{System: system, User: user})
	respond := f.respond
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if respond == nil {
		return "", nil
	}
	return respond(system, user)
}

func (f *fakeAI) Calls() []aiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]aiCall(nil), f.calls...)
}

func replyWith(text string) func(string, string) (string, error) {
	return func(string, string) (string, error) { return text, nil }
}

type testEnv struct {
	ctx          context.Context
	db           *gorm.DB
	log          *logger.Logger
	ai           *fakeAI
	store        artifacts.Store
	participants repos.ParticipantRepo
	projects     repos.ProjectRepo
	responses    repos.ResponseRepo
	clock        time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := testutil.Logger(t)
	db := testutil.DB(t)
	store, err := artifacts.NewLocalStore(log, t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	return &testEnv{
		ctx:          context.Background(),
		db:           db,
		log:          log,
		ai:           &fakeAI{},
		store:        store,
		participants: repos.NewParticipantRepo(db, log),
		projects:     repos.NewProjectRepo(db, log),
		responses:    repos.NewResponseRepo(db, log),
		clock:        time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (e *testEnv) project(t *testing.T, name string) *types.Project {
	t.Helper()
	return testutil.SeedProject(t, e.ctx, e.db, name)
}

func (e *testEnv) participant(t *testing.T, projectID uint, name string) *types.Participant {
	t.Helper()
	p := testutil.SeedParticipant(t, e.ctx, e.db, name)
	testutil.SeedMembership(t, e.ctx, e.db, projectID, p.ID)
	return p
}

// answer seeds a response one second after the previous one.
func (e *testEnv) answer(t *testing.T, participantID, projectID uint, question, text string, refined *string) *types.Response {
	t.Helper()
	e.clock = e.clock.Add(time.Second)
	return testutil.SeedResponse(t, e.ctx, e.db, participantID, projectID, question, text, refined, e.clock)
}

func (e *testEnv) refineDeps() RefineDeps {
	return RefineDeps{DB: e.db, Log: e.log, AI: e.ai, Participants: e.participants, Projects: e.projects, Responses: e.responses}
}

func (e *testEnv) topicsDeps() TopicsDeps {
	return TopicsDeps{Log: e.log, AI: e.ai, Projects: e.projects, Responses: e.responses, Artifacts: e.store}
}

func (e *testEnv) relevanceDeps() RelevanceDeps {
	return RelevanceDeps{Log: e.log, AI: e.ai, Projects: e.projects, Responses: e.responses, Concurrency: 3}
}

func (e *testEnv) summaryDeps() SummaryDeps {
	return SummaryDeps{Log: e.log, AI: e.ai, Projects: e.projects, Responses: e.responses, Artifacts: e.store}
}
