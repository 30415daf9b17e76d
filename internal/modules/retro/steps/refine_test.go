package steps

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portakall/retromeet/internal/data/repos/testutil"
	"github.com/portakall/retromeet/internal/pkg/dbctx"
	domainerrs "github.com/portakall/retromeet/internal/pkg/errors"
)

func TestRefineWritesNarrativeToEveryRow(t *testing.T) {
	env := newTestEnv(t)
	proj := env.project(t, "Sprint 12")
	alice := env.participant(t, proj.ID, "Alice")
	bob := env.participant(t, proj.ID, "Bob")

	env.answer(t, alice.ID, proj.ID, "What went well?", "Pairing on the release.", nil)
	env.answer(t, bob.ID, proj.ID, "What went well?", "Nothing much.", testutil.Ptr("Bob's narrative"))
	env.answer(t, alice.ID, proj.ID, "What went badly?", "Flaky CI.", testutil.Ptr("stale"))
	env.answer(t, alice.ID, proj.ID, "Anything else?", "   ", nil)

	env.ai.respond = replyWith("I enjoyed pairing but CI kept failing.")

	out, err := Refine(env.ctx, env.refineDeps(), RefineInput{ParticipantID: alice.ID, ProjectID: proj.ID})
	require.NoError(t, err)
	assert.False(t, out.Skipped)
	assert.Equal(t, "I enjoyed pairing but CI kept failing.", out.Narrative)
	assert.EqualValues(t, 3, out.RowsUpdated)

	calls := env.ai.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, refineSystemPrompt, calls[0].System)
	assert.Contains(t, calls[0].User, "- Question: What went well?\n  Answer: Pairing on the release.\n- Question: What went badly?\n  Answer: Flaky CI.\n")
	assert.NotContains(t, calls[0].User, "Anything else?")

	rows, err := env.responses.ListByParticipantProject(dbctx.Context{Ctx: env.ctx}, alice.ID, proj.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.Equal(t, out.Narrative, r.Refined())
	}

	bobRows, err := env.responses.ListByParticipantProject(dbctx.Context{Ctx: env.ctx}, bob.ID, proj.ID)
	require.NoError(t, err)
	require.Len(t, bobRows, 1)
	assert.Equal(t, "Bob's narrative", bobRows[0].Refined())
}

func TestRefineTwiceSucceeds(t *testing.T) {
	env := newTestEnv(t)
	proj := env.project(t, "Sprint 13")
	alice := env.participant(t, proj.ID, "Alice")
	env.answer(t, alice.ID, proj.ID, "Q1", "A1", nil)

	n := 0
	env.ai.respond = func(string, string) (string, error) {
		n++
		return strings.Repeat("narrative ", n), nil
	}

	_, err := Refine(env.ctx, env.refineDeps(), RefineInput{ParticipantID: alice.ID, ProjectID: proj.ID})
	require.NoError(t, err)
	second, err := Refine(env.ctx, env.refineDeps(), RefineInput{ParticipantID: alice.ID, ProjectID: proj.ID})
	require.NoError(t, err)
	assert.Equal(t, "narrative narrative ", second.Narrative)
}

func TestRefineFailureKeepsPreviousNarrative(t *testing.T) {
	cases := []struct {
		name    string
		respond func(string, string) (string, error)
		wantErr error
	}{
		{
			name:    "generation error",
			respond: func(string, string) (string, error) { return "", errors.New("upstream 503") },
			wantErr: domainerrs.ErrGenerationFailure,
		},
		{
			name:    "blank output",
			respond: replyWith("  \n "),
			wantErr: domainerrs.ErrMalformedOutput,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			proj := env.project(t, "Sprint 14")
			alice := env.participant(t, proj.ID, "Alice")
			env.answer(t, alice.ID, proj.ID, "Q1", "A1", testutil.Ptr("previous"))
			env.answer(t, alice.ID, proj.ID, "Q2", "A2", testutil.Ptr("previous"))
			env.ai.respond = tc.respond

			_, err := Refine(env.ctx, env.refineDeps(), RefineInput{ParticipantID: alice.ID, ProjectID: proj.ID})
			require.ErrorIs(t, err, tc.wantErr)

			rows, err := env.responses.ListByParticipantProject(dbctx.Context{Ctx: env.ctx}, alice.ID, proj.ID)
			require.NoError(t, err)
			for _, r := range rows {
				assert.Equal(t, "previous", r.Refined())
			}
		})
	}
}

func TestRefineSkipsWithoutAnswerText(t *testing.T) {
	env := newTestEnv(t)
	proj := env.project(t, "Sprint 15")
	alice := env.participant(t, proj.ID, "Alice")
	env.answer(t, alice.ID, proj.ID, "Q1", " ", testutil.Ptr("kept"))
	env.ai.respond = replyWith("should not be used")

	out, err := Refine(env.ctx, env.refineDeps(), RefineInput{ParticipantID: alice.ID, ProjectID: proj.ID})
	require.NoError(t, err)
	assert.True(t, out.Skipped)
	assert.Empty(t, env.ai.Calls())

	rows, err := env.responses.ListByParticipantProject(dbctx.Context{Ctx: env.ctx}, alice.ID, proj.ID)
	require.NoError(t, err)
	assert.Equal(t, "kept", rows[0].Refined())
}

func TestRefineUnknownIDs(t *testing.T) {
	env := newTestEnv(t)
	proj := env.project(t, "Sprint 16")
	alice := env.participant(t, proj.ID, "Alice")

	cases := []struct {
		name string
		in   RefineInput
	}{
		{"participant", RefineInput{ParticipantID: alice.ID + 100, ProjectID: proj.ID}},
		{"project", RefineInput{ParticipantID: alice.ID, ProjectID: proj.ID + 100}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Refine(env.ctx, env.refineDeps(), tc.in)
			require.ErrorIs(t, err, domainerrs.ErrNotFound)
		})
	}
}
