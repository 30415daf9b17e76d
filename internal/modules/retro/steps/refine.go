package steps

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/portakall/retromeet/internal/data/repos"
	"github.com/portakall/retromeet/internal/pkg/dbctx"
	domainerrs "github.com/portakall/retromeet/internal/pkg/errors"
	"github.com/portakall/retromeet/internal/platform/logger"
	"github.com/portakall/retromeet/internal/platform/openai"
)

const StageRefine = "refine"

type RefineDeps struct {
	DB           *gorm.DB
	Log          *logger.Logger
	AI           openai.Client
	Participants repos.ParticipantRepo
	Projects     repos.ProjectRepo
	Responses    repos.ResponseRepo
}

type RefineInput struct {
	ParticipantID uint
	ProjectID     uint
}

type RefineOutput struct {
	ParticipantID uint   `json:"participant_id"`
	ProjectID     uint   `json:"project_id"`
	Narrative     string `json:"refined_response"`
	RowsUpdated   int64  `json:"rows_updated"`
	// Skipped is set when the participant has no answer text yet.
	Skipped bool `json:"skipped"`
}

// Refine synthesises every answer a participant gave in a project into one
// narrative and writes it to all of their rows. A failed generation leaves
// previously refined rows untouched.
func Refine(ctx context.Context, deps RefineDeps, in RefineInput) (RefineOutput, error) {
	out := RefineOutput{ParticipantID: in.ParticipantID, ProjectID: in.ProjectID}
	if deps.DB == nil || deps.Log == nil || deps.AI == nil || deps.Participants == nil || deps.Projects == nil || deps.Responses == nil {
		return out, fmt.Errorf("refine: missing deps")
	}
	dbc := dbctx.New(ctx)

	participant, err := deps.Participants.GetByID(dbc, in.ParticipantID)
	if err != nil {
		return out, err
	}
	if _, err := deps.Projects.GetByID(dbc, in.ProjectID); err != nil {
		return out, err
	}

	rows, err := deps.Responses.ListByParticipantProject(dbc, in.ParticipantID, in.ProjectID)
	if err != nil {
		return out, fmt.Errorf("load responses: %w", err)
	}
	pairs := make([]qaPair, 0, len(rows))
	for _, r := range rows {
		if strings.TrimSpace(r.OriginalResponse) == "" {
			continue
		}
		pairs = append(pairs, qaPair{Question: r.Question, Answer: r.OriginalResponse})
	}
	if len(pairs) == 0 {
		deps.Log.Info("Nothing to refine", "participant_id", in.ParticipantID, "project_id", in.ProjectID, "rows", len(rows))
		out.Skipped = true
		return out, nil
	}

	narrative, err := deps.AI.GenerateText(ctx, refineSystemPrompt, refineUserPrompt(participant.Name, pairs))
	if err != nil {
		return out, domainerrs.Generation(StageRefine, err)
	}
	if strings.TrimSpace(narrative) == "" {
		return out, domainerrs.Malformed(StageRefine, narrative, fmt.Errorf("empty narrative"))
	}

	err = deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := deps.Responses.SetRefinedForParticipant(dbctx.New(ctx).WithTx(tx), in.ParticipantID, in.ProjectID, narrative)
		if err != nil {
			return err
		}
		out.RowsUpdated = n
		return nil
	})
	if err != nil {
		return out, fmt.Errorf("store refined response: %w", err)
	}
	out.Narrative = narrative
	deps.Log.Info("Refined participant responses",
		"participant_id", in.ParticipantID,
		"project_id", in.ProjectID,
		"answers", len(pairs),
		"rows_updated", out.RowsUpdated,
	)
	return out, nil
}
