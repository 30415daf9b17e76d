package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/portakall/retromeet/internal/data/repos"
	types "github.com/portakall/retromeet/internal/domain"
	retrodomain "github.com/portakall/retromeet/internal/domain/retro"
	"github.com/portakall/retromeet/internal/pkg/dbctx"
	domainerrs "github.com/portakall/retromeet/internal/pkg/errors"
	"github.com/portakall/retromeet/internal/platform/artifacts"
	"github.com/portakall/retromeet/internal/platform/logger"
	"github.com/portakall/retromeet/internal/platform/openai"
)

const StageSummary = "summary"

const summaryContentType = "application/json"

type SummaryDeps struct {
	Log       *logger.Logger
	AI        openai.Client
	Projects  repos.ProjectRepo
	Responses repos.ResponseRepo
	Artifacts artifacts.Store
}

type SummaryInput struct {
	ProjectID uint
}

type SummaryOutput struct {
	ProjectID   uint                  `json:"project_id"`
	Document    types.SummaryDocument `json:"summary"`
	ArtifactKey string                `json:"artifact_key"`
}

// GenerateSummary builds the project summary from one refined narrative per
// participant and persists it, replacing any previous summary.
func GenerateSummary(ctx context.Context, deps SummaryDeps, in SummaryInput) (SummaryOutput, error) {
	out := SummaryOutput{ProjectID: in.ProjectID}
	if deps.Log == nil || deps.AI == nil || deps.Projects == nil || deps.Responses == nil || deps.Artifacts == nil {
		return out, fmt.Errorf("summary: missing deps")
	}
	dbc := dbctx.New(ctx)
	if _, err := deps.Projects.GetByID(dbc, in.ProjectID); err != nil {
		return out, err
	}

	refined, err := deps.Responses.ListLatestRefinedPerParticipant(dbc, in.ProjectID)
	if err != nil {
		return out, fmt.Errorf("load refined responses: %w", err)
	}
	if len(refined) == 0 {
		return out, domainerrs.NotFoundf("no refined responses for project %d", in.ProjectID)
	}
	texts := make([]string, 0, len(refined))
	for _, r := range refined {
		if s := strings.TrimSpace(r.Text); s != "" {
			texts = append(texts, s)
		}
	}
	if len(texts) == 0 {
		return out, domainerrs.EmptyContentf("refined responses for project %d are blank", in.ProjectID)
	}

	raw, err := deps.AI.GenerateText(ctx, summarySystemPrompt, summaryUserPrompt(strings.Join(texts, participantSeparator)))
	if err != nil {
		return out, domainerrs.Generation(StageSummary, err)
	}
	doc, err := ParseSummary(raw)
	if err != nil {
		return out, domainerrs.Malformed(StageSummary, raw, err)
	}

	key, err := SaveSummary(ctx, deps.Artifacts, in.ProjectID, doc)
	if err != nil {
		return out, err
	}
	deps.Log.Info("Generated project summary",
		"project_id", in.ProjectID,
		"participants", len(texts),
		"action_items", len(doc.ActionItems),
	)
	out.Document = doc
	out.ArtifactKey = key
	return out, nil
}

// ParseSummary recovers and validates a summary document from model output.
func ParseSummary(raw string) (types.SummaryDocument, error) {
	obj, err := RecoverJSONObject(raw)
	if err != nil {
		return types.SummaryDocument{}, err
	}
	return retrodomain.DecodeSummaryDocument(obj)
}

// UpdateSummary replaces the stored summary with doc without generating.
func UpdateSummary(ctx context.Context, deps SummaryDeps, projectID uint, doc types.SummaryDocument) (SummaryOutput, error) {
	out := SummaryOutput{ProjectID: projectID}
	if deps.Projects == nil || deps.Artifacts == nil {
		return out, fmt.Errorf("summary: missing deps")
	}
	if _, err := deps.Projects.GetByID(dbctx.New(ctx), projectID); err != nil {
		return out, err
	}
	if err := doc.Validate(); err != nil {
		return out, fmt.Errorf("%w: %v", domainerrs.ErrInvalidArgument, err)
	}
	key, err := SaveSummary(ctx, deps.Artifacts, projectID, doc)
	if err != nil {
		return out, err
	}
	out.Document = doc
	out.ArtifactKey = key
	return out, nil
}

// GetSummary loads the stored summary. ErrNotFound when none was written yet.
func GetSummary(ctx context.Context, deps SummaryDeps, projectID uint) (SummaryOutput, error) {
	out := SummaryOutput{ProjectID: projectID}
	if deps.Projects == nil || deps.Artifacts == nil {
		return out, fmt.Errorf("summary: missing deps")
	}
	if _, err := deps.Projects.GetByID(dbctx.New(ctx), projectID); err != nil {
		return out, err
	}
	key := artifacts.SummaryKey(projectID)
	raw, err := deps.Artifacts.Read(ctx, key)
	if errors.Is(err, artifacts.ErrNotFound) {
		return out, domainerrs.NotFoundf("summary for project %d", projectID)
	}
	if err != nil {
		return out, fmt.Errorf("read summary: %w", err)
	}
	doc, err := retrodomain.DecodeSummaryDocument(raw)
	if err != nil {
		return out, fmt.Errorf("stored summary for project %d is invalid: %w", projectID, err)
	}
	out.Document = doc
	out.ArtifactKey = key
	return out, nil
}

func SaveSummary(ctx context.Context, store artifacts.Store, projectID uint, doc types.SummaryDocument) (string, error) {
	if doc.ActionItems == nil {
		doc.ActionItems = []types.ActionItem{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode summary: %w", err)
	}
	key := artifacts.SummaryKey(projectID)
	if err := store.Write(ctx, key, summaryContentType, data); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}
	return key, nil
}
