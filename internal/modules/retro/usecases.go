package retro

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/portakall/retromeet/internal/data/cache"
	"github.com/portakall/retromeet/internal/data/repos"
	types "github.com/portakall/retromeet/internal/domain"
	"github.com/portakall/retromeet/internal/modules/retro/steps"
	"github.com/portakall/retromeet/internal/observability"
	domainerrs "github.com/portakall/retromeet/internal/pkg/errors"
	"github.com/portakall/retromeet/internal/platform/apierr"
	"github.com/portakall/retromeet/internal/platform/artifacts"
	"github.com/portakall/retromeet/internal/platform/logger"
	"github.com/portakall/retromeet/internal/platform/openai"
)

// Notifier receives pipeline results for realtime delivery. Implementations
// must not block.
type Notifier interface {
	ResponseRefined(ctx context.Context, projectID, participantID uint)
	TopicsExtracted(ctx context.Context, projectID uint, topics []string)
	SummaryUpdated(ctx context.Context, projectID uint, doc types.SummaryDocument)
}

type UsecasesDeps struct {
	DB  *gorm.DB
	Log *logger.Logger

	AI        openai.Client
	Artifacts artifacts.Store
	// Topics is optional; nil disables caching.
	Topics cache.TopicCache
	// Notify is optional.
	Notify Notifier

	Participants repos.ParticipantRepo
	Projects     repos.ProjectRepo
	Responses    repos.ResponseRepo

	RelevanceConcurrency int
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases {
	if deps.Topics == nil {
		deps.Topics = cache.NewNopTopicCache()
	}
	return Usecases{deps: deps}
}

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

type (
	RefineInput   = steps.RefineInput
	RefineOutput  = steps.RefineOutput
	TopicsOutput  = steps.TopicsOutput
	SummaryOutput = steps.SummaryOutput
)

func (u Usecases) Refine(ctx context.Context, in RefineInput) (out RefineOutput, err error) {
	ctx, done := u.stage(ctx, steps.StageRefine,
		attribute.Int64("project_id", int64(in.ProjectID)),
		attribute.Int64("participant_id", int64(in.ParticipantID)),
	)
	defer func() { done(err) }()

	out, err = steps.Refine(ctx, steps.RefineDeps{
		DB:           u.deps.DB,
		Log:          u.deps.Log,
		AI:           u.deps.AI,
		Participants: u.deps.Participants,
		Projects:     u.deps.Projects,
		Responses:    u.deps.Responses,
	}, in)
	if err != nil || out.Skipped {
		return out, err
	}
	u.invalidateTopics(ctx, in.ProjectID)
	if u.deps.Notify != nil {
		u.deps.Notify.ResponseRefined(ctx, in.ProjectID, in.ParticipantID)
	}
	return out, nil
}

func (u Usecases) ExtractTopics(ctx context.Context, projectID uint) (out TopicsOutput, err error) {
	ctx, done := u.stage(ctx, steps.StageTopics, attribute.Int64("project_id", int64(projectID)))
	defer func() { done(err) }()

	out, err = steps.ExtractTopics(ctx, steps.TopicsDeps{
		Log:       u.deps.Log,
		AI:        u.deps.AI,
		Projects:  u.deps.Projects,
		Responses: u.deps.Responses,
		Artifacts: u.deps.Artifacts,
	}, steps.TopicsInput{ProjectID: projectID})
	if err != nil {
		return out, err
	}
	if cerr := u.deps.Topics.Set(ctx, projectID, out.Topics); cerr != nil {
		u.deps.Log.Warn("Topic cache write failed", "project_id", projectID, "error", cerr)
	}
	if u.deps.Notify != nil {
		u.deps.Notify.TopicsExtracted(ctx, projectID, out.Topics)
	}
	return out, nil
}

// CachedTopics returns the last extracted topics without generating.
func (u Usecases) CachedTopics(ctx context.Context, projectID uint) (TopicsOutput, error) {
	topics, ok, err := u.deps.Topics.Get(ctx, projectID)
	if err != nil {
		u.deps.Log.Warn("Topic cache read failed", "project_id", projectID, "error", err)
	}
	if !ok {
		return TopicsOutput{ProjectID: projectID}, domainerrs.NotFoundf("no cached topics for project %d", projectID)
	}
	return TopicsOutput{ProjectID: projectID, Topics: topics}, nil
}

func (u Usecases) RelevantSnippets(ctx context.Context, projectID uint, topic string) (out []types.ParticipantRelevance, err error) {
	ctx, done := u.stage(ctx, steps.StageRelevance,
		attribute.Int64("project_id", int64(projectID)),
		attribute.String("topic", topic),
	)
	defer func() { done(err) }()

	return steps.RelevantSnippets(ctx, steps.RelevanceDeps{
		Log:         u.deps.Log,
		AI:          u.deps.AI,
		Projects:    u.deps.Projects,
		Responses:   u.deps.Responses,
		Concurrency: u.deps.RelevanceConcurrency,
	}, steps.RelevanceInput{ProjectID: projectID, Topic: topic})
}

func (u Usecases) GenerateSummary(ctx context.Context, projectID uint) (out SummaryOutput, err error) {
	ctx, done := u.stage(ctx, steps.StageSummary, attribute.Int64("project_id", int64(projectID)))
	defer func() { done(err) }()

	out, err = steps.GenerateSummary(ctx, u.summaryDeps(), steps.SummaryInput{ProjectID: projectID})
	if err != nil {
		return out, err
	}
	if u.deps.Notify != nil {
		u.deps.Notify.SummaryUpdated(ctx, projectID, out.Document)
	}
	return out, nil
}

func (u Usecases) UpdateSummary(ctx context.Context, projectID uint, doc types.SummaryDocument) (SummaryOutput, error) {
	out, err := steps.UpdateSummary(ctx, u.summaryDeps(), projectID, doc)
	if err != nil {
		return out, err
	}
	u.deps.Log.Info("Summary replaced", "project_id", projectID, "action_items", len(doc.ActionItems))
	if u.deps.Notify != nil {
		u.deps.Notify.SummaryUpdated(ctx, projectID, out.Document)
	}
	return out, nil
}

func (u Usecases) GetSummary(ctx context.Context, projectID uint) (SummaryOutput, error) {
	return steps.GetSummary(ctx, u.summaryDeps(), projectID)
}

// InvalidateTopics drops cached topics after the project's text changed.
func (u Usecases) InvalidateTopics(ctx context.Context, projectID uint) {
	u.invalidateTopics(ctx, projectID)
}

func (u Usecases) invalidateTopics(ctx context.Context, projectID uint) {
	if err := u.deps.Topics.Invalidate(ctx, projectID); err != nil {
		u.deps.Log.Warn("Topic cache invalidate failed", "project_id", projectID, "error", err)
	}
}

func (u Usecases) summaryDeps() steps.SummaryDeps {
	return steps.SummaryDeps{
		Log:       u.deps.Log,
		AI:        u.deps.AI,
		Projects:  u.deps.Projects,
		Responses: u.deps.Responses,
		Artifacts: u.deps.Artifacts,
	}
}

// stage opens a span and returns the func that closes it, records metrics and
// logs the outcome.
func (u Usecases) stage(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := observability.StartSpan(ctx, "retro."+name, attrs...)
	start := time.Now()
	log := u.deps.Log.With("stage", name)
	log.Debug("Stage started")
	return ctx, func(err error) {
		dur := time.Since(start)
		status := "succeeded"
		if err != nil {
			status = apierr.FromError(err).Code
			var mo *domainerrs.MalformedOutputError
			if errors.As(err, &mo) {
				observability.Current().IncMalformed(name)
				log.Warn("Stage produced malformed output", "raw", mo.Raw)
			}
			log.Warn("Stage failed", "error", err, "status", status, "duration_ms", dur.Milliseconds())
		} else {
			log.Info("Stage finished", "duration_ms", dur.Milliseconds())
		}
		observability.Current().ObserveStage(name, status, dur)
		observability.EndSpan(span, err)
	}
}
