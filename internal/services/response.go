package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/portakall/retromeet/internal/data/repos"
	types "github.com/portakall/retromeet/internal/domain"
	"github.com/portakall/retromeet/internal/modules/retro"
	"github.com/portakall/retromeet/internal/pkg/dbctx"
	domainerrs "github.com/portakall/retromeet/internal/pkg/errors"
	"github.com/portakall/retromeet/internal/platform/artifacts"
	"github.com/portakall/retromeet/internal/platform/logger"
)

const (
	DefaultChatQuestion = "Chat Response"
	// transcriptPreviewRunes bounds the copy of a chat transcript kept in the
	// response row; the full text lives in the artifact.
	transcriptPreviewRunes = 1000
)

// Refiner is the slice of the synthesis pipeline the response service drives.
type Refiner interface {
	Refine(ctx context.Context, in retro.RefineInput) (retro.RefineOutput, error)
	InvalidateTopics(ctx context.Context, projectID uint)
}

type SubmitResponseInput struct {
	ParticipantName string
	ProjectID       uint
	Question        string
	Text            string
}

type SubmitChatInput struct {
	ParticipantName string
	ProjectID       uint
	Question        string
	Content         string
}

type ResponseService interface {
	SubmitResponse(ctx context.Context, in SubmitResponseInput) (*types.Response, error)
	SubmitChatTranscript(ctx context.Context, in SubmitChatInput) (*types.Response, error)
	ListProjectResponses(ctx context.Context, projectID uint) ([]*types.Response, error)
	GetResponse(ctx context.Context, id uint) (*types.Response, error)

	RecordAnswer(ctx context.Context, projectID uint, participantName, question, answer string) error
	RecordTranscript(ctx context.Context, projectID uint, participantName, question, transcript string) error
}

type responseService struct {
	db           *gorm.DB
	log          *logger.Logger
	participants repos.ParticipantRepo
	projects     repos.ProjectRepo
	members      repos.ProjectParticipantRepo
	responses    repos.ResponseRepo
	artifacts    artifacts.Store
	refiner      Refiner
	notify       RetroNotifier
	now          func() time.Time
}

func NewResponseService(
	db *gorm.DB,
	log *logger.Logger,
	participants repos.ParticipantRepo,
	projects repos.ProjectRepo,
	members repos.ProjectParticipantRepo,
	responses repos.ResponseRepo,
	store artifacts.Store,
	refiner Refiner,
	notify RetroNotifier,
) ResponseService {
	return &responseService{
		db:           db,
		log:          log.With("service", "ResponseService"),
		participants: participants,
		projects:     projects,
		members:      members,
		responses:    responses,
		artifacts:    store,
		refiner:      refiner,
		notify:       notify,
		now:          time.Now,
	}
}

// SubmitResponse stores one answer and refines the participant's narrative.
// A failed refinement is logged; the stored response is still returned.
func (s *responseService) SubmitResponse(ctx context.Context, in SubmitResponseInput) (*types.Response, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, domainerrs.InvalidArgumentf("response text required")
	}
	if strings.TrimSpace(in.Question) == "" {
		return nil, domainerrs.InvalidArgumentf("question required")
	}
	resp, err := s.store(ctx, in.ParticipantName, in.ProjectID, &types.Response{
		Question:         strings.TrimSpace(in.Question),
		OriginalResponse: in.Text,
	})
	if err != nil {
		return nil, err
	}
	s.submitted(ctx, resp)

	if s.refiner != nil {
		out, err := s.refiner.Refine(ctx, retro.RefineInput{ParticipantID: resp.ParticipantID, ProjectID: resp.ProjectID})
		if err != nil {
			s.log.Warn("Refinement after submit failed",
				"project_id", resp.ProjectID,
				"participant_id", resp.ParticipantID,
				"error", err,
			)
			return resp, nil
		}
		if !out.Skipped {
			narrative := out.Narrative
			resp.RefinedResponse = &narrative
		}
	}
	return resp, nil
}

// SubmitChatTranscript saves the full conversation as a markdown artifact and
// stores a response row pointing at it.
func (s *responseService) SubmitChatTranscript(ctx context.Context, in SubmitChatInput) (*types.Response, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, domainerrs.InvalidArgumentf("chat content required")
	}
	if s.artifacts == nil {
		return nil, fmt.Errorf("artifact store not configured")
	}
	name := strings.TrimSpace(in.ParticipantName)
	if name == "" {
		return nil, domainerrs.InvalidArgumentf("participant name required")
	}
	question := strings.TrimSpace(in.Question)
	if question == "" {
		question = DefaultChatQuestion
	}

	at := s.now()
	key := artifacts.ChatTranscriptKey(in.ProjectID, name, at)
	if err := s.artifacts.Write(ctx, key, "text/markdown; charset=utf-8", []byte(TranscriptMarkdown(name, in.ProjectID, in.Content, at))); err != nil {
		return nil, fmt.Errorf("write chat transcript: %w", err)
	}

	resp, err := s.store(ctx, name, in.ProjectID, &types.Response{
		Question:             question,
		OriginalResponse:     truncateRunes(in.Content, transcriptPreviewRunes),
		ChatResponseFilePath: &key,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Chat transcript stored", "project_id", in.ProjectID, "response_id", resp.ID, "key", key)
	s.submitted(ctx, resp)
	return resp, nil
}

func (s *responseService) ListProjectResponses(ctx context.Context, projectID uint) ([]*types.Response, error) {
	dbc := dbctx.New(ctx)
	if _, err := s.projects.GetByID(dbc, projectID); err != nil {
		return nil, err
	}
	return s.responses.ListByProject(dbc, projectID)
}

func (s *responseService) GetResponse(ctx context.Context, id uint) (*types.Response, error) {
	return s.responses.GetByID(dbctx.New(ctx), id)
}

func (s *responseService) RecordAnswer(ctx context.Context, projectID uint, participantName, question, answer string) error {
	_, err := s.SubmitResponse(ctx, SubmitResponseInput{
		ParticipantName: participantName,
		ProjectID:       projectID,
		Question:        question,
		Text:            answer,
	})
	return err
}

func (s *responseService) RecordTranscript(ctx context.Context, projectID uint, participantName, question, transcript string) error {
	_, err := s.SubmitChatTranscript(ctx, SubmitChatInput{
		ParticipantName: participantName,
		ProjectID:       projectID,
		Question:        question,
		Content:         transcript,
	})
	return err
}

// store resolves the participant by name, joins them to the project and
// inserts resp, all in one transaction.
func (s *responseService) store(ctx context.Context, participantName string, projectID uint, resp *types.Response) (*types.Response, error) {
	if projectID == 0 {
		return nil, domainerrs.InvalidArgumentf("project id required")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.New(ctx).WithTx(tx)
		if _, err := s.projects.GetByID(dbc, projectID); err != nil {
			return err
		}
		participant, err := s.participants.GetOrCreateByName(dbc, participantName)
		if err != nil {
			return err
		}
		added, err := s.members.Add(dbc, projectID, participant.ID)
		if err != nil {
			return fmt.Errorf("join participant to project: %w", err)
		}
		if added {
			s.log.Info("Participant joined project", "project_id", projectID, "participant_id", participant.ID)
		}
		resp.ParticipantID = participant.ID
		resp.ProjectID = projectID
		if _, err := s.responses.Create(dbc, resp); err != nil {
			return fmt.Errorf("create response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *responseService) submitted(ctx context.Context, resp *types.Response) {
	if s.refiner != nil {
		s.refiner.InvalidateTopics(ctx, resp.ProjectID)
	}
	if s.notify != nil {
		s.notify.ResponseSubmitted(ctx, resp.ProjectID, resp.ParticipantID, resp.ID)
	}
}

// TranscriptMarkdown renders the stored form of a chat conversation.
func TranscriptMarkdown(participantName string, projectID uint, content string, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Chat Response - %s\n\n", participantName)
	fmt.Fprintf(&b, "**Project ID:** %d  \n", projectID)
	fmt.Fprintf(&b, "**Participant:** %s  \n", participantName)
	fmt.Fprintf(&b, "**Date:** %s\n\n", at.Format("2006-01-02 15:04:05"))
	b.WriteString("---\n\n## Chat Conversation\n\n")
	b.WriteString(content)
	b.WriteString("\n\n---\n\n*Generated automatically by RetroMeet*\n")
	return b.String()
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
