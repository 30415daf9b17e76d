package services

import (
	"context"

	types "github.com/portakall/retromeet/internal/domain"
	"github.com/portakall/retromeet/internal/realtime"
)

// RetroNotifier publishes pipeline and chat session events on the project's
// realtime channel.
type RetroNotifier interface {
	ResponseSubmitted(ctx context.Context, projectID, participantID, responseID uint)
	ResponseRefined(ctx context.Context, projectID, participantID uint)
	TopicsExtracted(ctx context.Context, projectID uint, topics []string)
	SummaryUpdated(ctx context.Context, projectID uint, doc types.SummaryDocument)
	ChatSessionStatusChanged(ctx context.Context, projectID uint, status SessionStatus)
}

type retroNotifier struct {
	emit SSEEmitter
}

func NewRetroNotifier(emit SSEEmitter) RetroNotifier {
	return &retroNotifier{emit: emit}
}

func (n *retroNotifier) send(ctx context.Context, projectID uint, event realtime.SSEEvent, data map[string]any) {
	if n == nil || n.emit == nil || projectID == 0 {
		return
	}
	data["project_id"] = projectID
	n.emit.Emit(context.WithoutCancel(ctx), realtime.SSEMessage{
		Channel: realtime.ProjectChannel(projectID),
		Event:   event,
		Data:    data,
	})
}

func (n *retroNotifier) ResponseSubmitted(ctx context.Context, projectID, participantID, responseID uint) {
	n.send(ctx, projectID, realtime.SSEEventResponseSubmitted, map[string]any{
		"participant_id": participantID,
		"response_id":    responseID,
	})
}

func (n *retroNotifier) ResponseRefined(ctx context.Context, projectID, participantID uint) {
	n.send(ctx, projectID, realtime.SSEEventResponseRefined, map[string]any{"participant_id": participantID})
}

func (n *retroNotifier) TopicsExtracted(ctx context.Context, projectID uint, topics []string) {
	n.send(ctx, projectID, realtime.SSEEventTopicsExtracted, map[string]any{"topics": topics})
}

func (n *retroNotifier) SummaryUpdated(ctx context.Context, projectID uint, doc types.SummaryDocument) {
	n.send(ctx, projectID, realtime.SSEEventSummaryUpdated, map[string]any{"summary": doc})
}

func (n *retroNotifier) ChatSessionStatusChanged(ctx context.Context, projectID uint, status SessionStatus) {
	n.send(ctx, projectID, realtime.SSEEventChatSessionStatusChanged, map[string]any{"status": status})
}
