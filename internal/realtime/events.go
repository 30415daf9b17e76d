package realtime

import "fmt"

type SSEEvent string

const (
	SSEEventResponseSubmitted        SSEEvent = "ResponseSubmitted"
	SSEEventResponseRefined          SSEEvent = "ResponseRefined"
	SSEEventTopicsExtracted          SSEEvent = "TopicsExtracted"
	SSEEventSummaryUpdated           SSEEvent = "SummaryUpdated"
	SSEEventChatSessionStatusChanged SSEEvent = "ChatSessionStatusChanged"
)

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

// ProjectChannel is the channel every event about a project is published on.
func ProjectChannel(projectID uint) string {
	return fmt.Sprintf("project:%d", projectID)
}
