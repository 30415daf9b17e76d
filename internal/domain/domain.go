package domain

import "github.com/portakall/retromeet/internal/domain/retro"

type (
	Participant          = retro.Participant
	Project              = retro.Project
	ProjectParticipant   = retro.ProjectParticipant
	Response             = retro.Response
	SummaryDocument      = retro.SummaryDocument
	ActionItem           = retro.ActionItem
	ParticipantRelevance = retro.ParticipantRelevance
)

// AllModels lists every persisted type, in migration order.
func AllModels() []any {
	return []any{
		&retro.Participant{},
		&retro.Project{},
		&retro.ProjectParticipant{},
		&retro.Response{},
	}
}
