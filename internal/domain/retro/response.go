package retro

import (
	"strings"
	"time"
)

// Response is one answer a participant gave to a question within a project.
// RefinedResponse is shared across all rows of the same (participant, project)
// pair: it is the participant's whole narrative, not a per-answer rewrite.
type Response struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	ParticipantID        uint      `gorm:"not null;index:idx_response_participant_project;column:participant_id" json:"participant_id"`
	ProjectID            uint      `gorm:"not null;index:idx_response_participant_project;index;column:project_id" json:"project_id"`
	Question             string    `gorm:"size:255;not null;column:question" json:"question"`
	OriginalResponse     string    `gorm:"type:text;not null;column:original_response" json:"original_response"`
	RefinedResponse      *string   `gorm:"type:text;column:refined_response" json:"refined_response,omitempty"`
	ChatResponseFilePath *string   `gorm:"size:500;column:chat_response_file_path" json:"chat_response_file_path,omitempty"`
	CreatedAt            time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`

	Participant *Participant `gorm:"constraint:OnDelete:CASCADE;" json:"participant,omitempty"`
	Project     *Project     `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
}

func (Response) TableName() string { return "responses" }

func (r Response) HasRefined() bool {
	return r.RefinedResponse != nil && strings.TrimSpace(*r.RefinedResponse) != ""
}

func (r Response) Refined() string {
	if r.RefinedResponse == nil {
		return ""
	}
	return *r.RefinedResponse
}

func (r Response) TranscriptPath() string {
	if r.ChatResponseFilePath == nil {
		return ""
	}
	return *r.ChatResponseFilePath
}

// ParticipantRelevance is one participant's contribution to a topic.
type ParticipantRelevance struct {
	ParticipantID   uint     `json:"participant_id"`
	ParticipantName string   `json:"participant_name"`
	AvatarPath      string   `json:"participant_avatar_path,omitempty"`
	Snippets        []string `json:"relevant_snippets"`
}
