package retro

import "time"

type Project struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null;uniqueIndex;column:name" json:"name"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (Project) TableName() string { return "projects" }

// ProjectParticipant associates a participant with a project. At most one row
// exists per pair.
type ProjectParticipant struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ProjectID     uint      `gorm:"not null;uniqueIndex:idx_project_participant;column:project_id" json:"project_id"`
	ParticipantID uint      `gorm:"not null;uniqueIndex:idx_project_participant;index;column:participant_id" json:"participant_id"`
	JoinedAt      time.Time `gorm:"not null;autoCreateTime;column:joined_at" json:"joined_at"`

	Project     *Project     `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Participant *Participant `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
}

func (ProjectParticipant) TableName() string { return "project_participants" }
