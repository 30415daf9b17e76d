package retro

import "time"

type Participant struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:100;not null;uniqueIndex;column:name" json:"name"`
	AvatarPath *string   `gorm:"size:255;column:avatar_path" json:"avatar_path,omitempty"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (Participant) TableName() string { return "participants" }

// AvatarPathOrEmpty is a convenience for prompt and payload building.
func (p Participant) AvatarPathOrEmpty() string {
	if p.AvatarPath == nil {
		return ""
	}
	return *p.AvatarPath
}
