package entity

import (
	"time"

	"github.com/google/uuid"
)

// ProcessedComment is one credited mention. A reply that mentions several
// handles produces one row per handle.
type ProcessedComment struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CommentID       string    `gorm:"size:64;not null;index;uniqueIndex:idx_comment_mentioned,priority:1" json:"comment_id"`
	BountyEventID   uuid.UUID `gorm:"type:uuid;not null;index" json:"bounty_event_id"`
	MentionerHandle string    `gorm:"size:100;not null" json:"mentioner_handle"`
	MentionedHandle string    `gorm:"size:100;not null;uniqueIndex:idx_comment_mentioned,priority:2" json:"mentioned_handle"`
	AccountAgeDays  int       `gorm:"not null" json:"account_age_days"`
	CommentText     string    `gorm:"type:text" json:"comment_text"`
	ProcessedAt     time.Time `gorm:"not null" json:"processed_at"`
}
