package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ScoringConfig holds one optional weight per score component. A nil weight
// disables the component.
type ScoringConfig struct {
	ReferralSignups *float64 `json:"referral_signups,omitempty"`
	CommentMentions *float64 `json:"comment_mentions,omitempty"`
	Likes           *float64 `json:"likes,omitempty"`
	Retweets        *float64 `json:"retweets,omitempty"`
	Comments        *float64 `json:"comments,omitempty"`
	Posts           *float64 `json:"posts,omitempty"`
}

// HasEngagement reports whether any post-engagement component is weighted.
func (c ScoringConfig) HasEngagement() bool {
	return c.Likes != nil || c.Retweets != nil || c.Comments != nil || c.Posts != nil
}

// WeightOf returns the weight, or zero when the component is disabled.
func WeightOf(w *float64) float64 {
	if w == nil {
		return 0
	}
	return *w
}

type BountyEvent struct {
	ID            uuid.UUID                         `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string                            `gorm:"size:200;not null" json:"name"`
	IsActive      bool                              `gorm:"not null;default:false;index" json:"is_active"`
	ScoringConfig datatypes.JSONType[ScoringConfig] `json:"scoring_config"`
	StartDate     time.Time                         `gorm:"not null" json:"start_date"`
	EndDate       *time.Time                        `json:"end_date,omitempty"`
	BountyPostID  *string                           `gorm:"size:64" json:"bounty_post_id,omitempty"`
	CreatedAt     time.Time                         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time                         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e *BountyEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Config is shorthand for the decoded scoring configuration.
func (e *BountyEvent) Config() ScoringConfig {
	return e.ScoringConfig.Data()
}

// AnchorPostID returns the bounty post id, empty when unset.
func (e *BountyEvent) AnchorPostID() string {
	if e.BountyPostID == nil {
		return ""
	}
	return *e.BountyPostID
}
