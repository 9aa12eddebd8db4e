package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Breakdown always carries every component so readers never see missing keys.
type Breakdown struct {
	ReferralSignups float64 `json:"referral_signups"`
	CommentMentions float64 `json:"comment_mentions"`
	Likes           float64 `json:"likes"`
	Retweets        float64 `json:"retweets"`
	Comments        float64 `json:"comments"`
	Posts           float64 `json:"posts"`
}

func (b Breakdown) Total() float64 {
	return b.ReferralSignups + b.CommentMentions + b.Likes + b.Retweets + b.Comments + b.Posts
}

type LeaderboardCache struct {
	ID             uuid.UUID                     `gorm:"type:uuid;primaryKey" json:"id"`
	ReferrerHandle string                        `gorm:"size:100;not null;uniqueIndex:idx_referrer_event,priority:1" json:"referrer_handle"`
	BountyEventID  uuid.UUID                     `gorm:"type:uuid;not null;uniqueIndex:idx_referrer_event,priority:2;index" json:"bounty_event_id"`
	TotalScore     float64                       `gorm:"not null;default:0;index" json:"total_score"`
	Breakdown      datatypes.JSONType[Breakdown] `json:"breakdown"`
	UserName       string                        `gorm:"size:200" json:"user_name"`
	LastUpdated    time.Time                     `gorm:"not null" json:"last_updated"`
}

func (LeaderboardCache) TableName() string {
	return "leaderboard_cache"
}

func (l *LeaderboardCache) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
