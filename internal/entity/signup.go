package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BetaSignup struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Email             string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	ReferrerXHandle   *string    `gorm:"column:referrer_x_handle;size:100;index" json:"referrer_x_handle,omitempty"`
	VerificationToken string     `gorm:"size:64;index;not null" json:"-"`
	TokenExpiresAt    time.Time  `gorm:"not null" json:"token_expires_at"`
	IPAddress         string     `gorm:"size:64;index:idx_signup_ip_created,priority:1" json:"ip_address"`
	BountyEventID     *uuid.UUID `gorm:"type:uuid;index" json:"bounty_event_id,omitempty"`
	EmailVerified     bool       `gorm:"not null;default:false" json:"email_verified"`
	VerifiedAt        *time.Time `json:"verified_at,omitempty"`
	CreatedAt         time.Time  `gorm:"index:idx_signup_ip_created,priority:2" json:"created_at"`
}

func (s *BetaSignup) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
