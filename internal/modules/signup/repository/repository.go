package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"anoa.com/bountyboard/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrDuplicateEmail = errors.New("signup email already exists")

type SignupRepository interface {
	Create(ctx context.Context, signup *entity.BetaSignup) error
	CountByIPSince(ctx context.Context, ip string, since time.Time) (int64, error)
	FindByToken(ctx context.Context, token string) (*entity.BetaSignup, error)
	MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) error
}

type signupRepository struct {
	db *gorm.DB
}

func NewSignupRepository(db *gorm.DB) SignupRepository {
	return &signupRepository{db: db}
}

func (r *signupRepository) Create(ctx context.Context, signup *entity.BetaSignup) error {
	err := r.db.WithContext(ctx).Create(signup).Error
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *signupRepository) CountByIPSince(ctx context.Context, ip string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.BetaSignup{}).
		Where("ip_address = ? AND created_at >= ?", ip, since).
		Count(&count).Error
	return count, err
}

func (r *signupRepository) FindByToken(ctx context.Context, token string) (*entity.BetaSignup, error) {
	// Find with slice avoids GORM's "record not found" log noise
	var rows []entity.BetaSignup
	err := r.db.WithContext(ctx).
		Where("verification_token = ?", token).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *signupRepository) MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&entity.BetaSignup{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"email_verified": true,
			"verified_at":    at,
		}).Error
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
