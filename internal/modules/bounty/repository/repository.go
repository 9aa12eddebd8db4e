package repository

import (
	"context"
	"errors"

	"anoa.com/bountyboard/internal/entity"
	"gorm.io/gorm"
)

type BountyRepository interface {
	// FindActive returns the most recently created active event, or nil when
	// no event is active.
	FindActive(ctx context.Context) (*entity.BountyEvent, error)
	Create(ctx context.Context, event *entity.BountyEvent) error
}

type bountyRepository struct {
	db *gorm.DB
}

func NewBountyRepository(db *gorm.DB) BountyRepository {
	return &bountyRepository{db: db}
}

func (r *bountyRepository) FindActive(ctx context.Context) (*entity.BountyEvent, error) {
	var event entity.BountyEvent
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").
		Take(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *bountyRepository) Create(ctx context.Context, event *entity.BountyEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}
