package repository

import (
	"context"

	"anoa.com/bountyboard/internal/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MentionRepository interface {
	// IsProcessed reports whether any row exists for the comment.
	IsProcessed(ctx context.Context, commentID string) (bool, error)
	// Record inserts the mention. A row that already exists for the same
	// (comment, mentioned handle) reports inserted=false without error.
	Record(ctx context.Context, mention *entity.ProcessedComment) (bool, error)
}

type mentionRepository struct {
	db *gorm.DB
}

func NewMentionRepository(db *gorm.DB) MentionRepository {
	return &mentionRepository{db: db}
}

func (r *mentionRepository) IsProcessed(ctx context.Context, commentID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.ProcessedComment{}).
		Where("comment_id = ?", commentID).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

func (r *mentionRepository) Record(ctx context.Context, mention *entity.ProcessedComment) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "comment_id"}, {Name: "mentioned_handle"}},
			DoNothing: true,
		}).
		Create(mention)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
