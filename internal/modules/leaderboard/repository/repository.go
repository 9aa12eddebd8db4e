package repository

import (
	"context"
	"fmt"

	"anoa.com/bountyboard/internal/entity"
	"anoa.com/bountyboard/pkg/handle"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LeaderboardRepository interface {
	// DistinctReferrers returns every normalized handle that was named as a
	// referrer on a signup or credited in a mention for the event.
	DistinctReferrers(ctx context.Context, eventID uuid.UUID) ([]string, error)
	CountVerifiedReferrals(ctx context.Context, eventID uuid.UUID, referrer string) (int64, error)
	CountDistinctMentioners(ctx context.Context, eventID uuid.UUID, referrer string) (int64, error)
	ClearEvent(ctx context.Context, eventID uuid.UUID) error
	Upsert(ctx context.Context, row *entity.LeaderboardCache) error
	ListByEvent(ctx context.Context, eventID uuid.UUID, limit int) ([]entity.LeaderboardCache, error)
}

type leaderboardRepository struct {
	db *gorm.DB
}

func NewLeaderboardRepository(db *gorm.DB) LeaderboardRepository {
	return &leaderboardRepository{db: db}
}

func (r *leaderboardRepository) DistinctReferrers(ctx context.Context, eventID uuid.UUID) ([]string, error) {
	query := fmt.Sprintf(`
SELECT handle FROM (
	SELECT %s AS handle FROM beta_signups
	WHERE bounty_event_id = ? AND referrer_x_handle IS NOT NULL
	UNION
	SELECT %s AS handle FROM processed_comments
	WHERE bounty_event_id = ?
) referrers
WHERE handle <> ?
ORDER BY handle`,
		handle.SQLExpr("referrer_x_handle"),
		handle.SQLExpr("mentioned_handle"),
	)

	var handles []string
	err := r.db.WithContext(ctx).Raw(query, eventID, eventID, handle.Prefix).Scan(&handles).Error
	return handles, err
}

func (r *leaderboardRepository) CountVerifiedReferrals(ctx context.Context, eventID uuid.UUID, referrer string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.BetaSignup{}).
		Where("bounty_event_id = ? AND email_verified = ?", eventID, true).
		Where(handle.SQLExpr("referrer_x_handle")+" = ?", referrer).
		Count(&count).Error
	return count, err
}

func (r *leaderboardRepository) CountDistinctMentioners(ctx context.Context, eventID uuid.UUID, referrer string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.ProcessedComment{}).
		Where("bounty_event_id = ?", eventID).
		Where(handle.SQLExpr("mentioned_handle")+" = ?", referrer).
		Distinct("mentioner_handle").
		Count(&count).Error
	return count, err
}

func (r *leaderboardRepository) ClearEvent(ctx context.Context, eventID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("bounty_event_id = ?", eventID).
		Delete(&entity.LeaderboardCache{}).Error
}

func (r *leaderboardRepository) Upsert(ctx context.Context, row *entity.LeaderboardCache) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "referrer_handle"}, {Name: "bounty_event_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"total_score", "breakdown", "user_name", "last_updated"}),
		}).
		Create(row).Error
}

func (r *leaderboardRepository) ListByEvent(ctx context.Context, eventID uuid.UUID, limit int) ([]entity.LeaderboardCache, error) {
	var rows []entity.LeaderboardCache
	q := r.db.WithContext(ctx).
		Where("bounty_event_id = ?", eventID).
		Order("total_score DESC").
		Order("referrer_handle ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}
