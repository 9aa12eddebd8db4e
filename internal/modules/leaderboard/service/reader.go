package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"anoa.com/bountyboard/internal/modules/leaderboard/dto"
	"anoa.com/bountyboard/internal/modules/leaderboard/repository"
	"anoa.com/bountyboard/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// CacheKey scopes the cached board to one event, so activating another event
// never serves the previous board.
func CacheKey(eventID uuid.UUID) string {
	return "leaderboard:event:" + eventID.String()
}

type LeaderboardReader interface {
	GetLeaderboard(ctx context.Context, limit int) (*dto.LeaderboardResponse, error)
	Invalidate(ctx context.Context, eventID uuid.UUID) error
}

// boardCache is the slice of redis the reader needs. Get reports redis.Nil on a miss.
type boardCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type redisBoardCache struct {
	rdb *redis.Client
}

func (c redisBoardCache) Get(ctx context.Context, key string) ([]byte, error) {
	return c.rdb.Get(ctx, key).Bytes()
}

func (c redisBoardCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

func (c redisBoardCache) Del(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

type leaderboardReader struct {
	events ActiveEventFinder
	repo   repository.LeaderboardRepository
	cache  boardCache
	ttl    time.Duration
}

func NewLeaderboardReader(events ActiveEventFinder, repo repository.LeaderboardRepository, rdb *redis.Client, ttl time.Duration) LeaderboardReader {
	r := &leaderboardReader{events: events, repo: repo, ttl: ttl}
	if rdb != nil {
		r.cache = redisBoardCache{rdb: rdb}
	}
	return r
}

func ClampLimit(limit int) int {
	if limit < 1 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func (r *leaderboardReader) GetLeaderboard(ctx context.Context, limit int) (*dto.LeaderboardResponse, error) {
	limit = ClampLimit(limit)

	board, err := r.cached(ctx)
	if err != nil {
		return nil, err
	}

	entries := board.Entries
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return &dto.LeaderboardResponse{Event: board.Event, Entries: entries}, nil
}

func (r *leaderboardReader) cached(ctx context.Context) (*dto.LeaderboardResponse, error) {
	event, err := r.events.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active event: %w", err)
	}
	if event == nil {
		return &dto.LeaderboardResponse{Entries: []dto.LeaderboardEntry{}}, nil
	}

	key := CacheKey(event.ID)
	if r.cache != nil {
		raw, err := r.cache.Get(ctx, key)
		if err == nil {
			var board dto.LeaderboardResponse
			if err := json.Unmarshal(raw, &board); err == nil {
				return &board, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			logger.WithComponent("leaderboard").Warnf("read cache unavailable: %v", err)
		}
	}

	rows, err := r.repo.ListByEvent(ctx, event.ID, MaxLimit)
	if err != nil {
		return nil, fmt.Errorf("list leaderboard: %w", err)
	}
	board := &dto.LeaderboardResponse{Event: dto.NewEventInfo(event), Entries: dto.FromRows(rows)}

	if r.cache != nil {
		if payload, err := json.Marshal(board); err == nil {
			if err := r.cache.Set(ctx, key, payload, r.ttl); err != nil {
				logger.WithComponent("leaderboard").Warnf("failed to cache leaderboard: %v", err)
			}
		}
	}
	return board, nil
}

func (r *leaderboardReader) Invalidate(ctx context.Context, eventID uuid.UUID) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Del(ctx, CacheKey(eventID))
}
