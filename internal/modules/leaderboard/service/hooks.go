package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"anoa.com/bountyboard/internal/entity"
	"anoa.com/bountyboard/internal/modules/leaderboard/dto"
	"anoa.com/bountyboard/pkg/storage"
	"github.com/redis/go-redis/v9"
)

const NotifyChannel = "leaderboard_rebuilt"

// NewCacheRefreshHook drops the cached board and announces the rebuild to
// websocket subscribers.
func NewCacheRefreshHook(reader LeaderboardReader, rdb *redis.Client) RebuildHook {
	return &cacheRefreshHook{reader: reader, rdb: rdb}
}

type cacheRefreshHook struct {
	reader LeaderboardReader
	rdb    *redis.Client
}

func (h *cacheRefreshHook) Name() string { return "cache" }

func (h *cacheRefreshHook) AfterRebuild(ctx context.Context, event *entity.BountyEvent, rows []entity.LeaderboardCache) error {
	if err := h.reader.Invalidate(ctx, event.ID); err != nil {
		return fmt.Errorf("invalidate read cache: %w", err)
	}
	if h.rdb == nil {
		return nil
	}

	payload, err := json.Marshal(dto.RebuildNotice{
		Type:      NotifyChannel,
		EventID:   event.ID.String(),
		Entries:   len(rows),
		RebuiltAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return h.rdb.Publish(ctx, NotifyChannel, payload).Err()
}

// NewSnapshotHook publishes the rebuilt board as JSON to object storage,
// both as a timestamped object and as latest.json.
func NewSnapshotHook(store storage.ObjectStorage) RebuildHook {
	return &snapshotHook{store: store, now: time.Now}
}

type snapshotHook struct {
	store storage.ObjectStorage
	now   func() time.Time
}

func (h *snapshotHook) Name() string { return "snapshot" }

func SnapshotKeys(eventID string, at time.Time) (string, string) {
	prefix := "leaderboard/" + eventID
	return prefix + "/" + at.UTC().Format("20060102T150405Z") + ".json", prefix + "/latest.json"
}

func (h *snapshotHook) AfterRebuild(ctx context.Context, event *entity.BountyEvent, rows []entity.LeaderboardCache) error {
	at := h.now()
	payload, err := json.Marshal(struct {
		Event       *dto.EventInfo         `json:"event"`
		GeneratedAt time.Time              `json:"generated_at"`
		Entries     []dto.LeaderboardEntry `json:"data"`
	}{
		Event:       dto.NewEventInfo(event),
		GeneratedAt: at.UTC(),
		Entries:     dto.FromRows(rows),
	})
	if err != nil {
		return err
	}

	archiveKey, latestKey := SnapshotKeys(event.ID.String(), at)
	for _, key := range []string{archiveKey, latestKey} {
		if _, err := h.store.Put(ctx, key, bytes.NewReader(payload), "application/json"); err != nil {
			return err
		}
	}
	return nil
}
