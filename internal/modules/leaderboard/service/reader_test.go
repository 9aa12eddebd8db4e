package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"anoa.com/bountyboard/internal/entity"
	"anoa.com/bountyboard/internal/modules/leaderboard/repository"
	"anoa.com/bountyboard/internal/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(0))
	assert.Equal(t, 5, ClampLimit(5))
	assert.Equal(t, MaxLimit, ClampLimit(1000))
}

func TestGetLeaderboard(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := repository.NewLeaderboardRepository(db)
	event := newEvent(entity.ScoringConfig{ReferralSignups: w(2)})

	for handle, score := range map[string]float64{"@alice": 6, "@bob": 10, "@carol": 2} {
		require.NoError(t, repo.Upsert(ctx, &entity.LeaderboardCache{
			ReferrerHandle: handle,
			BountyEventID:  event.ID,
			TotalScore:     score,
			Breakdown:      datatypes.NewJSONType(entity.Breakdown{ReferralSignups: score}),
			UserName:       handle,
			LastUpdated:    time.Now(),
		}))
	}

	reader := NewLeaderboardReader(stubEvents{event: event}, repo, nil, time.Minute)
	board, err := reader.GetLeaderboard(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, board.Event)
	assert.Equal(t, event.ID.String(), board.Event.ID)
	require.Len(t, board.Entries, 2)
	assert.Equal(t, "@bob", board.Entries[0].Handle)
	assert.Equal(t, 1, board.Entries[0].Position)
	assert.Equal(t, "@alice", board.Entries[1].Handle)
	assert.Equal(t, 2, board.Entries[1].Position)
	assert.Equal(t, 6.0, board.Entries[1].Breakdown.ReferralSignups)
	assert.NoError(t, reader.Invalidate(ctx, event.ID))
}

func TestGetLeaderboard_NoEvent(t *testing.T) {
	reader := NewLeaderboardReader(stubEvents{}, repository.NewLeaderboardRepository(testutil.NewDB(t)), nil, time.Minute)

	board, err := reader.GetLeaderboard(context.Background(), 10)
	require.NoError(t, err)
	assert.Nil(t, board.Event)
	assert.Empty(t, board.Entries)

	payload, err := json.Marshal(board)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":null,"data":[]}`, string(payload))
}

func TestGetLeaderboard_EventError(t *testing.T) {
	reader := NewLeaderboardReader(stubEvents{err: errors.New("boom")}, repository.NewLeaderboardRepository(testutil.NewDB(t)), nil, time.Minute)
	_, err := reader.GetLeaderboard(context.Background(), 10)
	assert.Error(t, err)
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return nil, redis.Nil
	}
	return raw, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *memoryCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

type switchableEvents struct {
	event *entity.BountyEvent
}

func (s *switchableEvents) FindActive(ctx context.Context) (*entity.BountyEvent, error) {
	return s.event, nil
}

func seedRow(t *testing.T, repo repository.LeaderboardRepository, event *entity.BountyEvent, handle string, score float64) {
	t.Helper()
	require.NoError(t, repo.Upsert(context.Background(), &entity.LeaderboardCache{
		ReferrerHandle: handle,
		BountyEventID:  event.ID,
		TotalScore:     score,
		Breakdown:      datatypes.NewJSONType(entity.Breakdown{ReferralSignups: score}),
		UserName:       handle,
		LastUpdated:    time.Now(),
	}))
}

func TestGetLeaderboard_CacheFollowsActiveEvent(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewLeaderboardRepository(testutil.NewDB(t))
	first := newEvent(entity.ScoringConfig{ReferralSignups: w(1)})
	second := newEvent(entity.ScoringConfig{ReferralSignups: w(1)})
	seedRow(t, repo, first, "@alice", 3)
	seedRow(t, repo, second, "@zoe", 7)

	events := &switchableEvents{event: first}
	cache := &memoryCache{entries: map[string][]byte{}}
	reader := NewLeaderboardReader(events, repo, nil, time.Minute).(*leaderboardReader)
	reader.cache = cache

	board, err := reader.GetLeaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board.Entries, 1)
	assert.Equal(t, "@alice", board.Entries[0].Handle)
	assert.Contains(t, cache.entries, CacheKey(first.ID))

	events.event = second
	board, err = reader.GetLeaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board.Entries, 1)
	assert.Equal(t, "@zoe", board.Entries[0].Handle)
	assert.Equal(t, second.ID.String(), board.Event.ID)

	require.NoError(t, reader.Invalidate(ctx, first.ID))
	assert.NotContains(t, cache.entries, CacheKey(first.ID))
	assert.Contains(t, cache.entries, CacheKey(second.ID))
}

func TestGetLeaderboard_ServesCachedBoard(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewLeaderboardRepository(testutil.NewDB(t))
	event := newEvent(entity.ScoringConfig{ReferralSignups: w(1)})
	seedRow(t, repo, event, "@alice", 3)

	reader := NewLeaderboardReader(stubEvents{event: event}, repo, nil, time.Minute).(*leaderboardReader)
	reader.cache = &memoryCache{entries: map[string][]byte{}}

	_, err := reader.GetLeaderboard(ctx, 10)
	require.NoError(t, err)

	// rows written after the first read stay hidden until the rebuild invalidates the key
	seedRow(t, repo, event, "@bob", 9)
	board, err := reader.GetLeaderboard(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, board.Entries, 1)

	require.NoError(t, reader.Invalidate(ctx, event.ID))
	board, err = reader.GetLeaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board.Entries, 2)
	assert.Equal(t, "@bob", board.Entries[0].Handle)
}

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (m *memoryStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, r); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = buf.Bytes()
	return "mem://" + key, nil
}

func TestSnapshotHook(t *testing.T) {
	store := &memoryStore{objects: map[string][]byte{}}
	hook := NewSnapshotHook(store).(*snapshotHook)
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	hook.now = func() time.Time { return at }

	event := newEvent(entity.ScoringConfig{})
	rows := []entity.LeaderboardCache{
		{ReferrerHandle: "@bob", TotalScore: 5, Breakdown: datatypes.NewJSONType(entity.Breakdown{Posts: 5})},
	}
	require.NoError(t, hook.AfterRebuild(context.Background(), event, rows))

	archive, latest := SnapshotKeys(event.ID.String(), at)
	assert.Equal(t, "leaderboard/"+event.ID.String()+"/20260203T040506Z.json", archive)
	require.Contains(t, store.objects, archive)
	require.Contains(t, store.objects, latest)

	var snap struct {
		Entries []struct {
			Handle   string `json:"handle"`
			Position int    `json:"position"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(store.objects[latest], &snap))
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, "@bob", snap.Entries[0].Handle)
	assert.Equal(t, 1, snap.Entries[0].Position)

	store.err = errors.New("bucket gone")
	assert.Error(t, hook.AfterRebuild(context.Background(), event, rows))
}

func TestCacheRefreshHook_WithoutRedis(t *testing.T) {
	reader := NewLeaderboardReader(stubEvents{}, nil, nil, time.Minute)
	hook := NewCacheRefreshHook(reader, nil)
	assert.Equal(t, "cache", hook.Name())
	assert.NoError(t, hook.AfterRebuild(context.Background(), newEvent(entity.ScoringConfig{}), nil))
}
