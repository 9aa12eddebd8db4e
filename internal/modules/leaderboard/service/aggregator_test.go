package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"anoa.com/bountyboard/internal/entity"
	"anoa.com/bountyboard/internal/modules/leaderboard/repository"
	mention "anoa.com/bountyboard/internal/modules/mention/service"
	"anoa.com/bountyboard/internal/testutil"
	"anoa.com/bountyboard/pkg/social"
	"anoa.com/bountyboard/pkg/social/socialtest"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type stubEvents struct {
	event *entity.BountyEvent
	err   error
}

func (s stubEvents) FindActive(ctx context.Context) (*entity.BountyEvent, error) {
	return s.event, s.err
}

type stubMentions struct{ calls int }

func (s *stubMentions) Process(ctx context.Context, event *entity.BountyEvent) mention.ProcessResult {
	s.calls++
	return mention.ProcessResult{Status: mention.StatusSkipped}
}

type failingClearRepo struct {
	repository.LeaderboardRepository
}

func (failingClearRepo) ClearEvent(ctx context.Context, eventID uuid.UUID) error {
	return errors.New("connection reset")
}

// flakyRepo fails one referrer at a single step.
type flakyRepo struct {
	repository.LeaderboardRepository
	handle string
	step   string
}

func (r flakyRepo) CountVerifiedReferrals(ctx context.Context, eventID uuid.UUID, referrer string) (int64, error) {
	if r.step == "count" && referrer == r.handle {
		return 0, errors.New("statement timeout")
	}
	return r.LeaderboardRepository.CountVerifiedReferrals(ctx, eventID, referrer)
}

func (r flakyRepo) Upsert(ctx context.Context, row *entity.LeaderboardCache) error {
	if r.step == "upsert" && row.ReferrerHandle == r.handle {
		return errors.New("deadlock detected")
	}
	return r.LeaderboardRepository.Upsert(ctx, row)
}

type recordingHook struct {
	name string
	err  error
	rows []entity.LeaderboardCache
}

func (h *recordingHook) Name() string { return h.name }

func (h *recordingHook) AfterRebuild(ctx context.Context, event *entity.BountyEvent, rows []entity.LeaderboardCache) error {
	h.rows = rows
	return h.err
}

func w(v float64) *float64 { return &v }

func newEvent(cfg entity.ScoringConfig) *entity.BountyEvent {
	return &entity.BountyEvent{
		ID:            uuid.New(),
		Name:          "Launch bounty",
		IsActive:      true,
		StartDate:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ScoringConfig: datatypes.NewJSONType(cfg),
	}
}

func seedReferrals(t *testing.T, db *gorm.DB, eventID uuid.UUID, referrer string, verified, unverified int) {
	t.Helper()
	now := time.Now().UTC()
	for i := 0; i < verified+unverified; i++ {
		ref := referrer
		require.NoError(t, db.Create(&entity.BetaSignup{
			Email:             fmt.Sprintf("%s-%d@example.com", referrer[1:], i),
			ReferrerXHandle:   &ref,
			VerificationToken: uuid.NewString(),
			TokenExpiresAt:    now.Add(24 * time.Hour),
			IPAddress:         "1.1.1.1",
			BountyEventID:     &eventID,
			EmailVerified:     i < verified,
			CreatedAt:         now,
		}).Error)
	}
}

func seedMentioners(t *testing.T, db *gorm.DB, eventID uuid.UUID, mentioned string, mentioners int) {
	t.Helper()
	for i := 0; i < mentioners; i++ {
		for j := 0; j < 2; j++ {
			require.NoError(t, db.Create(&entity.ProcessedComment{
				CommentID:       fmt.Sprintf("%s-c%d-%d", mentioned, i, j),
				BountyEventID:   eventID,
				MentionerHandle: fmt.Sprintf("@fan%d", i),
				MentionedHandle: mentioned,
				AccountAgeDays:  10,
				ProcessedAt:     time.Now(),
			}).Error)
		}
	}
}

func cacheRows(t *testing.T, db *gorm.DB) []entity.LeaderboardCache {
	t.Helper()
	var rows []entity.LeaderboardCache
	require.NoError(t, db.Order("referrer_handle").Find(&rows).Error)
	return rows
}

func TestRun_ScoringExample(t *testing.T) {
	db := testutil.NewDB(t)
	event := newEvent(entity.ScoringConfig{ReferralSignups: w(2), CommentMentions: w(3)})
	seedReferrals(t, db, event.ID, "@alice", 4, 2)
	seedMentioners(t, db, event.ID, "@alice", 5)

	client := socialtest.New()
	client.AddUser("1", "alice", "Alice <b>A</b>", time.Now().AddDate(-1, 0, 0))

	hook := &recordingHook{name: "record"}
	agg := NewAggregator(stubEvents{event: event}, &stubMentions{}, repository.NewLeaderboardRepository(db), client, 4, hook)

	summary, err := agg.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Referrers)
	assert.Equal(t, 1, summary.Scored)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, "ok", summary.Hooks["record"])

	rows := cacheRows(t, db)
	require.Len(t, rows, 1)
	assert.Equal(t, "@alice", rows[0].ReferrerHandle)
	assert.Equal(t, 23.0, rows[0].TotalScore)
	assert.Equal(t, entity.Breakdown{ReferralSignups: 8, CommentMentions: 15}, rows[0].Breakdown.Data())
	assert.Equal(t, "Alice A", rows[0].UserName)
	require.Len(t, hook.rows, 1)
}

func TestRun_FailsFastOnEventLookup(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewLeaderboardRepository(db)
	existing := newEvent(entity.ScoringConfig{})
	require.NoError(t, repo.Upsert(context.Background(), &entity.LeaderboardCache{
		ReferrerHandle: "@alice", BountyEventID: existing.ID, TotalScore: 4, LastUpdated: time.Now(),
	}))

	mentions := &stubMentions{}
	agg := NewAggregator(stubEvents{err: errors.New("db down")}, mentions, repo, socialtest.New(), 2)

	_, err := agg.Run(context.Background())
	var fatalErr *FatalJobError
	require.ErrorAs(t, err, &fatalErr)
	assert.Equal(t, "load_active_event", fatalErr.Step)
	assert.Zero(t, mentions.calls)
	assert.Len(t, cacheRows(t, db), 1)
}

func TestRun_ClearFailureIsFatal(t *testing.T) {
	db := testutil.NewDB(t)
	event := newEvent(entity.ScoringConfig{ReferralSignups: w(1)})
	seedReferrals(t, db, event.ID, "@alice", 1, 0)

	repo := failingClearRepo{repository.NewLeaderboardRepository(db)}
	agg := NewAggregator(stubEvents{event: event}, &stubMentions{}, repo, socialtest.New(), 1)

	_, err := agg.Run(context.Background())
	var fatalErr *FatalJobError
	require.ErrorAs(t, err, &fatalErr)
	assert.Equal(t, "clear_cache", fatalErr.Step)
	assert.Empty(t, cacheRows(t, db))
}

func TestRun_DisplayNameFallback(t *testing.T) {
	db := testutil.NewDB(t)
	event := newEvent(entity.ScoringConfig{ReferralSignups: w(1)})
	seedReferrals(t, db, event.ID, "@alice", 2, 0)
	seedReferrals(t, db, event.ID, "@bob", 3, 0)

	client := socialtest.New()
	client.UserErrs["alice"] = social.ErrUnavailable
	client.AddUser("2", "bob", "Bob B", time.Now().AddDate(-1, 0, 0))

	agg := NewAggregator(stubEvents{event: event}, &stubMentions{}, repository.NewLeaderboardRepository(db), client, 2)
	summary, err := agg.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Scored)

	rows := cacheRows(t, db)
	require.Len(t, rows, 2)
	assert.Equal(t, "@alice", rows[0].UserName)
	assert.Equal(t, 2.0, rows[0].TotalScore)
	assert.Equal(t, "Bob B", rows[1].UserName)
	assert.Equal(t, 3.0, rows[1].TotalScore)

	for _, o := range summary.Outcomes {
		if o.Handle == "@alice" {
			assert.NotEmpty(t, o.Warnings)
		} else {
			assert.Empty(t, o.Warnings)
		}
	}
}

func TestRun_ReferrerFailureIsContained(t *testing.T) {
	for _, step := range []string{"count", "upsert"} {
		t.Run(step, func(t *testing.T) {
			db := testutil.NewDB(t)
			event := newEvent(entity.ScoringConfig{ReferralSignups: w(1)})
			seedReferrals(t, db, event.ID, "@alice", 2, 0)
			seedReferrals(t, db, event.ID, "@bob", 1, 0)
			seedReferrals(t, db, event.ID, "@carol", 3, 0)

			repo := flakyRepo{LeaderboardRepository: repository.NewLeaderboardRepository(db), handle: "@bob", step: step}
			agg := NewAggregator(stubEvents{event: event}, &stubMentions{}, repo, socialtest.New(), 2)

			summary, err := agg.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 3, summary.Referrers)
			assert.Equal(t, 2, summary.Scored)
			assert.Equal(t, 1, summary.Failed)

			for _, outcome := range summary.Outcomes {
				if outcome.Handle == "@bob" {
					assert.Equal(t, OutcomeFailed, outcome.Status)
					assert.NotEmpty(t, outcome.Error)
				} else {
					assert.Equal(t, OutcomeScored, outcome.Status)
				}
			}

			rows := cacheRows(t, db)
			require.Len(t, rows, 2)
			assert.Equal(t, "@alice", rows[0].ReferrerHandle)
			assert.Equal(t, 2.0, rows[0].TotalScore)
			assert.Equal(t, "@carol", rows[1].ReferrerHandle)
			assert.Equal(t, 3.0, rows[1].TotalScore)
		})
	}
}

func TestRun_NoActiveEvent(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewLeaderboardRepository(db)
	other := uuid.New()
	require.NoError(t, repo.Upsert(context.Background(), &entity.LeaderboardCache{
		ReferrerHandle: "@old", BountyEventID: other, TotalScore: 1, LastUpdated: time.Now(),
	}))
	before := cacheRows(t, db)

	mentions := &stubMentions{}
	hook := &recordingHook{name: "record"}
	agg := NewAggregator(stubEvents{}, mentions, repo, socialtest.New(), 2, hook)

	summary, err := agg.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.NoEvent)
	assert.Zero(t, mentions.calls)
	assert.Nil(t, hook.rows)
	assert.Equal(t, before, cacheRows(t, db))
}

func TestRun_Engagement(t *testing.T) {
	db := testutil.NewDB(t)
	event := newEvent(entity.ScoringConfig{Likes: w(1), Retweets: w(2), Comments: w(0.5), Posts: w(2)})
	anchor := "P1"
	event.BountyPostID = &anchor
	seedReferrals(t, db, event.ID, "@alice", 0, 1)

	quote := []social.ReferencedPost{{Type: social.ReferenceQuoted, ID: "P1"}}
	client := socialtest.New()
	client.AddUser("1", "alice", "Alice", time.Now().AddDate(-1, 0, 0))
	client.Timelines["1"] = []social.Post{
		{ID: "a", ReferencedPosts: quote, PublicMetrics: social.PublicMetrics{LikeCount: 3, RetweetCount: 1, ReplyCount: 2}},
		{ID: "b", ReferencedPosts: quote, PublicMetrics: social.PublicMetrics{LikeCount: 4}},
		{ID: "c", PublicMetrics: social.PublicMetrics{LikeCount: 100}},
	}

	agg := NewAggregator(stubEvents{event: event}, &stubMentions{}, repository.NewLeaderboardRepository(db), client, 1)
	_, err := agg.Run(context.Background())
	require.NoError(t, err)

	rows := cacheRows(t, db)
	require.Len(t, rows, 1)
	assert.Equal(t, entity.Breakdown{Likes: 7, Retweets: 2, Comments: 1, Posts: 4}, rows[0].Breakdown.Data())
	assert.Equal(t, 14.0, rows[0].TotalScore)
}

func TestRun_TimelineFailureScoresZeroEngagement(t *testing.T) {
	db := testutil.NewDB(t)
	event := newEvent(entity.ScoringConfig{ReferralSignups: w(1), Likes: w(1)})
	anchor := "P1"
	event.BountyPostID = &anchor
	seedReferrals(t, db, event.ID, "@alice", 2, 0)

	client := socialtest.New()
	client.AddUser("1", "alice", "Alice", time.Now())
	client.TimelineErr["1"] = social.ErrUnavailable

	hook := &recordingHook{name: "broken", err: errors.New("index offline")}
	agg := NewAggregator(stubEvents{event: event}, &stubMentions{}, repository.NewLeaderboardRepository(db), client, 1, hook)
	summary, err := agg.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, summary.Hooks["broken"], "failed")

	rows := cacheRows(t, db)
	require.Len(t, rows, 1)
	assert.Equal(t, 2.0, rows[0].TotalScore)
}

func TestRun_RebuildReplacesStaleRows(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewLeaderboardRepository(db)
	event := newEvent(entity.ScoringConfig{ReferralSignups: w(1)})
	seedReferrals(t, db, event.ID, "@alice", 1, 0)
	require.NoError(t, repo.Upsert(context.Background(), &entity.LeaderboardCache{
		ReferrerHandle: "@ghost", BountyEventID: event.ID, TotalScore: 99, LastUpdated: time.Now(),
	}))

	agg := NewAggregator(stubEvents{event: event}, &stubMentions{}, repo, socialtest.New(), 3)
	_, err := agg.Run(context.Background())
	require.NoError(t, err)

	rows := cacheRows(t, db)
	require.Len(t, rows, 1)
	assert.Equal(t, "@alice", rows[0].ReferrerHandle)
}

func TestScoreBreakdown_SumsToTotal(t *testing.T) {
	properties := gopter.NewProperties(nil)

	weightGen := gen.PtrOf(gen.Float64Range(0, 1000))
	countGen := gen.Int64Range(0, 100000)

	properties.Property("components sum to total and disabled components are zero", prop.ForAll(
		func(ws []*float64, counts []int64) bool {
			cfg := entity.ScoringConfig{
				ReferralSignups: ws[0], CommentMentions: ws[1], Likes: ws[2],
				Retweets: ws[3], Comments: ws[4], Posts: ws[5],
			}
			eng := Engagement{Likes: counts[2], Retweets: counts[3], Replies: counts[4], Posts: counts[5]}
			b := ScoreBreakdown(cfg, counts[0], counts[1], eng)

			sum := b.ReferralSignups + b.CommentMentions + b.Likes + b.Retweets + b.Comments + b.Posts
			if math.Abs(sum-b.Total()) > 1e-9 {
				return false
			}
			if cfg.Likes == nil && b.Likes != 0 {
				return false
			}
			return cfg.ReferralSignups != nil || b.ReferralSignups == 0
		},
		gen.SliceOfN(6, weightGen),
		gen.SliceOfN(6, countGen),
	))

	properties.TestingRun(t)
}
