package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"anoa.com/bountyboard/internal/entity"
	"anoa.com/bountyboard/internal/modules/leaderboard/repository"
	mention "anoa.com/bountyboard/internal/modules/mention/service"
	"anoa.com/bountyboard/pkg/handle"
	"anoa.com/bountyboard/pkg/logger"
	"anoa.com/bountyboard/pkg/social"
	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

type ActiveEventFinder interface {
	FindActive(ctx context.Context) (*entity.BountyEvent, error)
}

// RebuildHook runs after the cache has been rewritten. Hook failures are
// reported in the run summary and never fail the run.
type RebuildHook interface {
	Name() string
	AfterRebuild(ctx context.Context, event *entity.BountyEvent, rows []entity.LeaderboardCache) error
}

// Aggregator rebuilds the leaderboard cache for the active event.
//
// Scores are computed before the cache is touched; the clear and the upserts
// then run back to back, so readers can observe a partially written board
// only during that write phase.
type Aggregator interface {
	Run(ctx context.Context) (*RunSummary, error)
}

type aggregator struct {
	events      ActiveEventFinder
	mentions    mention.MentionProcessor
	repo        repository.LeaderboardRepository
	client      social.Client
	concurrency int
	hooks       []RebuildHook
	policy      *bluemonday.Policy
	now         func() time.Time
}

func NewAggregator(
	events ActiveEventFinder,
	mentions mention.MentionProcessor,
	repo repository.LeaderboardRepository,
	client social.Client,
	concurrency int,
	hooks ...RebuildHook,
) Aggregator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &aggregator{
		events:      events,
		mentions:    mentions,
		repo:        repo,
		client:      client,
		concurrency: concurrency,
		hooks:       hooks,
		policy:      bluemonday.StrictPolicy(),
		now:         time.Now,
	}
}

type scoredReferrer struct {
	row      *entity.LeaderboardCache
	warnings []string
	err      error
}

func (a *aggregator) Run(ctx context.Context) (*RunSummary, error) {
	started := a.now()
	summary := &RunSummary{StartedAt: started, Outcomes: []ReferrerOutcome{}}
	log := logger.WithComponent("leaderboard")

	event, err := a.events.FindActive(ctx)
	if err != nil {
		return nil, fatal("load_active_event", err)
	}
	if event == nil {
		log.Info("no active bounty event, nothing to rebuild")
		summary.NoEvent = true
		summary.Duration = a.now().Sub(started)
		return summary, nil
	}
	summary.EventID = &event.ID
	log = log.WithField("event_id", event.ID)

	mentions := a.mentions.Process(ctx, event)
	summary.Mentions = &mentions

	referrers, err := a.repo.DistinctReferrers(ctx, event.ID)
	if err != nil {
		return nil, fatal("list_referrers", err)
	}
	summary.Referrers = len(referrers)

	results := make([]scoredReferrer, len(referrers))
	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, referrer := range referrers {
		i, referrer := i, referrer
		g.Go(func() error {
			results[i] = a.score(ctx, event, referrer)
			return nil
		})
	}
	_ = g.Wait()

	if err := a.repo.ClearEvent(ctx, event.ID); err != nil {
		return nil, fatal("clear_cache", err)
	}

	rows := make([]entity.LeaderboardCache, 0, len(referrers))
	for i, res := range results {
		outcome := ReferrerOutcome{Handle: referrers[i], Warnings: res.warnings}

		if res.err == nil {
			res.err = a.repo.Upsert(ctx, res.row)
		}
		if res.err != nil {
			log.WithField("referrer", referrers[i]).Errorf("referrer not scored: %v", res.err)
			outcome.Status = OutcomeFailed
			outcome.Error = res.err.Error()
			summary.Failed++
		} else {
			outcome.Status = OutcomeScored
			outcome.TotalScore = res.row.TotalScore
			summary.Scored++
			rows = append(rows, *res.row)
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].TotalScore != rows[j].TotalScore {
			return rows[i].TotalScore > rows[j].TotalScore
		}
		return rows[i].ReferrerHandle < rows[j].ReferrerHandle
	})
	summary.Hooks = a.runHooks(ctx, event, rows)
	summary.Duration = a.now().Sub(started)

	log.WithFields(logrus.Fields{
		"referrers": summary.Referrers,
		"scored":    summary.Scored,
		"failed":    summary.Failed,
		"duration":  summary.Duration.String(),
	}).Info("leaderboard rebuilt")

	return summary, nil
}

func (a *aggregator) score(ctx context.Context, event *entity.BountyEvent, referrer string) scoredReferrer {
	log := logger.WithComponent("leaderboard").WithFields(logrus.Fields{"event_id": event.ID, "referrer": referrer})
	cfg := event.Config()
	var warnings []string

	displayName := referrer
	account, err := a.client.LookupUserByUsername(ctx, handle.Username(referrer))
	if err != nil {
		log.Warnf("display name lookup failed, using handle: %v", err)
		warnings = append(warnings, fmt.Sprintf("display name unavailable: %v", err))
		account = nil
	} else if name := strings.TrimSpace(a.policy.Sanitize(account.Name)); name != "" {
		displayName = name
	}

	var referrals, mentioners int64
	if cfg.ReferralSignups != nil {
		if referrals, err = a.repo.CountVerifiedReferrals(ctx, event.ID, referrer); err != nil {
			return scoredReferrer{warnings: warnings, err: fmt.Errorf("count referrals: %w", err)}
		}
	}
	if cfg.CommentMentions != nil {
		if mentioners, err = a.repo.CountDistinctMentioners(ctx, event.ID, referrer); err != nil {
			return scoredReferrer{warnings: warnings, err: fmt.Errorf("count mentioners: %w", err)}
		}
	}

	var engagement Engagement
	if anchor := event.AnchorPostID(); anchor != "" && cfg.HasEngagement() {
		if account == nil {
			warnings = append(warnings, "engagement skipped: account unresolved")
		} else if posts, err := a.client.UserPostsSince(ctx, account.ID, event.StartDate); err != nil {
			log.Warnf("timeline fetch failed, engagement scored as zero: %v", err)
			warnings = append(warnings, fmt.Sprintf("engagement unavailable: %v", err))
		} else {
			engagement = QuotingEngagement(posts, anchor)
		}
	}

	breakdown := ScoreBreakdown(cfg, referrals, mentioners, engagement)
	return scoredReferrer{
		warnings: warnings,
		row: &entity.LeaderboardCache{
			ReferrerHandle: referrer,
			BountyEventID:  event.ID,
			TotalScore:     breakdown.Total(),
			Breakdown:      datatypes.NewJSONType(breakdown),
			UserName:       displayName,
			LastUpdated:    a.now().UTC(),
		},
	}
}

func (a *aggregator) runHooks(ctx context.Context, event *entity.BountyEvent, rows []entity.LeaderboardCache) map[string]string {
	if len(a.hooks) == 0 {
		return nil
	}

	status := make(map[string]string, len(a.hooks))
	for _, hook := range a.hooks {
		if err := hook.AfterRebuild(ctx, event, rows); err != nil {
			logger.WithComponent("leaderboard").WithField("hook", hook.Name()).Warnf("post-rebuild hook failed: %v", err)
			status[hook.Name()] = "failed: " + err.Error()
			continue
		}
		status[hook.Name()] = "ok"
	}
	return status
}
