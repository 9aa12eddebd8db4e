package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"anoa.com/bountyboard/internal/entity"
	"anoa.com/bountyboard/internal/modules/mention/repository"
	"anoa.com/bountyboard/pkg/handle"
	"anoa.com/bountyboard/pkg/logger"
	"anoa.com/bountyboard/pkg/social"
	"github.com/sirupsen/logrus"
)

const (
	MinAccountAgeDays = 3
	FollowerPageSize  = 1000
	SearchPageSize    = 100
)

type MentionProcessor interface {
	Process(ctx context.Context, event *entity.BountyEvent) ProcessResult
}

type mentionProcessor struct {
	repo     repository.MentionRepository
	client   social.Client
	campaign string
	now      func() time.Time
}

func NewMentionProcessor(repo repository.MentionRepository, client social.Client, campaignHandle string) MentionProcessor {
	return &mentionProcessor{
		repo:     repo,
		client:   client,
		campaign: handle.MustNormalize(campaignHandle),
		now:      time.Now,
	}
}

func (p *mentionProcessor) Process(ctx context.Context, event *entity.BountyEvent) ProcessResult {
	log := logger.WithComponent("mention").WithField("event_id", event.ID)

	anchor := event.AnchorPostID()
	if anchor == "" || event.Config().CommentMentions == nil {
		return ProcessResult{Status: StatusSkipped, Reason: "comment mentions not configured"}
	}

	result := ProcessResult{Status: StatusCompleted}

	followers, err := p.followers(ctx)
	switch {
	case err != nil:
		log.Warnf("follower gate disabled for this run: %v", err)
	case len(followers) == 0:
		log.Warn("follower gate disabled for this run: campaign account has no followers")
		followers = nil
	default:
		result.FollowerGate = true
	}

	if _, err := p.client.LookupPost(ctx, anchor); err != nil {
		log.WithField("post_id", anchor).Warnf("anchor post unavailable: %v", err)
		return ProcessResult{Status: StatusAborted, Reason: "anchor post unavailable", FollowerGate: result.FollowerGate}
	}

	search, err := p.client.SearchRecent(ctx, "to:"+handle.Username(p.campaign), SearchPageSize)
	if err != nil {
		log.Warnf("reply search failed: %v", err)
		return ProcessResult{Status: StatusAborted, Reason: "reply search failed", FollowerGate: result.FollowerGate}
	}
	result.Fetched = len(search.Posts)

	now := p.now()
	for _, post := range search.Posts {
		if !repliesTo(post, anchor) {
			continue
		}
		result.Qualifying++

		p.processReply(ctx, log.WithField("comment_id", post.ID), event, search, post, followers, now, &result)
	}

	log.WithFields(logrus.Fields{
		"fetched":    result.Fetched,
		"qualifying": result.Qualifying,
		"recorded":   result.Recorded,
		"rejected":   result.Rejected,
	}).Info("mention processing finished")

	return result
}

func (p *mentionProcessor) processReply(
	ctx context.Context,
	log *logrus.Entry,
	event *entity.BountyEvent,
	search *social.SearchResult,
	post social.Post,
	followers map[string]struct{},
	now time.Time,
	result *ProcessResult,
) {
	seen, err := p.repo.IsProcessed(ctx, post.ID)
	if err != nil {
		log.Errorf("ledger lookup failed: %v", err)
		result.Errors++
		return
	}
	if seen {
		result.AlreadySeen++
		return
	}

	author, ok := search.Author(post)
	if !ok {
		result.Skipped++
		return
	}

	age := AccountAgeDays(author.CreatedAt, now)
	if age < MinAccountAgeDays {
		log.WithField("account_age_days", age).Debug("reply rejected: account too new")
		result.Rejected++
		return
	}

	if followers != nil {
		if _, ok := followers[author.ID]; !ok {
			log.Debug("reply rejected: author does not follow the campaign account")
			result.Rejected++
			return
		}
	}

	mentioner := handle.MustNormalize(author.Username)
	for _, mentioned := range MentionedHandles(post.Text, p.campaign, mentioner) {
		inserted, err := p.repo.Record(ctx, &entity.ProcessedComment{
			CommentID:       post.ID,
			BountyEventID:   event.ID,
			MentionerHandle: mentioner,
			MentionedHandle: mentioned,
			AccountAgeDays:  age,
			CommentText:     post.Text,
			ProcessedAt:     now,
		})
		if err != nil {
			log.WithField("mentioned", mentioned).Errorf("record mention failed: %v", err)
			result.Errors++
			continue
		}
		if inserted {
			result.Recorded++
		} else {
			result.Duplicates++
		}
	}
}

// followers returns nil with an error when the gate cannot be established.
func (p *mentionProcessor) followers(ctx context.Context) (map[string]struct{}, error) {
	account, err := p.client.LookupUserByUsername(ctx, handle.Username(p.campaign))
	if err != nil {
		return nil, fmt.Errorf("lookup campaign account: %w", err)
	}
	if account == nil {
		return nil, errors.New("campaign account not found")
	}

	ids, err := p.client.ListFollowerIDs(ctx, account.ID, FollowerPageSize)
	if err != nil {
		return nil, fmt.Errorf("list followers: %w", err)
	}
	return ids, nil
}

func repliesTo(post social.Post, anchor string) bool {
	ref, ok := post.FirstReference()
	return ok && ref.Type == social.ReferenceReplied && ref.ID == anchor
}

// AccountAgeDays is the number of whole days between created and now.
func AccountAgeDays(created, now time.Time) int {
	if created.IsZero() || now.Before(created) {
		return 0
	}
	return int(now.Sub(created).Hours() / 24)
}

// MentionedHandles extracts the handles credited by a reply: the first
// mention of the campaign account (the reply target) and the author's own
// handle are dropped, the rest de-duplicated in order.
func MentionedHandles(text, campaign, author string) []string {
	out := make([]string, 0)
	seen := make(map[string]struct{})
	droppedTarget := false

	for _, h := range handle.Extract(text) {
		if !droppedTarget && handle.Equal(h, campaign) {
			droppedTarget = true
			continue
		}
		if handle.Equal(h, author) {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}
