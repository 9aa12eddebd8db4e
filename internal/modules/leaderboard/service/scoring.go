package service

import (
	"anoa.com/bountyboard/internal/entity"
	"anoa.com/bountyboard/pkg/social"
)

// Engagement totals the public metrics of a referrer's posts that quote the
// bounty post.
type Engagement struct {
	Likes    int64
	Retweets int64
	Replies  int64
	Posts    int64
}

func QuotingEngagement(posts []social.Post, anchor string) Engagement {
	var e Engagement
	for _, p := range posts {
		if !p.Quotes(anchor) {
			continue
		}
		e.Posts++
		e.Likes += p.PublicMetrics.LikeCount
		e.Retweets += p.PublicMetrics.RetweetCount
		e.Replies += p.PublicMetrics.ReplyCount
	}
	return e
}

// ScoreBreakdown applies the event weights. Disabled components score zero.
func ScoreBreakdown(cfg entity.ScoringConfig, referrals, mentioners int64, eng Engagement) entity.Breakdown {
	return entity.Breakdown{
		ReferralSignups: float64(referrals) * entity.WeightOf(cfg.ReferralSignups),
		CommentMentions: float64(mentioners) * entity.WeightOf(cfg.CommentMentions),
		Likes:           float64(eng.Likes) * entity.WeightOf(cfg.Likes),
		Retweets:        float64(eng.Retweets) * entity.WeightOf(cfg.Retweets),
		Comments:        float64(eng.Replies) * entity.WeightOf(cfg.Comments),
		Posts:           float64(eng.Posts) * entity.WeightOf(cfg.Posts),
	}
}
