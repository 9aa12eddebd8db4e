package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"anoa.com/bountyboard/pkg/apperror"
	"anoa.com/bountyboard/pkg/challenge"
)

const (
	MinTimeSpentSeconds = 2
	MaxTimeSpentSeconds = 1800

	MaxSignupsPerIPPerHour = 5
	IPWindow               = time.Hour
)

var (
	ErrChallengeRequired = apperror.Invalid("Security verification is required")
	ErrChallengeFailed   = apperror.Invalid("Security verification failed. Please try again.")
	ErrInvalidTiming     = apperror.Invalid("Invalid submission. Please try again.")
	ErrDisposableEmail   = apperror.Invalid("Disposable email addresses are not allowed")
	ErrRateLimited       = apperror.RateLimited("Too many signup attempts. Please try again later.")
)

// SignupCounter reports how many signups an address made since a point in time.
type SignupCounter interface {
	CountByIPSince(ctx context.Context, ip string, since time.Time) (int64, error)
}

type Submission struct {
	ChallengeToken   string
	TimeSpentSeconds int
	Email            string
	IP               string
}

type AbuseFilter interface {
	// Check returns nil when the submission passes every gate, otherwise one
	// of the Err* rejections or a wrapped store error.
	Check(ctx context.Context, sub Submission) error
	IsDisposable(email string) bool
}

type abuseFilter struct {
	verifier   challenge.Verifier
	counter    SignupCounter
	disposable map[string]struct{}
	now        func() time.Time
}

func NewAbuseFilter(verifier challenge.Verifier, counter SignupCounter, extraDomains []string) AbuseFilter {
	disposable := make(map[string]struct{}, len(defaultDisposableDomains)+len(extraDomains))
	for _, d := range defaultDisposableDomains {
		disposable[d] = struct{}{}
	}
	for _, d := range extraDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			disposable[d] = struct{}{}
		}
	}

	return &abuseFilter{
		verifier:   verifier,
		counter:    counter,
		disposable: disposable,
		now:        time.Now,
	}
}

func (f *abuseFilter) Check(ctx context.Context, sub Submission) error {
	if strings.TrimSpace(sub.ChallengeToken) == "" {
		return ErrChallengeRequired
	}

	if sub.TimeSpentSeconds < MinTimeSpentSeconds || sub.TimeSpentSeconds > MaxTimeSpentSeconds {
		return ErrInvalidTiming
	}

	if f.IsDisposable(sub.Email) {
		return ErrDisposableEmail
	}

	count, err := f.counter.CountByIPSince(ctx, sub.IP, f.now().Add(-IPWindow))
	if err != nil {
		return fmt.Errorf("count signups by ip: %w", err)
	}
	if count >= MaxSignupsPerIPPerHour {
		return ErrRateLimited
	}

	// network call last so the cheap checks short-circuit first
	if !f.verifier.Verify(ctx, sub.ChallengeToken, sub.IP) {
		return ErrChallengeFailed
	}

	return nil
}

func (f *abuseFilter) IsDisposable(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return false
	}
	_, ok := f.disposable[strings.ToLower(strings.TrimSpace(email[at+1:]))]
	return ok
}
