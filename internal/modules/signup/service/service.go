package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"anoa.com/bountyboard/internal/entity"
	abuse "anoa.com/bountyboard/internal/modules/abuse/service"
	"anoa.com/bountyboard/internal/modules/signup/dto"
	"anoa.com/bountyboard/internal/modules/signup/repository"
	"anoa.com/bountyboard/pkg/apperror"
	"anoa.com/bountyboard/pkg/handle"
	"anoa.com/bountyboard/pkg/logger"
	"anoa.com/bountyboard/pkg/mailer"
	"anoa.com/bountyboard/pkg/ratelimit"
	"github.com/go-playground/validator/v10"
)

const (
	TokenBytes = 32
	TokenTTL   = 24 * time.Hour

	mailTimeout = 30 * time.Second
	BurstAction = "signup"
)

var (
	ErrEmailRequired      = apperror.Invalid("Email is required")
	ErrInvalidEmail       = apperror.Invalid("Please enter a valid email address")
	ErrAlreadyRegistered  = apperror.Conflict("This email is already registered")
	ErrTokenRequired      = apperror.Invalid("Verification token is required")
	ErrInvalidVerifyToken = apperror.Invalid("This verification link is invalid or has expired")
)

const signupMessage = "Thanks for signing up! Check your email to confirm your address."

var validate = validator.New()

type ActiveEventFinder interface {
	FindActive(ctx context.Context) (*entity.BountyEvent, error)
}

type SignupService interface {
	Signup(ctx context.Context, req dto.SignupRequest, ip string) (*dto.SignupResponse, error)
	Verify(ctx context.Context, token string) (*dto.VerifyResponse, error)
}

type signupService struct {
	repo   repository.SignupRepository
	filter abuse.AbuseFilter
	events ActiveEventFinder
	mailer mailer.Mailer
	burst  ratelimit.Guard
	now    func() time.Time
}

func NewSignupService(
	repo repository.SignupRepository,
	filter abuse.AbuseFilter,
	events ActiveEventFinder,
	mail mailer.Mailer,
	burst ratelimit.Guard,
) SignupService {
	if burst == nil {
		burst = ratelimit.NewGuard(nil, BurstAction, 0)
	}
	return &signupService{
		repo:   repo,
		filter: filter,
		events: events,
		mailer: mail,
		burst:  burst,
		now:    time.Now,
	}
}

func (s *signupService) Signup(ctx context.Context, req dto.SignupRequest, ip string) (*dto.SignupResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, ErrEmailRequired
	}
	if err := validate.Var(email, "email"); err != nil {
		return nil, ErrInvalidEmail
	}

	referrer := handle.Ptr(req.ReferrerHandle)

	err := s.filter.Check(ctx, abuse.Submission{
		ChallengeToken:   req.ChallengeToken,
		TimeSpentSeconds: req.TimeSpentSeconds,
		Email:            email,
		IP:               ip,
	})
	if err != nil {
		return nil, err
	}

	// Concurrent submissions from one address can all pass the hourly count
	// before any of them is inserted.
	if err := s.claimBurst(ctx, ip); err != nil {
		return nil, err
	}

	resp, err := s.persist(ctx, email, referrer, ip)
	if err != nil {
		// Release the claim so a corrected retry is not rate limited.
		if releaseErr := s.burst.Release(ctx, ip); releaseErr != nil {
			logger.WithComponent("signup").Warnf("failed to release burst guard: %v", releaseErr)
		}
		return nil, err
	}
	return resp, nil
}

func (s *signupService) claimBurst(ctx context.Context, ip string) error {
	allowed, err := s.burst.Claim(ctx, ip)
	if err != nil {
		logger.WithComponent("signup").Warnf("burst guard unavailable: %v", err)
		return nil
	}
	if !allowed {
		return apperror.RateLimitedFor(abuse.ErrRateLimited.Message, s.burst.RetryAfter(ctx, ip))
	}
	return nil
}

func (s *signupService) persist(ctx context.Context, email string, referrer *string, ip string) (*dto.SignupResponse, error) {
	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("generate verification token: %w", err)
	}

	event, err := s.events.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active event: %w", err)
	}

	createdAt := s.now().UTC()
	signup := &entity.BetaSignup{
		Email:             email,
		ReferrerXHandle:   referrer,
		VerificationToken: token,
		TokenExpiresAt:    createdAt.Add(TokenTTL),
		IPAddress:         ip,
		CreatedAt:         createdAt,
	}
	if event != nil {
		signup.BountyEventID = &event.ID
	}

	if err := s.repo.Create(ctx, signup); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("insert signup: %w", err)
	}

	entry := logger.WithComponent("signup").WithField("signup_id", signup.ID)
	if referrer != nil {
		entry = entry.WithField("referrer", *referrer)
	}
	entry.Info("signup recorded")

	s.sendVerificationAsync(email, token)

	return &dto.SignupResponse{Message: signupMessage}, nil
}

func (s *signupService) sendVerificationAsync(email, token string) {
	if s.mailer == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mailTimeout)
		defer cancel()

		if err := s.mailer.SendVerification(ctx, email, token); err != nil {
			logger.WithComponent("signup").Errorf("failed to send verification mail: %v", err)
		}
	}()
}

func (s *signupService) Verify(ctx context.Context, token string) (*dto.VerifyResponse, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenRequired
	}

	signup, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("find signup by token: %w", err)
	}
	if signup == nil {
		return nil, ErrInvalidVerifyToken
	}
	if signup.EmailVerified {
		return &dto.VerifyResponse{Message: "Email already verified"}, nil
	}

	now := s.now().UTC()
	if now.After(signup.TokenExpiresAt) {
		return nil, ErrInvalidVerifyToken
	}

	if err := s.repo.MarkVerified(ctx, signup.ID, now); err != nil {
		return nil, fmt.Errorf("mark signup verified: %w", err)
	}

	return &dto.VerifyResponse{Message: "Email verified"}, nil
}

func generateToken() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
