package server

import (
	"context"
	"fmt"
	"strings"

	"anoa.com/bountyboard/internal/config"
	"anoa.com/bountyboard/internal/entity"
	abuseService "anoa.com/bountyboard/internal/modules/abuse/service"
	adminService "anoa.com/bountyboard/internal/modules/admin/service"
	bountyRepo "anoa.com/bountyboard/internal/modules/bounty/repository"
	leaderboardRepo "anoa.com/bountyboard/internal/modules/leaderboard/repository"
	leaderboardService "anoa.com/bountyboard/internal/modules/leaderboard/service"
	mentionRepo "anoa.com/bountyboard/internal/modules/mention/repository"
	mentionService "anoa.com/bountyboard/internal/modules/mention/service"
	searchService "anoa.com/bountyboard/internal/modules/search/service"
	signupRepo "anoa.com/bountyboard/internal/modules/signup/repository"
	signupService "anoa.com/bountyboard/internal/modules/signup/service"
	"anoa.com/bountyboard/pkg/challenge"
	"anoa.com/bountyboard/pkg/logger"
	"anoa.com/bountyboard/pkg/mailer"
	"anoa.com/bountyboard/pkg/ratelimit"
	"anoa.com/bountyboard/pkg/social"
	"anoa.com/bountyboard/pkg/storage"
	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// App holds the wired services shared by the HTTP server and the one-shot
// rebuild command.
type App struct {
	Config *config.Config
	DB     *gorm.DB
	Redis  *redis.Client

	Reader leaderboardService.LeaderboardReader
	Search searchService.LeaderboardSearch
	Job    *leaderboardService.RebuildJob
	Signup signupService.SignupService
	Auth   adminService.AuthService
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(entity.All()...)
}

// NewApp wires repositories, external clients and services. Redis, Meilisearch
// and snapshot storage are optional and skipped when unconfigured.
func NewApp(ctx context.Context, cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*App, error) {
	log := logger.WithComponent("server")

	events := bountyRepo.NewBountyRepository(db)
	signups := signupRepo.NewSignupRepository(db)
	mentions := mentionRepo.NewMentionRepository(db)
	board := leaderboardRepo.NewLeaderboardRepository(db)

	socialClient := social.NewClient(social.Options{
		BaseURL:       cfg.XAPIBaseURL,
		BearerToken:   cfg.XBearerToken,
		Timeout:       cfg.SocialTimeout,
		RatePerSecond: cfg.SocialRatePerSecond,
		Burst:         cfg.SocialBurst,
	})
	if cfg.XBearerToken == "" {
		log.Warn("X_BEARER_TOKEN is empty, social lookups will fail and be skipped")
	}

	reader := leaderboardService.NewLeaderboardReader(events, board, redisClient, cfg.LeaderboardCacheTTL)
	hooks := []leaderboardService.RebuildHook{leaderboardService.NewCacheRefreshHook(reader, redisClient)}

	var search searchService.LeaderboardSearch
	if cfg.MeiliSearchHost != "" {
		meiliClient := meilisearch.New(meiliHost(cfg.MeiliSearchHost), meilisearch.WithAPIKey(cfg.MeiliMasterKey))
		search = searchService.NewLeaderboardSearch(meiliClient, events)
		hooks = append(hooks, search)
	} else {
		log.Info("MEILISEARCH_HOST not set, leaderboard search disabled")
	}

	if cfg.SnapshotBucket != "" {
		store, err := storage.NewS3Storage(ctx, storage.Options{
			Bucket:          cfg.SnapshotBucket,
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicBaseURL:   cfg.S3PublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("init snapshot storage: %w", err)
		}
		hooks = append(hooks, leaderboardService.NewSnapshotHook(store))
	}

	processor := mentionService.NewMentionProcessor(mentions, socialClient, cfg.CampaignHandle)
	aggregator := leaderboardService.NewAggregator(events, processor, board, socialClient, cfg.LeaderboardConcurrency, hooks...)
	job := leaderboardService.NewRebuildJob(aggregator, cfg.LeaderboardCron, cfg.JobTimeout)

	var mail mailer.Mailer
	if cfg.SMTPHost != "" {
		mail = mailer.NewSMTPMailer(mailer.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			BaseURL:  cfg.AppBaseURL,
		})
	} else {
		log.Info("SMTP_HOST not set, verification emails disabled")
	}

	verifier := challenge.NewTurnstileVerifier(cfg.TurnstileSecretKey, "")
	filter := abuseService.NewAbuseFilter(verifier, signups, cfg.DisposableDomains)
	signupSvc := signupService.NewSignupService(signups, filter, events, mail,
		ratelimit.NewGuard(redisClient, signupService.BurstAction, cfg.RateLimitSignup))

	authSvc := adminService.NewAuthService(cfg.AdminUsername, cfg.AdminPasswordHash, cfg.JWTSecret, cfg.AdminTokenTTL)

	return &App{
		Config: cfg,
		DB:     db,
		Redis:  redisClient,
		Reader: reader,
		Search: search,
		Job:    job,
		Signup: signupSvc,
		Auth:   authSvc,
	}, nil
}

func meiliHost(host string) string {
	if !strings.HasPrefix(host, "http") {
		return "http://" + host + ":7700"
	}
	return host
}
