package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"anoa.com/bountyboard/internal/middleware"
	adminHttp "anoa.com/bountyboard/internal/modules/admin/delivery/http"
	leaderboardHttp "anoa.com/bountyboard/internal/modules/leaderboard/delivery/http"
	searchHttp "anoa.com/bountyboard/internal/modules/search/delivery/http"
	signupHttp "anoa.com/bountyboard/internal/modules/signup/delivery/http"
	"anoa.com/bountyboard/internal/scheduler"
	"anoa.com/bountyboard/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Server struct {
	engine    *gin.Engine
	app       *App
	scheduler *scheduler.Scheduler
	http      *http.Server
}

func NewServer(app *App) (*Server, error) {
	cfg := app.Config
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	sched := scheduler.NewScheduler()
	if err := sched.Register(app.Job); err != nil {
		return nil, err
	}

	origins := allowedOrigins(cfg.AllowedOrigins)

	signupHandler := signupHttp.NewSignupHandler(app.Signup)
	leaderboardHandler := leaderboardHttp.NewLeaderboardHandler(app.Reader, app.Redis, originChecker(origins))
	searchHandler := searchHttp.NewSearchHandler(app.Search)
	adminHandler := adminHttp.NewAdminHandler(app.Auth, app.Job)
	adminAuth := middleware.NewAdminAuth(cfg.JWTSecret)

	router := gin.New()

	setupCORS(router, origins)

	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/health"},
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	// Public routes
	api.POST("/signup", signupHandler.Signup)
	api.GET("/signup/verify", signupHandler.Verify)

	leaderboard := api.Group("/leaderboard")
	{
		leaderboard.GET("", leaderboardHandler.GetLeaderboard)
		leaderboard.GET("/search", searchHandler.Search)
		leaderboard.GET("/ws", leaderboardHandler.HandleWebSocket)
	}

	admin := api.Group("/admin")
	{
		admin.POST("/login", adminHandler.Login)

		protected := admin.Group("")
		protected.Use(adminAuth.RequireAdmin())
		protected.POST("/leaderboard/rebuild", adminHandler.RebuildLeaderboard)
	}

	return &Server{
		engine:    router,
		app:       app,
		scheduler: sched,
	}, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run starts the scheduler and serves HTTP until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.scheduler.Start()

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithComponent("server").Infof("listening on %s", addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.scheduler.Stop(context.Background())
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	s.scheduler.Stop(shutdownCtx)
	return s.http.Shutdown(shutdownCtx)
}

func allowedOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	return origins
}

func originChecker(origins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, allowed := range origins {
			if allowed == "*" || allowed == origin {
				return true
			}
		}
		return false
	}
}

func setupCORS(router *gin.Engine, origins []string) {
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
