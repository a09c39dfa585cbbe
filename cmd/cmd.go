package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"phonecase-backend/internal/config"
	"phonecase-backend/internal/generation"
	"phonecase-backend/internal/handlers"
	"phonecase-backend/internal/imaging"
	"phonecase-backend/internal/mail"
	"phonecase-backend/internal/middleware"
	"phonecase-backend/internal/repository"
	"phonecase-backend/internal/services"
	"phonecase-backend/internal/storage"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

func Run() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	ctx := context.Background()

	// Connect to database
	db, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	// Connect to redis
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse redis url")
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping redis")
	}
	log.Info().Msg("Redis connection established")

	store, err := storage.NewS3Store(ctx, storage.S3Options{
		Region:    cfg.AWS.Region,
		Bucket:    cfg.AWS.S3Bucket,
		AccessKey: cfg.AWS.AccessKey,
		SecretKey: cfg.AWS.SecretKey,
		Endpoint:  cfg.AWS.Endpoint,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create object store")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	phoneRepo := repository.NewPhoneRepository(db)

	gen := cfg.Generation
	generators := generation.Registry{
		generation.ProviderHuggingFace: generation.NewHuggingFaceGenerator(generation.HuggingFaceOptions{
			Token:   gen.HuggingFace.Token,
			BaseURL: gen.HuggingFace.BaseURL,
			Model:   gen.HuggingFace.Model,
			Timeout: gen.HuggingFace.Timeout,
		}),
		generation.ProviderReplicate: generation.NewReplicateGenerator(generation.ReplicateOptions{
			Token:        gen.Replicate.Token,
			BaseURL:      gen.Replicate.BaseURL,
			Model:        gen.Replicate.Model,
			PollInterval: gen.Replicate.PollInterval,
			Timeout:      gen.Replicate.Timeout,
		}),
	}

	// Initialize services
	wsHub := services.NewWSHub()
	quota := services.NewQuotaGate(rdb, gen.AnonQuota, gen.AnonQuotaTTL)
	publisher := services.NewAssetPublisher(store, rdb, gen.SignedURLTTL, nil, wsHub)
	publishQueue := services.NewPublishQueue(publisher, gen.PublishWorkers, gen.PublishQueue, 0)
	generationService := services.NewGenerationService(phoneRepo, quota, generators, publishQueue, services.GenerationOptions{
		DefaultProvider: gen.DefaultProvider,
		DefaultCount:    gen.DefaultCount,
		MaxCount:        gen.MaxCount,
		KeyPrefix:       gen.KeyPrefix,
		DPI:             imaging.DefaultDPI,
	})

	var google *oauth2.Config
	if cfg.Google.ClientID != "" {
		google = &oauth2.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"openid", "email", "profile"},
		}
	}

	mailer := mail.NewSMTPMailer(mail.Options{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
	})
	userService := services.NewUserService(userRepo, rdb, mailer, services.UserOptions{
		JWTSecret:        cfg.JWT.Secret,
		TokenTTL:         time.Duration(cfg.JWT.ExpireMinutes) * time.Minute,
		Google:           google,
		OAuthRedirectURL: cfg.Frontend.OAuthRedirectURL,
		ResetPasswordURL: cfg.Frontend.ResetPasswordURL,
	})

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	phoneHandler := handlers.NewPhoneHandler(phoneRepo)
	generateHandler := handlers.NewGenerateHandler(generationService, publisher, quota)
	wsHandler := handlers.NewWebSocketHandler(wsHub, userService)
	healthHandler := handlers.NewHealthHandler(publishQueue)

	// Setup router
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/health", healthHandler.Health)

	r.Route("/phones", func(r chi.Router) {
		r.Get("/brands", phoneHandler.ListBrands)
		r.Get("/brands/{brand_id}/models", phoneHandler.ListModels)
	})

	r.Route("/generate", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.AnonymousVisitor(cfg.Server.SecureCookies))
			r.Post("/anon/prompt-only", generateHandler.AnonPromptOnly)
			r.Get("/anon/quota", generateHandler.AnonQuota)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userService))
			r.Post("/user/prompt-only", generateHandler.UserPromptOnly)
		})

		r.Get("/get-download-link/{img_uuid}", generateHandler.GetDownloadLink)
		r.Get("/ws", wsHandler.HandleWebSocket)
	})

	r.Route("/user", func(r chi.Router) {
		r.Post("/user-signup", userHandler.SignUp)
		r.Post("/user-login", userHandler.Login)
		r.Get("/google-login", userHandler.GoogleLogin)
		r.Get("/google/callback", userHandler.GoogleCallback)
		r.Post("/send-password-reset-mail", userHandler.SendPasswordResetMail)
		r.Post("/reset-password", userHandler.ResetPassword)

		r.With(middleware.AuthMiddleware(userService)).Get("/me", userHandler.Me)
	})

	// generation requests block on the provider for a while
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Images generated before shutdown still get published
	if err := publishQueue.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Publish queue did not drain")
	}

	stats := publishQueue.Stats()
	log.Info().
		Int64("published", stats.Published).
		Int64("failed", stats.Failed).
		Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		} else {
			// cookies are only sent cross-origin when the origin is echoed
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
