package router

import (
	"context"
	"errors"
	"net/http"
	"time"

	"hooka/internal/api/v1/handler"
	"hooka/internal/background"
	"hooka/internal/cache"
	"hooka/internal/config"
	"hooka/internal/database"
	"hooka/internal/llm"
	"hooka/internal/metrics"
	"hooka/internal/middleware"
	"hooka/internal/pubsub"
	"hooka/internal/repository"
	"hooka/internal/service"
	"hooka/internal/util"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// detachedTaskTimeout bounds fire-and-forget work such as cost logging.
const detachedTaskTimeout = 10 * time.Second

// App is the wired HTTP application and the resources it owns.
type App struct {
	Handler http.Handler
	Runner  *background.Runner
	closers []func() error
}

// Close drains detached tasks and releases clients.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Runner.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New connects the optional infrastructure named by cfg and builds the router.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	logger.Info().Str("environment", cfg.Environment).Msg("Router initializing")

	m := metrics.Registry("hooka")
	runner := background.New(logger, detachedTaskTimeout, background.WithObserver(m.ObserveTask))
	app := &App{Runner: runner}

	// 1. Initialize validator
	validate := validator.New(validator.WithRequiredStructEnabled())

	// 2. Optional Redis cache for settings
	var jsonCache service.JSONCache
	if cfg.RedisURL != "" {
		rc, err := cache.New(cfg.RedisURL, logger)
		if err == nil {
			err = rc.Ping(ctx)
		}
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, reading settings from Postgres")
		} else {
			jsonCache = rc
			app.closers = append(app.closers, rc.Close)
		}
	}

	// 3. Optional Pub/Sub analytics sink
	var sink service.EventSink
	if cfg.PubSubProjectID != "" && cfg.PubSubAnalyticsTopic != "" {
		pub, err := pubsub.NewPublisher(ctx, cfg.PubSubProjectID)
		if err != nil {
			logger.Warn().Err(err).Msg("Pub/Sub unavailable, analytics stay in Postgres")
		} else {
			sink = pubsub.NewAnalyticsSink(pub, cfg.PubSubAnalyticsTopic)
			app.closers = append(app.closers, pub.Close)
		}
	}

	// 4. Persistence-backed services
	svcs := handler.Services{}
	var subSvc service.SubscriptionService
	var stats service.StatsRepos
	var promoRepo repository.PromoRepository
	var userRepo repository.UserRepository
	if cfg.PersistenceEnabled() {
		pool, err := database.Open(ctx, cfg.DSN(), cfg.Environment, logger)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() error { pool.Close(); return nil })

		userRepo = repository.NewUserRepo(pool)
		historyRepo := repository.NewHistoryRepo(pool)
		analyticsRepo := repository.NewAnalyticsRepo(pool)
		promoRepo = repository.NewPromoRepo(pool)

		svcs.Schema = database.NewSchema(pool, logger)
		svcs.Users = service.NewUserService(userRepo, logger)
		svcs.History = service.NewHistoryService(historyRepo, cfg.HistoryLimit)
		svcs.Profiles = service.NewProfileService(repository.NewProfileRepo(pool))
		svcs.Analytics = service.NewAnalyticsService(analyticsRepo, sink, runner, logger)
		svcs.Settings = service.NewSettingsService(repository.NewSettingsRepo(pool), jsonCache, logger)
		subSvc = service.NewSubscriptionService(repository.NewSubscriptionRepo(pool), logger)
		stats = service.StatsRepos{Users: userRepo, History: historyRepo, Analytics: analyticsRepo}
	} else {
		logger.Warn().Msg("No database configured, persistence actions return empty results")
	}
	svcs.Promos = service.NewPromoService(promoRepo, userRepo, logger)
	svcs.Admin = service.NewAdminService(cfg.AdminPassword, stats, logger)

	// 5. Generative model and page reader
	var gen llm.Generator
	if cfg.AIEnabled() {
		g, err := llm.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, m, logger)
		if err != nil {
			return nil, err
		}
		gen = g
	} else {
		logger.Warn().Msg("No Gemini API key, research and generation are disabled")
	}
	content, err := service.NewContentService(service.ContentDeps{
		Generator: gen,
		Reader:    service.NewPageReader(cfg.ScraperBaseURL, cfg.ScrapeTimeout(), m, logger),
		Settings:  svcs.Settings,
		Analytics: svcs.Analytics,
		Runner:    runner,
		ModelName: cfg.GeminiModel,
		Timeout:   cfg.AITimeout(),
	}, logger)
	if err != nil {
		return nil, err
	}
	svcs.Content = content

	// 6. Payments
	svcs.Stripe = service.NewStripeService(cfg, subSvc, m, logger)

	// 7. Identity
	var verifier middleware.TokenVerifier
	if cfg.FirebaseProjectID != "" {
		verifier = util.NewFirebaseVerifier(cfg.FirebaseProjectID, util.NewCertSource(util.FirebaseCertsURL, time.Hour))
	} else {
		logger.Warn().Msg("FIREBASE_PROJECT_ID not set, identity tokens are ignored")
	}

	app.Handler = Handler(Routes{
		Dispatcher: handler.NewDispatcher(svcs, cfg.AIEnabled(), validate, m, logger),
		Webhook:    svcs.Stripe.HandleWebhook,
		Verifier:   verifier,
	}, logger)
	logger.Info().Msg("Router initialized")
	return app, nil
}
