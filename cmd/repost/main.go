package main

import (
	"context"
	"time"

	"github.com/that-cod/reepost-ai-sub001/internal/analytics"
	"github.com/that-cod/reepost-ai-sub001/internal/billing"
	"github.com/that-cod/reepost-ai-sub001/internal/events"
	"github.com/that-cod/reepost-ai-sub001/internal/handlers"
	"github.com/that-cod/reepost-ai-sub001/internal/linkedin"
	"github.com/that-cod/reepost-ai-sub001/internal/media"
	"github.com/that-cod/reepost-ai-sub001/internal/metrics"
	"github.com/that-cod/reepost-ai-sub001/internal/posts"
	"github.com/that-cod/reepost-ai-sub001/internal/quota"
	"github.com/that-cod/reepost-ai-sub001/internal/scheduler"
	"github.com/that-cod/reepost-ai-sub001/internal/search"
	"github.com/that-cod/reepost-ai-sub001/internal/trending"
	"github.com/that-cod/reepost-ai-sub001/internal/users"
	"github.com/that-cod/reepost-ai-sub001/pkg/auth"
	"github.com/that-cod/reepost-ai-sub001/pkg/cache"
	"github.com/that-cod/reepost-ai-sub001/pkg/clients"
	"github.com/that-cod/reepost-ai-sub001/pkg/config"
	"github.com/that-cod/reepost-ai-sub001/pkg/crypto"
	"github.com/that-cod/reepost-ai-sub001/pkg/database"
	"github.com/that-cod/reepost-ai-sub001/pkg/kafka"
	"github.com/that-cod/reepost-ai-sub001/pkg/llm"
	"github.com/that-cod/reepost-ai-sub001/pkg/logging"
	"github.com/that-cod/reepost-ai-sub001/pkg/middleware"
	"github.com/that-cod/reepost-ai-sub001/pkg/monitoring"
	"github.com/that-cod/reepost-ai-sub001/pkg/redis"
	"github.com/that-cod/reepost-ai-sub001/pkg/server"
	"github.com/that-cod/reepost-ai-sub001/pkg/turnstile"
	"github.com/that-cod/reepost-ai-sub001/pkg/version"
)

func main() {
	logger := logging.NewLoggerWithService("repost")
	config.LoadEnv(logger)

	port := config.GetEnv("PORT", "18080")
	jwtSecret := []byte(config.RequireEnv("JWT_SECRET"))
	serviceToken := auth.GetServiceToken()
	appURL := config.GetEnv("APP_URL", "http://localhost:3000")

	dbConfig := database.DefaultConfig()
	dbConfig.URL = config.RequireEnv("DATABASE_URL")
	db, err := database.Connect(dbConfig, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if config.GetEnvBool("DB_MIGRATE", true) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		applied, err := database.Migrate(ctx, db, logger)
		cancel()
		if err != nil {
			logger.WithError(err).Fatal("Failed to apply migrations")
		}
		logger.WithField("applied", applied).Info("Schema up to date")
	}

	healthChecker := monitoring.NewHealthChecker("repost", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("repost", version.Version, version.GitCommit)
	serviceMetrics := metrics.New(metricsCollector)
	breakerMetrics := clients.NewCircuitBreakerMetrics(metricsCollector.Registry())

	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))

	// LLM providers
	llmConfig := llm.LoadConfig()
	provider, err := llm.NewProvider(llmConfig)
	if err != nil {
		logger.WithError(err).Fatal("Failed to configure LLM provider")
	}
	embeddingConfig := llm.LoadEmbeddingConfig()
	embedder, err := llm.NewEmbeddingClient(embeddingConfig)
	if err != nil {
		logger.WithError(err).Fatal("Failed to configure embedding provider")
	}

	// LinkedIn
	linkedInConfig := linkedin.LoadConfig()
	breakerConfig := clients.DefaultCircuitBreakerConfig()
	breakerConfig.Name = "linkedin"
	breakerConfig.Logger = logger
	breakerConfig.IsFailure = linkedin.IsUpstreamFailure
	breakerConfig.OnStateChange = breakerMetrics.Callback()
	linkedInClient := linkedin.NewClient(linkedInConfig, clients.NewCircuitBreaker(breakerConfig), logger)

	// Post lifecycle events
	var publisher events.Publisher = events.Noop{}
	brokers := config.GetEnvList("KAFKA_BROKERS")
	if len(brokers) > 0 {
		producer, err := kafka.NewProducer(kafka.Config{
			Brokers:  brokers,
			ClientID: config.GetEnv("KAFKA_CLIENT_ID", "repost"),
		}, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka producer")
		}
		defer producer.Close()
		publisher = events.NewKafkaPublisher(producer, config.GetEnv("KAFKA_TOPIC", "repost.posts"), logger)
		healthChecker.AddCheck("kafka", monitoring.PingHealthCheck("kafka", producer.Ping))
	} else {
		logger.Info("KAFKA_BROKERS not set, post events are disabled")
	}

	// Daily quota
	var counter quota.Counter
	if redisConfig := redis.LoadConfig(); redisConfig.Configured() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		client, err := redis.Connect(ctx, redisConfig)
		cancel()
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer client.Close()
		counter = quota.NewRedisCounter(client)
		healthChecker.AddCheck("redis", monitoring.PingHealthCheck("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}))
	} else {
		logger.Warn("Redis not configured, generation quota is not enforced")
	}
	limiter := quota.NewLimiter(counter, quota.DefaultLimits, logger)

	// Domain services
	tokenCipher, err := crypto.NewTokenCipher([]byte(config.GetEnv("TOKEN_ENCRYPTION_KEY", string(jwtSecret))), "linkedin-access-token")
	if err != nil {
		logger.WithError(err).Fatal("Failed to derive token encryption key")
	}
	userStore := users.NewStore(db).WithTokenCipher(tokenCipher)
	accountService := users.NewService(userStore, logger)

	postStore := posts.NewSQLStore(db)
	postService := posts.NewService(postStore, embedder, linkedInClient, userStore, publisher, logger)
	generator := posts.NewGenerator(provider)

	analyticsStore := analytics.NewSQLStore(db)
	analyticsService := analytics.NewService(analyticsStore, logger)
	syncer := analytics.NewSyncer(analyticsService, analyticsStore, linkedInClient, userStore, logger)

	trendingCache := cache.New[[]trending.Post](cache.Options{
		TTL:        config.GetEnvDuration("TRENDING_CACHE_TTL", time.Minute),
		MaxEntries: config.GetEnvInt("TRENDING_CACHE_MAX_ENTRIES", 10000),
	}, cache.Hooks{
		OnHit:  func() { serviceMetrics.IncTrendingCache("hit") },
		OnMiss: func() { serviceMetrics.IncTrendingCache("miss") },
	})
	trendingService := trending.NewService(trending.NewSQLStore(db)).WithCache(trendingCache)
	searchService := search.NewService(embedder, search.NewSQLStore(db), embedder.Dimensions(), logger)

	billingConfig := billing.LoadConfig()
	billingService := billing.NewService(billingConfig, billing.NewStripeClient(billingConfig.SecretKey),
		userStore, billing.NewSQLLedger(db), logger)

	mediaConfig := media.LoadConfig()
	uploader, err := media.NewUploader(context.Background(), mediaConfig, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize media storage")
	}

	publishScheduler := scheduler.New(postStore, postService,
		config.GetEnvDuration("SCHEDULER_INTERVAL", scheduler.DefaultInterval), logger, serviceMetrics)

	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"LLM_API_KEY":   llmConfig.APIKey,
		"SERVICE_TOKEN": serviceToken,
	}))
	healthChecker.AddCheck("linkedin", monitoring.OptionalHealthCheck("linkedin", linkedInConfig.Configured(),
		monitoring.ConfigurationHealthCheck(map[string]string{"LINKEDIN_CLIENT_ID": linkedInConfig.ClientID})))
	healthChecker.AddCheck("stripe", monitoring.OptionalHealthCheck("stripe", billingConfig.SecretKey != "",
		monitoring.ConfigurationHealthCheck(map[string]string{"STRIPE_WEBHOOK_SECRET": billingConfig.WebhookSecret})))
	healthChecker.AddCheck("storage", monitoring.OptionalHealthCheck("storage", mediaConfig.Configured(),
		monitoring.ConfigurationHealthCheck(map[string]string{"SUPABASE_BUCKET": mediaConfig.Bucket})))

	authHandler := handlers.NewAuthHandler(accountService, jwtSecret, auth.DefaultSessionTTL, config.GetEnvBool("SECURE_COOKIES", false), logger)
	if verifier := turnstile.NewVerifier(config.GetEnv("TURNSTILE_SECRET_KEY", ""), ""); verifier.Enabled() {
		authHandler.WithVerifier(verifier)
	}

	app := server.SetupServiceRouter(logger, "repost", healthChecker, metricsCollector)
	app.Use(middleware.TimeoutMiddleware(config.GetEnvDuration("REQUEST_TIMEOUT", 60*time.Second)))

	handlers.RegisterRoutes(app, handlers.Handlers{
		Auth:      authHandler,
		Posts:     handlers.NewPostsHandler(postService, generator, limiter, accountService, logger, serviceMetrics),
		Analytics: handlers.NewAnalyticsHandler(analyticsService, syncer, logger, serviceMetrics),
		Trending:  handlers.NewTrendingHandler(trendingService, logger),
		Search:    handlers.NewSearchHandler(searchService, logger, serviceMetrics),
		Billing:   handlers.NewBillingHandler(billingService, logger, serviceMetrics),
		LinkedIn:  handlers.NewLinkedInHandler(linkedInClient, userStore, jwtSecret, appURL+"/settings", logger),
		Media:     handlers.NewMediaHandler(uploader, logger),
		Cron:      handlers.NewCronHandler(publishScheduler, logger),
	}, jwtSecret, serviceToken)

	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	if config.GetEnvBool("SCHEDULER_ENABLED", true) {
		go publishScheduler.Run(schedulerCtx)
	}

	serverConfig := server.DefaultConfig("repost", port)
	if err := server.Start(serverConfig, app, logger); err != nil {
		logger.Fatal(err.Error())
	}
}
