package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/zapfunil/zapfunil/config"
	"github.com/zapfunil/zapfunil/internal/api/handlers"
	"github.com/zapfunil/zapfunil/internal/api/middleware"
	"github.com/zapfunil/zapfunil/internal/api/routes"
	"github.com/zapfunil/zapfunil/internal/cache"
	"github.com/zapfunil/zapfunil/internal/intelligence"
	"github.com/zapfunil/zapfunil/internal/intent"
	"github.com/zapfunil/zapfunil/internal/logger"
	"github.com/zapfunil/zapfunil/internal/providers/gateway"
	"github.com/zapfunil/zapfunil/internal/providers/llm"
	pgrepo "github.com/zapfunil/zapfunil/internal/repositories/postgres"
	"github.com/zapfunil/zapfunil/internal/services"
	"github.com/zapfunil/zapfunil/internal/workers"
)

func main() {
	_ = godotenv.Load()

	l := logger.New()

	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	if err := config.Migrate(config.PostgresDB); err != nil {
		log.Fatalf("migration error: %v", err)
	}
	if err := config.InitRedis(); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}

	// AI is best-effort: without a key the pipeline runs local-only.
	var provider llm.Provider
	if p, err := llm.NewOpenAIFromEnv(); err != nil {
		l.WithError(err).Warn("AI provider disabled")
	} else {
		provider = p
	}

	gw, err := gateway.NewHTTPGateway()
	if err != nil {
		log.Fatalf("gateway init error: %v", err)
	}

	// Repositories
	db := config.PostgresDB
	instanceRepo := pgrepo.NewInstanceRepo(db)
	conversationRepo := pgrepo.NewConversationRepo(db)
	messageRepo := pgrepo.NewMessageRepo(db)
	memoryRepo := pgrepo.NewMemoryRepo(db)
	leadScoreRepo := pgrepo.NewLeadScoreRepo(db)
	labelRepo := pgrepo.NewLabelRepo(db)
	followUpRepo := pgrepo.NewFollowUpRepo(db)
	auditRepo := pgrepo.NewAuditRepo(db)

	// Services
	matcher := intent.NewMatcher(nil)
	extractor := intelligence.NewExtractor(matcher, provider, l)
	memorySvc := services.NewMemoryService(memoryRepo)
	leadScoreSvc := services.NewLeadScoreService(leadScoreRepo)
	labelSvc := services.NewLabelService(labelRepo)
	followUpSvc := services.NewFollowUpService(followUpRepo)
	analysisSvc := services.NewAnalysisService(
		extractor, instanceRepo, conversationRepo, messageRepo,
		memorySvc, leadScoreSvc, labelSvc, followUpSvc, auditRepo, l,
	)

	// Follow-up drain worker
	worker := &workers.FollowUpWorker{
		FollowUps:     followUpRepo,
		Instances:     instanceRepo,
		Conversations: conversationRepo,
		Messages:      messageRepo,
		Memories:      memorySvc,
		Audit:         auditRepo,
		Generator:     intelligence.NewGenerator(provider),
		Gateway:       gw,
		Cache:         cache.NewRedisCache(config.RedisClient),
		Redis:         config.RedisClient,
		Logger:        l,
		Interval:      time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := worker.Start(ctx); err != nil {
		log.Fatalf("worker start error: %v", err)
	}

	// HTTP surface
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(l))

	routes.RegisterRoutes(r, routes.Deps{
		Webhook:  handlers.NewWebhookHandler(analysisSvc),
		CRM:      handlers.NewCRMHandler(messageRepo, memorySvc, leadScoreSvc, labelSvc, auditRepo),
		FollowUp: handlers.NewFollowUpHandler(followUpSvc, worker),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	l.WithField("port", port).Info("server listening")
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
