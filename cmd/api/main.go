package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alumniport/donation-gateway/internal/config"
	"github.com/alumniport/donation-gateway/internal/fraud"
	"github.com/alumniport/donation-gateway/internal/handlers"
	"github.com/alumniport/donation-gateway/internal/queue"
	"github.com/alumniport/donation-gateway/internal/reference"
	"github.com/alumniport/donation-gateway/internal/repository"
	"github.com/alumniport/donation-gateway/internal/services"
	"github.com/alumniport/donation-gateway/internal/uploads"
	xhttp "github.com/alumniport/donation-gateway/pkg/http"
	"github.com/alumniport/donation-gateway/pkg/logger"
	"github.com/alumniport/donation-gateway/pkg/pg"
	"github.com/alumniport/donation-gateway/pkg/prom"
	"github.com/alumniport/donation-gateway/pkg/redis"
	"github.com/shopspring/decimal"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 5))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	if err := prom.Create("api", config.Get().AppEnv, config.Get().PromNamespace); err != nil {
		logger.Error("failed creating metric registry", "error", err)
		return
	}
	if config.Get().AppDebugMetricsAddr != "" {
		go prom.ListenAndServer(config.Get().AppDebugMetricsAddr, config.Get().AppDebugMetricsURI)
	}

	// the API only publishes intents; the notifier binary consumes them
	intentQueue, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:              config.Get().QueueName,
		ConsumerGroup:     config.Get().QueueConsumerGroup,
		ConsumerName:      config.Get().QueueConsumerName,
		MaxRetries:        config.Get().QueueMaxRetries,
		VisibilityTimeout: config.Get().QueueVisibilityTimeout,
		PollInterval:      config.Get().QueuePollInterval,
		BatchSize:         config.Get().QueueBatchSize,
		MaxLen:            config.Get().QueueMaxLen,
		EnableDLQ:         config.Get().QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating queue", "error", err)
		return
	}

	donationRepo := repository.NewDonationRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	paymentRepo := repository.NewPaymentConfigRepository(db)
	alertRepo := repository.NewFraudAlertRepository(db)
	blacklistRepo := repository.NewBlacklistRepository(db)

	engine := fraud.NewEngine(thresholdsFromConfig(), donationRepo, blacklistRepo)
	refGen := reference.NewGenerator(config.Get().ReferencePrefix, nil, nil)
	location := config.Get().Location()

	// services
	campaignService := services.NewCampaignService(campaignRepo, paymentRepo)
	donationService := services.NewDonationService(donationRepo, alertRepo, campaignService, engine, refGen, intentQueue)
	verificationService := services.NewVerificationService(donationService, campaignRepo, location)
	analyticsService := services.NewAnalyticsService(donationRepo, location)
	fraudService := services.NewFraudService(alertRepo, blacklistRepo)
	healthService := services.NewHealthService(db, redisAdap)

	proofStore := uploads.NewStore(config.Get().UploadsRoot, config.Get().UploadsMaxBytes)
	donorCookie := handlers.NewDonorCookie(config.Get().DonorCookieSecret)
	gate := handlers.NewStaffGate(config.Get().StaffAPIToken, config.Get().StaffLoginURL)

	// v1 handlers
	donationHandler := handlers.NewDonationHandler(donationService, campaignService, proofStore, donorCookie, config.Get().UploadsMaxBytes)
	verificationHandler := handlers.NewVerificationHandler(verificationService)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService)
	fraudHandler := handlers.NewFraudHandler(fraudService)
	paymentConfigHandler := handlers.NewPaymentConfigHandler(campaignService)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterDonationRoutes(g, donationHandler)
	handlers.RegisterVerificationRoutes(g, gate, verificationHandler)
	handlers.RegisterAnalyticsRoutes(g, gate, analyticsHandler)
	handlers.RegisterFraudRoutes(g, gate, fraudHandler)
	handlers.RegisterPaymentConfigRoutes(g, gate, paymentConfigHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		s.Shutdown()
	}
}

// thresholdsFromConfig overlays the tunable fraud knobs on the defaults.
func thresholdsFromConfig() fraud.Thresholds {
	t := fraud.DefaultThresholds()
	cfg := config.Get()

	if cfg.FraudRapidWindowMinutes > 0 {
		t.RapidWindow = time.Duration(cfg.FraudRapidWindowMinutes) * time.Minute
	}
	if cfg.FraudRapidCount > 0 {
		t.RapidCount = cfg.FraudRapidCount
	}
	if min, err := decimal.NewFromString(cfg.FraudSuspiciousAmountMin); err == nil && min.IsPositive() {
		t.SuspiciousAmountMin = min
	}
	if cfg.FraudSameAmountWindowHours > 0 {
		t.SameAmountWindow = time.Duration(cfg.FraudSameAmountWindowHours) * time.Hour
	}
	if cfg.FraudSameAmountCount > 0 {
		t.SameAmountCount = cfg.FraudSameAmountCount
	}
	if cfg.FraudDailyPerIPMax > 0 {
		t.DailyPerIPMax = cfg.FraudDailyPerIPMax
	}
	return t
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
