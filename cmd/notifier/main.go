package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alumniport/donation-gateway/internal/config"
	"github.com/alumniport/donation-gateway/internal/mailer"
	"github.com/alumniport/donation-gateway/internal/notifier"
	"github.com/alumniport/donation-gateway/internal/queue"
	"github.com/alumniport/donation-gateway/internal/repository"
	"github.com/alumniport/donation-gateway/pkg/logger"
	"github.com/alumniport/donation-gateway/pkg/pg"
	"github.com/alumniport/donation-gateway/pkg/prom"
	"github.com/alumniport/donation-gateway/pkg/redis"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

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

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	sender, err := mailer.New(mailer.Config{
		PrimaryURL:   config.Get().MailTransportPrimaryURL,
		SecondaryURL: config.Get().MailTransportSecondaryURL,
		FromAddress:  config.Get().MailFromAddress,
		Timeout:      time.Second * 10,
		MaxTries:     3,
	})
	if err != nil {
		logger.Error("failed to create mailer", "error", err)
		return
	}

	donationRepo := repository.NewDonationRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	recordRepo := repository.NewNotificationRecordRepository(db)

	renderer := notifier.NewRenderer(config.Get().SiteBaseURL, config.Get().Location())
	processor := notifier.NewIntentProcessor(donationRepo, campaignRepo, recordRepo, sender, renderer)

	// republish intents lost between a committed transition and the stream
	republisher, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:              config.Get().QueueName,
		ConsumerGroup:     config.Get().QueueConsumerGroup,
		ConsumerName:      config.Get().QueueConsumerName + "-reconcile",
		MaxRetries:        config.Get().QueueMaxRetries,
		VisibilityTimeout: config.Get().QueueVisibilityTimeout,
		PollInterval:      config.Get().QueuePollInterval,
		BatchSize:         config.Get().QueueBatchSize,
		MaxLen:            config.Get().QueueMaxLen,
		EnableDLQ:         config.Get().QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating reconcile publisher", "error", err)
		return
	}
	reconciler := notifier.NewReconciler(donationRepo, recordRepo, republisher, 5*time.Minute)

	service := notifier.NewDispatcherService(redisAdap, processor, reconciler)

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	go func() {
		prom.ListenAndServer(":9100", "/metrics")
	}()

	go func() {
		err := service.Start()
		if err != nil {
			logger.Error("failed to start dispatcher", "error", err)
		}
	}()

	select {
	case <-c:
		service.Stop()
	}
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
