package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/smokestack/smokestack-backend/internal/mailer/consumers"
	"github.com/smokestack/smokestack-backend/internal/mailer/service"
	"github.com/smokestack/smokestack-backend/pkg/config"
	"github.com/smokestack/smokestack-backend/pkg/logger"
	"github.com/smokestack/smokestack-backend/pkg/messaging"
)

func main() {
	cfg, err := config.Load("mailer")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("mailer", cfg.Server.Environment)
	log.Info().Msg("starting mailer worker")

	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mailerService := service.NewMailerService(cfg.Mail, log)

	consumer := messaging.NewConsumer(rmq, log, messaging.QueueMailer)
	staffConsumer := consumers.NewStaffConsumer(mailerService, cfg.Invites.BaseURL, log)
	staffConsumer.Register(consumer)

	// Start blocks in the delivery loop, so it runs in its own goroutine
	// and main keeps the signal wait, like the HTTP server does.
	consumerErr := make(chan error, 1)
	go func() {
		consumerErr <- consumer.Start(ctx)
	}()

	log.Info().Msg("mailer worker listening for events")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("shutting down mailer worker")
		cancel()
		<-consumerErr
	case err := <-consumerErr:
		if err != nil && err != context.Canceled {
			log.Fatal().Err(err).Msg("consumer stopped")
		}
	}

	log.Info().Msg("mailer worker stopped")
}
