package main

import (
	"context"
	"log"

	"stay-escrow/cmd"
	"stay-escrow/internal/data/repository"
	"stay-escrow/internal/scheduler"
	"stay-escrow/internal/usecase"
	"stay-escrow/internal/wire"
	"stay-escrow/pkg/database"
	"stay-escrow/pkg/gateway"
	"stay-escrow/pkg/notify"
	"stay-escrow/pkg/utils"

	"go.uber.org/zap"
)

func main() {
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger, err := utils.InitLogger(config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Fatal("Failed to init logger:", err)
	}
	defer logger.Sync()

	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Fatal("Failed to connect database", zap.Error(err))
	}
	defer db.Close()

	repo := repository.NewRepository(db, logger)

	gateways := gateway.NewRegistry(
		gateway.NewPaystack(config.Gateway.PaystackBaseURL, config.Gateway.PaystackSecretKey, logger),
		gateway.NewFlutterwave(config.Gateway.FlutterwaveBaseURL, config.Gateway.FlutterwaveSecretKey, logger),
	)

	var notifier notify.Notifier = notify.NopNotifier{}
	if config.AMQP.URL != "" {
		amqpNotifier, err := notify.NewAMQPNotifier(config.AMQP.URL, config.AMQP.Exchange, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, events disabled", zap.Error(err))
		} else {
			notifier = amqpNotifier
			defer amqpNotifier.Close()
		}
	}

	svc := usecase.NewService(repo, gateways, notifier, *config, logger)

	sweeper, err := scheduler.New(repo, svc, *config, logger)
	if err != nil {
		logger.Fatal("Failed to create scheduler", zap.Error(err))
	}
	if err := sweeper.Start(context.Background()); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}
	defer sweeper.Stop()

	routes := wire.Routes(svc, config, logger)

	logger.Info("Starting stay-escrow",
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
	)
	cmd.APIServer(routes, config.App.Port)
}
