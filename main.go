package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"clubtickets/app"
	"clubtickets/config"
	"clubtickets/db"
	"clubtickets/gateway"
	"clubtickets/gateway/mpesa"
	"clubtickets/http"
	"clubtickets/pubsub/event"
	"clubtickets/tracing"
)

func main() {
	log.Init(logrus.InfoLevel)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logrus.WithError(err).Fatal("Could not load configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	traceProvider, err := tracing.ConfigureTraceProvider(cfg.JaegerEndpoint)
	if err != nil {
		panic(err)
	}

	dbConn, err := db.Open(cfg.PostgresURL)
	if err != nil {
		panic(err)
	}
	defer dbConn.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	defer redisClient.Close()

	paymentGateway := mpesa.NewClient(mpesa.Config{
		BaseURL:        cfg.Mpesa.BaseURL,
		ConsumerKey:    cfg.Mpesa.ConsumerKey,
		ConsumerSecret: cfg.Mpesa.ConsumerSecret,
		ShortCode:      cfg.Mpesa.ShortCode,
		Passkey:        cfg.Mpesa.Passkey,
		CallbackURL:    cfg.Mpesa.CallbackURL,
		Timeout:        cfg.Mpesa.Timeout,
	}, mpesa.NewRedisTokenCache(redisClient))

	var notifier event.Notifier = gateway.LogNotifier{}
	if cfg.PubNub.PublishKey != "" {
		notifier = gateway.NewPubNubNotifier(gateway.PubNubConfig{
			PublishKey:   cfg.PubNub.PublishKey,
			SubscribeKey: cfg.PubNub.SubscribeKey,
			SecretKey:    cfg.PubNub.SecretKey,
			UserID:       cfg.PubNub.UserID,
		})
	}

	a := app.New(
		app.Config{
			HTTP: http.Config{
				Addr:           cfg.HTTPAddr,
				JWTSecret:      cfg.JWTSecret,
				CallbackSecret: cfg.Ticketing.CallbackSecret,
			},
			SubscriptionDays:  cfg.Ticketing.SubscriptionDays,
			PaymentQueryAfter: cfg.Ticketing.PaymentQueryAfter,
			ReconcileInterval: cfg.Ticketing.ReconcileInterval,
		},
		dbConn,
		redisClient,
		paymentGateway,
		notifier,
		traceProvider,
	)

	if err := a.Run(ctx); err != nil {
		panic(err)
	}
}
