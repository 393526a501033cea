package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/forwarder"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	dbLib "clubtickets/db"
	"clubtickets/http"
	"clubtickets/pubsub"
	"clubtickets/pubsub/bus"
	"clubtickets/pubsub/command"
	"clubtickets/pubsub/event"
	"clubtickets/pubsub/outbox"
	"clubtickets/service"
)

func init() {
	log.Init(logrus.InfoLevel)
}

type Config struct {
	HTTP              http.Config
	SubscriptionDays  int
	PaymentQueryAfter time.Duration
	ReconcileInterval time.Duration
}

type App struct {
	db                *sqlx.DB
	watermillRouter   *message.Router
	forwarder         *forwarder.Forwarder
	httpServer        *http.Server
	reconciler        *service.Reconciler
	reconcileInterval time.Duration
	traceProvider     *tracesdk.TracerProvider
}

func New(
	cfg Config,
	db *sqlx.DB,
	redisClient *redis.Client,
	paymentGateway service.PaymentGateway,
	notifier event.Notifier,
	traceProvider *tracesdk.TracerProvider,
) App {
	watermillLogger := log.NewWatermill(log.FromContext(context.Background()))
	redisPublisher := pubsub.NewRedisPublisher(redisClient, watermillLogger)

	eventBus, err := bus.NewEventBus(redisPublisher)
	if err != nil {
		panic(fmt.Errorf("failed to create event bus: %w", err))
	}

	commandBus, err := bus.NewCommandBus(redisPublisher)
	if err != nil {
		panic(fmt.Errorf("failed to create command bus: %w", err))
	}

	usersRepo := dbLib.NewUsersPostgresRepository(db)
	eventsRepo := dbLib.NewEventsPostgresRepository(db)
	ticketsRepo := dbLib.NewTicketsPostgresRepository(db)
	paymentsRepo := dbLib.NewPaymentsPostgresRepository(db)

	ticketsService := service.NewTicketsService(ticketsRepo, paymentsRepo, paymentGateway)
	reconciler := service.NewReconciler(paymentsRepo, paymentGateway, commandBus)
	if cfg.PaymentQueryAfter > 0 {
		reconciler.QueryAfter = cfg.PaymentQueryAfter
	}
	eventsService := service.NewEventsService(eventsRepo, usersRepo)
	clubsService := service.NewClubsService(usersRepo)
	subscriptionsService := service.NewSubscriptionsService(usersRepo, eventBus)
	if cfg.SubscriptionDays > 0 {
		subscriptionsService.DefaultDuration = time.Duration(cfg.SubscriptionDays) * 24 * time.Hour
	}

	watermillRouter, err := pubsub.NewWatermillRouter(
		redisClient,
		event.NewHandler(notifier),
		command.NewHandler(reconciler),
		watermillLogger,
	)
	if err != nil {
		panic(fmt.Errorf("failed to create watermill router: %w", err))
	}

	fwd, err := outbox.NewForwarder(db, redisPublisher, watermillLogger)
	if err != nil {
		panic(fmt.Errorf("failed to create outbox forwarder: %w", err))
	}

	httpServer := http.NewServer(
		cfg.HTTP,
		usersRepo,
		ticketsService,
		reconciler,
		eventsService,
		clubsService,
		subscriptionsService,
	)

	reconcileInterval := cfg.ReconcileInterval
	if reconcileInterval <= 0 {
		reconcileInterval = 30 * time.Second
	}

	return App{
		db:                db,
		watermillRouter:   watermillRouter,
		forwarder:         fwd,
		httpServer:        httpServer,
		reconciler:        reconciler,
		reconcileInterval: reconcileInterval,
		traceProvider:     traceProvider,
	}
}

func (a App) Run(ctx context.Context) error {
	if err := dbLib.InitializeDatabaseSchema(a.db); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.traceProvider != nil {
		g.Go(func() error {
			<-ctx.Done()
			return a.traceProvider.Shutdown(context.Background())
		})
	}

	g.Go(func() error {
		return a.watermillRouter.Run(ctx)
	})

	g.Go(func() error {
		return a.forwarder.Run(ctx)
	})

	g.Go(func() error {
		// HTTP only starts once the router runs, so the app isn't healthy before it can process messages
		<-a.watermillRouter.Running()

		return a.httpServer.Run(ctx)
	})

	g.Go(func() error {
		<-a.watermillRouter.Running()

		return a.sweepAwaitingPayments(ctx)
	})

	return g.Wait()
}

// sweepAwaitingPayments periodically schedules status queries for pushes whose callback is late.
func (a App) sweepAwaitingPayments(ctx context.Context) error {
	ticker := time.NewTicker(a.reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := a.reconciler.QueryAwaiting(ctx); err != nil {
				log.FromContext(ctx).WithError(err).Error("Could not schedule payment status queries")
			}
		}
	}
}
