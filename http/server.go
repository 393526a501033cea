package http

import (
	"context"
	"errors"
	"net/http"

	echoHTTP "github.com/ThreeDotsLabs/go-event-driven/common/http"
	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"clubtickets/entity"
	"clubtickets/service"
	"clubtickets/tracing"
)

const callbackBodyLimit = "64K"

type UsersRepository interface {
	Get(ctx context.Context, userID string) (entity.User, error)
}

type TicketsService interface {
	Purchase(ctx context.Context, actor entity.Actor, req service.PurchaseRequest) (service.PaymentInitiation, error)
	InitiatePayment(ctx context.Context, actor entity.Actor, ticketID string) (service.PaymentInitiation, error)
	Get(ctx context.Context, actor entity.Actor, ticketID string) (entity.Ticket, error)
	Cancel(ctx context.Context, actor entity.Actor, ticketID string) (entity.Ticket, error)
	Refund(ctx context.Context, actor entity.Actor, ticketID string) (entity.Ticket, error)
}

type PaymentReconciler interface {
	HandleCallback(ctx context.Context, result entity.PaymentResult) (entity.ReconcileResult, error)
}

type EventsService interface {
	Create(ctx context.Context, actor entity.Actor, details entity.EventDetails) (entity.Event, error)
	Get(ctx context.Context, eventID string) (service.EventView, error)
	Edit(ctx context.Context, actor entity.Actor, eventID string, details entity.EventDetails) (entity.Event, error)
	Cancel(ctx context.Context, actor entity.Actor, eventID string) (entity.Event, error)
	Approve(ctx context.Context, actor entity.Actor, eventID string) (entity.Event, error)
	Reject(ctx context.Context, actor entity.Actor, eventID string) (entity.Event, error)
	Delete(ctx context.Context, actor entity.Actor, eventID string) error
}

type ClubsService interface {
	Join(ctx context.Context, actor entity.Actor, accessCode string) (entity.User, error)
}

type SubscriptionsService interface {
	Activate(ctx context.Context, actor entity.Actor, leaderID string, durationDays int) (entity.User, error)
	Status(ctx context.Context, actor entity.Actor) (service.SubscriptionStatus, error)
}

type Config struct {
	Addr      string
	JWTSecret string
	// CallbackSecret, when set, must be passed as the secret query parameter of payment callbacks.
	CallbackSecret string
}

type Server struct {
	addr           string
	e              *echo.Echo
	jwtSecret      []byte
	callbackSecret string

	users         UsersRepository
	tickets       TicketsService
	reconciler    PaymentReconciler
	events        EventsService
	clubs         ClubsService
	subscriptions SubscriptionsService
}

func NewServer(
	cfg Config,
	users UsersRepository,
	tickets TicketsService,
	reconciler PaymentReconciler,
	events EventsService,
	clubs ClubsService,
	subscriptions SubscriptionsService,
) *Server {
	if cfg.JWTSecret == "" {
		panic("missing JWT secret")
	}

	e := echoHTTP.NewEcho()
	e.Use(otelecho.Middleware(tracing.ServiceName))
	e.Validator = newRequestValidator()

	server := &Server{
		addr:           cfg.Addr,
		e:              e,
		jwtSecret:      []byte(cfg.JWTSecret),
		callbackSecret: cfg.CallbackSecret,
		users:          users,
		tickets:        tickets,
		reconciler:     reconciler,
		events:         events,
		clubs:          clubs,
		subscriptions:  subscriptions,
	}
	e.HTTPErrorHandler = server.handleError

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Provider callbacks are a few hundred bytes; the route is unauthenticated.
	e.POST("/api/payments/callback", server.PostPaymentCallback, middleware.BodyLimit(callbackBodyLimit))

	api := e.Group("/api", server.authenticate)

	api.POST("/events", server.PostEvent)
	api.GET("/events/:id", server.GetEvent)
	api.PUT("/events/:id", server.PutEvent)
	api.DELETE("/events/:id", server.DeleteEvent)
	api.POST("/events/:id/cancel", server.PostEventCancel)
	api.POST("/events/:id/tickets", server.PostEventTickets)

	api.POST("/tickets/:id/payment", server.PostTicketPayment)
	api.POST("/tickets/:id/cancel", server.PostTicketCancel)
	api.GET("/tickets/:id/status", server.GetTicketStatus)

	api.POST("/clubs/join", server.PostClubJoin)
	api.GET("/leader/subscription", server.GetLeaderSubscription)

	api.POST("/admin/events/:id/approve", server.PostEventApprove)
	api.POST("/admin/events/:id/reject", server.PostEventReject)
	api.POST("/admin/tickets/:id/refund", server.PostTicketRefund)
	api.POST("/admin/leaders/:id/subscription", server.PostLeaderSubscription)

	return server
}

func (s Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		err := s.e.Shutdown(context.Background())
		if err != nil {
			log.FromContext(ctx).WithError(err).Error("failed to shutdown HTTP server")
		}
	}()
	log.FromContext(ctx).WithField("addr", s.addr).Info("[HTTP] server listening")
	if err := s.e.Start(s.addr); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ServeHTTP lets tests drive the router without a listener.
func (s Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.e.ServeHTTP(w, r)
}
