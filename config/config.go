package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr       string `long:"http-addr" env:"HTTP_ADDR" default:":8080" description:"HTTP listen address"`
	PostgresURL    string `long:"postgres-url" env:"POSTGRES_URL" required:"true" description:"Postgres connection string"`
	RedisAddr      string `long:"redis-addr" env:"REDIS_ADDR" default:"localhost:6379" description:"Redis address"`
	JWTSecret      string `long:"jwt-secret" env:"JWT_SECRET" required:"true" description:"HS256 secret for bearer tokens"`
	JaegerEndpoint string `long:"jaeger-endpoint" env:"JAEGER_ENDPOINT" description:"Jaeger collector endpoint, tracing is not exported when empty"`

	Mpesa     Mpesa     `group:"M-Pesa" namespace:"mpesa" env-namespace:"MPESA"`
	PubNub    PubNub    `group:"PubNub" namespace:"pubnub" env-namespace:"PUBNUB"`
	Ticketing Ticketing `group:"Ticketing"`
}

type Mpesa struct {
	BaseURL        string        `long:"base-url" env:"BASE_URL" default:"https://sandbox.safaricom.co.ke"`
	ConsumerKey    string        `long:"consumer-key" env:"CONSUMER_KEY" required:"true"`
	ConsumerSecret string        `long:"consumer-secret" env:"CONSUMER_SECRET" required:"true"`
	ShortCode      string        `long:"shortcode" env:"SHORTCODE" required:"true"`
	Passkey        string        `long:"passkey" env:"PASSKEY" required:"true"`
	CallbackURL    string        `long:"callback-url" env:"CALLBACK_URL" required:"true"`
	Timeout        time.Duration `long:"timeout" env:"TIMEOUT" default:"10s"`
}

type PubNub struct {
	PublishKey   string `long:"publish-key" env:"PUBLISH_KEY"`
	SubscribeKey string `long:"subscribe-key" env:"SUBSCRIBE_KEY"`
	SecretKey    string `long:"secret-key" env:"SECRET_KEY"`
	UserID       string `long:"user-id" env:"USER_ID" default:"clubtickets-server"`
}

type Ticketing struct {
	SubscriptionDays  int           `long:"subscription-days" env:"SUBSCRIPTION_DAYS" default:"30"`
	PaymentQueryAfter time.Duration `long:"payment-query-after" env:"PAYMENT_QUERY_AFTER" default:"2m"`
	ReconcileInterval time.Duration `long:"reconcile-interval" env:"RECONCILE_INTERVAL" default:"30s"`
	CallbackSecret    string        `long:"callback-secret" env:"CALLBACK_SECRET"`
}

// Load reads envFiles (".env" when none are given) into the environment without overriding
// variables that are already set, then parses flags and environment.
func Load(args []string, envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("could not load %s: %w", file, err)
		}
	}

	var cfg Config
	parser := flags.NewParser(&cfg, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(args); err != nil {
		return Config{}, err
	}

	if cfg.Ticketing.SubscriptionDays <= 0 {
		return Config{}, fmt.Errorf("subscription days must be positive, got %d", cfg.Ticketing.SubscriptionDays)
	}
	if cfg.Ticketing.ReconcileInterval <= 0 {
		return Config{}, fmt.Errorf("reconcile interval must be positive, got %s", cfg.Ticketing.ReconcileInterval)
	}

	return cfg, nil
}
