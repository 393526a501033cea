package gateway

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	pubnub "github.com/pubnub/go/v7"

	"clubtickets/entity"
)

type PubNubConfig struct {
	PublishKey   string
	SubscribeKey string
	SecretKey    string
	UserID       string
}

// PubNubNotifier pushes realtime notifications to the user-<id> channel the frontend listens on.
type PubNubNotifier struct {
	pn *pubnub.PubNub
}

func NewPubNubNotifier(cfg PubNubConfig) PubNubNotifier {
	if cfg.PublishKey == "" {
		panic("pubnub publish key must be set")
	}

	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.UserID))
	pnCfg.PublishKey = cfg.PublishKey
	pnCfg.SubscribeKey = cfg.SubscribeKey
	pnCfg.SecretKey = cfg.SecretKey

	return PubNubNotifier{pn: pubnub.NewPubNub(pnCfg)}
}

func UserChannel(userID string) string {
	return fmt.Sprintf("user-%s", userID)
}

func (n PubNubNotifier) Notify(ctx context.Context, notification entity.Notification) error {
	_, status, err := n.pn.Publish().
		Channel(UserChannel(notification.UserID)).
		Message(notification.Payload()).
		Execute()
	if err != nil {
		return fmt.Errorf("could not publish notification to %s: %w", UserChannel(notification.UserID), err)
	}

	log.FromContext(ctx).
		WithField("channel", UserChannel(notification.UserID)).
		WithField("status", status.StatusCode).
		Debug("Notification published")

	return nil
}

// LogNotifier only logs notifications. It is used when no PubNub keys are configured.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, notification entity.Notification) error {
	log.FromContext(ctx).
		WithField("user_id", notification.UserID).
		WithField("type", notification.Type).
		Info("Notification not delivered, no realtime channel configured")
	return nil
}
