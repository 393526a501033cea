package entity

import (
	"time"

	"github.com/google/uuid"
)

type EventHeader struct {
	ID             string    `json:"id"`
	PublishedAt    time.Time `json:"published_at"`
	IdempotencyKey string    `json:"idempotency_key"`
}

func NewEventHeader() EventHeader {
	return EventHeader{
		ID:          uuid.NewString(),
		PublishedAt: time.Now().UTC(),
	}
}

func NewEventHeaderWithIdempotencyKey(idempotencyKey string) EventHeader {
	return EventHeader{
		ID:             uuid.NewString(),
		PublishedAt:    time.Now().UTC(),
		IdempotencyKey: idempotencyKey,
	}
}

type TicketPurchased_v1 struct {
	Header      EventHeader `json:"header"`
	TicketID    string      `json:"ticket_id"`
	EventID     string      `json:"event_id"`
	UserID      string      `json:"user_id"`
	Tier        TicketTier  `json:"tier"`
	TotalAmount string      `json:"total_amount"`
}

type TicketPaymentCompleted_v1 struct {
	Header            EventHeader `json:"header"`
	TicketID          string      `json:"ticket_id"`
	EventID           string      `json:"event_id"`
	UserID            string      `json:"user_id"`
	CheckoutRequestID string      `json:"checkout_request_id"`
	Receipt           string      `json:"receipt"`
	TotalAmount       string      `json:"total_amount"`
}

type TicketPaymentFailed_v1 struct {
	Header            EventHeader `json:"header"`
	TicketID          string      `json:"ticket_id"`
	EventID           string      `json:"event_id"`
	UserID            string      `json:"user_id"`
	CheckoutRequestID string      `json:"checkout_request_id"`
	ResultCode        int         `json:"result_code"`
	ResultDesc        string      `json:"result_desc"`
}

type TicketRefunded_v1 struct {
	Header   EventHeader `json:"header"`
	TicketID string      `json:"ticket_id"`
	UserID   string      `json:"user_id"`
}

type LeaderSubscriptionActivated_v1 struct {
	Header    EventHeader `json:"header"`
	LeaderID  string      `json:"leader_id"`
	ExpiresAt time.Time   `json:"expires_at"`
}

type NotificationType string

const (
	NotificationPaymentSuccess        NotificationType = "payment_success"
	NotificationPaymentFailed         NotificationType = "payment_failed"
	NotificationTicketRefunded        NotificationType = "ticket_refunded"
	NotificationSubscriptionActivated NotificationType = "subscription_activated"
)

type Notification struct {
	UserID   string
	Type     NotificationType
	TicketID string
	Message  string
}

func (n Notification) Payload() map[string]any {
	payload := map[string]any{
		"type":    string(n.Type),
		"message": n.Message,
	}
	if n.TicketID != "" {
		payload["ticket_id"] = n.TicketID
	}
	return payload
}
