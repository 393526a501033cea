package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type TicketStatus string

const (
	TicketStatusPendingPayment TicketStatus = "pending_payment"
	TicketStatusCompleted      TicketStatus = "completed"
	TicketStatusFailed         TicketStatus = "failed"
	TicketStatusRefunded       TicketStatus = "refunded"
	TicketStatusCancelled      TicketStatus = "cancelled"
)

var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusPendingPayment: {TicketStatusCompleted, TicketStatusFailed, TicketStatusCancelled},
	TicketStatusCompleted:      {TicketStatusRefunded},
}

func (s TicketStatus) CanTransitionTo(next TicketStatus) bool {
	for _, allowed := range ticketTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// HoldsSlot reports whether a ticket in this status counts against capacity and blocks a
// second purchase by the same user.
func (s TicketStatus) HoldsSlot() bool {
	return s != TicketStatusFailed && s != TicketStatusCancelled
}

type Ticket struct {
	TicketID      string          `db:"ticket_id"`
	EventID       string          `db:"event_id"`
	UserID        string          `db:"user_id"`
	Tier          TicketTier      `db:"tier"`
	TicketPrice   decimal.Decimal `db:"ticket_price"`
	Commission    decimal.Decimal `db:"commission"`
	TotalAmount   decimal.Decimal `db:"total_amount"`
	PaymentStatus TicketStatus    `db:"payment_status"`
	PaymentPhone  string          `db:"payment_phone"`
	MpesaReceipt  *string         `db:"mpesa_receipt"`
	PurchasedAt   time.Time       `db:"purchased_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

// NewPendingTicket snapshots the tier price and commission at purchase time. Later event edits
// do not change them.
func NewPendingTicket(ticketID string, event Event, userID string, tier TicketTier, phone string, now time.Time) (Ticket, error) {
	price, err := event.PriceFor(tier)
	if err != nil {
		return Ticket{}, err
	}

	return Ticket{
		TicketID:      ticketID,
		EventID:       event.EventID,
		UserID:        userID,
		Tier:          tier,
		TicketPrice:   price,
		Commission:    Commission(price),
		TotalAmount:   Total(price),
		PaymentStatus: TicketStatusPendingPayment,
		PaymentPhone:  phone,
		PurchasedAt:   now.UTC(),
		UpdatedAt:     now.UTC(),
	}, nil
}

func (t *Ticket) TransitionTo(next TicketStatus, now time.Time) error {
	if !t.PaymentStatus.CanTransitionTo(next) {
		return Deny(ReasonInvalidTransition)
	}
	t.PaymentStatus = next
	t.UpdatedAt = now.UTC()
	return nil
}

// Finalize applies a payment outcome to a pending ticket. It returns false and leaves the
// ticket untouched when the ticket already left pending_payment.
func (t *Ticket) Finalize(outcome PaymentOutcome, receipt string, now time.Time) bool {
	if t.PaymentStatus != TicketStatusPendingPayment {
		return false
	}
	t.PaymentStatus = outcome.TicketStatus()
	if outcome == PaymentOutcomeCompleted && receipt != "" {
		t.MpesaReceipt = &receipt
	}
	t.UpdatedAt = now.UTC()
	return true
}
