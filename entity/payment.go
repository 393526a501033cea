package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentOutcome string

const (
	PaymentOutcomeCompleted PaymentOutcome = "completed"
	PaymentOutcomeFailed    PaymentOutcome = "failed"
)

func (o PaymentOutcome) TicketStatus() TicketStatus {
	if o == PaymentOutcomeCompleted {
		return TicketStatusCompleted
	}
	return TicketStatusFailed
}

// ResultCodeSuccess is the provider result code for a paid request. Every other code is a failure.
const ResultCodeSuccess = 0

func OutcomeFromResultCode(code int) PaymentOutcome {
	if code == ResultCodeSuccess {
		return PaymentOutcomeCompleted
	}
	return PaymentOutcomeFailed
}

// PaymentRequest is one accepted push attempt for a ticket. CheckoutRequestID is the
// provider's correlation token and is unique across all attempts.
type PaymentRequest struct {
	CheckoutRequestID string          `db:"checkout_request_id"`
	MerchantRequestID string          `db:"merchant_request_id"`
	TicketID          string          `db:"ticket_id"`
	Phone             string          `db:"phone"`
	Amount            decimal.Decimal `db:"amount"`
	RequestedAt       time.Time       `db:"requested_at"`
	ResultCode        *int            `db:"result_code"`
	ResultDesc        *string         `db:"result_desc"`
	ResolvedAt        *time.Time      `db:"resolved_at"`
}

func (p PaymentRequest) IsResolved() bool {
	return p.ResolvedAt != nil
}

type PushRequest struct {
	Phone       string
	Amount      decimal.Decimal
	Reference   string
	Description string
}

type PushResult struct {
	CheckoutRequestID string
	MerchantRequestID string
	ResponseDesc      string
}

// QueryResult is the provider's view of a push. Resolved is false while the customer has not
// answered the prompt yet.
type QueryResult struct {
	Resolved   bool
	ResultCode int
	ResultDesc string
}

// PaymentResult is an outcome reported for a correlation token, from a callback or a status query.
type PaymentResult struct {
	CheckoutRequestID string
	MerchantRequestID string
	ResultCode        int
	ResultDesc        string
	Receipt           string
	Amount            decimal.NullDecimal
	Phone             string
}

func (r PaymentResult) Outcome() PaymentOutcome {
	return OutcomeFromResultCode(r.ResultCode)
}

type ReconcileStatus string

const (
	ReconcileApplied      ReconcileStatus = "applied"
	ReconcileAlreadyFinal ReconcileStatus = "already_final"
	ReconcileStale        ReconcileStatus = "stale_attempt"
	// ReconcilePending means the provider has no outcome for the push yet.
	ReconcilePending ReconcileStatus = "pending"
)

type ReconcileResult struct {
	Status   ReconcileStatus
	TicketID string
	Outcome  PaymentOutcome
}

// PaymentAttempt is a payment request together with the ticket it pays for, as seen under lock.
type PaymentAttempt struct {
	Request PaymentRequest
	Ticket  Ticket
	// IsLatest is true when no newer push exists for the ticket.
	IsLatest bool
}

// ResolveAttempt decides what a result for this attempt does to its ticket. A success from any
// attempt completes a pending ticket. A failure only fails it when it comes from the latest
// attempt, since the holder may have retried the push in the meantime.
func ResolveAttempt(attempt PaymentAttempt, outcome PaymentOutcome) ReconcileStatus {
	if attempt.Ticket.PaymentStatus != TicketStatusPendingPayment {
		return ReconcileAlreadyFinal
	}
	if outcome == PaymentOutcomeFailed && !attempt.IsLatest {
		return ReconcileStale
	}
	return ReconcileApplied
}
