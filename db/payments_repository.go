package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"clubtickets/entity"
)

const paymentRequestColumns = `checkout_request_id, merchant_request_id, ticket_id, phone, amount, requested_at, result_code, result_desc, resolved_at`

type PaymentsPostgresRepository struct {
	db *sqlx.DB
}

func NewPaymentsPostgresRepository(db *sqlx.DB) *PaymentsPostgresRepository {
	if db == nil {
		panic("db must be set")
	}

	return &PaymentsPostgresRepository{db: db}
}

// Add records an accepted push. It must commit before the purchase response is sent, so a
// callback can always find the token.
func (r PaymentsPostgresRepository) Add(ctx context.Context, request entity.PaymentRequest) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO payment_requests (`+paymentRequestColumns+`)
		VALUES (:checkout_request_id, :merchant_request_id, :ticket_id, :phone, :amount, :requested_at, :result_code, :result_desc, :resolved_at)
		ON CONFLICT DO NOTHING
	`, request)
	if err != nil {
		return fmt.Errorf("could not add payment request: %w", err)
	}
	return nil
}

func (r PaymentsPostgresRepository) Get(ctx context.Context, checkoutRequestID string) (entity.PaymentRequest, error) {
	var request entity.PaymentRequest
	err := r.db.GetContext(ctx, &request, `
		SELECT `+paymentRequestColumns+`
		FROM payment_requests
		WHERE checkout_request_id = $1
	`, checkoutRequestID)
	if err != nil {
		return entity.PaymentRequest{}, notFoundOr(err, "could not get payment request")
	}
	return request, nil
}

// Resolve locks the payment request and its ticket, then persists the attempt updateFn returns
// and publishes its events. The token is matched by equality only. Unknown tokens return
// entity.ErrReconciliationMiss.
func (r PaymentsPostgresRepository) Resolve(
	ctx context.Context,
	checkoutRequestID string,
	updateFn func(attempt entity.PaymentAttempt) (entity.PaymentAttempt, []any, error),
) (entity.PaymentAttempt, error) {
	var attempt entity.PaymentAttempt

	err := updateInTx(ctx, r.db, sql.LevelReadCommitted, func(ctx context.Context, tx *sqlx.Tx) error {
		var request entity.PaymentRequest
		err := tx.GetContext(ctx, &request, `
			SELECT `+paymentRequestColumns+`
			FROM payment_requests
			WHERE checkout_request_id = $1
			FOR UPDATE
		`, checkoutRequestID)
		if err != nil {
			err = notFoundOr(err, "could not get payment request")
			if errors.Is(err, entity.ErrNotFound) {
				return entity.ErrReconciliationMiss
			}
			return err
		}

		ticket, err := getTicket(ctx, tx, request.TicketID, true)
		if err != nil {
			return err
		}

		var latestID string
		err = tx.GetContext(ctx, &latestID, `
			SELECT checkout_request_id
			FROM payment_requests
			WHERE ticket_id = $1
			ORDER BY requested_at DESC, checkout_request_id DESC
			LIMIT 1
		`, ticket.TicketID)
		if err != nil {
			return fmt.Errorf("could not get latest payment request: %w", err)
		}

		current := entity.PaymentAttempt{
			Request:  request,
			Ticket:   ticket,
			IsLatest: latestID == request.CheckoutRequestID,
		}

		var events []any
		attempt, events, err = updateFn(current)
		if err != nil {
			return err
		}

		if !current.Request.IsResolved() && attempt.Request.IsResolved() {
			_, err = tx.NamedExecContext(ctx, `
				UPDATE payment_requests
				SET result_code = :result_code, result_desc = :result_desc, resolved_at = :resolved_at
				WHERE checkout_request_id = :checkout_request_id
			`, attempt.Request)
			if err != nil {
				return fmt.Errorf("could not resolve payment request: %w", err)
			}
		}

		if attempt.Ticket.PaymentStatus != current.Ticket.PaymentStatus {
			if err := updateTicketStatus(ctx, tx, current.Ticket.PaymentStatus, attempt.Ticket); err != nil {
				return err
			}
		}

		return publishInTx(ctx, tx, events...)
	})
	if err != nil {
		return entity.PaymentAttempt{}, err
	}

	return attempt, nil
}

// FindAwaitingResult returns the latest unresolved push of every pending ticket that was sent
// before requestedBefore, oldest first.
func (r PaymentsPostgresRepository) FindAwaitingResult(ctx context.Context, requestedBefore time.Time, limit int) ([]entity.PaymentRequest, error) {
	var requests []entity.PaymentRequest
	err := r.db.SelectContext(ctx, &requests, `
		SELECT `+paymentRequestColumns+`
		FROM (
			SELECT DISTINCT ON (pr.ticket_id) pr.*
			FROM payment_requests pr
			JOIN tickets t ON t.ticket_id = pr.ticket_id
			WHERE t.payment_status = 'pending_payment'
			ORDER BY pr.ticket_id, pr.requested_at DESC
		) latest
		WHERE resolved_at IS NULL AND requested_at < $1
		ORDER BY requested_at
		LIMIT $2
	`, requestedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("could not find payment requests awaiting result: %w", err)
	}
	return requests, nil
}
