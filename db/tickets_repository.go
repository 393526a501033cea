package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"clubtickets/authz"
	"clubtickets/entity"
)

const ticketColumns = `ticket_id, event_id, user_id, tier, ticket_price, commission, total_amount, payment_status, payment_phone, mpesa_receipt, purchased_at, updated_at`

type TicketsPostgresRepository struct {
	db *sqlx.DB
}

func NewTicketsPostgresRepository(db *sqlx.DB) *TicketsPostgresRepository {
	if db == nil {
		panic("db must be set")
	}

	return &TicketsPostgresRepository{db: db}
}

// CreatePending locks the event row, loads the purchase facts and stores the ticket returned by
// decide. Purchases for one event are serialized by the lock, so capacity and the duplicate
// check can't race. The partial unique index backs the duplicate check up.
func (r TicketsPostgresRepository) CreatePending(
	ctx context.Context,
	eventID string,
	userID string,
	decide func(facts authz.PurchaseFacts) (entity.Ticket, []any, error),
) (entity.Ticket, error) {
	var ticket entity.Ticket

	err := updateInTx(ctx, r.db, sql.LevelReadCommitted, func(ctx context.Context, tx *sqlx.Tx) error {
		event, err := getEvent(ctx, tx, eventID, true)
		if err != nil {
			return err
		}

		leader, err := getUser(ctx, tx, event.LeaderID, false)
		if err != nil {
			return fmt.Errorf("could not get event leader: %w", err)
		}

		facts := authz.PurchaseFacts{
			Event:  event,
			Leader: leader,
		}

		err = tx.GetContext(ctx, &facts.SlotsTaken, `
			SELECT COUNT(*) FROM tickets
			WHERE event_id = $1 AND `+slotHoldingCondition, eventID)
		if err != nil {
			return fmt.Errorf("could not count tickets: %w", err)
		}

		err = tx.GetContext(ctx, &facts.HoldsTicket, `
			SELECT EXISTS(
				SELECT 1 FROM tickets
				WHERE event_id = $1 AND user_id = $2 AND `+slotHoldingCondition+`
			)`, eventID, userID)
		if err != nil {
			return notFoundOr(err, "could not check existing tickets")
		}

		var events []any
		ticket, events, err = decide(facts)
		if err != nil {
			return err
		}

		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO tickets (`+ticketColumns+`)
			VALUES (:ticket_id, :event_id, :user_id, :tier, :ticket_price, :commission, :total_amount, :payment_status, :payment_phone, :mpesa_receipt, :purchased_at, :updated_at)
		`, ticket)
		if isErrorUniqueViolation(err, ticketsActiveUniqueIndex) {
			return entity.Deny(entity.ReasonDuplicateTicket)
		}
		if err != nil {
			return fmt.Errorf("could not add ticket: %w", err)
		}

		return publishInTx(ctx, tx, events...)
	})
	if err != nil {
		return entity.Ticket{}, err
	}

	return ticket, nil
}

func (r TicketsPostgresRepository) Get(ctx context.Context, ticketID string) (entity.Ticket, error) {
	return getTicket(ctx, r.db, ticketID, false)
}

// UpdateByID applies updateFn to the locked ticket row and publishes the events it returns
// through the outbox in the same transaction.
func (r TicketsPostgresRepository) UpdateByID(
	ctx context.Context,
	ticketID string,
	updateFn func(ticket entity.Ticket) (entity.Ticket, []any, error),
) (entity.Ticket, error) {
	var ticket entity.Ticket

	err := updateInTx(ctx, r.db, sql.LevelReadCommitted, func(ctx context.Context, tx *sqlx.Tx) error {
		current, err := getTicket(ctx, tx, ticketID, true)
		if err != nil {
			return err
		}

		var events []any
		ticket, events, err = updateFn(current)
		if err != nil {
			return err
		}

		if err := updateTicketStatus(ctx, tx, current.PaymentStatus, ticket); err != nil {
			return err
		}

		return publishInTx(ctx, tx, events...)
	})
	if err != nil {
		return entity.Ticket{}, err
	}

	return ticket, nil
}

func getTicket(ctx context.Context, q sqlx.QueryerContext, ticketID string, forUpdate bool) (entity.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var ticket entity.Ticket
	if err := sqlx.GetContext(ctx, q, &ticket, query, ticketID); err != nil {
		return entity.Ticket{}, notFoundOr(err, "could not get ticket %s", ticketID)
	}
	return ticket, nil
}

// updateTicketStatus writes the status only if nobody moved the ticket away from previous.
func updateTicketStatus(ctx context.Context, tx *sqlx.Tx, previous entity.TicketStatus, ticket entity.Ticket) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE tickets
		SET payment_status = $1, mpesa_receipt = $2, updated_at = $3
		WHERE ticket_id = $4 AND payment_status = $5
	`, ticket.PaymentStatus, ticket.MpesaReceipt, ticket.UpdatedAt, ticket.TicketID, previous)
	if err != nil {
		return fmt.Errorf("could not update ticket: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("ticket %s is no longer %s: %w", ticket.TicketID, previous, entity.ErrConflict)
	}

	return nil
}
