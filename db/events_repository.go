package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"clubtickets/entity"
)

const eventColumns = `event_id, leader_id, title, description, location, event_date, ticket_price, vip_price, vvip_price, capacity, status, created_at, updated_at`

type EventsPostgresRepository struct {
	db *sqlx.DB
}

func NewEventsPostgresRepository(db *sqlx.DB) *EventsPostgresRepository {
	if db == nil {
		panic("db must be set")
	}

	return &EventsPostgresRepository{db: db}
}

func (r EventsPostgresRepository) Add(ctx context.Context, event entity.Event) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES (:event_id, :leader_id, :title, :description, :location, :event_date, :ticket_price, :vip_price, :vvip_price, :capacity, :status, :created_at, :updated_at)
	`, event)
	if err != nil {
		return fmt.Errorf("could not add event: %w", err)
	}
	return nil
}

func (r EventsPostgresRepository) Get(ctx context.Context, eventID string) (entity.Event, error) {
	return getEvent(ctx, r.db, eventID, false)
}

// TicketsSold counts completed tickets. It is derived on read and never stored.
func (r EventsPostgresRepository) TicketsSold(ctx context.Context, eventID string) (int, error) {
	var sold int
	err := r.db.GetContext(ctx, &sold, `
		SELECT COUNT(*)
		FROM tickets
		WHERE event_id = $1 AND payment_status = 'completed'
	`, eventID)
	if err != nil {
		return 0, notFoundOr(err, "could not count tickets sold")
	}
	return sold, nil
}

func (r EventsPostgresRepository) UpdateByID(
	ctx context.Context,
	eventID string,
	updateFn func(event entity.Event) (entity.Event, error),
) (entity.Event, error) {
	var event entity.Event

	err := updateInTx(ctx, r.db, sql.LevelReadCommitted, func(ctx context.Context, tx *sqlx.Tx) error {
		current, err := getEvent(ctx, tx, eventID, true)
		if err != nil {
			return err
		}

		event, err = updateFn(current)
		if err != nil {
			return err
		}

		_, err = tx.NamedExecContext(ctx, `
			UPDATE events SET
				title = :title,
				description = :description,
				location = :location,
				event_date = :event_date,
				ticket_price = :ticket_price,
				vip_price = :vip_price,
				vvip_price = :vvip_price,
				capacity = :capacity,
				status = :status,
				updated_at = :updated_at
			WHERE event_id = :event_id
		`, event)
		if err != nil {
			return fmt.Errorf("could not update event: %w", err)
		}

		return nil
	})
	if err != nil {
		return entity.Event{}, err
	}

	return event, nil
}

// Delete removes the event together with its tickets and payment requests.
func (r EventsPostgresRepository) Delete(ctx context.Context, eventID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE event_id = $1`, eventID)
	if err != nil {
		return notFoundOr(err, "could not delete event")
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return entity.ErrNotFound
	}

	return nil
}

func getEvent(ctx context.Context, q sqlx.QueryerContext, eventID string, forUpdate bool) (entity.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE event_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var event entity.Event
	if err := sqlx.GetContext(ctx, q, &event, query, eventID); err != nil {
		return entity.Event{}, notFoundOr(err, "could not get event %s", eventID)
	}
	return event, nil
}
