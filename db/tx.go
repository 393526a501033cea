package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"clubtickets/entity"
	"clubtickets/pubsub/bus"
	"clubtickets/pubsub/outbox"
)

const (
	postgresUniqueValueViolationErrorCode = "23505"
	postgresInvalidTextRepresentationCode = "22P02"
)

func updateInTx(
	ctx context.Context,
	db *sqlx.DB,
	isolation sql.IsolationLevel,
	fn func(ctx context.Context, tx *sqlx.Tx) error,
) (err error) {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				err = errors.Join(err, rollbackErr)
			}
			return
		}

		err = tx.Commit()
	}()

	return fn(ctx, tx)
}

// publishInTx writes events to the outbox, so they are forwarded only if tx commits.
func publishInTx(ctx context.Context, tx *sqlx.Tx, events ...any) error {
	if len(events) == 0 {
		return nil
	}

	outboxPublisher, err := outbox.NewPublisherForDb(ctx, tx)
	if err != nil {
		return err
	}

	eventBus, err := bus.NewEventBus(outboxPublisher)
	if err != nil {
		return fmt.Errorf("could not create event bus: %w", err)
	}

	for _, event := range events {
		if err := eventBus.Publish(ctx, event); err != nil {
			return fmt.Errorf("could not publish %T: %w", event, err)
		}
	}

	return nil
}

func isErrorUniqueViolation(err error, constraint string) bool {
	var psqlErr *pq.Error
	if !errors.As(err, &psqlErr) || psqlErr.Code != postgresUniqueValueViolationErrorCode {
		return false
	}
	return constraint == "" || psqlErr.Constraint == constraint
}

// notFoundOr maps missing rows and malformed ids to entity.ErrNotFound.
func notFoundOr(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return entity.ErrNotFound
	}

	var psqlErr *pq.Error
	if errors.As(err, &psqlErr) && psqlErr.Code == postgresInvalidTextRepresentationCode {
		return entity.ErrNotFound
	}

	return fmt.Errorf(format+": %w", append(args, err)...)
}
