package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"clubtickets/pubsub/outbox"
)

const ticketsActiveUniqueIndex = "tickets_one_active_per_event_user"

// slotHoldingCondition selects tickets that count against capacity and block a second purchase.
const slotHoldingCondition = "payment_status NOT IN ('failed', 'cancelled')"

func InitializeDatabaseSchema(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			user_id UUID PRIMARY KEY,
			username VARCHAR(255) NOT NULL UNIQUE,
			role VARCHAR(16) NOT NULL CHECK (role IN ('admin', 'leader', 'member')),
			leader_id UUID NULL REFERENCES users (user_id),
			subscription_active BOOLEAN NOT NULL DEFAULT FALSE,
			subscription_expires_at TIMESTAMPTZ NULL,
			club_access_code VARCHAR(16) NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT users_club_access_code_key UNIQUE (club_access_code)
		);

		CREATE TABLE IF NOT EXISTS events (
			event_id UUID PRIMARY KEY,
			leader_id UUID NOT NULL REFERENCES users (user_id),
			title VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			location VARCHAR(255) NOT NULL,
			event_date TIMESTAMPTZ NOT NULL,
			ticket_price NUMERIC(12, 2) NOT NULL CHECK (ticket_price > 0),
			vip_price NUMERIC(12, 2) NULL CHECK (vip_price > 0),
			vvip_price NUMERIC(12, 2) NULL CHECK (vvip_price > 0),
			capacity INT NULL CHECK (capacity > 0),
			status VARCHAR(16) NOT NULL CHECK (status IN ('pending', 'approved', 'rejected', 'cancelled')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS tickets (
			ticket_id UUID PRIMARY KEY,
			event_id UUID NOT NULL REFERENCES events (event_id) ON DELETE CASCADE,
			user_id UUID NOT NULL REFERENCES users (user_id),
			tier VARCHAR(16) NOT NULL DEFAULT 'regular',
			ticket_price NUMERIC(12, 2) NOT NULL,
			commission NUMERIC(12, 2) NOT NULL,
			total_amount NUMERIC(12, 2) NOT NULL,
			payment_status VARCHAR(32) NOT NULL CHECK (payment_status IN ('pending_payment', 'completed', 'failed', 'refunded', 'cancelled')),
			payment_phone VARCHAR(20) NOT NULL,
			mpesa_receipt VARCHAR(64) NULL,
			purchased_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS tickets_one_active_per_event_user
			ON tickets (event_id, user_id)
			WHERE payment_status NOT IN ('failed', 'cancelled');

		CREATE INDEX IF NOT EXISTS tickets_event_id_idx ON tickets (event_id);

		CREATE TABLE IF NOT EXISTS payment_requests (
			checkout_request_id VARCHAR(128) PRIMARY KEY,
			merchant_request_id VARCHAR(128) NOT NULL DEFAULT '',
			ticket_id UUID NOT NULL REFERENCES tickets (ticket_id) ON DELETE CASCADE,
			phone VARCHAR(20) NOT NULL,
			amount NUMERIC(12, 2) NOT NULL,
			requested_at TIMESTAMPTZ NOT NULL,
			result_code INT NULL,
			result_desc TEXT NULL,
			resolved_at TIMESTAMPTZ NULL
		);

		CREATE INDEX IF NOT EXISTS payment_requests_ticket_id_idx ON payment_requests (ticket_id, requested_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("could not initialize database schema: %w", err)
	}

	return outbox.InitializeSchema(db)
}
