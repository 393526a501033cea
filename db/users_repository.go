package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"clubtickets/entity"
)

const usersClubAccessCodeKey = "users_club_access_code_key"

const userColumns = `user_id, username, role, leader_id, subscription_active, subscription_expires_at, club_access_code, created_at`

type UsersPostgresRepository struct {
	db *sqlx.DB
}

func NewUsersPostgresRepository(db *sqlx.DB) *UsersPostgresRepository {
	if db == nil {
		panic("db must be set")
	}

	return &UsersPostgresRepository{db: db}
}

func (r UsersPostgresRepository) Add(ctx context.Context, user entity.User) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:user_id, :username, :role, :leader_id, :subscription_active, :subscription_expires_at, :club_access_code, :created_at)
		ON CONFLICT DO NOTHING
	`, user)
	if err != nil {
		return fmt.Errorf("could not add user: %w", err)
	}
	return nil
}

func (r UsersPostgresRepository) Get(ctx context.Context, userID string) (entity.User, error) {
	return getUser(ctx, r.db, userID, false)
}

func (r UsersPostgresRepository) GetByClubAccessCode(ctx context.Context, code string) (entity.User, error) {
	var user entity.User
	err := r.db.GetContext(ctx, &user, `
		SELECT `+userColumns+`
		FROM users
		WHERE club_access_code = $1 AND role = 'leader'
	`, code)
	if err != nil {
		return entity.User{}, notFoundOr(err, "could not get leader by club access code")
	}
	return user, nil
}

func (r UsersPostgresRepository) ClubAccessCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE club_access_code = $1)`, code)
	if err != nil {
		return false, fmt.Errorf("could not check club access code: %w", err)
	}
	return exists, nil
}

// UpdateByID locks the user row for the duration of updateFn. A club access code taken
// concurrently by another leader surfaces as entity.ErrConflict.
func (r UsersPostgresRepository) UpdateByID(
	ctx context.Context,
	userID string,
	updateFn func(user entity.User) (entity.User, error),
) (entity.User, error) {
	var user entity.User

	err := updateInTx(ctx, r.db, sql.LevelReadCommitted, func(ctx context.Context, tx *sqlx.Tx) error {
		current, err := getUser(ctx, tx, userID, true)
		if err != nil {
			return err
		}

		user, err = updateFn(current)
		if err != nil {
			return err
		}

		_, err = tx.NamedExecContext(ctx, `
			UPDATE users SET
				leader_id = :leader_id,
				subscription_active = :subscription_active,
				subscription_expires_at = :subscription_expires_at,
				club_access_code = :club_access_code
			WHERE user_id = :user_id
		`, user)
		if isErrorUniqueViolation(err, usersClubAccessCodeKey) {
			return fmt.Errorf("club access code already taken: %w", entity.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("could not update user: %w", err)
		}

		return nil
	})
	if err != nil {
		return entity.User{}, err
	}

	return user, nil
}

func getUser(ctx context.Context, q sqlx.QueryerContext, userID string, forUpdate bool) (entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var user entity.User
	if err := sqlx.GetContext(ctx, q, &user, query, userID); err != nil {
		return entity.User{}, notFoundOr(err, "could not get user %s", userID)
	}
	return user, nil
}
