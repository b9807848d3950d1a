package database

import (
	"context"
	"fmt"
	"time"

	"assetbook/internal/models"
)

const selectUser = `SELECT id, username, email, password_hash, first_name, is_staff, is_active,
        email_verified_at, created_at FROM users`

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	now := utc(time.Now())
	id, err := db.insertReturningID(ctx, db.DB, `INSERT INTO users (
            username, email, password_hash, first_name, is_staff, is_active, email_verified_at, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.IsStaff,
		user.IsActive,
		utcPtr(user.EmailVerifiedAt),
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.ID = id
	user.CreatedAt = now
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := db.GetContext(ctx, &user, db.Rebind(selectUser+` WHERE id = ?`), id); err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return &user, nil
}

func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := db.GetContext(ctx, &user, db.Rebind(selectUser+` WHERE username = ?`), username); err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return &user, nil
}

// UserExists reports whether the username or the email is already taken.
func (db *DB) UserExists(ctx context.Context, username, email string) (usernameTaken, emailTaken bool, err error) {
	var counts struct {
		Usernames int `db:"usernames"`
		Emails    int `db:"emails"`
	}
	query := `SELECT
            (SELECT COUNT(*) FROM users WHERE username = ?) AS usernames,
            (SELECT COUNT(*) FROM users WHERE LOWER(email) = LOWER(?)) AS emails`
	if err := db.GetContext(ctx, &counts, db.Rebind(query), username, email); err != nil {
		return false, false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return counts.Usernames > 0, counts.Emails > 0, nil
}

// MarkEmailVerified activates the account and records the verification time.
func (db *DB) MarkEmailVerified(ctx context.Context, id int64, at time.Time) error {
	result, err := db.ExecContext(ctx,
		db.Rebind(`UPDATE users SET is_active = ?, email_verified_at = ? WHERE id = ?`), true, utc(at), id)
	if err != nil {
		return fmt.Errorf("failed to verify user: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrUserNotFound
	}
	return nil
}
