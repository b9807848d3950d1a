package models

import "time"

type User struct {
	ID              int64      `db:"id" json:"id"`
	Username        string     `db:"username" json:"username"`
	Email           string     `db:"email" json:"email"`
	PasswordHash    string     `db:"password_hash" json:"-"`
	FirstName       string     `db:"first_name" json:"first_name"`
	IsStaff         bool       `db:"is_staff" json:"is_staff"`
	IsActive        bool       `db:"is_active" json:"is_active"`
	EmailVerifiedAt *time.Time `db:"email_verified_at" json:"email_verified_at"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

func (u *User) Verified() bool {
	return u.EmailVerifiedAt != nil
}
