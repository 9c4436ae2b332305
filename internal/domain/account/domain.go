package account

import (
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("account not found")
	ErrDuplicateLogin = errors.New("login already exists")
)

type Account struct {
	ID           int64     `json:"id"`
	Login        string    `json:"login"`
	PasswordHash string    `json:"-"`
	Theme        string    `json:"theme"`
	CreatedAt    time.Time `json:"created_at"`
}

// Credential is what a login needs from the store. Theme is empty when the
// account has no stored preference.
type Credential struct {
	UserID       int64
	PasswordHash string
	Theme        string
}

// Registered is the payload of the account_registered event.
type Registered struct {
	UserID int64     `json:"user_id"`
	Login  string    `json:"login"`
	Theme  string    `json:"theme"`
	At     time.Time `json:"at"`
}
