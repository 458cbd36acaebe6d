package model

import (
	"fmt"
	"time"
)

// UserAccount is a marketplace member as returned by the API.
type UserAccount struct {
	ID           FlexID    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	Phone        string    `json:"phone,omitempty"`
	Balance      Amount    `json:"balance"`
	Avatar       string    `json:"avatar,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// ValidatePassword checks a new password against the length policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// FindAccount returns the account whose id matches, or nil.
func FindAccount(accounts []UserAccount, id FlexID) *UserAccount {
	for i := range accounts {
		if SameID(accounts[i].ID, id) {
			return &accounts[i]
		}
	}
	return nil
}
