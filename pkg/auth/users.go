package auth

import (
	"errors"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// ErrBadCredentials is returned when an email/password pair does not match.
var ErrBadCredentials = errors.New("unable to log in with provided credentials")

// Users is an in-memory account table with bcrypt-hashed passwords.
type Users struct {
	mu     sync.RWMutex
	hashes map[string][]byte
}

// NewUsers creates an empty account table.
func NewUsers() *Users {
	return &Users{hashes: make(map[string][]byte)}
}

// Add registers or replaces an account.
func (u *Users) Add(email, password string) error {
	if email == "" || password == "" {
		return errors.New("email and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.hashes[strings.ToLower(email)] = hash
	return nil
}

// Authenticate checks a password. Emails are case-insensitive.
func (u *Users) Authenticate(email, password string) error {
	u.mu.RLock()
	hash, ok := u.hashes[strings.ToLower(email)]
	u.mu.RUnlock()
	if !ok {
		return ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return ErrBadCredentials
	}
	return nil
}

// Len returns the number of accounts.
func (u *Users) Len() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.hashes)
}
