// Package auth issues and verifies the API tokens used by the content API.
package auth

import "time"

// Maker creates and verifies tokens. The content API only depends on this
// interface so the token scheme can change without touching handlers.
type Maker interface {
	CreateToken(email string, duration time.Duration) (string, *Payload, error)
	VerifyToken(token string) (*Payload, error)
}
