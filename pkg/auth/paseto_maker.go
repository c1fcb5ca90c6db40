package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/o1egl/paseto"
	"golang.org/x/crypto/chacha20poly1305"
)

// PasetoMaker creates PASETO v2 local tokens.
type PasetoMaker struct {
	paseto       *paseto.V2
	symmetricKey []byte
	now          func() time.Time
}

// NewPasetoMaker creates a maker from a key of exactly chacha20poly1305.KeySize bytes.
// now may be nil, in which case time.Now is used.
func NewPasetoMaker(symmetricKey string, now func() time.Time) (*PasetoMaker, error) {
	if len(symmetricKey) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("invalid key size: must be exactly %d characters", chacha20poly1305.KeySize)
	}
	if now == nil {
		now = time.Now
	}
	return &PasetoMaker{
		paseto:       paseto.NewV2(),
		symmetricKey: []byte(symmetricKey),
		now:          now,
	}, nil
}

// CreateToken creates a token for email valid for duration.
func (m *PasetoMaker) CreateToken(email string, duration time.Duration) (string, *Payload, error) {
	payload, err := NewPayload(email, duration, m.now())
	if err != nil {
		return "", nil, fmt.Errorf("failed to create token payload: %w", err)
	}
	token, err := m.paseto.Encrypt(m.symmetricKey, payload, nil)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encrypt token: %w", err)
	}
	return token, payload, nil
}

// VerifyToken checks the token and returns its payload. Errors wrap
// ErrInvalidToken or ErrExpiredToken.
func (m *PasetoMaker) VerifyToken(token string) (*Payload, error) {
	payload := &Payload{}
	if err := m.paseto.Decrypt(token, m.symmetricKey, payload, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if err := payload.Valid(m.now()); err != nil {
		return nil, err
	}
	return payload, nil
}

// IsExpired reports whether err came from an expired token.
func IsExpired(err error) bool {
	return errors.Is(err, ErrExpiredToken)
}
