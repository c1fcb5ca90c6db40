package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "01234567890123456789012345678901"

func TestNewPasetoMakerKeySize(t *testing.T) {
	_, err := NewPasetoMaker("short", nil)
	require.Error(t, err)

	_, err = NewPasetoMaker(testKey, nil)
	require.NoError(t, err)
}

func TestCreateAndVerifyToken(t *testing.T) {
	maker, err := NewPasetoMaker(testKey, nil)
	require.NoError(t, err)

	token, issued, err := maker.CreateToken("editor@dispatch.test", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	payload, err := maker.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, payload.ID)
	assert.Equal(t, "editor@dispatch.test", payload.Email)
	assert.WithinDuration(t, issued.ExpiredAt, payload.ExpiredAt, time.Second)
}

func TestExpiredToken(t *testing.T) {
	now := time.Now()
	maker, err := NewPasetoMaker(testKey, func() time.Time { return now })
	require.NoError(t, err)

	token, _, err := maker.CreateToken("editor@dispatch.test", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = maker.VerifyToken(token)
	require.Error(t, err)
	assert.True(t, IsExpired(err))
}

func TestTamperedToken(t *testing.T) {
	maker, err := NewPasetoMaker(testKey, nil)
	require.NoError(t, err)
	other, err := NewPasetoMaker(strings.Repeat("x", 32), nil)
	require.NoError(t, err)

	token, _, err := other.CreateToken("editor@dispatch.test", time.Minute)
	require.NoError(t, err)

	_, err = maker.VerifyToken(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestNewPayloadValidation(t *testing.T) {
	_, err := NewPayload("", time.Minute, time.Now())
	assert.Error(t, err)
	_, err = NewPayload("a@b.c", 0, time.Now())
	assert.Error(t, err)
}

func TestUsersAuthenticate(t *testing.T) {
	u := NewUsers()
	require.NoError(t, u.Add("Editor@Dispatch.test", "secret"))

	assert.NoError(t, u.Authenticate("editor@dispatch.test", "secret"))
	assert.ErrorIs(t, u.Authenticate("editor@dispatch.test", "wrong"), ErrBadCredentials)
	assert.ErrorIs(t, u.Authenticate("nobody@dispatch.test", "secret"), ErrBadCredentials)
	assert.Error(t, u.Add("", "x"))
	assert.Equal(t, 1, u.Len())
}
