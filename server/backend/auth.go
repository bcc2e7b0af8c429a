package backend

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hearthbook/go-ledger-api"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrTokenExpired       = errors.New("access token expired")
	ErrInvalidToken       = errors.New("invalid access token")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrProtectionDisabled = errors.New("password protection is not enabled")
	ErrInvalidRefresh     = errors.New("invalid or expired refresh token")
)

type tokenClaims struct {
	Generation int `json:"gen"`
	jwt.RegisteredClaims
}

// NewAuth checks the password and opens a refresh session.
// It returns the access token and the refresh token to be set as a cookie.
func (b *Backend) NewAuth(password string) (string, string, error) {
	b.passLock.RLock()
	hash := b.passHash
	b.passLock.RUnlock()

	if hash == nil {
		return "", "", ErrProtectionDisabled
	}

	if err := bcrypt.CompareHashAndPassword(hash, normalize(password)); err != nil {
		return "", "", ErrInvalidPassword
	}

	acc, err := b.newAccessToken()
	if err != nil {
		return "", "", err
	}

	ref := uuid.NewString()

	b.lifeLock.RLock()
	expiry := time.Now().Add(b.refLife)
	b.lifeLock.RUnlock()

	b.sessionsLock.Lock()
	defer b.sessionsLock.Unlock()

	b.sessions[ref] = expiry

	return acc, ref, nil
}

// NewAuthRef issues a new access token for a live refresh session.
func (b *Backend) NewAuthRef(ref string) (string, error) {
	if !b.PasswordRequired() {
		return "", ErrProtectionDisabled
	}

	b.sessionsLock.Lock()
	expiry, ok := b.sessions[ref]
	b.sessionsLock.Unlock()

	if !ok || time.Now().After(expiry) {
		return "", ErrInvalidRefresh
	}

	return b.newAccessToken()
}

// DeleteAuthRef closes a refresh session. Unknown sessions are ignored.
func (b *Backend) DeleteAuthRef(ref string) {
	b.sessionsLock.Lock()
	defer b.sessionsLock.Unlock()

	delete(b.sessions, ref)
}

// CountSessions returns how many refresh sessions are open.
func (b *Backend) CountSessions() int {
	b.sessionsLock.Lock()
	defer b.sessionsLock.Unlock()

	return len(b.sessions)
}

// VerifyAuth checks an access token, telling an expired token apart from an invalid one.
func (b *Backend) VerifyAuth(raw string) error {
	claims := &tokenClaims{}

	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return b.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired

	case err != nil || !token.Valid:
		return ErrInvalidToken
	}

	b.lifeLock.RLock()
	defer b.lifeLock.RUnlock()

	if claims.Generation < b.generation {
		return ErrTokenExpired
	}

	return nil
}

func (b *Backend) newAccessToken() (string, error) {
	b.lifeLock.RLock()
	defer b.lifeLock.RUnlock()

	now := time.Now()

	claims := tokenClaims{
		Generation: b.generation,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   ledger.AdminUsername,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(b.authLife)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}

	return signed, nil
}

func hashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword(normalize(password), bcrypt.MinCost)
}

// normalize makes passwords typed with composed and decomposed characters compare equal.
func normalize(password string) []byte {
	return norm.NFC.Bytes([]byte(password))
}
