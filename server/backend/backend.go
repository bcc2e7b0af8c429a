package backend

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hearthbook/go-ledger-api"
)

// Backend holds the server's state: the optional admin password, the refresh sessions
// handed out as cookies, and the ledger's expenses.
type Backend struct {
	passHash []byte
	passLock sync.RWMutex

	sessions     map[string]time.Time
	sessionsLock sync.Mutex

	expenses     map[string]*expense
	expensesLock sync.RWMutex

	signingKey []byte

	// generation is bumped to revoke every access token issued so far.
	generation int
	authLife   time.Duration
	refLife    time.Duration
	lifeLock   sync.RWMutex
}

func New(authLife, refLife time.Duration) *Backend {
	key := make([]byte, 32)

	if _, err := rand.Read(key); err != nil {
		panic(err)
	}

	return &Backend{
		sessions: make(map[string]time.Time),
		expenses: make(map[string]*expense),

		signingKey: key,

		authLife: authLife,
		refLife:  refLife,
	}
}

func (b *Backend) SetAuthLife(authLife time.Duration) {
	b.lifeLock.Lock()
	defer b.lifeLock.Unlock()

	b.authLife = authLife
}

func (b *Backend) SetRefreshLife(refLife time.Duration) {
	b.lifeLock.Lock()
	defer b.lifeLock.Unlock()

	b.refLife = refLife
}

func (b *Backend) RefreshLife() time.Duration {
	b.lifeLock.RLock()
	defer b.lifeLock.RUnlock()

	return b.refLife
}

// ExpireAuth makes every access token issued so far report as expired.
func (b *Backend) ExpireAuth() {
	b.lifeLock.Lock()
	defer b.lifeLock.Unlock()

	b.generation++
}

// ExpireSessions makes every refresh cookie issued so far unusable.
func (b *Backend) ExpireSessions() {
	b.sessionsLock.Lock()
	defer b.sessionsLock.Unlock()

	for ref := range b.sessions {
		b.sessions[ref] = time.Time{}
	}
}

func (b *Backend) PasswordRequired() bool {
	b.passLock.RLock()
	defer b.passLock.RUnlock()

	return b.passHash != nil
}

func (b *Backend) SetPassword(password string) error {
	if password == "" {
		return fmt.Errorf("password must not be empty")
	}

	hash, err := hashPassword(password)
	if err != nil {
		return err
	}

	b.passLock.Lock()
	defer b.passLock.Unlock()

	b.passHash = hash

	return nil
}

// RemovePassword disables protection and revokes every refresh session.
func (b *Backend) RemovePassword() {
	b.passLock.Lock()
	defer b.passLock.Unlock()

	b.passHash = nil

	b.sessionsLock.Lock()
	defer b.sessionsLock.Unlock()

	b.sessions = make(map[string]time.Time)
}

// ErrorCode maps backend errors to the code reported on the wire.
func ErrorCode(err error) ledger.Code {
	switch {
	case err == nil:
		return ""

	case errors.Is(err, ErrTokenExpired):
		return ledger.TokenExpired

	case errors.Is(err, ErrInvalidToken):
		return ledger.InvalidToken

	case errors.Is(err, ErrInvalidPassword):
		return ledger.InvalidPassword

	case errors.Is(err, ErrProtectionDisabled):
		return ledger.ProtectionDisabled

	case errors.Is(err, ErrInvalidRefresh):
		return ledger.InvalidRefreshToken

	case errors.Is(err, ErrNoExpense):
		return ledger.NotFound

	default:
		return ledger.InvalidValue
	}
}
