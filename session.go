package ledger

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Session owns the in-memory auth state of one manager and keeps the manager's fetch slot
// in line with it: while protection is enabled the slot holds an AuthTransport, otherwise
// it holds the native transport.
//
// The access token is never written anywhere but the session's memory.
type Session struct {
	m *Manager

	snap     Snapshot
	snapLock sync.RWMutex

	// transLock serialises transitions so observers see them in order.
	transLock sync.Mutex

	ready chan struct{}
	tasks sync.WaitGroup
}

// NewSession creates a session and starts checking the server's status in the background.
// Operations other than the plain state readers wait for that check to finish.
func (m *Manager) NewSession(ctx context.Context) *Session {
	s := &Session{
		m:     m,
		ready: make(chan struct{}),
	}

	s.transition(func(Snapshot) Snapshot {
		return checking()
	})

	s.tasks.Add(1)

	NewFuture(m.panicHandler, func() (Snapshot, error) {
		return s.check(ctx), nil
	}).Then(func(snap Snapshot, _ error) {
		defer s.tasks.Done()
		defer close(s.ready)

		s.transition(func(Snapshot) Snapshot {
			return snap
		})
	})

	return s
}

// check decides the initial state.
//
// The two failure paths are deliberately asymmetric. If the status check itself fails the
// session opens, so a transient network error at startup cannot lock the user out. If the
// status check succeeds and reports protection but the silent refresh fails, the gate stays
// locked, because the server has told us a credential is needed and we have none.
func (s *Session) check(ctx context.Context) Snapshot {
	status, err := s.m.AuthStatus(ctx)
	if err != nil {
		logrus.WithError(err).WithField("pkg", "go-ledger-api").Warn("Status check failed, assuming protection is disabled")
		return openMode("")
	}

	if !status.PasswordRequired {
		return openMode("")
	}

	auth, err := s.m.refresher.Refresh(ctx)
	if err != nil {
		logrus.WithError(err).WithField("pkg", "go-ledger-api").Debug("Silent refresh failed, gate is locked")
		return gateLocked()
	}

	return gateUnlocked(auth.AccessToken)
}

// Wait blocks until the startup check has finished.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil

	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready is closed once the startup check has finished.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.snapLock.RLock()
	defer s.snapLock.RUnlock()

	return s.snap
}

func (s *Session) State() State {
	return s.Snapshot().State
}

// GetToken returns the latest access token, or the empty string if there is none.
func (s *Session) GetToken() string {
	return s.Snapshot().Token
}

func (s *Session) ProtectionEnabled() bool {
	return s.Snapshot().ProtectionEnabled()
}

func (s *Session) Authenticated() bool {
	return s.Snapshot().Authenticated()
}

func (s *Session) Loading() bool {
	return s.Snapshot().Loading()
}

// Login exchanges the password for an access token.
// On failure the error is returned and the state is left alone.
func (s *Session) Login(ctx context.Context, password string) error {
	if err := s.Wait(ctx); err != nil {
		return err
	}

	auth, err := s.m.AuthLogin(ctx, password)
	if err != nil {
		return err
	}

	s.transition(func(snap Snapshot) Snapshot {
		return snap.withToken(auth.AccessToken)
	})

	return nil
}

// EnableProtection logs in with the (already configured) password and moves to the unlocked
// gate in a single step, so the protection flag and the token change together.
func (s *Session) EnableProtection(ctx context.Context, password string) error {
	if err := s.Wait(ctx); err != nil {
		return err
	}

	auth, err := s.m.AuthLogin(ctx, password)
	if err != nil {
		return err
	}

	s.transition(func(Snapshot) Snapshot {
		return gateUnlocked(auth.AccessToken)
	})

	return nil
}

// DisableProtection moves to open mode in a single step, so the session never looks
// unauthenticated on the way, then revokes the refresh cookie in the background.
func (s *Session) DisableProtection(ctx context.Context) error {
	if err := s.Wait(ctx); err != nil {
		return err
	}

	var token string

	s.transition(func(snap Snapshot) Snapshot {
		token = snap.Token
		return openMode("")
	})

	s.logout(token)

	return nil
}

// Logout drops the token, then revokes the refresh cookie in the background.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.Wait(ctx); err != nil {
		return err
	}

	var token string

	s.transition(func(snap Snapshot) Snapshot {
		token = snap.Token
		return snap.withoutToken()
	})

	s.logout(token)

	return nil
}

// RefreshToken obtains a new access token using the refresh cookie.
// It reports whether it succeeded. If the server refused, the token is dropped; if ctx ended
// first, the state is left alone.
func (s *Session) RefreshToken(ctx context.Context) bool {
	if err := s.Wait(ctx); err != nil {
		return false
	}

	return s.refresh(ctx)
}

// Close waits for background work started by the session to finish.
func (s *Session) Close() {
	s.tasks.Wait()
}

func (s *Session) refresh(ctx context.Context) bool {
	auth, err := s.m.refresher.Refresh(ctx)
	if err != nil {
		// A caller that stopped waiting learns nothing about the refresh cookie.
		if ctx.Err() != nil {
			return false
		}

		logrus.WithError(err).WithField("pkg", "go-ledger-api").Info("Token refresh failed")

		s.transition(func(snap Snapshot) Snapshot {
			return snap.withoutToken()
		})

		return false
	}

	s.transition(func(snap Snapshot) Snapshot {
		return snap.withToken(auth.AccessToken)
	})

	return true
}

func (s *Session) expire() {
	s.transition(func(snap Snapshot) Snapshot {
		return snap.withoutToken()
	})
}

// logout revokes the refresh cookie without waiting; failures are logged and dropped.
func (s *Session) logout(token string) {
	s.tasks.Add(1)

	NewFuture(s.m.panicHandler, func() (struct{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), s.m.logoutTimeout)
		defer cancel()

		return struct{}{}, s.m.AuthLogout(ctx, token)
	}).Then(func(_ struct{}, err error) {
		defer s.tasks.Done()

		if err != nil {
			logrus.WithError(err).WithField("pkg", "go-ledger-api").Warn("Logout failed, ignoring")
		}
	})
}

// transition replaces the snapshot and, if protection flipped, re-wires the fetch slot
// before anyone else can observe the new snapshot.
func (s *Session) transition(fn func(Snapshot) Snapshot) {
	s.transLock.Lock()
	defer s.transLock.Unlock()

	s.snapLock.Lock()

	prev := s.snap
	next := fn(prev)

	s.snap = next

	if next.ProtectionEnabled() != prev.ProtectionEnabled() {
		s.wire(next.ProtectionEnabled())
	}

	s.snapLock.Unlock()

	if next == prev {
		return
	}

	logrus.WithFields(logrus.Fields{
		"pkg":  "go-ledger-api",
		"from": prev.State,
		"to":   next.State,
	}).Debug("Session state changed")

	s.m.notify(next)
}

func (s *Session) wire(protected bool) {
	if protected {
		s.m.slot.Set(NewAuthTransport(s.m.slot.Native(), s.GetToken, s.refresh, s.expire))
	} else {
		s.m.slot.Set(s.m.slot.Native())
	}
}
