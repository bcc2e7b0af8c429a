package server

import (
	"net/http/httptest"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/gin-gonic/gin"
	"github.com/hearthbook/go-ledger-api/server/backend"
)

type Server struct {
	// r is the gin router.
	r *gin.Engine

	// s is the underlying server.
	s *httptest.Server

	// b is the server backend, which manages the password, refresh sessions and expenses.
	b *backend.Backend

	// callWatchers records calls received by the server.
	callWatchers     []callWatcher
	callWatchersLock sync.RWMutex

	// minAppVersion is the minimum app version that the server will accept.
	minAppVersion *semver.Version

	// rateLimit, if set, makes the server answer 429 once the limit is exceeded.
	rateLimit *rateLimiter

	// offline is whether to pretend the server is offline and return 5xx errors.
	offline     bool
	offlineLock sync.RWMutex
}

func New(opts ...Option) *Server {
	builder := newServerBuilder()

	for _, opt := range opts {
		opt.config(builder)
	}

	return builder.build()
}

func (s *Server) GetHostURL() string {
	return s.s.URL
}

// AddCallWatcher registers fn to be called after every request to one of the given paths,
// or to any path if none are given.
func (s *Server) AddCallWatcher(fn func(Call), paths ...string) {
	s.callWatchersLock.Lock()
	defer s.callWatchersLock.Unlock()

	s.callWatchers = append(s.callWatchers, newCallWatcher(fn, paths...))
}

// SetPassword turns on password protection.
func (s *Server) SetPassword(password string) error {
	return s.b.SetPassword(password)
}

// RemovePassword turns off password protection and revokes every refresh session.
func (s *Server) RemovePassword() {
	s.b.RemovePassword()
}

func (s *Server) PasswordRequired() bool {
	return s.b.PasswordRequired()
}

// SetAuthLife sets the lifetime of access tokens issued from now on.
func (s *Server) SetAuthLife(authLife time.Duration) {
	s.b.SetAuthLife(authLife)
}

// SetRefreshLife sets the lifetime of refresh cookies issued from now on.
func (s *Server) SetRefreshLife(refLife time.Duration) {
	s.b.SetRefreshLife(refLife)
}

// ExpireAuth makes every access token issued so far answer TOKEN_EXPIRED.
func (s *Server) ExpireAuth() {
	s.b.ExpireAuth()
}

// ExpireSessions makes every refresh cookie issued so far unusable.
func (s *Server) ExpireSessions() {
	s.b.ExpireSessions()
}

// CountSessions returns how many refresh sessions are open.
func (s *Server) CountSessions() int {
	return s.b.CountSessions()
}

func (s *Server) SetMinAppVersion(minAppVersion *semver.Version) {
	s.minAppVersion = minAppVersion
}

func (s *Server) SetOffline(offline bool) {
	s.offlineLock.Lock()
	defer s.offlineLock.Unlock()

	s.offline = offline
}

func (s *Server) isOffline() bool {
	s.offlineLock.RLock()
	defer s.offlineLock.RUnlock()

	return s.offline
}

func (s *Server) Close() {
	s.s.Close()
}
