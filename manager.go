package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ProtonMail/gluon/async"
	"github.com/go-resty/resty/v2"
)

// Manager talks to a ledger API host.
// API calls go through its fetch slot with retries; auth calls go straight to the network.
type Manager struct {
	rc *resty.Client
	ac *resty.Client

	slot      *FetchSlot
	refresher *RefreshCoordinator

	observers     []StateObserver
	observersLock sync.RWMutex

	panicHandler  async.PanicHandler
	logoutTimeout time.Duration
}

func New(opts ...Option) *Manager {
	builder := newManagerBuilder()

	for _, opt := range opts {
		opt.config(builder)
	}

	return builder.build()
}

// Slot returns the fetch slot API calls are sent through.
func (m *Manager) Slot() *FetchSlot {
	return m.slot
}

// Refresher returns the coordinator shared by everything that refreshes the access token.
func (m *Manager) Refresher() *RefreshCoordinator {
	return m.refresher
}

// AddStateObserver registers a function called after every session state transition.
// Observers must not call back into the session's transition methods.
func (m *Manager) AddStateObserver(observer StateObserver) {
	m.observersLock.Lock()
	defer m.observersLock.Unlock()

	m.observers = append(m.observers, observer)
}

func (m *Manager) Ping(ctx context.Context) error {
	if _, err := m.r(ctx).Get("/api/health"); err != nil {
		return err
	}

	return nil
}

// Do performs a request through the fetch slot with retries and returns the last response,
// failing or not, alongside any error.
func (m *Manager) Do(ctx context.Context, fn func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	return fn(m.r(ctx))
}

func (m *Manager) Close() {
	m.rc.GetClient().CloseIdleConnections()
	m.ac.GetClient().CloseIdleConnections()
}

// do performs a request like Do but only reports whether it failed, describing what was attempted.
func (m *Manager) do(ctx context.Context, desc string, fn func(*resty.Request) (*resty.Response, error)) error {
	if _, err := m.Do(ctx, fn); err != nil {
		return fmt.Errorf("failed to %s: %w", desc, err)
	}

	return nil
}

func (m *Manager) r(ctx context.Context) *resty.Request {
	return m.rc.R().SetContext(ctx)
}

func (m *Manager) auth(ctx context.Context) *resty.Request {
	return m.ac.R().SetContext(ctx)
}

func (m *Manager) notify(snap Snapshot) {
	m.observersLock.RLock()
	defer m.observersLock.RUnlock()

	for _, observer := range m.observers {
		observer(snap)
	}
}
