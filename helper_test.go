package ledger_test

import (
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hearthbook/go-ledger-api"
	"github.com/hearthbook/go-ledger-api/server"
)

func newTestManager(t *testing.T, s *server.Server, opts ...ledger.Option) *ledger.Manager {
	t.Helper()

	m := ledger.New(append([]ledger.Option{
		ledger.WithHostURL(s.GetHostURL()),
		ledger.WithTransport(ledger.InsecureTransport()),
	}, opts...)...)

	t.Cleanup(m.Close)

	return m
}

// countCalls returns a counter of calls the server receives on the given path.
func countCalls(s *server.Server, path string) *atomic.Int32 {
	var count atomic.Int32

	s.AddCallWatcher(func(server.Call) {
		count.Add(1)
	}, path)

	return &count
}

// recordStates returns every snapshot the manager's sessions go through.
func recordStates(m *ledger.Manager) func() []ledger.Snapshot {
	var (
		snaps []ledger.Snapshot
		lock  sync.Mutex
	)

	m.AddStateObserver(func(snap ledger.Snapshot) {
		lock.Lock()
		defer lock.Unlock()

		snaps = append(snaps, snap)
	})

	return func() []ledger.Snapshot {
		lock.Lock()
		defer lock.Unlock()

		return append([]ledger.Snapshot{}, snaps...)
	}
}

func states(snaps []ledger.Snapshot) []ledger.State {
	var out []ledger.State

	for _, snap := range snaps {
		out = append(out, snap.State)
	}

	return out
}

type failingRoundTripper struct {
	http.RoundTripper

	fails, calls int
}

func newFailingRoundTripper(fails int) http.RoundTripper {
	return &failingRoundTripper{
		RoundTripper: http.DefaultTransport,
		fails:        fails,
	}
}

func (rt *failingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.calls++

	if rt.calls < rt.fails {
		return nil, errors.New("simulating network error")
	}

	return rt.RoundTripper.RoundTrip(req)
}

type countingRoundTripper struct {
	http.RoundTripper

	calls atomic.Int32
}

func (rt *countingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.calls.Add(1)

	return rt.RoundTripper.RoundTrip(req)
}

// stallingRoundTripper holds requests to one path for a while, or until they are cancelled.
type stallingRoundTripper struct {
	http.RoundTripper

	path  string
	stall time.Duration
}

func newStallingRoundTripper(path string, stall time.Duration) http.RoundTripper {
	return &stallingRoundTripper{
		RoundTripper: ledger.InsecureTransport(),
		path:         path,
		stall:        stall,
	}
}

func (rt *stallingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Path == rt.path {
		select {
		case <-time.After(rt.stall):

		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}

	return rt.RoundTripper.RoundTrip(req)
}
