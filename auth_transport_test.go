package ledger_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hearthbook/go-ledger-api"
	"github.com/stretchr/testify/require"
)

// tokenStore stands in for the session: it holds the token and counts refreshes and failures.
type tokenStore struct {
	token     string
	tokenLock sync.RWMutex

	next string
	ok   bool

	refreshes atomic.Int32
	failures  atomic.Int32
}

func (store *tokenStore) get() string {
	store.tokenLock.RLock()
	defer store.tokenLock.RUnlock()

	return store.token
}

func (store *tokenStore) refresh(context.Context) bool {
	store.refreshes.Add(1)

	if !store.ok {
		return false
	}

	store.tokenLock.Lock()
	defer store.tokenLock.Unlock()

	store.token = store.next

	return true
}

func (store *tokenStore) fail() {
	store.failures.Add(1)
}

func (store *tokenStore) client() *http.Client {
	return &http.Client{
		Transport: ledger.NewAuthTransport(http.DefaultTransport, store.get, store.refresh, store.fail),
	}
}

// recorder is a test handler that records the Authorization header and body of each call.
type recorder struct {
	handle func(w http.ResponseWriter, auth string)

	auths  []string
	bodies []string
	lock   sync.Mutex
}

func (rec *recorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		panic(err)
	}

	rec.lock.Lock()
	rec.auths = append(rec.auths, r.Header.Get("Authorization"))
	rec.bodies = append(rec.bodies, string(b))
	rec.lock.Unlock()

	rec.handle(w, r.Header.Get("Authorization"))
}

func (rec *recorder) calls() ([]string, []string) {
	rec.lock.Lock()
	defer rec.lock.Unlock()

	return append([]string{}, rec.auths...), append([]string{}, rec.bodies...)
}

func writeCode(w http.ResponseWriter, status int, code ledger.Code) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write([]byte(`{"code":"` + string(code) + `","error":"nope"}`)); err != nil {
		panic(err)
	}
}

func doRequest(t *testing.T, client *http.Client, method, url string, body []byte) (*http.Response, string) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, reader)
	require.NoError(t, err)

	res, err := client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	return res, string(b)
}

func TestAuthTransport_RefreshAndRetry(t *testing.T) {
	rec := &recorder{handle: func(w http.ResponseWriter, auth string) {
		if auth != "Bearer new" {
			writeCode(w, http.StatusUnauthorized, ledger.TokenExpired)
		} else {
			w.WriteHeader(http.StatusOK)
		}
	}}

	ts := httptest.NewServer(rec)
	defer ts.Close()

	store := &tokenStore{token: "old", next: "new", ok: true}

	res, _ := doRequest(t, store.client(), http.MethodPost, ts.URL, []byte(`{"amount":1}`))
	require.Equal(t, http.StatusOK, res.StatusCode)

	auths, bodies := rec.calls()

	// Two calls: the first with the stale token, the retry with the refreshed one.
	require.Equal(t, []string{"Bearer old", "Bearer new"}, auths)

	// The retry carries the same body.
	require.Equal(t, []string{`{"amount":1}`, `{"amount":1}`}, bodies)

	require.Equal(t, int32(1), store.refreshes.Load())
	require.Equal(t, int32(0), store.failures.Load())
}

func TestAuthTransport_RetriesOnce(t *testing.T) {
	rec := &recorder{handle: func(w http.ResponseWriter, _ string) {
		writeCode(w, http.StatusUnauthorized, ledger.TokenExpired)
	}}

	ts := httptest.NewServer(rec)
	defer ts.Close()

	store := &tokenStore{token: "old", next: "new", ok: true}

	res, body := doRequest(t, store.client(), http.MethodGet, ts.URL, nil)

	// The second 401 is handed back without another refresh.
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	require.Contains(t, body, string(ledger.TokenExpired))

	auths, _ := rec.calls()
	require.Len(t, auths, 2)

	require.Equal(t, int32(1), store.refreshes.Load())
}

func TestAuthTransport_OtherUnauthorized(t *testing.T) {
	for _, code := range []ledger.Code{ledger.NoToken, ledger.InvalidToken, ledger.InvalidPassword} {
		code := code

		t.Run(string(code), func(t *testing.T) {
			rec := &recorder{handle: func(w http.ResponseWriter, _ string) {
				writeCode(w, http.StatusUnauthorized, code)
			}}

			ts := httptest.NewServer(rec)
			defer ts.Close()

			store := &tokenStore{token: "old", next: "new", ok: true}

			res, body := doRequest(t, store.client(), http.MethodGet, ts.URL, nil)

			// Only an expired token is worth a refresh; the response is passed through intact.
			require.Equal(t, http.StatusUnauthorized, res.StatusCode)
			require.JSONEq(t, `{"code":"`+string(code)+`","error":"nope"}`, body)

			auths, _ := rec.calls()
			require.Len(t, auths, 1)

			require.Equal(t, int32(0), store.refreshes.Load())
		})
	}
}

func TestAuthTransport_UnparsableBody(t *testing.T) {
	rec := &recorder{handle: func(w http.ResponseWriter, _ string) {
		w.WriteHeader(http.StatusUnauthorized)

		if _, err := w.Write([]byte("<html>unauthorized</html>")); err != nil {
			panic(err)
		}
	}}

	ts := httptest.NewServer(rec)
	defer ts.Close()

	store := &tokenStore{token: "old", next: "new", ok: true}

	res, body := doRequest(t, store.client(), http.MethodGet, ts.URL, nil)

	// A body that cannot be read as an error is not an expiry.
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	require.Equal(t, "<html>unauthorized</html>", body)

	require.Equal(t, int32(0), store.refreshes.Load())
}

func TestAuthTransport_RefreshFails(t *testing.T) {
	rec := &recorder{handle: func(w http.ResponseWriter, _ string) {
		writeCode(w, http.StatusUnauthorized, ledger.TokenExpired)
	}}

	ts := httptest.NewServer(rec)
	defer ts.Close()

	store := &tokenStore{token: "old", ok: false}

	res, body := doRequest(t, store.client(), http.MethodGet, ts.URL, nil)

	// The original 401 comes back, body and all, and the failure callback ran.
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	require.JSONEq(t, `{"code":"TOKEN_EXPIRED","error":"nope"}`, body)

	auths, _ := rec.calls()
	require.Len(t, auths, 1)

	require.Equal(t, int32(1), store.refreshes.Load())
	require.Equal(t, int32(1), store.failures.Load())
}

func TestAuthTransport_NoToken(t *testing.T) {
	rec := &recorder{handle: func(w http.ResponseWriter, _ string) {
		w.WriteHeader(http.StatusOK)
	}}

	ts := httptest.NewServer(rec)
	defer ts.Close()

	store := &tokenStore{}

	res, _ := doRequest(t, store.client(), http.MethodGet, ts.URL, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	// Without a token no header is attached.
	auths, _ := rec.calls()
	require.Equal(t, []string{""}, auths)
}

func TestAuthTransport_ReadsLatestToken(t *testing.T) {
	rec := &recorder{handle: func(w http.ResponseWriter, _ string) {
		w.WriteHeader(http.StatusOK)
	}}

	ts := httptest.NewServer(rec)
	defer ts.Close()

	store := &tokenStore{token: "first"}
	client := store.client()

	doRequest(t, client, http.MethodGet, ts.URL, nil)

	store.tokenLock.Lock()
	store.token = "second"
	store.tokenLock.Unlock()

	doRequest(t, client, http.MethodGet, ts.URL, nil)

	// The same transport picks up the token current at each call.
	auths, _ := rec.calls()
	require.Equal(t, []string{"Bearer first", "Bearer second"}, auths)
}

func TestAuthTransport_CallerGivesUp(t *testing.T) {
	rec := &recorder{handle: func(w http.ResponseWriter, _ string) {
		writeCode(w, http.StatusUnauthorized, ledger.TokenExpired)
	}}

	ts := httptest.NewServer(rec)
	defer ts.Close()

	var failures atomic.Int32

	client := &http.Client{
		Transport: ledger.NewAuthTransport(
			http.DefaultTransport,
			func() string { return "old" },
			func(ctx context.Context) bool {
				<-ctx.Done()
				return false
			},
			func() { failures.Add(1) },
		),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	// The caller's own deadline is reported as such; the session is not told the refresh failed.
	res, err := client.Do(req) //nolint:bodyclose
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Nil(t, res)

	require.Equal(t, int32(0), failures.Load())
}

// closeTracker is a response body that remembers being closed.
type closeTracker struct {
	io.Reader

	closed atomic.Bool
}

func (body *closeTracker) Close() error {
	body.closed.Store(true)
	return nil
}

// retryFailsRoundTripper answers the first call with an expired token and fails every call after it.
type retryFailsRoundTripper struct {
	body  *closeTracker
	calls atomic.Int32
}

func (rt *retryFailsRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	if rt.calls.Add(1) > 1 {
		return nil, errors.New("connection reset")
	}

	return &http.Response{
		StatusCode: http.StatusUnauthorized,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       rt.body,
	}, nil
}

func TestAuthTransport_RetryFails(t *testing.T) {
	rt := &retryFailsRoundTripper{
		body: &closeTracker{Reader: bytes.NewReader([]byte(`{"code":"TOKEN_EXPIRED","error":"nope"}`))},
	}

	store := &tokenStore{token: "old", next: "new", ok: true}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://ledger.test/api/expenses", nil)
	require.NoError(t, err)

	// The retry's error is returned and the first response is not left open.
	res, err := ledger.NewAuthTransport(rt, store.get, store.refresh, store.fail).RoundTrip(req) //nolint:bodyclose
	require.EqualError(t, err, "connection reset")
	require.Nil(t, res)

	require.True(t, rt.body.closed.Load())
	require.Equal(t, int32(2), rt.calls.Load())
	require.Equal(t, int32(1), store.refreshes.Load())
	require.Equal(t, int32(0), store.failures.Load())
}
