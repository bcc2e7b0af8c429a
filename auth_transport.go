package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
)

// AuthTransport attaches the bearer token to each request and, when the server says the token
// has expired, refreshes it and sends the request once more.
type AuthTransport struct {
	next      http.RoundTripper
	token     func() string
	refresh   func(context.Context) bool
	onFailure func()
}

// NewAuthTransport returns a transport sending through next (which must be the native transport,
// never the fetch slot). token is read before every attempt; refresh reports whether a new token
// was obtained; onFailure is called when it was not.
func NewAuthTransport(next http.RoundTripper, token func() string, refresh func(context.Context) bool, onFailure func()) *AuthTransport {
	return &AuthTransport{
		next:      next,
		token:     token,
		refresh:   refresh,
		onFailure: onFailure,
	}
}

func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := t.next.RoundTrip(t.withToken(req, req.Body))
	if err != nil {
		return nil, err
	}

	if !isTokenExpired(res) {
		return res, nil
	}

	if !t.refresh(req.Context()) {
		// The caller gave up; that says nothing about the session.
		if err := req.Context().Err(); err != nil {
			res.Body.Close()
			return nil, err
		}

		logrus.WithFields(logrus.Fields{
			"pkg":    "go-ledger-api",
			"url":    req.URL,
			"method": req.Method,
		}).Info("Token refresh failed, dropping session")

		t.onFailure()

		return res, nil
	}

	body, ok := rewind(req)
	if !ok {
		return res, nil
	}

	retry, err := t.next.RoundTrip(t.withToken(req, body))

	res.Body.Close()

	if err != nil {
		return nil, err
	}

	return retry, nil
}

func (t *AuthTransport) withToken(req *http.Request, body io.ReadCloser) *http.Request {
	out := req.Clone(req.Context())

	out.Body = body

	if token := t.token(); token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	} else {
		out.Header.Del("Authorization")
	}

	return out
}

// isTokenExpired reports whether res is a 401 carrying the token-expired code.
// The body is consumed to find out and replaced with an identical copy.
func isTokenExpired(res *http.Response) bool {
	if res.StatusCode != http.StatusUnauthorized || res.Body == nil {
		return false
	}

	b, err := io.ReadAll(res.Body)
	res.Body.Close()
	res.Body = io.NopCloser(bytes.NewReader(b))

	if err != nil {
		return false
	}

	var apiErr Error

	if err := json.Unmarshal(b, &apiErr); err != nil {
		return false
	}

	return apiErr.Code == TokenExpired
}

// rewind returns a fresh copy of the request body for a second attempt.
func rewind(req *http.Request) (io.ReadCloser, bool) {
	if req.Body == nil || req.Body == http.NoBody {
		return req.Body, true
	}

	if req.GetBody == nil {
		return nil, false
	}

	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}

	return body, true
}
