package ledger

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

type Code string

const (
	TokenExpired        Code = "TOKEN_EXPIRED"
	NoToken             Code = "NO_TOKEN"
	InvalidToken        Code = "INVALID_TOKEN"
	InvalidPassword     Code = "INVALID_PASSWORD"
	ProtectionDisabled  Code = "PROTECTION_DISABLED"
	NoRefreshToken      Code = "NO_REFRESH_TOKEN"
	InvalidRefreshToken Code = "INVALID_REFRESH_TOKEN"
	InvalidValue        Code = "INVALID_VALUE"
	NotFound            Code = "NOT_FOUND"
	AppVersionMissing   Code = "APP_VERSION_MISSING"
	AppVersionBad       Code = "APP_VERSION_BAD"
)

// Error is the body the ledger API returns alongside any non-2xx status.
type Error struct {
	Status  int    `json:"-"`
	Code    Code   `json:"code,omitempty"`
	Message string `json:"error"`
}

func (err Error) Error() string {
	if err.Message == "" {
		return string(err.Code)
	}

	return err.Message
}

// IsCode reports whether err carries an API error with the given code.
func IsCode(err error, code Code) bool {
	var apiErr *Error

	if !errors.As(err, &apiErr) {
		return false
	}

	return apiErr.Code == code
}

func catchAPIError(_ *resty.Client, res *resty.Response) error {
	if !res.IsError() {
		return nil
	}

	var err error

	if apiErr, ok := res.Error().(*Error); ok && (apiErr.Code != "" || apiErr.Message != "") {
		apiErr.Status = res.StatusCode()
		err = apiErr
	} else {
		err = &Error{Status: res.StatusCode(), Message: res.Status()}
	}

	return fmt.Errorf("%v: %w", res.StatusCode(), err)
}

// retryStatuses are the transient statuses worth sending again.
var retryStatuses = []int{
	http.StatusRequestTimeout,
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// Retry conditions get a nil response when the request could not even be built.

func catchRetryStatus(res *resty.Response, _ error) bool {
	if res == nil {
		return false
	}

	return slices.Contains(retryStatuses, res.StatusCode())
}

func catchDialError(res *resty.Response, _ error) bool {
	if res == nil {
		return false
	}

	return res.RawResponse == nil
}

// linearBackoff waits base × attempt before each retry; the first retry is attempt 1.
func linearBackoff(base time.Duration) resty.RetryAfterFunc {
	return func(_ *resty.Client, res *resty.Response) (time.Duration, error) {
		after := base * time.Duration(res.Request.Attempt)

		logrus.WithFields(logrus.Fields{
			"pkg":     "go-ledger-api",
			"status":  res.StatusCode(),
			"url":     res.Request.URL,
			"method":  res.Request.Method,
			"attempt": res.Request.Attempt,
			"after":   after,
		}).Warn("Transient failure, retrying after delay")

		return after, nil
	}
}
