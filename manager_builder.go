package ledger

import (
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/ProtonMail/gluon/async"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/publicsuffix"
)

const (
	// DefaultHostURL is the default host of the ledger API.
	DefaultHostURL = "http://localhost:3001"

	// DefaultAppVersion is the default app version sent with every request.
	DefaultAppVersion = "go-ledger-api"

	// DefaultRetryCount is how many times a transient failure is retried.
	DefaultRetryCount = 2

	// DefaultRetryDelay is the base of the linear retry backoff.
	DefaultRetryDelay = time.Second

	// DefaultLogoutTimeout bounds the background logout run by a session.
	DefaultLogoutTimeout = 30 * time.Second
)

type managerBuilder struct {
	hostURL      string
	appVersion   string
	transport    http.RoundTripper
	cookieJar    http.CookieJar
	retryCount   int
	retryDelay   time.Duration
	logger       resty.Logger
	debug        bool
	panicHandler async.PanicHandler

	logoutTimeout time.Duration
}

func newManagerBuilder() *managerBuilder {
	return &managerBuilder{
		hostURL:      DefaultHostURL,
		appVersion:   DefaultAppVersion,
		transport:    http.DefaultTransport,
		cookieJar:    nil,
		retryCount:   DefaultRetryCount,
		retryDelay:   DefaultRetryDelay,
		logger:       nil,
		debug:        false,
		panicHandler: async.NoopPanicHandler{},

		logoutTimeout: DefaultLogoutTimeout,
	}
}

func (builder *managerBuilder) build() *Manager {
	m := &Manager{
		rc: resty.New(),
		ac: resty.New(),

		slot: NewFetchSlot(builder.transport),

		panicHandler:  builder.panicHandler,
		logoutTimeout: builder.logoutTimeout,
	}

	m.refresher = NewRefreshCoordinator(m.AuthRefresh)

	// The refresh cookie must travel on both clients, so they share one jar.
	jar := builder.cookieJar

	if jar == nil {
		newJar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			panic(err)
		}

		jar = newJar
	}

	for _, rc := range []*resty.Client{m.rc, m.ac} {
		rc.SetBaseURL(builder.hostURL)
		rc.SetCookieJar(jar)
		rc.SetDebug(builder.debug)
		rc.SetError(&Error{})

		if builder.logger != nil {
			rc.SetLogger(builder.logger)
		}

		rc.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			req.SetHeader("x-ledger-appversion", builder.appVersion)
			return nil
		})

		rc.OnAfterResponse(catchAPIError)
	}

	// API calls go through the slot so that they pick up whatever transport is installed.
	m.rc.SetTransport(m.slot)

	// Auth calls always go straight to the network; the auth transport itself depends on them.
	m.ac.SetTransport(m.slot.Native())

	// Configure the retry mechanism of the API client.
	// Auth calls are never retried: credential errors must reach the caller as they are.
	m.rc.SetRetryCount(builder.retryCount)
	m.rc.SetRetryWaitTime(builder.retryDelay)
	m.rc.SetRetryMaxWaitTime(builder.retryDelay * time.Duration(builder.retryCount+1))
	m.rc.AddRetryCondition(catchRetryStatus)
	m.rc.AddRetryCondition(catchDialError)
	m.rc.SetRetryAfter(linearBackoff(builder.retryDelay))

	return m
}

// Option represents a type that can be used to configure the manager.
type Option interface {
	config(*managerBuilder)
}

// WithHostURL sets the base URL of the ledger API.
func WithHostURL(hostURL string) Option {
	return &withHostURL{
		hostURL: hostURL,
	}
}

type withHostURL struct {
	hostURL string
}

func (opt withHostURL) config(builder *managerBuilder) {
	builder.hostURL = opt.hostURL
}

// WithAppVersion sets the app version sent in the x-ledger-appversion header.
func WithAppVersion(appVersion string) Option {
	return &withAppVersion{
		appVersion: appVersion,
	}
}

type withAppVersion struct {
	appVersion string
}

func (opt withAppVersion) config(builder *managerBuilder) {
	builder.appVersion = opt.appVersion
}

// WithTransport sets the native transport; it is what the fetch slot holds in open mode.
func WithTransport(transport http.RoundTripper) Option {
	return &withTransport{
		transport: transport,
	}
}

type withTransport struct {
	transport http.RoundTripper
}

func (opt withTransport) config(builder *managerBuilder) {
	builder.transport = opt.transport
}

// WithCookieJar sets the jar holding the refresh cookie.
// Reusing a jar across managers is how a page reload is simulated.
func WithCookieJar(jar http.CookieJar) Option {
	return &withCookieJar{
		jar: jar,
	}
}

type withCookieJar struct {
	jar http.CookieJar
}

func (opt withCookieJar) config(builder *managerBuilder) {
	builder.cookieJar = opt.jar
}

// WithRetryCount sets how many times transient failures of API calls are retried.
func WithRetryCount(retryCount int) Option {
	return &withRetryCount{
		retryCount: retryCount,
	}
}

type withRetryCount struct {
	retryCount int
}

func (opt withRetryCount) config(builder *managerBuilder) {
	builder.retryCount = opt.retryCount
}

// WithRetryDelay sets the base delay of the linear retry backoff.
func WithRetryDelay(delay time.Duration) Option {
	return &withRetryDelay{
		delay: delay,
	}
}

type withRetryDelay struct {
	delay time.Duration
}

func (opt withRetryDelay) config(builder *managerBuilder) {
	// resty falls back to its own jittered backoff on a zero delay.
	if opt.delay < time.Millisecond {
		opt.delay = time.Millisecond
	}

	builder.retryDelay = opt.delay
}

// WithLogger sets the logger used by the underlying resty clients.
func WithLogger(logger resty.Logger) Option {
	return &withLogger{
		logger: logger,
	}
}

type withLogger struct {
	logger resty.Logger
}

func (opt withLogger) config(builder *managerBuilder) {
	builder.logger = opt.logger
}

// WithDebug enables resty's request/response dumps.
func WithDebug(debug bool) Option {
	return &withDebug{
		debug: debug,
	}
}

type withDebug struct {
	debug bool
}

func (opt withDebug) config(builder *managerBuilder) {
	builder.debug = opt.debug
}

// WithPanicHandler sets the handler for panics raised in background tasks.
func WithPanicHandler(panicHandler async.PanicHandler) Option {
	return &withPanicHandler{
		panicHandler: panicHandler,
	}
}

type withPanicHandler struct {
	panicHandler async.PanicHandler
}

func (opt withPanicHandler) config(builder *managerBuilder) {
	builder.panicHandler = opt.panicHandler
}

// WithLogoutTimeout bounds how long a session's background logout may take.
func WithLogoutTimeout(timeout time.Duration) Option {
	return &withLogoutTimeout{
		timeout: timeout,
	}
}

type withLogoutTimeout struct {
	timeout time.Duration
}

func (opt withLogoutTimeout) config(builder *managerBuilder) {
	builder.logoutTimeout = opt.timeout
}
