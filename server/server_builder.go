package server

import (
	"io"
	"net"
	"net/http/httptest"
	"os"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/gin-gonic/gin"
	"github.com/hearthbook/go-ledger-api/server/backend"
)

const (
	// DefaultAuthLife is how long access tokens stay valid.
	DefaultAuthLife = 15 * time.Minute

	// DefaultRefreshLife is how long refresh cookies stay valid.
	DefaultRefreshLife = 7 * 24 * time.Hour
)

type serverBuilder struct {
	withTLS       bool
	logger        io.Writer
	listener      net.Listener
	rateLimiter   *rateLimiter
	authLife      time.Duration
	refLife       time.Duration
	minAppVersion *semver.Version
}

func newServerBuilder() *serverBuilder {
	var logger io.Writer

	if os.Getenv("LEDGER_SERVER_LOGGER_ENABLED") != "" {
		logger = gin.DefaultWriter
	} else {
		logger = io.Discard
	}

	return &serverBuilder{
		withTLS:  true,
		logger:   logger,
		authLife: DefaultAuthLife,
		refLife:  DefaultRefreshLife,
	}
}

func (builder *serverBuilder) build() *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		r: gin.New(),
		b: backend.New(builder.authLife, builder.refLife),

		minAppVersion: builder.minAppVersion,
		rateLimit:     builder.rateLimiter,
	}

	s.s = httptest.NewUnstartedServer(s.r)

	if builder.listener != nil {
		s.s.Listener.Close()
		s.s.Listener = builder.listener
	}

	if builder.withTLS {
		s.s.StartTLS()
	} else {
		s.s.Start()
	}

	s.r.Use(
		gin.LoggerWithConfig(gin.LoggerConfig{Output: builder.logger}),
		gin.Recovery(),
		s.logCalls(),
		s.handleOffline(),
		s.handleRateLimit(),
	)

	initRouter(s)

	return s
}

// Option represents a type that can be used to configure the server.
type Option interface {
	config(*serverBuilder)
}

// WithTLS controls whether the server should serve over TLS.
func WithTLS(tls bool) Option {
	return &withTLS{
		withTLS: tls,
	}
}

type withTLS struct {
	withTLS bool
}

func (opt withTLS) config(builder *serverBuilder) {
	builder.withTLS = opt.withTLS
}

// WithLogger controls where Gin logs to.
func WithLogger(logger io.Writer) Option {
	return &withLogger{
		logger: logger,
	}
}

type withLogger struct {
	logger io.Writer
}

func (opt withLogger) config(builder *serverBuilder) {
	builder.logger = opt.logger
}

// WithListener makes the server accept connections on the given listener.
func WithListener(listener net.Listener) Option {
	return &withListener{
		listener: listener,
	}
}

type withListener struct {
	listener net.Listener
}

func (opt withListener) config(builder *serverBuilder) {
	builder.listener = opt.listener
}

// WithRateLimit makes the server answer 429 to more than limit requests per window.
func WithRateLimit(limit int, window time.Duration) Option {
	return &withRateLimit{
		limit:  limit,
		window: window,
	}
}

type withRateLimit struct {
	limit  int
	window time.Duration
}

func (opt withRateLimit) config(builder *serverBuilder) {
	builder.rateLimiter = newRateLimiter(opt.limit, opt.window)
}

// WithAuthLife sets the lifetime of access tokens.
func WithAuthLife(authLife time.Duration) Option {
	return &withAuthLife{
		authLife: authLife,
	}
}

type withAuthLife struct {
	authLife time.Duration
}

func (opt withAuthLife) config(builder *serverBuilder) {
	builder.authLife = opt.authLife
}

// WithRefreshLife sets the lifetime of refresh cookies.
func WithRefreshLife(refLife time.Duration) Option {
	return &withRefreshLife{
		refLife: refLife,
	}
}

type withRefreshLife struct {
	refLife time.Duration
}

func (opt withRefreshLife) config(builder *serverBuilder) {
	builder.refLife = opt.refLife
}

// WithMinAppVersion makes the server reject clients older than the given version.
func WithMinAppVersion(minAppVersion *semver.Version) Option {
	return &withMinAppVersion{
		minAppVersion: minAppVersion,
	}
}

type withMinAppVersion struct {
	minAppVersion *semver.Version
}

func (opt withMinAppVersion) config(builder *serverBuilder) {
	builder.minAppVersion = opt.minAppVersion
}
