package server

import (
	"bytes"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/gin-gonic/gin"
	"github.com/hearthbook/go-ledger-api"
	"github.com/hearthbook/go-ledger-api/server/backend"
)

const refreshCookie = "refreshToken"

func initRouter(s *Server) {
	s.r.Use(
		s.requireValidAppVersion(),
	)

	if api := s.r.Group("/api"); api != nil {
		api.GET("/health", s.handleGetHealth())

		// These routes are never protected; the refresh and logout routes rely on the cookie.
		if auth := api.Group("/auth"); auth != nil {
			auth.GET("/status", s.handleGetAuthStatus())
			auth.POST("/login", s.handlePostAuthLogin())
			auth.POST("/refresh", s.handlePostAuthRefresh())
			auth.POST("/logout", s.handlePostAuthLogout())
		}

		// These routes require auth, but only while a password is set.
		if api := api.Group("", s.requireAuth()); api != nil {
			if auth := api.Group("/auth"); auth != nil {
				auth.POST("/password", s.handlePostAuthPassword())
				auth.DELETE("/password", s.handleDeleteAuthPassword())
			}

			if expenses := api.Group("/expenses"); expenses != nil {
				expenses.GET("", s.handleGetExpenses())
				expenses.POST("", s.handlePostExpenses())
				expenses.DELETE("/:expenseID", s.handleDeleteExpense())
			}
		}
	}
}

func (s *Server) requireValidAppVersion() gin.HandlerFunc {
	return func(c *gin.Context) {
		appVersion := c.Request.Header.Get("x-ledger-appversion")

		if appVersion == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, ledger.Error{
				Code:    ledger.AppVersionMissing,
				Message: "Missing x-ledger-appversion header",
			})
		} else if ok := s.validateAppVersion(appVersion); !ok {
			c.AbortWithStatusJSON(http.StatusBadRequest, ledger.Error{
				Code:    ledger.AppVersionBad,
				Message: "This version of the app is no longer supported, please update to continue using the app",
			})
		}
	}
}

func (s *Server) logCalls() gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := io.ReadAll(c.Request.Body)
		if err != nil {
			panic(err)
		} else {
			c.Request.Body = io.NopCloser(bytes.NewReader(req))
		}

		res, err := newBodyWriter(c.Writer)
		if err != nil {
			panic(err)
		} else {
			c.Writer = res
		}

		c.Next()

		s.callWatchersLock.RLock()
		defer s.callWatchersLock.RUnlock()

		for _, call := range s.callWatchers {
			if call.isWatching(c.Request.URL.Path) {
				call.publish(Call{
					URL:    c.Request.URL,
					Method: c.Request.Method,
					Status: c.Writer.Status(),

					RequestHeader: c.Request.Header,
					RequestBody:   req,

					ResponseHeader: c.Writer.Header(),
					ResponseBody:   res.bytes(),
				})
			}
		}
	}
}

func (s *Server) handleOffline() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.isOffline() {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
	}
}

func (s *Server) handleRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.rateLimit == nil {
			return
		}

		if wait, ok := s.rateLimit.admit(time.Now()); !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
	}
}

// requireAuth lets everything through while no password is set.
// Otherwise it tells a missing token, an invalid token and an expired token apart.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.b.PasswordRequired() {
			return
		}

		auth := c.Request.Header.Get("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ledger.Error{
				Code:    ledger.NoToken,
				Message: "Access token required",
			})
			return
		}

		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ledger.Error{
				Code:    ledger.InvalidToken,
				Message: "Malformed authorization header",
			})
			return
		}

		if err := s.b.VerifyAuth(token); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ledger.Error{
				Code:    backend.ErrorCode(err),
				Message: err.Error(),
			})
			return
		}
	}
}

func (s *Server) validateAppVersion(appVersion string) bool {
	if s.minAppVersion == nil {
		return true
	}

	split := strings.Split(appVersion, "_")

	if len(split) != 2 {
		return false
	}

	version, err := semver.NewVersion(split[1])
	if err != nil {
		return false
	}

	if version.LessThan(s.minAppVersion) {
		return false
	}

	return true
}

type bodyWriter struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func newBodyWriter(w gin.ResponseWriter) (*bodyWriter, error) {
	if w == nil {
		return nil, errors.New("response writer is nil")
	}

	return &bodyWriter{
		ResponseWriter: w,

		buf: &bytes.Buffer{},
	}, nil
}

func (w bodyWriter) Write(b []byte) (int, error) {
	if n, err := w.buf.Write(b); err != nil {
		return n, err
	}

	return w.ResponseWriter.Write(b)
}

func (w bodyWriter) bytes() []byte {
	return w.buf.Bytes()
}
