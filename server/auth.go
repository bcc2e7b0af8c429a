package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hearthbook/go-ledger-api"
	"github.com/hearthbook/go-ledger-api/server/backend"
)

func (s *Server) handleGetHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	}
}

func (s *Server) handleGetAuthStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, ledger.AuthStatus{
			PasswordRequired: s.b.PasswordRequired(),
			Username:         ledger.AdminUsername,
		})
	}
}

func (s *Server) handlePostAuthLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ledger.AuthLoginReq

		if err := c.BindJSON(&req); err != nil {
			return
		}

		acc, ref, err := s.b.NewAuth(req.Password)
		if err != nil {
			status := http.StatusUnauthorized

			if errors.Is(err, backend.ErrProtectionDisabled) {
				status = http.StatusBadRequest
			}

			c.AbortWithStatusJSON(status, ledger.Error{
				Code:    backend.ErrorCode(err),
				Message: err.Error(),
			})

			return
		}

		s.setRefreshCookie(c, ref, s.b.RefreshLife())

		c.JSON(http.StatusOK, ledger.Auth{
			AccessToken: acc,
		})
	}
}

func (s *Server) handlePostAuthRefresh() gin.HandlerFunc {
	return func(c *gin.Context) {
		ref, err := c.Cookie(refreshCookie)
		if err != nil || ref == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ledger.Error{
				Code:    ledger.NoRefreshToken,
				Message: "Refresh token required",
			})

			return
		}

		acc, err := s.b.NewAuthRef(ref)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ledger.Error{
				Code:    backend.ErrorCode(err),
				Message: err.Error(),
			})

			return
		}

		c.JSON(http.StatusOK, ledger.Auth{
			AccessToken: acc,
		})
	}
}

func (s *Server) handlePostAuthLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ref, err := c.Cookie(refreshCookie); err == nil {
			s.b.DeleteAuthRef(ref)
		}

		s.setRefreshCookie(c, "", -time.Second)

		c.JSON(http.StatusOK, gin.H{})
	}
}

func (s *Server) handlePostAuthPassword() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ledger.SetPasswordReq

		if err := c.BindJSON(&req); err != nil {
			return
		}

		if err := s.b.SetPassword(req.Password); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, ledger.Error{
				Code:    ledger.InvalidValue,
				Message: err.Error(),
			})

			return
		}

		c.JSON(http.StatusOK, gin.H{})
	}
}

func (s *Server) handleDeleteAuthPassword() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.b.RemovePassword()

		c.JSON(http.StatusOK, gin.H{})
	}
}

// setRefreshCookie sets (or, with a negative life, clears) the HTTP-only refresh cookie.
// It is scoped to the auth routes so it never travels with ordinary API calls.
func (s *Server) setRefreshCookie(c *gin.Context, ref string, life time.Duration) {
	maxAge := int(life.Seconds())

	if life < 0 {
		maxAge = -1
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookie, ref, maxAge, "/api/auth", "", c.Request.TLS != nil, true)
}
