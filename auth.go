package ledger

import (
	"context"

	"github.com/go-resty/resty/v2"
)

// AuthStatus asks the server whether a password is currently required.
func (m *Manager) AuthStatus(ctx context.Context) (AuthStatus, error) {
	var res AuthStatus

	if _, err := m.auth(ctx).SetResult(&res).Get("/api/auth/status"); err != nil {
		return AuthStatus{}, err
	}

	return res, nil
}

// AuthLogin exchanges the password for an access token; the server also sets the refresh cookie.
func (m *Manager) AuthLogin(ctx context.Context, password string) (Auth, error) {
	var res Auth

	if _, err := m.auth(ctx).SetBody(AuthLoginReq{Password: password}).SetResult(&res).Post("/api/auth/login"); err != nil {
		return Auth{}, err
	}

	return res, nil
}

// AuthRefresh obtains a new access token using the refresh cookie held in the jar.
// It does not deduplicate concurrent calls; go through the manager's RefreshCoordinator for that.
func (m *Manager) AuthRefresh(ctx context.Context) (Auth, error) {
	var res Auth

	if _, err := m.auth(ctx).SetResult(&res).Post("/api/auth/refresh"); err != nil {
		return Auth{}, err
	}

	return res, nil
}

// AuthLogout revokes the refresh cookie. The access token is attached when given.
func (m *Manager) AuthLogout(ctx context.Context, token string) error {
	req := m.auth(ctx)

	if token != "" {
		req.SetAuthToken(token)
	}

	if _, err := req.Post("/api/auth/logout"); err != nil {
		return err
	}

	return nil
}

// SetPassword turns on (or changes) password protection on the server.
// Once protection is on, this is a protected call.
func (m *Manager) SetPassword(ctx context.Context, password string) error {
	return m.do(ctx, "set password", func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(SetPasswordReq{Password: password}).Post("/api/auth/password")
	})
}

// RemovePassword turns off password protection on the server and revokes every refresh session.
func (m *Manager) RemovePassword(ctx context.Context) error {
	return m.do(ctx, "remove password", func(r *resty.Request) (*resty.Response, error) {
		return r.Delete("/api/auth/password")
	})
}
