package ledger

// AdminUsername is the single account the ledger knows about.
const AdminUsername = "admin"

type AuthStatus struct {
	PasswordRequired bool   `json:"passwordRequired"`
	Username         string `json:"username"`
}

type AuthLoginReq struct {
	Password string `json:"password"`
}

type Auth struct {
	AccessToken string `json:"accessToken"`
}

type SetPasswordReq struct {
	Password string `json:"password"`
}
