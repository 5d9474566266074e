package domain

// ============================================================
// Admin
// ============================================================

// AdminLoginRequest is the body of POST /v1/admin/token.
type AdminLoginRequest struct {
	Password string `json:"password"`
}

// AdminToken is a signed bearer token for the admin endpoints.
type AdminToken struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int    `json:"expiresIn"`
}

// StatusUpdateRequest is an administrative charge status override.
type StatusUpdateRequest struct {
	Status string `json:"status"`
}
