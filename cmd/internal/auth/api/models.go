package authapi

import "time"

type setupRequest struct {
	APIKey string `json:"apiKey"`
}

type setupStatusResponse struct {
	Authenticated bool `json:"authenticated"`
}

type promptResponse struct {
	Authenticated    bool      `json:"authenticated"`
	PrincipalID      int64     `json:"principal_id"`
	SessionExpiresAt time.Time `json:"session_expires_at"`
}

type apiKeyResponse struct {
	APIKey string `json:"apiKey"`
}

type meResponse struct {
	PrincipalID      int64     `json:"principal_id"`
	SessionExpiresAt time.Time `json:"session_expires_at"`
}
