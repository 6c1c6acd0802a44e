package dto

import "time"

// SessionResponse describes the reviewer token used for the request
type SessionResponse struct {
	Reviewer  string    `json:"reviewer"`
	TokenID   string    `json:"token_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
