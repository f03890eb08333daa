package dto

import "time"

type TokenResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresIn   int64     `json:"expiresIn"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// SessionResponse is returned by the flows that authenticate a user.
type SessionResponse struct {
	Message string        `json:"message"`
	Token   TokenResponse `json:"token"`
	User    PublicUser    `json:"user"`
}
