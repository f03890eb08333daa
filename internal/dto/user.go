package dto

import (
	"time"

	"anichat/internal/domain"
)

// PublicUser is the client-facing view of a user. It never includes the
// password hash.
type PublicUser struct {
	ID        string    `json:"id"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func NewPublicUser(u *domain.User) PublicUser {
	return PublicUser{
		ID:        u.ID.String(),
		FullName:  u.FullName,
		Email:     u.Email,
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
