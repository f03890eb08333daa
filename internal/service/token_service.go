package service

import (
	"anichat/internal/domain"
	"anichat/internal/dto"
	"context"
)

type TokenService interface {
	Issue(ctx context.Context, user *domain.User) (*dto.TokenResponse, error)
	Verify(ctx context.Context, token string) (domain.UserID, error)
}
