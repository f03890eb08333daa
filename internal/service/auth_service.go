package service

import (
	"anichat/internal/domain"
	"anichat/internal/dto"
	"context"
)

type AuthService interface {
	Signup(ctx context.Context, r dto.SignupRequest, avatar *dto.Upload) (*dto.AckResponse, error)
	VerifyOTP(ctx context.Context, r dto.VerifyOTPRequest) (*dto.SessionResponse, error)
	Login(ctx context.Context, r dto.LoginRequest, ip, ua string) (*dto.SessionResponse, error)
	Logout(ctx context.Context, token string) error
	ForgotPassword(ctx context.Context, r dto.ForgotPasswordRequest) (*dto.AckResponse, error)
	ResetPassword(ctx context.Context, r dto.ResetPasswordRequest) (*dto.AckResponse, error)
	UpdateProfile(ctx context.Context, userID domain.UserID, avatar *dto.Upload) (*dto.PublicUser, error)
	CheckAuth(ctx context.Context, token string) (*dto.PublicUser, error)
}
