package service

import "context"

type EmailService interface {
	SendSignupOTP(ctx context.Context, to string, otp string) error
	SendPasswordResetOTP(ctx context.Context, to string, otp string) error
}
