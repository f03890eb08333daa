package events

import (
	"context"
	"log/slog"
	"time"
)

type UserRegistered struct {
	UserID string    `json:"userId"`
	Email  string    `json:"email"`
	At     time.Time `json:"at"`
}

type OTPIssued struct {
	Email   string    `json:"email"`
	Purpose string    `json:"purpose"`
	Expires time.Time `json:"expires"`
	At      time.Time `json:"at"`
}

type PasswordReset struct {
	UserID string    `json:"userId"`
	At     time.Time `json:"at"`
}

type ProfileUpdated struct {
	UserID string    `json:"userId"`
	Avatar string    `json:"avatar"`
	At     time.Time `json:"at"`
}

// Recorder receives domain events after the change that produced them is
// committed.
type Recorder interface {
	Record(ctx context.Context, event any)
}

// LogRecorder writes events to a slog logger as structured records.
type LogRecorder struct {
	Logger *slog.Logger
}

func (l LogRecorder) Record(ctx context.Context, event any) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "domain event", "type", eventType(event), "event", event)
}

func eventType(event any) string {
	switch event.(type) {
	case UserRegistered, *UserRegistered:
		return "user.registered"
	case OTPIssued, *OTPIssued:
		return "otp.issued"
	case PasswordReset, *PasswordReset:
		return "user.password_reset"
	case ProfileUpdated, *ProfileUpdated:
		return "user.profile_updated"
	default:
		return "unknown"
	}
}
