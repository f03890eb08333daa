package service

import (
	"context"

	"anichat/internal/domain"
	"anichat/internal/dto"
)

type MessageService interface {
	Contacts(ctx context.Context, me domain.UserID) ([]dto.PublicUser, error)
	Conversation(ctx context.Context, me, other domain.UserID) ([]dto.Message, error)
	Send(ctx context.Context, me, to domain.UserID, r dto.SendMessageRequest) (*dto.Message, error)
}
