package dto

import (
	"time"

	"anichat/internal/domain"
)

type SendMessageRequest struct {
	Text string `json:"text"`
	// Image is a base64 data URL ("data:image/png;base64,...") or bare base64.
	Image string `json:"image,omitempty"`
}

type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func NewMessage(m *domain.Message) Message {
	return Message{
		ID:         m.ID.String(),
		SenderID:   m.SenderID.String(),
		ReceiverID: m.ReceiverID.String(),
		Text:       m.Text,
		Image:      m.ImageURL,
		CreatedAt:  m.CreatedAt,
	}
}
