package domain

import "time"

type Message struct {
	ID         MessageID `gorm:"type:uuid;primaryKey" db:"id" json:"id"`
	SenderID   UserID    `gorm:"type:uuid;not null;index:idx_messages_pair,priority:1" db:"sender_id" json:"senderId"`
	ReceiverID UserID    `gorm:"type:uuid;not null;index:idx_messages_pair,priority:2" db:"receiver_id" json:"receiverId"`
	Text       string    `gorm:"type:text" db:"text" json:"text,omitempty"`
	ImageURL   string    `gorm:"type:text" db:"image_url" json:"image,omitempty"`
	CreatedAt  time.Time `gorm:"not null;index" db:"created_at" json:"createdAt"`
}

func (Message) TableName() string { return "messages" }
