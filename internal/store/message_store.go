package store

import (
	"context"
	"time"

	"anichat/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageStore struct {
	db  *gorm.DB
	now func() time.Time
}

func (s *Store) Messages() *MessageStore { return &MessageStore{db: s.DB, now: s.now} }

func (m *MessageStore) Create(ctx context.Context, msg *domain.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = m.now()
	}
	return m.db.WithContext(ctx).Create(msg).Error
}

// Between returns the messages exchanged by a and b in either direction,
// oldest first.
func (m *MessageStore) Between(ctx context.Context, a, b uuid.UUID) ([]domain.Message, error) {
	var msgs []domain.Message
	if err := m.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Order("created_at asc").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}
