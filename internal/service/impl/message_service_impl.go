package impl

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"anichat/internal/domain"
	"anichat/internal/dto"
	"anichat/internal/observability/metrics"
	"anichat/internal/observability/middleware"
	"anichat/internal/service"
	"anichat/internal/store"

	"github.com/google/uuid"
)

const maxMessageLen = 4000

type MessageServiceImpl struct {
	Users    contactStore
	Messages messageStore
	Images   service.ImageStore
}

type contactStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	ListExcept(ctx context.Context, id uuid.UUID) ([]domain.User, error)
}

type messageStore interface {
	Create(ctx context.Context, msg *domain.Message) error
	Between(ctx context.Context, a, b uuid.UUID) ([]domain.Message, error)
}

func NewMessageServiceImpl(st *store.Store, images service.ImageStore) *MessageServiceImpl {
	return &MessageServiceImpl{
		Users:    st.Users(),
		Messages: st.Messages(),
		Images:   images,
	}
}

func (m *MessageServiceImpl) Contacts(ctx context.Context, me domain.UserID) ([]dto.PublicUser, error) {
	users, err := m.Users.ListExcept(ctx, me)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	out := make([]dto.PublicUser, 0, len(users))
	for i := range users {
		out = append(out, dto.NewPublicUser(&users[i]))
	}
	return out, nil
}

func (m *MessageServiceImpl) Conversation(ctx context.Context, me, other domain.UserID) ([]dto.Message, error) {
	if other == uuid.Nil {
		return nil, domain.Invalid("Invalid user id")
	}
	msgs, err := m.Messages.Between(ctx, me, other)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	out := make([]dto.Message, 0, len(msgs))
	for i := range msgs {
		out = append(out, dto.NewMessage(&msgs[i]))
	}
	return out, nil
}

func (m *MessageServiceImpl) Send(ctx context.Context, me, to domain.UserID, r dto.SendMessageRequest) (_ *dto.Message, err error) {
	defer func() { metrics.MessagesSentTotal.WithLabelValues(metrics.Result(err)).Inc() }()

	r.Text = strings.TrimSpace(r.Text)
	r.Image = strings.TrimSpace(r.Image)
	switch {
	case to == uuid.Nil:
		return nil, domain.Invalid("Invalid user id")
	case to == me:
		return nil, domain.Invalid("You cannot message yourself")
	case r.Text == "" && r.Image == "":
		return nil, domain.Invalid("Message must contain text or an image")
	case runeLen(r.Text) > maxMessageLen:
		return nil, domain.Invalid("Message is too long")
	}

	switch _, err := m.Users.GetByID(ctx, to); {
	case errors.Is(err, store.ErrRecordNotFound):
		return nil, domain.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("send message: load receiver: %w", err)
	}

	var imageURL string
	if r.Image != "" {
		up, err := decodeDataURL(r.Image)
		if err != nil {
			return nil, err
		}
		if err := validateImage(up); err != nil {
			return nil, err
		}
		if imageURL, err = uploadImage(ctx, m.Images, up, domain.MessageImageUpload); err != nil {
			return nil, err
		}
	}

	msg := &domain.Message{SenderID: me, ReceiverID: to, Text: r.Text, ImageURL: imageURL}
	if err := m.Messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	slog.Debug("message stored", append([]any{"message_id", msg.ID.String(), "sender_id", me.String()}, middleware.LogAttrs(ctx)...)...)
	out := dto.NewMessage(msg)
	return &out, nil
}

// decodeDataURL accepts "data:<type>;base64,<payload>" or a bare base64
// payload.
func decodeDataURL(s string) (*dto.Upload, error) {
	payload := s
	var declared string
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		meta, data, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(meta, ";base64") {
			return nil, domain.Invalid("Image must be base64 encoded")
		}
		declared = strings.TrimSuffix(meta, ";base64")
		payload = data
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		if raw, err = base64.RawStdEncoding.DecodeString(payload); err != nil {
			return nil, domain.Invalid("Image must be base64 encoded")
		}
	}
	return &dto.Upload{ContentType: declared, Data: raw}, nil
}
