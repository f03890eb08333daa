package store

import (
	"context"
	"time"

	"anichat/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserStore struct {
	db  *gorm.DB
	now func() time.Time
}

func (s *Store) Users() *UserStore { return &UserStore{db: s.DB, now: s.now} }

// Create inserts usr. The unique index on email is what rejects a second
// account for the same address; that case returns ErrDuplicateEmail.
func (u *UserStore) Create(ctx context.Context, usr *domain.User) error {
	if usr.ID == uuid.Nil {
		usr.ID = uuid.New()
	}
	now := u.now()
	if usr.CreatedAt.IsZero() {
		usr.CreatedAt = now
	}
	usr.UpdatedAt = now
	if usr.Avatar == "" {
		usr.Avatar = domain.DefaultAvatarURL
	}
	return mapErr(u.db.WithContext(ctx).Create(usr).Error)
}

func (u *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user domain.User
	if err := u.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

func (u *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	if err := u.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

// Update applies patch and returns the stored row.
func (u *UserStore) Update(ctx context.Context, id uuid.UUID, patch domain.UserPatch) (*domain.User, error) {
	updates := map[string]any{"updated_at": u.now()}
	if patch.PasswordHash != nil {
		updates["password_hash"] = *patch.PasswordHash
	}
	if patch.Avatar != nil {
		updates["avatar"] = *patch.Avatar
	}
	res := u.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrRecordNotFound
	}
	return u.GetByID(ctx, id)
}

// ListExcept returns every user but id, ordered by name.
func (u *UserStore) ListExcept(ctx context.Context, id uuid.UUID) ([]domain.User, error) {
	var users []domain.User
	if err := u.db.WithContext(ctx).
		Where("id <> ?", id).
		Order("full_name asc").
		Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
