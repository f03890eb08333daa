package store

import (
	"context"
	"time"

	"anichat/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PendingStore struct {
	db  *gorm.DB
	now func() time.Time
}

func (s *Store) Pending() *PendingStore { return &PendingStore{db: s.DB, now: s.now} }

// Upsert stores rec as the only pending record for rec.Email, replacing every
// column of any previous one, and sets it to expire ttl from now.
func (p *PendingStore) Upsert(ctx context.Context, rec *domain.PendingRegistration, ttl time.Duration) error {
	now := p.now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.ExpiresAt = now.Add(ttl)

	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"purpose", "otp", "full_name", "password_hash", "avatar", "expires_at", "created_at", "updated_at",
		}),
	}).Create(rec).Error
}

// Get returns the live record for email. Expired rows are reported as
// ErrRecordNotFound even if the sweeper has not removed them yet.
func (p *PendingStore) Get(ctx context.Context, email string) (*domain.PendingRegistration, error) {
	var rec domain.PendingRegistration
	if err := p.db.WithContext(ctx).
		First(&rec, "email = ? AND expires_at > ?", email, p.now()).Error; err != nil {
		return nil, mapErr(err)
	}
	return &rec, nil
}

func (p *PendingStore) Delete(ctx context.Context, email string) error {
	return p.db.WithContext(ctx).Delete(&domain.PendingRegistration{}, "email = ?", email).Error
}

// Consume deletes the record only while it still matches purpose and code and
// has not expired. Of several concurrent callers at most one gets true.
func (p *PendingStore) Consume(ctx context.Context, email string, purpose domain.PendingPurpose, code string) (bool, error) {
	res := p.db.WithContext(ctx).
		Where("email = ? AND purpose = ? AND otp = ? AND expires_at > ?", email, purpose, code, p.now()).
		Delete(&domain.PendingRegistration{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeleteExpired physically removes every expired record.
func (p *PendingStore) DeleteExpired(ctx context.Context) (int64, error) {
	res := p.db.WithContext(ctx).
		Where("expires_at <= ?", p.now()).
		Delete(&domain.PendingRegistration{})
	return res.RowsAffected, res.Error
}
