package domain

import "time"

// DefaultAvatarURL is assigned to accounts created without an avatar upload.
const DefaultAvatarURL = "https://iconarchive.com/download/i107673/Flat-User-Interface/User-Avatar-2.ico"

type User struct {
	ID           UserID    `gorm:"type:uuid;primaryKey" db:"id" json:"id"`
	Email        string    `gorm:"type:text;not null;uniqueIndex:ux_users_email" db:"email" json:"email"`
	FullName     string    `gorm:"type:text;not null" db:"full_name" json:"fullName"`
	PasswordHash string    `gorm:"type:text;not null" db:"password_hash" json:"-"`
	Avatar       string    `gorm:"type:text;not null" db:"avatar" json:"avatar"`
	CreatedAt    time.Time `gorm:"not null" db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"not null" db:"updated_at" json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// UserPatch lists the mutable user fields. Nil fields are left untouched.
type UserPatch struct {
	PasswordHash *string
	Avatar       *string
}

func (p UserPatch) Empty() bool { return p.PasswordHash == nil && p.Avatar == nil }
