package model

import "time"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

type User struct {
	ID           int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"column:password_hash;not null" json:"-"`
	Role         Role   `gorm:"type:varchar(20);not null;default:'USER'" json:"role"`

	//token_versionが上がると発行済みアクセストークンは無効になる
	TokenVersion int `gorm:"not null;default:0" json:"-"`

	IsActive    bool       `gorm:"not null;default:true" json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
