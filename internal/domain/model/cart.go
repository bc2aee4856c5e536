package model

import "time"

// 1ユーザーにつきカートは1つ。
// total_items / total_amount は明細からの再計算値で、直接編集しない。
// version は楽観ロック用（更新のたびに+1）。
type Cart struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      int64     `gorm:"not null;uniqueIndex" json:"user_id"`
	TotalItems  int64     `gorm:"not null;default:0" json:"total_items"`
	TotalAmount int64     `gorm:"not null;default:0" json:"total_amount"`
	Version     int64     `gorm:"not null;default:0" json:"-"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
