package model

import (
	"time"

	"github.com/lib/pq"
)

// 商品カテゴリ（固定の列挙）
type Category string

const (
	CategoryElectronics Category = "electronics"
	CategoryClothing    Category = "clothing"
	CategoryBooks       Category = "books"
	CategoryHome        Category = "home"
	CategorySports      Category = "sports"
	CategoryBeauty      Category = "beauty"
	CategoryToys        Category = "toys"
	CategoryFood        Category = "food"
	CategoryOther       Category = "other"
)

// 有効なカテゴリかどうか
func (c Category) Valid() bool {
	switch c {
	case CategoryElectronics, CategoryClothing, CategoryBooks, CategoryHome,
		CategorySports, CategoryBeauty, CategoryToys, CategoryFood, CategoryOther:
		return true
	}
	return false
}

// 価格は最小通貨単位のint64で持つ。
// is_active=false が論理削除（レコードは残す）。
type Product struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string         `gorm:"type:varchar(255);not null" json:"name"`
	Description string         `gorm:"type:text;not null" json:"description"`
	Price       int64          `gorm:"not null" json:"price"`
	Category    Category       `gorm:"type:varchar(30);not null;index" json:"category"`
	Brand       string         `gorm:"type:varchar(255)" json:"brand,omitempty"`
	Stock       int64          `gorm:"not null;default:0" json:"stock"`
	Images      pq.StringArray `gorm:"type:text[]" json:"images"`
	Features    pq.StringArray `gorm:"type:text[]" json:"features"`

	//評価の集計値（averageは0〜5）
	RatingAverage float64 `gorm:"not null;default:0" json:"rating_average"`
	RatingCount   int64   `gorm:"not null;default:0" json:"rating_count"`

	IsActive  bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
