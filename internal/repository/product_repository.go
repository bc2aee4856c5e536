package repository

import (
	"app/internal/domain/model"
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// 楽観ロックの版ずれ（読み直してやり直す）
var ErrConflict = errors.New("conflict")

// 一覧検索の条件
type ProductListQuery struct {
	Page      int
	Limit     int
	Category  string
	MinPrice  *int64
	MaxPrice  *int64
	Brand     string
	Search    string
	InStock   bool
	SortBy    string // created_at / price / name / rating_average
	SortOrder string // asc / desc
}

// 商品の永続化（保存・取得）だけを約束。
// 一覧・取得は呼び出し側でis_activeを気にしない（ListActiveは公開分のみ返す）。
type ProductRepository interface {
	ListActive(ctx context.Context, q ProductListQuery) ([]model.Product, int64, error)
	FindByID(ctx context.Context, id int64) (model.Product, error)
	ListCategories(ctx context.Context) ([]model.Category, error)

	Create(ctx context.Context, p model.Product) (model.Product, error)
	Update(ctx context.Context, p model.Product) error
	SoftDelete(ctx context.Context, id int64) error
}
