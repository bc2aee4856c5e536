package repository

import (
	"context"
	"errors"
	"strings"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type ProductGormRepository struct {
	db *gorm.DB
}

// DI
func NewProductGormRepository(db *gorm.DB) *ProductGormRepository {
	return &ProductGormRepository{db: db}
}

// ソート対象のカラム（ここに無いものはcreated_at扱い）
var sortColumns = map[string]string{
	"created_at":     "created_at",
	"price":          "price",
	"name":           "name",
	"rating_average": "rating_average",
}

// 公開商品のみを、絞り込み/ソート/ページング付きで返す。
func (r *ProductGormRepository) ListActive(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	tx := r.db.WithContext(ctx).Model(&model.Product{})

	// 公開（is_active=true）のものだけ
	tx = tx.Where("is_active = ?", true)

	// カテゴリは完全一致
	if q.Category != "" {
		tx = tx.Where("category = ?", q.Category)
	}

	// ブランドは部分一致（大文字小文字を無視）
	if strings.TrimSpace(q.Brand) != "" {
		tx = tx.Where("brand ILIKE ?", "%"+strings.TrimSpace(q.Brand)+"%")
	}

	// フリーワードはname/descriptionのどちらか
	if strings.TrimSpace(q.Search) != "" {
		like := "%" + strings.TrimSpace(q.Search) + "%"
		tx = tx.Where("name ILIKE ? OR description ILIKE ?", like, like)
	}

	//価格帯（両端を含む）
	if q.MinPrice != nil {
		tx = tx.Where("price >= ?", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		tx = tx.Where("price <= ?", *q.MaxPrice)
	}

	//在庫ありのみ
	if q.InStock {
		tx = tx.Where("stock > 0")
	}

	//total（件数）
	if err := tx.Count(&total).Error; err != nil {
		return []model.Product{}, 0, err
	}

	//sort（カラム名はホワイトリスト経由でしか使わない）
	col, ok := sortColumns[q.SortBy]
	if !ok {
		col = "created_at"
	}
	dir := "desc"
	if q.SortOrder == "asc" {
		dir = "asc"
	}
	tx = tx.Order(col + " " + dir)
	if dir == "desc" {
		tx = tx.Order("id desc")
	} else {
		tx = tx.Order("id asc")
	}

	offset := (q.Page - 1) * q.Limit
	if err := tx.Offset(offset).Limit(q.Limit).Find(&products).Error; err != nil {
		return []model.Product{}, 0, err
	}

	return products, total, nil
}

// IDで商品を取得（論理削除済みも返す。公開判定は呼び出し側）
func (r *ProductGormRepository) FindByID(ctx context.Context, id int64) (model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Product{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Product{}, err
	}
	return p, nil
}

// 公開商品に存在するカテゴリの一覧
func (r *ProductGormRepository) ListCategories(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category

	err := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("is_active = ?", true).
		Distinct("category").
		Order("category asc").
		Pluck("category", &categories).Error
	if err != nil {
		return []model.Category{}, err
	}

	return categories, nil
}

// 商品の作成
func (r *ProductGormRepository) Create(ctx context.Context, p model.Product) (model.Product, error) {
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		return model.Product{}, err
	}
	return p, nil
}

// 商品の更新（usecase側でマージ済みの全フィールドを反映）
func (r *ProductGormRepository) Update(ctx context.Context, p model.Product) error {
	res := r.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
		"name":           p.Name,
		"description":    p.Description,
		"price":          p.Price,
		"category":       p.Category,
		"brand":          p.Brand,
		"stock":          p.Stock,
		"images":         p.Images,
		"features":       p.Features,
		"rating_average": p.RatingAverage,
		"rating_count":   p.RatingCount,
		"is_active":      p.IsActive,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 論理削除（is_active=false にするだけでレコードは残す）
func (r *ProductGormRepository) SoftDelete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", id).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
