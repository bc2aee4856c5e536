package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

type ProductUsecase struct {
	productRepo   repo.ProductRepository
	inventoryRepo repo.InventoryRepository
	auditRepo     repo.AuditLogRepository
}

// DI
func NewProductUsecase(
	productRepo repo.ProductRepository,
	inventoryRepo repo.InventoryRepository,
	auditRepo repo.AuditLogRepository,
) *ProductUsecase {
	return &ProductUsecase{
		productRepo:   productRepo,
		inventoryRepo: inventoryRepo,
		auditRepo:     auditRepo,
	}
}

// GET /products の入力DTO
type ListProductsInput struct {
	Page      int
	Limit     int
	Category  string
	MinPrice  *int64
	MaxPrice  *int64
	Brand     string
	Search    string
	InStock   bool
	SortBy    string // created_at / price / name / rating
	SortOrder string // asc / desc
}

// ページングのまとまり
type Pagination struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalItems  int64 `json:"total_items"`
	HasNextPage bool  `json:"has_next_page"`
	HasPrevPage bool  `json:"has_prev_page"`
}

type ProductListOutput struct {
	Items      []model.Product `json:"items"`
	Pagination Pagination      `json:"pagination"`
}

// SortByの入力名→カラム名
var sortFields = map[string]string{
	"created_at": "created_at",
	"price":      "price",
	"name":       "name",
	"rating":     "rating_average",
}

func (u *ProductUsecase) ListProducts(ctx context.Context, in ListProductsInput) (ProductListOutput, error) {
	if in.Page < 1 {
		return ProductListOutput{}, NewInvalidArgument("invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return ProductListOutput{}, NewInvalidArgument("invalid limit")
	}
	if len(in.Search) > 100 {
		return ProductListOutput{}, NewInvalidArgument("search too long")
	}
	if in.Category != "" && !model.Category(in.Category).Valid() {
		return ProductListOutput{}, NewInvalidArgument("invalid category")
	}
	if in.MinPrice != nil && *in.MinPrice < 0 {
		return ProductListOutput{}, NewInvalidArgument("min_price must be >= 0")
	}
	if in.MaxPrice != nil && *in.MaxPrice < 0 {
		return ProductListOutput{}, NewInvalidArgument("max_price must be >= 0")
	}
	if in.MinPrice != nil && in.MaxPrice != nil && *in.MinPrice > *in.MaxPrice {
		return ProductListOutput{}, NewInvalidArgument("min_price must be <= max_price")
	}

	sortBy := "created_at"
	if in.SortBy != "" {
		col, ok := sortFields[in.SortBy]
		if !ok {
			return ProductListOutput{}, NewInvalidArgument("invalid sort_by")
		}
		sortBy = col
	}

	switch in.SortOrder {
	case "", "asc", "desc":
	default:
		return ProductListOutput{}, NewInvalidArgument("invalid sort_order")
	}

	items, total, err := u.productRepo.ListActive(ctx, repo.ProductListQuery{
		Page:      in.Page,
		Limit:     in.Limit,
		Category:  in.Category,
		MinPrice:  in.MinPrice,
		MaxPrice:  in.MaxPrice,
		Brand:     strings.TrimSpace(in.Brand),
		Search:    strings.TrimSpace(in.Search),
		InStock:   in.InStock,
		SortBy:    sortBy,
		SortOrder: in.SortOrder,
	})
	if err != nil {
		return ProductListOutput{}, err
	}

	totalPages := int((total + int64(in.Limit) - 1) / int64(in.Limit))

	return ProductListOutput{
		Items: items,
		Pagination: Pagination{
			CurrentPage: in.Page,
			TotalPages:  totalPages,
			TotalItems:  total,
			HasNextPage: in.Page < totalPages,
			HasPrevPage: in.Page > 1,
		},
	}, nil
}

// 公開中の商品だけ返す（論理削除済みは404扱い）
func (u *ProductUsecase) GetProduct(ctx context.Context, productID int64) (model.Product, error) {
	if productID <= 0 {
		return model.Product{}, NewInvalidArgument("invalid product id")
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, NewNotFound("product not found")
	}
	if err != nil {
		return model.Product{}, err
	}

	if !p.IsActive {
		return model.Product{}, NewNotFound("product not found")
	}
	return p, nil
}

// 公開商品に存在するカテゴリの一覧
func (u *ProductUsecase) ListCategories(ctx context.Context) ([]model.Category, error) {
	return u.productRepo.ListCategories(ctx)
}

type AdminCreateProductInput struct {
	Name        string
	Description string
	Price       int64
	Category    string
	Brand       string
	Stock       int64
	Images      []string
	Features    []string
	IsActive    bool
}

func (u *ProductUsecase) AdminCreateProduct(ctx context.Context, adminUserID int64, in AdminCreateProductInput) (model.Product, error) {
	if adminUserID <= 0 {
		return model.Product{}, NewInvalidArgument("invalid admin user")
	}
	if strings.TrimSpace(in.Name) == "" {
		return model.Product{}, NewInvalidArgument("name required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return model.Product{}, NewInvalidArgument("description required")
	}
	if in.Price < 0 {
		return model.Product{}, NewInvalidArgument("price must be >= 0")
	}
	if !model.Category(in.Category).Valid() {
		return model.Product{}, NewInvalidArgument("invalid category")
	}
	if in.Stock < 0 {
		return model.Product{}, NewInvalidArgument("stock must be >= 0")
	}

	now := time.Now()
	p, err := u.productRepo.Create(ctx, model.Product{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		Category:    model.Category(in.Category),
		Brand:       strings.TrimSpace(in.Brand),
		Stock:       in.Stock,
		Images:      in.Images,
		Features:    in.Features,
		IsActive:    in.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return model.Product{}, err
	}

	u.writeAudit(ctx, adminUserID, model.AuditActionCreateProduct, p.ID, nil, &p)
	return p, nil
}

// 部分更新の入力（nilのフィールドは変更しない）
type AdminUpdateProductInput struct {
	Name        *string
	Description *string
	Price       *int64
	Category    *string
	Brand       *string
	Stock       *int64
	Images      []string
	Features    []string
	IsActive    *bool
}

func (u *ProductUsecase) AdminUpdateProduct(ctx context.Context, adminUserID int64, productID int64, in AdminUpdateProductInput) (model.Product, error) {
	if adminUserID <= 0 {
		return model.Product{}, NewInvalidArgument("invalid admin user")
	}
	if productID <= 0 {
		return model.Product{}, NewInvalidArgument("invalid product id")
	}

	before, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, NewNotFound("product not found")
	}
	if err != nil {
		return model.Product{}, err
	}

	//渡されたフィールドだけマージ
	p := before
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Category != nil {
		p.Category = model.Category(*in.Category)
	}
	if in.Brand != nil {
		p.Brand = strings.TrimSpace(*in.Brand)
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.Images != nil {
		p.Images = in.Images
	}
	if in.Features != nil {
		p.Features = in.Features
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}

	//マージ後の値を検証
	if p.Name == "" {
		return model.Product{}, NewInvalidArgument("name required")
	}
	if p.Description == "" {
		return model.Product{}, NewInvalidArgument("description required")
	}
	if p.Price < 0 {
		return model.Product{}, NewInvalidArgument("price must be >= 0")
	}
	if !p.Category.Valid() {
		return model.Product{}, NewInvalidArgument("invalid category")
	}
	if p.Stock < 0 {
		return model.Product{}, NewInvalidArgument("stock must be >= 0")
	}

	p.UpdatedAt = time.Now()
	if err := u.productRepo.Update(ctx, p); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Product{}, NewNotFound("product not found")
		}
		return model.Product{}, err
	}

	u.writeAudit(ctx, adminUserID, model.AuditActionUpdateProduct, p.ID, &before, &p)
	return p, nil
}

// 論理削除（is_active=falseに落とすだけ）
func (u *ProductUsecase) AdminDeleteProduct(ctx context.Context, adminUserID int64, productID int64) error {
	if adminUserID <= 0 {
		return NewInvalidArgument("invalid admin user")
	}
	if productID <= 0 {
		return NewInvalidArgument("invalid product id")
	}

	before, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return NewNotFound("product not found")
	}
	if err != nil {
		return err
	}

	if err := u.productRepo.SoftDelete(ctx, productID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NewNotFound("product not found")
		}
		return err
	}

	after := before
	after.IsActive = false
	u.writeAudit(ctx, adminUserID, model.AuditActionDeleteProduct, productID, &before, &after)
	return nil
}

// 在庫の現在値を更新し、調整履歴と監査ログを残す
func (u *ProductUsecase) AdminSetStock(ctx context.Context, adminUserID int64, productID int64, newStock int64, reason string) error {
	if adminUserID <= 0 {
		return NewInvalidArgument("invalid admin user")
	}
	if productID <= 0 {
		return NewInvalidArgument("invalid product id")
	}
	if newStock < 0 {
		return NewInvalidArgument("stock must be >= 0")
	}
	if strings.TrimSpace(reason) == "" {
		return NewInvalidArgument("reason required")
	}

	//変更前の在庫（before）
	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return NewNotFound("product not found")
	}
	if err != nil {
		return err
	}

	//在庫の現在値を更新
	if err := u.inventoryRepo.SetStock(ctx, productID, newStock); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NewNotFound("product not found")
		}
		return err
	}

	//履歴を作成（差分）
	adj := model.InventoryAdjustment{
		ProductID:   productID,
		AdminUserID: adminUserID,
		Delta:       newStock - p.Stock,
		Reason:      strings.TrimSpace(reason),
		CreatedAt:   time.Now(),
	}
	if err := u.inventoryRepo.CreateAdjustment(ctx, adj); err != nil {
		return err
	}

	after := p
	after.Stock = newStock
	u.writeAudit(ctx, adminUserID, model.AuditActionUpdateStock, productID, &p, &after)
	return nil
}

// 監査ログを作成（失敗しても操作自体は成功扱い）
func (u *ProductUsecase) writeAudit(ctx context.Context, actorID int64, action model.AuditAction, resourceID int64, before *model.Product, after *model.Product) {
	toJSON := func(p *model.Product) string {
		if p == nil {
			return ""
		}
		b, err := json.Marshal(p)
		if err != nil {
			return ""
		}
		return string(b)
	}

	_ = u.auditRepo.Create(ctx, model.AuditLog{
		ActorUserID:  actorID,
		Action:       action,
		ResourceType: model.AuditResourceProduct,
		ResourceID:   resourceID,
		BeforeJSON:   toJSON(before),
		AfterJSON:    toJSON(after),
		CreatedAt:    time.Now(),
	})
}
