package repository

import (
	"app/internal/domain/model"
	repo "app/internal/repository"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

// ユーザーのカートを取得（読み取りでは作らない）
func (r *CartGormRepository) FindByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	var cart model.Cart

	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&cart).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Cart{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

// ユーザーのカートを取得し、無ければ作成
func (r *CartGormRepository) GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	var cart model.Cart

	//トランザクションで探す→無ければ作る
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		findErr := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&cart).Error

		if findErr == nil {
			return nil
		}

		if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return findErr
		}

		// 無ければ作る
		now := time.Now()
		newCart := model.Cart{
			UserID:    userID,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := tx.Create(&newCart).Error; err != nil {
			// user_idのuniqueに負けたら読み直す
			retryErr := tx.
				Where("user_id = ?", userID).
				First(&cart).Error
			if retryErr == nil {
				return nil
			}
			return err
		}

		cart = newCart
		return nil
	})

	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

// カート明細を一覧取得
func (r *CartGormRepository) ListItems(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	var items []model.CartItem

	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("id asc").
		Find(&items).Error; err != nil {
		return []model.CartItem{}, err
	}

	return items, nil
}

// カート全体を1回の書き込みとして反映する。
// versionが読み取り時と一致するときだけ明細を置き換え、versionを+1。
// ずれていたらErrConflict（呼び出し側が読み直してやり直す）。
func (r *CartGormRepository) SaveSnapshot(ctx context.Context, cart model.Cart, items []model.CartItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Cart{}).
			Where("id = ? AND version = ?", cart.ID, cart.Version).
			Updates(map[string]interface{}{
				"total_items":  cart.TotalItems,
				"total_amount": cart.TotalAmount,
				"version":      gorm.Expr("version + 1"),
				"updated_at":   time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			//カート自体が無いのか、versionずれなのかを区別する
			var count int64
			if err := tx.Model(&model.Cart{}).Where("id = ?", cart.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return repo.ErrNotFound
			}
			return repo.ErrConflict
		}

		//明細は全置換
		if err := tx.Where("cart_id = ?", cart.ID).Delete(&model.CartItem{}).Error; err != nil {
			return err
		}

		if len(items) == 0 {
			return nil
		}

		now := time.Now()
		rows := make([]model.CartItem, 0, len(items))
		for _, it := range items {
			rows = append(rows, model.CartItem{
				CartID:            cart.ID,
				ProductID:         it.ProductID,
				Quantity:          it.Quantity,
				UnitPriceSnapshot: it.UnitPriceSnapshot,
				CreatedAt:         now,
				UpdatedAt:         now,
			})
		}

		if err := tx.Create(&rows).Error; err != nil {
			return err
		}

		return nil
	})
}
