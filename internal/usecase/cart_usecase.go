package usecase

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

// versionずれで書き込みに失敗したときの読み直し回数
const cartSaveRetryLimit = 3

// CartUsecase は /cart の業務ロジックです。
// 在庫は追加・変更の時点で検証するだけで、引き当てや減算はしない。
type CartUsecase struct {
	cartRepo    repo.CartRepository
	productRepo repo.ProductRepository
}

// DI
func NewCartUsecase(
	cartRepo repo.CartRepository,
	productRepo repo.ProductRepository,
) *CartUsecase {
	return &CartUsecase{
		cartRepo:    cartRepo,
		productRepo: productRepo,
	}
}

// 明細＋表示用の商品情報。
// price はスナップショット（最後に触った時点の価格）、current_price は今の商品価格。
type CartLineResponse struct {
	ProductID   int64          `json:"product_id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Category    model.Category `json:"category"`
	Images      []string       `json:"images"`
	Stock       int64          `json:"stock"`

	Price        int64 `json:"price"`
	CurrentPrice int64 `json:"current_price"`
	Quantity     int64 `json:"quantity"`
	Subtotal     int64 `json:"subtotal"`
}

type CartResponse struct {
	Items       []CartLineResponse `json:"items"`
	TotalItems  int64              `json:"total_items"`
	TotalAmount int64              `json:"total_amount"`
}

type AddCartInput struct {
	ProductID int64
	Quantity  int64
}

type UpdateCartItemInput struct {
	Quantity int64
}

// GetCart はカート取得。無ければ空の形を返す（読み取りでは作らない）。
func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewInvalidArgument("invalid user")
	}

	cart, err := u.cartRepo.FindByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return emptyCartResponse(), nil
	}
	if err != nil {
		return CartResponse{}, err
	}

	items, err := u.cartRepo.ListItems(ctx, cart.ID)
	if err != nil {
		return CartResponse{}, err
	}

	return u.buildCartResponse(ctx, cart, items)
}

// AddToCart はカートに追加（同一商品は数量加算、スナップショットは今の価格で上書き）。
func (u *CartUsecase) AddToCart(ctx context.Context, userID int64, in AddCartInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewInvalidArgument("invalid user")
	}
	if in.ProductID <= 0 {
		return CartResponse{}, NewInvalidArgument("invalid product_id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, NewInvalidArgument("quantity must be at least 1")
	}

	// 商品チェック（公開のみ）
	p, err := u.productRepo.FindByID(ctx, in.ProductID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, NewNotFound("product not found")
	}
	if err != nil {
		return CartResponse{}, err
	}
	if !p.IsActive {
		return CartResponse{}, NewNotFound("product not found")
	}

	for attempt := 0; attempt < cartSaveRetryLimit; attempt++ {
		// カート取得（無ければ作成）
		cart, err := u.cartRepo.GetOrCreateByUserID(ctx, userID)
		if err != nil {
			return CartResponse{}, err
		}

		items, err := u.cartRepo.ListItems(ctx, cart.ID)
		if err != nil {
			return CartResponse{}, err
		}

		// 既存明細があれば加算、無ければ追加
		merged := false
		for i := range items {
			if items[i].ProductID != p.ID {
				continue
			}
			newQty := items[i].Quantity + in.Quantity
			if p.Stock < newQty {
				return CartResponse{}, NewInsufficientStock("insufficient stock available")
			}
			items[i].Quantity = newQty
			items[i].UnitPriceSnapshot = p.Price
			merged = true
			break
		}
		if !merged {
			if p.Stock < in.Quantity {
				return CartResponse{}, NewInsufficientStock("insufficient stock available")
			}
			items = append(items, model.CartItem{
				ProductID:         p.ID,
				Quantity:          in.Quantity,
				UnitPriceSnapshot: p.Price,
			})
		}

		recomputeTotals(&cart, items)

		err = u.cartRepo.SaveSnapshot(ctx, cart, items)
		if errors.Is(err, repo.ErrConflict) {
			continue
		}
		if err != nil {
			return CartResponse{}, err
		}

		return u.buildCartResponse(ctx, cart, items)
	}

	return CartResponse{}, NewConflict("cart was modified concurrently")
}

// 数量の絶対値を設定（加算ではない）。スナップショットも今の価格に更新。
func (u *CartUsecase) UpdateCartItem(ctx context.Context, userID int64, productID int64, in UpdateCartItemInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewInvalidArgument("invalid user")
	}
	if productID <= 0 {
		return CartResponse{}, NewInvalidArgument("invalid product_id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, NewInvalidArgument("quantity must be at least 1")
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, NewNotFound("product not found")
	}
	if err != nil {
		return CartResponse{}, err
	}
	if !p.IsActive {
		return CartResponse{}, NewNotFound("product not found")
	}
	if p.Stock < in.Quantity {
		return CartResponse{}, NewInsufficientStock("insufficient stock available")
	}

	for attempt := 0; attempt < cartSaveRetryLimit; attempt++ {
		cart, err := u.cartRepo.FindByUserID(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, NewNotFound("cart not found")
		}
		if err != nil {
			return CartResponse{}, err
		}

		items, err := u.cartRepo.ListItems(ctx, cart.ID)
		if err != nil {
			return CartResponse{}, err
		}

		found := false
		for i := range items {
			if items[i].ProductID != productID {
				continue
			}
			items[i].Quantity = in.Quantity
			items[i].UnitPriceSnapshot = p.Price
			found = true
			break
		}
		if !found {
			return CartResponse{}, NewNotFound("item not found in cart")
		}

		recomputeTotals(&cart, items)

		err = u.cartRepo.SaveSnapshot(ctx, cart, items)
		if errors.Is(err, repo.ErrConflict) {
			continue
		}
		if err != nil {
			return CartResponse{}, err
		}

		return u.buildCartResponse(ctx, cart, items)
	}

	return CartResponse{}, NewConflict("cart was modified concurrently")
}

// 明細削除。カートに入っていない商品なら何もしない（エラーにしない）。
func (u *CartUsecase) RemoveFromCart(ctx context.Context, userID int64, productID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewInvalidArgument("invalid user")
	}
	if productID <= 0 {
		return CartResponse{}, NewInvalidArgument("invalid product_id")
	}

	for attempt := 0; attempt < cartSaveRetryLimit; attempt++ {
		cart, err := u.cartRepo.FindByUserID(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, NewNotFound("cart not found")
		}
		if err != nil {
			return CartResponse{}, err
		}

		items, err := u.cartRepo.ListItems(ctx, cart.ID)
		if err != nil {
			return CartResponse{}, err
		}

		kept := make([]model.CartItem, 0, len(items))
		for _, it := range items {
			if it.ProductID == productID {
				continue
			}
			kept = append(kept, it)
		}

		// 入っていなければ書き込まずにそのまま返す
		if len(kept) == len(items) {
			return u.buildCartResponse(ctx, cart, items)
		}

		recomputeTotals(&cart, kept)

		err = u.cartRepo.SaveSnapshot(ctx, cart, kept)
		if errors.Is(err, repo.ErrConflict) {
			continue
		}
		if err != nil {
			return CartResponse{}, err
		}

		return u.buildCartResponse(ctx, cart, kept)
	}

	return CartResponse{}, NewConflict("cart was modified concurrently")
}

// 明細を全削除して合計をゼロにする
func (u *CartUsecase) ClearCart(ctx context.Context, userID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewInvalidArgument("invalid user")
	}

	for attempt := 0; attempt < cartSaveRetryLimit; attempt++ {
		cart, err := u.cartRepo.FindByUserID(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, NewNotFound("cart not found")
		}
		if err != nil {
			return CartResponse{}, err
		}

		cart.TotalItems = 0
		cart.TotalAmount = 0

		err = u.cartRepo.SaveSnapshot(ctx, cart, nil)
		if errors.Is(err, repo.ErrConflict) {
			continue
		}
		if err != nil {
			return CartResponse{}, err
		}

		return emptyCartResponse(), nil
	}

	return CartResponse{}, NewConflict("cart was modified concurrently")
}

// GetCartCount は明細数量の合計（カートが無ければ0）。
func (u *CartUsecase) GetCartCount(ctx context.Context, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, NewInvalidArgument("invalid user")
	}

	cart, err := u.cartRepo.FindByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return cart.TotalItems, nil
}

// 合計は必ず明細からの再計算で持つ（直接編集しない）
func recomputeTotals(cart *model.Cart, items []model.CartItem) {
	var totalItems int64
	var totalAmount int64
	for _, it := range items {
		totalItems += it.Quantity
		totalAmount += it.Quantity * it.UnitPriceSnapshot
	}
	cart.TotalItems = totalItems
	cart.TotalAmount = totalAmount
}

func emptyCartResponse() CartResponse {
	return CartResponse{Items: []CartLineResponse{}}
}

// 明細を表示用の商品情報つきでまとめる。
// 商品レコードが消えている明細だけ表示から外す（論理削除は残す）。
func (u *CartUsecase) buildCartResponse(ctx context.Context, cart model.Cart, items []model.CartItem) (CartResponse, error) {
	respItems := make([]CartLineResponse, 0, len(items))

	for _, it := range items {
		p, err := u.productRepo.FindByID(ctx, it.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			continue
		}
		if err != nil {
			return CartResponse{}, err
		}

		respItems = append(respItems, CartLineResponse{
			ProductID:    it.ProductID,
			Name:         p.Name,
			Description:  p.Description,
			Category:     p.Category,
			Images:       p.Images,
			Stock:        p.Stock,
			Price:        it.UnitPriceSnapshot,
			CurrentPrice: p.Price,
			Quantity:     it.Quantity,
			Subtotal:     it.Quantity * it.UnitPriceSnapshot,
		})
	}

	return CartResponse{
		Items:       respItems,
		TotalItems:  cart.TotalItems,
		TotalAmount: cart.TotalAmount,
	}, nil
}
