package usecase_test

import (
	"context"
	"testing"

	"app/internal/domain/model"
	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =====================
// ProductRepository スタブ（mapで持つだけ）
// =====================

type cartProductRepoStub struct {
	products map[int64]model.Product
}

func newCartProductRepoStub(products ...model.Product) *cartProductRepoStub {
	m := make(map[int64]model.Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return &cartProductRepoStub{products: m}
}

func (s *cartProductRepoStub) ListActive(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	return nil, 0, nil
}

func (s *cartProductRepoStub) FindByID(ctx context.Context, id int64) (model.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (s *cartProductRepoStub) ListCategories(ctx context.Context) ([]model.Category, error) {
	return nil, nil
}

func (s *cartProductRepoStub) Create(ctx context.Context, p model.Product) (model.Product, error) {
	return p, nil
}

func (s *cartProductRepoStub) Update(ctx context.Context, p model.Product) error {
	return nil
}

func (s *cartProductRepoStub) SoftDelete(ctx context.Context, id int64) error {
	return nil
}

var _ repo.ProductRepository = (*cartProductRepoStub)(nil)

// =====================
// CartRepository フェイク（インメモリ・version条件つき書き込み）
// =====================

type cartRepoFake struct {
	cart  *model.Cart
	items []model.CartItem

	saveCalls int

	// 次のSaveSnapshotをこの回数だけ強制的にversionずれで失敗させる
	conflictsLeft int
}

func (f *cartRepoFake) FindByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	if f.cart == nil || f.cart.UserID != userID {
		return model.Cart{}, repo.ErrNotFound
	}
	return *f.cart, nil
}

func (f *cartRepoFake) GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	if f.cart == nil {
		f.cart = &model.Cart{ID: 1, UserID: userID}
	}
	return *f.cart, nil
}

func (f *cartRepoFake) ListItems(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	out := make([]model.CartItem, len(f.items))
	copy(out, f.items)
	return out, nil
}

func (f *cartRepoFake) SaveSnapshot(ctx context.Context, cart model.Cart, items []model.CartItem) error {
	f.saveCalls++

	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		// 別の書き込みが先に入った状況を再現する
		f.cart.Version++
		return repo.ErrConflict
	}

	if f.cart == nil || f.cart.ID != cart.ID {
		return repo.ErrNotFound
	}
	if f.cart.Version != cart.Version {
		return repo.ErrConflict
	}

	f.cart.TotalItems = cart.TotalItems
	f.cart.TotalAmount = cart.TotalAmount
	f.cart.Version++

	f.items = make([]model.CartItem, len(items))
	for i, it := range items {
		it.CartID = cart.ID
		it.ID = int64(i + 1)
		f.items[i] = it
	}
	return nil
}

var _ repo.CartRepository = (*cartRepoFake)(nil)

// =====================
// helper
// =====================

func seedCart(f *cartRepoFake, userID int64, items ...model.CartItem) {
	var totalItems, totalAmount int64
	for i := range items {
		items[i].CartID = 1
		items[i].ID = int64(i + 1)
		totalItems += items[i].Quantity
		totalAmount += items[i].Quantity * items[i].UnitPriceSnapshot
	}
	f.cart = &model.Cart{
		ID:          1,
		UserID:      userID,
		TotalItems:  totalItems,
		TotalAmount: totalAmount,
		Version:     1,
	}
	f.items = items
}

func assertDomainErrorKind(t *testing.T, err error, kind usecase.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	de, ok := usecase.AsDomainError(err)
	require.True(t, ok, "expected DomainError, got %v", err)
	assert.Equal(t, kind, de.Kind)
}

// =====================
// GetCart
// =====================

func TestCartUsecase_GetCart_ReturnsEmptyWhenNoCart(t *testing.T) {
	cartRepo := &cartRepoFake{}
	productRepo := newCartProductRepoStub()
	uc := usecase.NewCartUsecase(cartRepo, productRepo)

	resp, err := uc.GetCart(context.Background(), 10)

	require.NoError(t, err)
	assert.Empty(t, resp.Items)
	assert.Equal(t, int64(0), resp.TotalItems)
	assert.Equal(t, int64(0), resp.TotalAmount)

	// 読み取りではカートを作らない
	assert.Nil(t, cartRepo.cart)
}

func TestCartUsecase_GetCart_KeepsPriceSnapshot(t *testing.T) {
	cartRepo := &cartRepoFake{}
	// スナップショットは2000のまま、商品の現在価格は2500に変わっている
	productRepo := newCartProductRepoStub(model.Product{
		ID: 100, Name: "keyboard", Price: 2500, Stock: 10, IsActive: true,
	})
	seedCart(cartRepo, 10, model.CartItem{ProductID: 100, Quantity: 3, UnitPriceSnapshot: 2000})

	uc := usecase.NewCartUsecase(cartRepo, productRepo)
	resp, err := uc.GetCart(context.Background(), 10)

	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, int64(2000), resp.Items[0].Price)
	assert.Equal(t, int64(2500), resp.Items[0].CurrentPrice)
	assert.Equal(t, int64(6000), resp.Items[0].Subtotal)
	assert.Equal(t, int64(3), resp.TotalItems)
	assert.Equal(t, int64(6000), resp.TotalAmount)
}

// =====================
// AddToCart
// =====================

func TestCartUsecase_AddToCart_NewItem(t *testing.T) {
	cartRepo := &cartRepoFake{}
	productRepo := newCartProductRepoStub(model.Product{
		ID: 100, Name: "keyboard", Price: 2000, Stock: 10, IsActive: true,
	})
	uc := usecase.NewCartUsecase(cartRepo, productRepo)

	resp, err := uc.AddToCart(context.Background(), 10, usecase.AddCartInput{ProductID: 100, Quantity: 3})

	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, int64(3), resp.Items[0].Quantity)
	assert.Equal(t, int64(2000), resp.Items[0].Price)
	assert.Equal(t, int64(3), resp.TotalItems)
	assert.Equal(t, int64(6000), resp.TotalAmount)
}

func TestCartUsecase_AddToCart_MergesSameProduct(t *testing.T) {
	cartRepo := &cartRepoFake{}
	productRepo := newCartProductRepoStub(model.Product{
		ID: 100, Name: "keyboard", Price: 2000, Stock: 10, IsActive: true,
	})
	uc := usecase.NewCartUsecase(cartRepo, productRepo)

	_, err := uc.AddToCart(context.Background(), 10, usecase.AddCartInput{ProductID: 100, Quantity: 3})
	require.NoError(t, err)

	resp, err := uc.AddToCart(context.Background(), 10, usecase.AddCartInput{ProductID: 100, Quantity: 4})
	require.NoError(t, err)

	// 明細は増えず数量だけ加算される
	require.Len(t, resp.Items, 1)
	assert.Equal(t, int64(7), resp.Items[0].Quantity)
	assert.Equal(t, int64(7), resp.TotalItems)
	assert.Equal(t, int64(14000), resp.TotalAmount)
}

func TestCartUsecase_AddToCart_RefreshesSnapshotOnMerge(t *testing.T) {
	cartRepo := &cartRepoFake{}
	productRepo := newCartProductRepoStub(model.Product{
		ID: 100, Name: "keyboard", Price: 2000, Stock: 10, IsActive: true,
	})
	uc := usecase.NewCartUsecase(cartRepo, productRepo)

	_, err := uc.AddToCart(context.Background(), 10, usecase.AddCartInput{ProductID: 100, Quantity: 3})
	require.NoError(t, err)

	// 値下げ後に同じ商品を追加すると、行全体が今の価格になる
	productRepo.products[100] = model.Product{
		ID: 100, Name: "keyboard", Price: 1800, Stock: 10, IsActive: true,
	}

	resp, err := uc.AddToCart(context.Background(), 10, usecase.AddCartInput{ProductID: 100, Quantity: 1})
	require.NoError(t, err)

	require.Len(t, resp.Items, 1)
	assert.Equal(t, int64(1800), resp.Items[0].Price)
	assert.Equal(t, int64(4), resp.Items[0].Quantity)
	assert.Equal(t, int64(7200), resp.TotalAmount)
}

func TestCartUsecase_AddToCart_InsufficientStock(t *testing.T) {
	cartRepo := &cartRepoFake{}
	productRepo := newCartProductRepoStub(model.Product{
		ID: 100, Name: "keyboard", Price: 2000, Stock: 3, IsActive: true,
	})
	uc := usecase.NewCartUsecase(cartRepo, productRepo)

	_, err := uc.AddToCart(context.Background(), 10, usecase.AddCartInput{ProductID: 100, Quantity: 5})

	assertDomainErrorKind(t, err, usecase.KindInsufficientStock)
	assert.Equal(t, 0, cartRepo.saveCalls)
}

func TestCartUsecase_AddToCart_MergeExceedsStock(t *testing.T) {
	cartRepo := &cartRepoFake{}
	productRepo := newCartProductRepoStub(model.Product{
		ID: 100, Name: "keyboard", Price: 2000, Stock: 5, IsActive: true,
	})
	uc := usecase.NewCartUsecase(cartRepo, productRepo)

	_, err := uc.AddToCart(context.Background(), 10, usecase.AddCartInput{ProductID: 100, Quantity: 3})
	require.NoError(t, err)

	// 3 + 3 = 6 > 在庫5
	_, err = uc.AddToCart(context.Background(), 10, usecase.AddCartInput{ProductID: 100, Quantity: 3})
	assertDomainErrorKind(t, err, usecase.KindInsufficientStock)

	// カートは追加前のまま
	resp, err := uc.GetCart(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, int64(3), resp.Items[0].Quantity)
}

func TestCartUsecase_AddToCart_InactiveProduct(t *testing.T) {
	cartRepo := &cartRepoFake{}
	productRepo := newCartProductRepoStub(model.Product{
		ID: 100, Name: "keyboard", Price: 2000, Stock: 10, IsActive: false,
	})
	uc := usecase.NewCartUsecase(cartRepo, productRepo)

	_, err := uc.AddToCart(context.Background(), 10, usecase.AddCartInput{ProductID: 100, Quantity: 1})

	assertDomainErrorKind(t, err, usecase.KindNotFound)
}

func TestCartUsecase_AddToCart_InvalidQuantity(t *testing.T) {
	cartRepo := &cartRepoFake{}
	productRepo := newCartProductRepoStub()
	uc := usecase.NewCartUsecase(cartRepo, productRepo)

	_, err := uc.AddToCart(context.Background(), 10, usecase.AddCartInput{ProductID: 100, Quantity: 0})

	assertDomainErrorKind(t, err, usecase.KindInvalidArgument)
}

func TestCartUsecase_AddToCart_RetriesOnVersionConflict(t *testing.T) {
	cartRepo := &cartRepoFake{}
	productRepo := newCartProductRepoStub(model.Product{
		ID: 100, Name: "keyboard", Price: 2000, Stock: 10, IsActive: true,
	})
	seedCart(cartRepo, 10)
	cartRepo.conflictsLeft = 1

	uc := usecase.NewCartUsecase(cartRepo, productRepo)
	resp, err := uc.AddToCart(context.Background(), 10, usecase.AddCartInput{ProductID: 100, Quantity: 2})

	require.NoError(t, err)
	assert.Equal(t, 2, cartRepo.saveCalls)
	assert.Equal(t, int64(2), resp.TotalItems)
}

func TestCartUsecase_AddToCart_GivesUpAfterRetryLimit(t *testing.T) {
	cartRepo := &cartRepoFake{}
	productRepo := newCartProductRepoStub(model.Product{
		ID: 100, Name: "keyboard", Price: 2000, Stock: 10, IsActive: true,
	})
	seedCart(cartRepo, 10)
	cartRepo.conflictsLeft = 3

	uc := usecase.NewCartUsecase(cartRepo, productRepo)
	_, err := uc.AddToCart(context.Background(), 10, usecase.AddCartInput{ProductID: 100, Quantity: 2})

	assertDomainErrorKind(t, err, usecase.KindConflict)
	assert.Equal(t, 3, cartRepo.saveCalls)
}

// =====================
// UpdateCartItem
// =====================

func TestCartUsecase_UpdateCartItem_SetsAbsoluteQuantity(t *testing.T) {
	cartRepo := &cartRepoFake{}
	productRepo := newCartProductRepoStub(model.Product{
		ID: 100, Name: "keyboard", Price: 2000, Stock: 10, IsActive: true,
	})
	seedCart(cartRepo, 10, model.CartItem{ProductID: 100, Quantity: 7, UnitPriceSnapshot: 2000})

	uc := usecase.NewCartUsecase(cartRepo, productRepo)
	resp, err := uc.UpdateCartItem(context.Background(), 10, 100, usecase.UpdateCartItemInput{Quantity: 2})

	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	// 加算ではなく置き換え
	assert.Equal(t, int64(2), resp.Items[0].Quantity)
	assert.Equal(t, int64(2), resp.TotalItems)
	assert.Equal(t, int64(4000), resp.TotalAmount)
}

func TestCartUsecase_UpdateCartItem_InvalidQuantity(t *testing.T) {
	cartRepo := &cartRepoFake{}
	productRepo := newCartProductRepoStub(model.Product{
		ID: 100, Name: "keyboard", Price: 2000, Stock: 10, IsActive: true,
	})
	seedCart(cartRepo, 10, model.CartItem{ProductID: 100, Quantity: 3, UnitPriceSnapshot: 2000})

	uc := usecase.NewCartUsecase(cartRepo, productRepo)
	_, err := uc.UpdateCartItem(context.Background(), 10, 100, usecase.UpdateCartItemInput{Quantity: 0})

	assertDomainErrorKind(t, err, usecase.KindInvalidArgument)
	assert.Equal(t, 0, cartRepo.saveCalls)
}

func TestCartUsecase_UpdateCartItem_ExceedsStock(t *testing.T) {
	cartRepo := &cartRepoFake{}
	productRepo := newCartProductRepoStub(model.Product{
		ID: 100, Name: "keyboard", Price: 2000, Stock: 4, IsActive: true,
	})
	seedCart(cartRepo, 10, model.CartItem{ProductID: 100, Quantity: 3, UnitPriceSnapshot: 2000})

	uc := usecase.NewCartUsecase(cartRepo, productRepo)
	_, err := uc.UpdateCartItem(context.Background(), 10, 100, usecase.UpdateCartItemInput{Quantity: 5})

	assertDomainErrorKind(t, err, usecase.KindInsufficientStock)
}

func TestCartUsecase_UpdateCartItem_ItemNotInCart(t *testing.T) {
	cartRepo := &cartRepoFake{}
	productRepo := newCartProductRepoStub(
		model.Product{ID: 100, Name: "keyboard", Price: 2000, Stock: 10, IsActive: true},
		model.Product{ID: 200, Name: "mouse", Price: 1500, Stock: 10, IsActive: true},
	)
	seedCart(cartRepo, 10, model.CartItem{ProductID: 100, Quantity: 3, UnitPriceSnapshot: 2000})

	uc := usecase.NewCartUsecase(cartRepo, productRepo)
	_, err := uc.UpdateCartItem(context.Background(), 10, 200, usecase.UpdateCartItemInput{Quantity: 1})

	assertDomainErrorKind(t, err, usecase.KindNotFound)
}

// =====================
// RemoveFromCart
// =====================

func TestCartUsecase_RemoveFromCart_RecomputesTotals(t *testing.T) {
	cartRepo := &cartRepoFake{}
	productRepo := newCartProductRepoStub(
		model.Product{ID: 100, Name: "keyboard", Price: 2000, Stock: 10, IsActive: true},
		model.Product{ID: 200, Name: "mouse", Price: 1500, Stock: 10, IsActive: true},
	)
	seedCart(cartRepo, 10,
		model.CartItem{ProductID: 100, Quantity: 2, UnitPriceSnapshot: 2000},
		model.CartItem{ProductID: 200, Quantity: 1, UnitPriceSnapshot: 1500},
	)

	uc := usecase.NewCartUsecase(cartRepo, productRepo)
	resp, err := uc.RemoveFromCart(context.Background(), 10, 100)

	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, int64(200), resp.Items[0].ProductID)
	assert.Equal(t, int64(1), resp.TotalItems)
	assert.Equal(t, int64(1500), resp.TotalAmount)
}

func TestCartUsecase_RemoveFromCart_NoopWhenAbsent(t *testing.T) {
	cartRepo := &cartRepoFake{}
	productRepo := newCartProductRepoStub(model.Product{
		ID: 100, Name: "keyboard", Price: 2000, Stock: 10, IsActive: true,
	})
	seedCart(cartRepo, 10, model.CartItem{ProductID: 100, Quantity: 3, UnitPriceSnapshot: 2000})

	uc := usecase.NewCartUsecase(cartRepo, productRepo)
	resp, err := uc.RemoveFromCart(context.Background(), 10, 999)

	// エラーにせず現状を返し、書き込みもしない
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, int64(3), resp.TotalItems)
	assert.Equal(t, 0, cartRepo.saveCalls)
}

func TestCartUsecase_RemoveFromCart_NoCart(t *testing.T) {
	cartRepo := &cartRepoFake{}
	productRepo := newCartProductRepoStub()
	uc := usecase.NewCartUsecase(cartRepo, productRepo)

	_, err := uc.RemoveFromCart(context.Background(), 10, 100)

	assertDomainErrorKind(t, err, usecase.KindNotFound)
}

// =====================
// ClearCart / GetCartCount
// =====================

func TestCartUsecase_ClearCart_ThenGetCartIsEmpty(t *testing.T) {
	cartRepo := &cartRepoFake{}
	productRepo := newCartProductRepoStub(model.Product{
		ID: 100, Name: "keyboard", Price: 2000, Stock: 10, IsActive: true,
	})
	seedCart(cartRepo, 10, model.CartItem{ProductID: 100, Quantity: 3, UnitPriceSnapshot: 2000})

	uc := usecase.NewCartUsecase(cartRepo, productRepo)

	resp, err := uc.ClearCart(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
	assert.Equal(t, int64(0), resp.TotalItems)
	assert.Equal(t, int64(0), resp.TotalAmount)

	got, err := uc.GetCart(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, got.Items)
	assert.Equal(t, int64(0), got.TotalAmount)
}

func TestCartUsecase_GetCartCount(t *testing.T) {
	cartRepo := &cartRepoFake{}
	productRepo := newCartProductRepoStub()
	uc := usecase.NewCartUsecase(cartRepo, productRepo)

	count, err := uc.GetCartCount(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	seedCart(cartRepo, 10,
		model.CartItem{ProductID: 100, Quantity: 3, UnitPriceSnapshot: 2000},
		model.CartItem{ProductID: 200, Quantity: 4, UnitPriceSnapshot: 1500},
	)

	count, err = uc.GetCartCount(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}

// =====================
// 一連の操作（追加→加算→変更→削除）
// =====================

func TestCartUsecase_FullScenario(t *testing.T) {
	cartRepo := &cartRepoFake{}
	productRepo := newCartProductRepoStub(model.Product{
		ID: 100, Name: "keyboard", Price: 2000, Stock: 10, IsActive: true,
	})
	uc := usecase.NewCartUsecase(cartRepo, productRepo)
	ctx := context.Background()

	resp, err := uc.AddToCart(ctx, 10, usecase.AddCartInput{ProductID: 100, Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.TotalItems)
	assert.Equal(t, int64(6000), resp.TotalAmount)

	resp, err = uc.AddToCart(ctx, 10, usecase.AddCartInput{ProductID: 100, Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, int64(7), resp.TotalItems)
	assert.Equal(t, int64(14000), resp.TotalAmount)

	resp, err = uc.UpdateCartItem(ctx, 10, 100, usecase.UpdateCartItemInput{Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.TotalItems)
	assert.Equal(t, int64(4000), resp.TotalAmount)

	resp, err = uc.RemoveFromCart(ctx, 10, 100)
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
	assert.Equal(t, int64(0), resp.TotalItems)
	assert.Equal(t, int64(0), resp.TotalAmount)
}
