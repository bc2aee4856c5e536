package repository

import (
	"app/internal/domain/model"
	"context"
)

// 在庫の現在値更新と調整履歴の保存を約束。
type InventoryRepository interface {
	SetStock(ctx context.Context, productID int64, newStock int64) error
	CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error
}
