package repository

import (
	"context"

	"app/internal/domain/model"
)

// カート本体と明細をまとめて扱う。
// 書き込みはSaveSnapshotの1か所だけ（明細全置換＋versionの条件付き更新）。
type CartRepository interface {
	// 無ければErrNotFound（読み取りでは作らない）
	FindByUserID(ctx context.Context, userID int64) (model.Cart, error)

	// 無ければ作る（最初の追加時にだけ使う）
	GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error)

	ListItems(ctx context.Context, cartID int64) ([]model.CartItem, error)

	// cart.Versionが読み取り時の値と一致するときだけ反映し、versionを+1する。
	// ずれていたらErrConflict。
	SaveSnapshot(ctx context.Context, cart model.Cart, items []model.CartItem) error
}
