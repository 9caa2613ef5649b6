package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// 同一参照の同時書き込みは一意制約で検出する（usecase側で既存行に収束させる）
var ErrDuplicateReference = errors.New("duplicate paystack reference")

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	Create(ctx context.Context, order model.Order) (int64, error)
	UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error

	//検索（同じ参照なら同じ注文を返す）
	FindByReference(ctx context.Context, reference string) (model.Order, bool, error)

	//新しい順
	ListByUserID(ctx context.Context, userID int64) ([]model.Order, error)
	ListAll(ctx context.Context) ([]model.Order, error)
}
