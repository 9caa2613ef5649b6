package repository

import (
	"context"

	"app/internal/domain/model"
)

// 医薬品カタログの永続化（取得）だけを約束。
type DrugRepository interface {
	FindByID(ctx context.Context, id int64) (model.Drug, error)
}
