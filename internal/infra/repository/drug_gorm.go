package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type DrugGormRepository struct {
	db *gorm.DB
}

func NewDrugGormRepository(db *gorm.DB) *DrugGormRepository {
	return &DrugGormRepository{db: db}
}

func (r *DrugGormRepository) FindByID(ctx context.Context, id int64) (model.Drug, error) {
	var d model.Drug
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Drug{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Drug{}, err
	}
	return d, nil
}
