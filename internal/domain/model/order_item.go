package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderItem struct {
	ID      int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID int64 `gorm:"not null;index" json:"order_id"`

	//医薬品が後で削除されてもnullで残す
	DrugID *int64 `gorm:"index" json:"drug_id"`

	//購入時点のスナップショット。以後変更しない
	ProductName string          `gorm:"type:varchar(255);not null" json:"product_name"`
	Quantity    int64           `gorm:"not null" json:"quantity"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
