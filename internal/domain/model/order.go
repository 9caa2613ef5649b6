package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type Order struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//ゲスト注文はnull
	UserID *int64 `gorm:"index" json:"user_id"`

	//チェックアウト時点の連絡先（アカウントとは独立）
	CustomerName    string `gorm:"type:varchar(255);not null" json:"customer_name"`
	CustomerEmail   string `gorm:"type:varchar(255);not null" json:"customer_email"`
	CustomerPhone   string `gorm:"type:varchar(50);not null" json:"customer_phone"`
	DeliveryAddress string `gorm:"type:text;not null" json:"delivery_address"`

	//金額はゲートウェイ確定値（クライアント合計は信用しない）
	TotalAmount       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_amount"`
	PaystackReference string          `gorm:"type:varchar(100);not null;uniqueIndex" json:"paystack_reference"`
	Status            OrderStatus     `gorm:"type:varchar(50);not null;index" json:"status"`
	CreatedAt         time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`

	//明細は注文と一緒に削除される
	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"-"`
}
