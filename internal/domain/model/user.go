package model

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// アカウントは認証サブシステムの持ち物。このコアは参照のみ
type User struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	FullName  string `gorm:"type:varchar(255);not null"`
	Email     string `gorm:"type:varchar(255);uniqueIndex;not null"`
	Phone     string `gorm:"type:varchar(20)"`
	Role      Role   `gorm:"type:varchar(20);not null;default:'user'"`
	CreatedAt time.Time
}
