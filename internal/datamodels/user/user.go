package user

import (
	"context"
	"time"
)

// User 用户模型
type User struct {
	ID        int64     `gorm:"primaryKey"`
	Username  string    `gorm:"size:64;uniqueIndex;not null"`
	Email     string    `gorm:"size:128;index"`
	Phone     string    `gorm:"size:20;index"` // 手机号，254 开头的国际格式
	Password  string    `gorm:"size:128;not null" json:"-"`
	Salt      string    `gorm:"size:32;not null" json:"-"`
	IsAdmin   bool      `gorm:"default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository 用户仓储接口
type Repository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
	ListAll(ctx context.Context) ([]*User, error)
}
