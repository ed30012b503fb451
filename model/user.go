package model

import "time"

// User represents a registered account (author or admin).
type User struct {
	ID           string `gorm:"primaryKey;size:36" json:"id"`
	Name         string `gorm:"size:100;not null;index" json:"name"`
	NameFold     string `gorm:"size:100;not null;default:'';index" json:"-"`
	Login        string `gorm:"size:255;not null;uniqueIndex" json:"emailOrPhone"`
	PasswordHash string `gorm:"size:255;not null" json:"-"`
	Role         Role   `gorm:"type:varchar(16);not null;index" json:"role"`
	// 只保存重置令牌的 sha256，明文只出现在重置链接里
	ResetTokenHash      *string    `gorm:"size:64;index" json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}
