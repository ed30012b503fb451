package model

import "time"

// Collection is a named group of tracks curated by admins.
type Collection struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"size:191;not null;uniqueIndex" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CoverRef    string    `gorm:"size:512" json:"-"`
	CreatorID   string    `gorm:"size:36;index" json:"creatorId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Models 需要迁移的全部表
func Models() []interface{} {
	return []interface{}{&User{}, &Track{}, &Collection{}}
}
