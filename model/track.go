package model

import (
	"strings"
	"time"
)

// TrackStatus 审核状态
type TrackStatus string

const (
	StatusPending  TrackStatus = "pending"
	StatusApproved TrackStatus = "approved"
	StatusRejected TrackStatus = "rejected"
)

func (s TrackStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// InitialStatus 管理员上传直接通过，其余进入待审核
func InitialStatus(creator Role) TrackStatus {
	if creator == RoleAdmin {
		return StatusApproved
	}
	return StatusPending
}

// Fold 搜索用的大小写折叠。sqlite 的 LOWER 只处理 ASCII，折叠统一在写入时完成。
func Fold(s string) string {
	return strings.ToLower(s)
}

// Track represents an uploaded audio track.
// CollectionID 是曲目归属合集的唯一来源，合集本身不保存成员列表。
type Track struct {
	ID           string      `gorm:"primaryKey;size:36" json:"id"`
	Title        string      `gorm:"size:255;not null" json:"title"`
	TitleFold    string      `gorm:"size:255;not null;default:'';index" json:"-"`
	AuthorID     string      `gorm:"size:36;not null;index" json:"authorId"`
	CollectionID *string     `gorm:"size:36;index" json:"collectionId"`
	Status       TrackStatus `gorm:"size:16;not null;index;default:pending" json:"status"`
	FileRef      string      `gorm:"size:512;not null" json:"-"`
	CreatedAt    time.Time   `gorm:"index" json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// Visible 判断某个身份能否看到这首曲目
func (t *Track) Visible(userID string, role Role) bool {
	if t.Status == StatusApproved || role == RoleAdmin {
		return true
	}
	return userID != "" && userID == t.AuthorID
}
