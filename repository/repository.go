package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"Romaly/model"

	"github.com/go-sql-driver/mysql"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateUser 登录名已被占用
	ErrDuplicateUser = errors.New("user with this login already exists")
	// ErrDuplicateCollectionName 合集名已存在（区分大小写）
	ErrDuplicateCollectionName = errors.New("collection with this name already exists")
)

// TrackFilter 曲目查询条件，零值字段不参与过滤
type TrackFilter struct {
	AuthorID     string
	CollectionID string
	Statuses     []model.TrackStatus
	// Query 不区分大小写，匹配标题或作者名
	Query string
}

// TrackRepository defines the interface for track data operations.
// 所有 Get 方法找不到记录时返回 nil, nil。
type TrackRepository interface {
	Create(ctx context.Context, t *model.Track) error
	GetByID(ctx context.Context, id string) (*model.Track, error)
	// List 按创建时间倒序，limit <= 0 表示不分页
	List(ctx context.Context, f TrackFilter, offset, limit int) ([]*model.Track, int64, error)
	FindByAuthor(ctx context.Context, authorID string) ([]*model.Track, error)
	UpdateTitle(ctx context.Context, id, title string) (bool, error)
	UpdateStatus(ctx context.Context, id string, status model.TrackStatus) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteByAuthor(ctx context.Context, authorID string) (int64, error)
	// AssignCollection 仅当曲目当前不在该合集时才更新，返回是否发生了变更
	AssignCollection(ctx context.Context, trackID, collectionID string) (bool, error)
	// ClearCollection 仅当曲目当前属于该合集时才清空
	ClearCollection(ctx context.Context, trackID, collectionID string) (bool, error)
}

// CollectionUpdate nil 字段保持不变
type CollectionUpdate struct {
	Name        *string
	Description *string
	CoverRef    *string
}

func (u CollectionUpdate) Empty() bool {
	return u.Name == nil && u.Description == nil && u.CoverRef == nil
}

// CollectionRepository defines the interface for collection data operations.
type CollectionRepository interface {
	Create(ctx context.Context, c *model.Collection) error
	GetByID(ctx context.Context, id string) (*model.Collection, error)
	GetByIDs(ctx context.Context, ids []string) ([]*model.Collection, error)
	FindByName(ctx context.Context, name string) (*model.Collection, error)
	// List 按名称升序
	List(ctx context.Context, offset, limit int) ([]*model.Collection, int64, error)
	Update(ctx context.Context, id string, u CollectionUpdate) (bool, error)
	// Delete 在同一事务中清空成员曲目的 collection id 并删除合集
	Delete(ctx context.Context, id string) (bool, error)
}

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*model.User, error)
	FindByLogin(ctx context.Context, login string) (*model.User, error)
	// FindByLoginOrName 登录时允许用显示名
	FindByLoginOrName(ctx context.Context, v string) (*model.User, error)
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error)
	SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) (bool, error)
	// UpdatePassword 同时清除重置令牌
	UpdatePassword(ctx context.Context, id, passwordHash string) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	// List 按名称升序，limit <= 0 表示全部
	List(ctx context.Context, roles []model.Role, limit int) ([]*model.User, error)
}

// isDuplicateKey 识别各存储的唯一索引冲突
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || mongo.IsDuplicateKeyError(err) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return true
	}
	msg := err.Error()
	// sqlite: "UNIQUE constraint failed"; postgres: SQLSTATE 23505
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "duplicate key value")
}
