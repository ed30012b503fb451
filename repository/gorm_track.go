package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"Romaly/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// gormTrackRepository implements TrackRepository for mysql/postgres/sqlite.
type gormTrackRepository struct {
	db *gorm.DB
}

func NewGormTrackRepository(db *gorm.DB) TrackRepository {
	return &gormTrackRepository{db: db}
}

func (r *gormTrackRepository) Create(ctx context.Context, t *model.Track) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.TitleFold = model.Fold(t.Title)
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("failed to create track: %w", err)
	}
	return nil
}

func (r *gormTrackRepository) GetByID(ctx context.Context, id string) (*model.Track, error) {
	var t model.Track
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get track %s: %w", id, err)
	}
	return &t, nil
}

// 使用 '!' 作为 LIKE 转义符，mysql/postgres/sqlite 写法一致。
// 匹配的是写入时折叠好的 *_fold 列，非 ASCII 字符同样不区分大小写。
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func likePattern(q string) string {
	return "%" + likeEscaper.Replace(model.Fold(q)) + "%"
}

func (r *gormTrackRepository) filtered(ctx context.Context, f TrackFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.Track{})
	if f.AuthorID != "" {
		q = q.Where("author_id = ?", f.AuthorID)
	}
	if f.CollectionID != "" {
		q = q.Where("collection_id = ?", f.CollectionID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.Query != "" {
		pattern := likePattern(f.Query)
		authors := r.db.WithContext(ctx).Model(&model.User{}).
			Select("id").
			Where("name_fold LIKE ? ESCAPE '!'", pattern)
		q = q.Where("(title_fold LIKE ? ESCAPE '!' OR author_id IN (?))", pattern, authors)
	}
	return q
}

func (r *gormTrackRepository) List(ctx context.Context, f TrackFilter, offset, limit int) ([]*model.Track, int64, error) {
	var total int64
	if err := r.filtered(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count tracks: %w", err)
	}

	tracks := []*model.Track{}
	// 越过最后一页时不再查询
	if total == 0 || (limit > 0 && int64(offset) >= total) {
		return tracks, total, nil
	}

	q := r.filtered(ctx, f).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	if err := q.Find(&tracks).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list tracks: %w", err)
	}
	return tracks, total, nil
}

func (r *gormTrackRepository) FindByAuthor(ctx context.Context, authorID string) ([]*model.Track, error) {
	var tracks []*model.Track
	if err := r.db.WithContext(ctx).Where("author_id = ?", authorID).Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("failed to find tracks of author %s: %w", authorID, err)
	}
	return tracks, nil
}

func (r *gormTrackRepository) update(ctx context.Context, scope func(*gorm.DB) *gorm.DB, values map[string]interface{}) (bool, error) {
	values["updated_at"] = time.Now()
	res := scope(r.db.WithContext(ctx).Model(&model.Track{})).Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormTrackRepository) UpdateTitle(ctx context.Context, id, title string) (bool, error) {
	ok, err := r.update(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("id = ?", id)
	}, map[string]interface{}{"title": title, "title_fold": model.Fold(title)})
	if err != nil {
		return false, fmt.Errorf("failed to update track title: %w", err)
	}
	return ok, nil
}

func (r *gormTrackRepository) UpdateStatus(ctx context.Context, id string, status model.TrackStatus) (bool, error) {
	ok, err := r.update(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("id = ?", id)
	}, map[string]interface{}{"status": status})
	if err != nil {
		return false, fmt.Errorf("failed to update track status: %w", err)
	}
	return ok, nil
}

func (r *gormTrackRepository) Delete(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Track{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete track: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *gormTrackRepository) DeleteByAuthor(ctx context.Context, authorID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("author_id = ?", authorID).Delete(&model.Track{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete tracks of author %s: %w", authorID, res.Error)
	}
	return res.RowsAffected, nil
}

// AssignCollection 单条条件更新；已在目标合集时不会命中任何行
func (r *gormTrackRepository) AssignCollection(ctx context.Context, trackID, collectionID string) (bool, error) {
	ok, err := r.update(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("id = ? AND (collection_id IS NULL OR collection_id <> ?)", trackID, collectionID)
	}, map[string]interface{}{"collection_id": collectionID})
	if err != nil {
		return false, fmt.Errorf("failed to assign collection: %w", err)
	}
	return ok, nil
}

func (r *gormTrackRepository) ClearCollection(ctx context.Context, trackID, collectionID string) (bool, error) {
	ok, err := r.update(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("id = ? AND collection_id = ?", trackID, collectionID)
	}, map[string]interface{}{"collection_id": nil})
	if err != nil {
		return false, fmt.Errorf("failed to clear collection: %w", err)
	}
	return ok, nil
}
