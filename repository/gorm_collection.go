package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Romaly/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormCollectionRepository struct {
	db *gorm.DB
}

func NewGormCollectionRepository(db *gorm.DB) CollectionRepository {
	return &gormCollectionRepository{db: db}
}

func (r *gormCollectionRepository) Create(ctx context.Context, c *model.Collection) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateCollectionName
		}
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

func (r *gormCollectionRepository) first(ctx context.Context, query string, arg interface{}) (*model.Collection, error) {
	var c model.Collection
	err := r.db.WithContext(ctx).Where(query, arg).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return &c, nil
}

func (r *gormCollectionRepository) GetByID(ctx context.Context, id string) (*model.Collection, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *gormCollectionRepository) FindByName(ctx context.Context, name string) (*model.Collection, error) {
	return r.first(ctx, "name = ?", name)
}

func (r *gormCollectionRepository) GetByIDs(ctx context.Context, ids []string) ([]*model.Collection, error) {
	var out []*model.Collection
	if len(ids) == 0 {
		return out, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to get collections: %w", err)
	}
	return out, nil
}

func (r *gormCollectionRepository) List(ctx context.Context, offset, limit int) ([]*model.Collection, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Collection{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count collections: %w", err)
	}
	out := []*model.Collection{}
	q := r.db.WithContext(ctx).Order("name ASC").Order("id ASC")
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list collections: %w", err)
	}
	return out, total, nil
}

func (r *gormCollectionRepository) Update(ctx context.Context, id string, u CollectionUpdate) (bool, error) {
	values := map[string]interface{}{"updated_at": time.Now()}
	if u.Name != nil {
		values["name"] = *u.Name
	}
	if u.Description != nil {
		values["description"] = *u.Description
	}
	if u.CoverRef != nil {
		values["cover_ref"] = *u.CoverRef
	}
	res := r.db.WithContext(ctx).Model(&model.Collection{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		if isDuplicateKey(res.Error) {
			return false, ErrDuplicateCollectionName
		}
		return false, fmt.Errorf("failed to update collection: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *gormCollectionRepository) Delete(ctx context.Context, id string) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Track{}).
			Where("collection_id = ?", id).
			Updates(map[string]interface{}{"collection_id": nil, "updated_at": time.Now()}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.Collection{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete collection: %w", err)
	}
	return deleted, nil
}
