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

type gormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

func (r *gormUserRepository) Create(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.NameFold = model.Fold(u.Name)
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *gormUserRepository) first(ctx context.Context, query string, args ...interface{}) (*model.User, error) {
	var u model.User
	err := r.db.WithContext(ctx).Where(query, args...).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (r *gormUserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *gormUserRepository) FindByLogin(ctx context.Context, login string) (*model.User, error) {
	return r.first(ctx, "login = ?", login)
}

func (r *gormUserRepository) FindByLoginOrName(ctx context.Context, v string) (*model.User, error) {
	// 登录名优先，其次显示名
	u, err := r.FindByLogin(ctx, v)
	if err != nil || u != nil {
		return u, err
	}
	return r.first(ctx, "name = ?", v)
}

func (r *gormUserRepository) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error) {
	return r.first(ctx, "reset_token_hash = ? AND reset_token_expires_at > ?", tokenHash, now)
}

func (r *gormUserRepository) GetByIDs(ctx context.Context, ids []string) ([]*model.User, error) {
	var out []*model.User
	if len(ids) == 0 {
		return out, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	return out, nil
}

func (r *gormUserRepository) updates(ctx context.Context, id string, values map[string]interface{}) (bool, error) {
	values["updated_at"] = time.Now()
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update user %s: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *gormUserRepository) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) (bool, error) {
	return r.updates(ctx, id, map[string]interface{}{
		"reset_token_hash":       tokenHash,
		"reset_token_expires_at": expiresAt,
	})
}

func (r *gormUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) (bool, error) {
	return r.updates(ctx, id, map[string]interface{}{
		"password_hash":          passwordHash,
		"reset_token_hash":       nil,
		"reset_token_expires_at": nil,
	})
}

func (r *gormUserRepository) Delete(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.User{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete user: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *gormUserRepository) List(ctx context.Context, roles []model.Role, limit int) ([]*model.User, error) {
	out := []*model.User{}
	q := r.db.WithContext(ctx).Order("name ASC").Order("id ASC")
	if len(roles) > 0 {
		q = q.Where("role IN ?", roles)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return out, nil
}
