// Package collection 合集管理与成员关系。
// 成员关系只保存在 Track.CollectionID 上，所有变更都是单条条件更新。
package collection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"Romaly/cache"
	"Romaly/core/apperr"
	"Romaly/core/auth"
	"Romaly/core/pagination"
	"Romaly/core/view"
	"Romaly/logger"
	"Romaly/model"
	"Romaly/repository"
	"Romaly/storage"
)

type Manager struct {
	collections repository.CollectionRepository
	tracks      repository.TrackRepository
	assets      storage.AssetStore
	views       *view.Resolver
	cache       cache.PageCache
}

func NewManager(
	collections repository.CollectionRepository,
	tracks repository.TrackRepository,
	assets storage.AssetStore,
	views *view.Resolver,
	pc cache.PageCache,
) *Manager {
	if pc == nil {
		pc = cache.Nop{}
	}
	return &Manager{collections: collections, tracks: tracks, assets: assets, views: views, cache: pc}
}

type CreateInput struct {
	Name        string
	Description string
	CoverRef    string
}

// UpdateInput nil 表示不修改
type UpdateInput struct {
	Name        *string
	Description *string
	CoverRef    *string
}

var errNameTaken = apperr.Conflict("Collection with this name already exists")

func (m *Manager) load(ctx context.Context, id string) (*model.Collection, error) {
	c, err := m.collections.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Unexpected("failed to load collection", err)
	}
	if c == nil {
		return nil, apperr.NotFound("Collection not found")
	}
	return c, nil
}

// nameTaken 名称被其他合集占用。唯一索引兜底并发情况。
func (m *Manager) nameTaken(ctx context.Context, name, selfID string) (bool, error) {
	existing, err := m.collections.FindByName(ctx, name)
	if err != nil {
		return false, apperr.Unexpected("failed to check collection name", err)
	}
	return existing != nil && existing.ID != selfID, nil
}

func (m *Manager) validateName(ctx context.Context, raw, selfID string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", apperr.Validation("Collection name is required")
	}
	taken, err := m.nameTaken(ctx, name, selfID)
	if err != nil {
		return "", err
	}
	if taken {
		return "", errNameTaken
	}
	return name, nil
}

// PrecheckCreate 在保存封面之前校验权限与名称
func (m *Manager) PrecheckCreate(ctx context.Context, id auth.Identity, in CreateInput) error {
	if err := auth.RequireAdmin(id); err != nil {
		return err
	}
	_, err := m.validateName(ctx, in.Name, "")
	return err
}

func (m *Manager) Create(ctx context.Context, id auth.Identity, in CreateInput) (*view.Collection, error) {
	if err := auth.RequireAdmin(id); err != nil {
		return nil, err
	}
	name, err := m.validateName(ctx, in.Name, "")
	if err != nil {
		return nil, err
	}

	c := &model.Collection{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		CoverRef:    in.CoverRef,
		CreatorID:   id.UserID,
	}
	if err := m.collections.Create(ctx, c); err != nil {
		if errors.Is(err, repository.ErrDuplicateCollectionName) {
			return nil, errNameTaken
		}
		return nil, apperr.Unexpected("failed to create collection", err)
	}
	m.cache.Invalidate(ctx)

	logger.Info("合集已创建", logger.String("collectionId", c.ID), logger.String("name", c.Name))
	v := m.views.Collection(c)
	return &v, nil
}

// prepareUpdate 名称与描述部分，封面由调用方补充
func (m *Manager) prepareUpdate(ctx context.Context, id auth.Identity, collectionID string, in UpdateInput) (*model.Collection, repository.CollectionUpdate, error) {
	var upd repository.CollectionUpdate
	if err := auth.RequireAdmin(id); err != nil {
		return nil, upd, err
	}
	c, err := m.load(ctx, collectionID)
	if err != nil {
		return nil, upd, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name != c.Name {
			if name, err = m.validateName(ctx, name, c.ID); err != nil {
				return nil, upd, err
			}
		}
		upd.Name = &name
	}
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		upd.Description = &d
	}
	return c, upd, nil
}

// PrecheckUpdate 在保存新封面之前校验权限、合集是否存在与新名称
func (m *Manager) PrecheckUpdate(ctx context.Context, id auth.Identity, collectionID string, in UpdateInput) error {
	_, _, err := m.prepareUpdate(ctx, id, collectionID, in)
	return err
}

// Update 改名后成员曲目立即看到新名字，因为曲目只保存合集 id
func (m *Manager) Update(ctx context.Context, id auth.Identity, collectionID string, in UpdateInput) (*view.Collection, error) {
	c, upd, err := m.prepareUpdate(ctx, id, collectionID, in)
	if err != nil {
		return nil, err
	}
	oldCover := ""
	if in.CoverRef != nil && *in.CoverRef != c.CoverRef {
		upd.CoverRef = in.CoverRef
		oldCover = c.CoverRef
	}

	if !upd.Empty() {
		ok, err := m.collections.Update(ctx, c.ID, upd)
		if err != nil {
			if errors.Is(err, repository.ErrDuplicateCollectionName) {
				return nil, errNameTaken
			}
			return nil, apperr.Unexpected("failed to update collection", err)
		}
		if !ok {
			return nil, apperr.NotFound("Collection not found")
		}
		m.cache.Invalidate(ctx)
		storage.Release(ctx, m.assets, oldCover)
	}

	updated, err := m.load(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	v := m.views.Collection(updated)
	return &v, nil
}

// Delete 成员曲目保留，collection 变为 null
func (m *Manager) Delete(ctx context.Context, id auth.Identity, collectionID string) error {
	if err := auth.RequireAdmin(id); err != nil {
		return err
	}
	c, err := m.load(ctx, collectionID)
	if err != nil {
		return err
	}
	ok, err := m.collections.Delete(ctx, c.ID)
	if err != nil {
		return apperr.Unexpected("failed to delete collection", err)
	}
	if !ok {
		return apperr.NotFound("Collection not found")
	}
	m.cache.Invalidate(ctx)
	storage.Release(ctx, m.assets, c.CoverRef)

	logger.Info("合集已删除", logger.String("collectionId", c.ID), logger.String("name", c.Name))
	return nil
}

// AddTrack 曲目已在其他合集时会被移过来
func (m *Manager) AddTrack(ctx context.Context, id auth.Identity, collectionID, trackID string) (*view.Track, error) {
	if err := auth.RequireAdmin(id); err != nil {
		return nil, err
	}
	c, err := m.load(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	changed, err := m.tracks.AssignCollection(ctx, trackID, c.ID)
	if err != nil {
		return nil, apperr.Unexpected("failed to add track to collection", err)
	}
	t, err := m.tracks.GetByID(ctx, trackID)
	if err != nil {
		return nil, apperr.Unexpected("failed to load track", err)
	}
	if t == nil {
		return nil, apperr.NotFound("Track not found")
	}
	if !changed {
		return nil, apperr.Conflict("Track is already in this collection")
	}
	m.cache.Invalidate(ctx)
	return m.views.Track(ctx, t)
}

// RemoveTrack 曲目不在合集中或不存在时直接成功
func (m *Manager) RemoveTrack(ctx context.Context, id auth.Identity, collectionID, trackID string) error {
	if err := auth.RequireAdmin(id); err != nil {
		return err
	}
	c, err := m.load(ctx, collectionID)
	if err != nil {
		return err
	}
	changed, err := m.tracks.ClearCollection(ctx, trackID, c.ID)
	if err != nil {
		return apperr.Unexpected("failed to remove track from collection", err)
	}
	if changed {
		m.cache.Invalidate(ctx)
	}
	return nil
}

// Get 非管理员只能看到已通过审核的成员
func (m *Manager) Get(ctx context.Context, id auth.Identity, collectionID string) (*view.CollectionDetail, error) {
	c, err := m.load(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	f := repository.TrackFilter{CollectionID: c.ID}
	if !id.IsAdmin() {
		f.Statuses = []model.TrackStatus{model.StatusApproved}
	}
	tracks, _, err := m.tracks.List(ctx, f, 0, 0)
	if err != nil {
		return nil, apperr.Unexpected("failed to list collection tracks", err)
	}
	items, err := m.views.Tracks(ctx, tracks)
	if err != nil {
		return nil, err
	}
	return &view.CollectionDetail{Collection: m.views.Collection(c), Tracks: items}, nil
}

// List 按名称升序
func (m *Manager) List(ctx context.Context, p pagination.Params) (pagination.Page[view.Collection], error) {
	key := fmt.Sprintf("collections:%d:%d", p.Page, p.Size)
	var page pagination.Page[view.Collection]
	err := m.cache.Fetch(ctx, key, &page, func() error {
		cs, total, err := m.collections.List(ctx, p.Offset(), p.Size)
		if err != nil {
			return apperr.Unexpected("failed to list collections", err)
		}
		page = pagination.NewPage(m.views.Collections(cs), total, p)
		return nil
	})
	if err != nil {
		return pagination.Page[view.Collection]{}, err
	}
	return page, nil
}
