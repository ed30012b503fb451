// Package track 曲目生命周期：上传、编辑、审核、删除与各类列表
package track

import (
	"context"
	"fmt"
	"strings"
	"time"

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
	tracks      repository.TrackRepository
	collections repository.CollectionRepository
	assets      storage.AssetStore
	views       *view.Resolver
	cache       cache.PageCache
}

func NewManager(
	tracks repository.TrackRepository,
	collections repository.CollectionRepository,
	assets storage.AssetStore,
	views *view.Resolver,
	pc cache.PageCache,
) *Manager {
	if pc == nil {
		pc = cache.Nop{}
	}
	return &Manager{tracks: tracks, collections: collections, assets: assets, views: views, cache: pc}
}

// CreateInput FileRef 是已经写入存储的资源引用
type CreateInput struct {
	Title        string
	FileRef      string
	CollectionID string
}

func (m *Manager) load(ctx context.Context, trackID string) (*model.Track, error) {
	t, err := m.tracks.GetByID(ctx, trackID)
	if err != nil {
		return nil, apperr.Unexpected("failed to load track", err)
	}
	if t == nil {
		return nil, apperr.NotFound("Track not found")
	}
	return t, nil
}

// prepare 与文件无关的校验：身份、标题、目标合集
func (m *Manager) prepare(ctx context.Context, id auth.Identity, in CreateInput) (*model.Track, error) {
	if err := auth.RequireAuthenticated(id); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validation("Title is required")
	}
	t := &model.Track{
		Title:    title,
		AuthorID: id.UserID,
		Status:   model.InitialStatus(id.Role),
	}
	if cid := strings.TrimSpace(in.CollectionID); cid != "" {
		c, err := m.collections.GetByID(ctx, cid)
		if err != nil {
			return nil, apperr.Unexpected("failed to load collection", err)
		}
		if c == nil {
			return nil, apperr.NotFound("Collection not found")
		}
		t.CollectionID = &c.ID
	}
	return t, nil
}

// Precheck 在写入存储之前调用，FileRef 可以为空
func (m *Manager) Precheck(ctx context.Context, id auth.Identity, in CreateInput) error {
	_, err := m.prepare(ctx, id, in)
	return err
}

// Create 管理员上传直接通过，其他人进入待审核
func (m *Manager) Create(ctx context.Context, id auth.Identity, in CreateInput) (*view.Track, error) {
	t, err := m.prepare(ctx, id, in)
	if err != nil {
		return nil, err
	}
	if in.FileRef == "" {
		return nil, apperr.Validation("No file uploaded")
	}
	t.FileRef = in.FileRef

	if err := m.tracks.Create(ctx, t); err != nil {
		return nil, apperr.Unexpected("Failed to save track", err)
	}
	m.cache.Invalidate(ctx)

	logger.Info("曲目已上传",
		logger.String("trackId", t.ID),
		logger.String("authorId", t.AuthorID),
		logger.String("status", string(t.Status)))
	return m.views.Track(ctx, t)
}

// Edit 只改标题，审核状态保持不变
func (m *Manager) Edit(ctx context.Context, id auth.Identity, trackID, title string) (*view.Track, error) {
	if err := auth.RequireAuthenticated(id); err != nil {
		return nil, err
	}
	t, err := m.load(ctx, trackID)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireOwnerOrAdmin(id, t.AuthorID); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperr.Validation("Title is required")
	}

	ok, err := m.tracks.UpdateTitle(ctx, t.ID, title)
	if err != nil {
		return nil, apperr.Unexpected("failed to update track", err)
	}
	if !ok {
		return nil, apperr.NotFound("Track not found")
	}
	m.cache.Invalidate(ctx)

	t.Title = title
	t.UpdatedAt = time.Now()
	return m.views.Track(ctx, t)
}

// Delete 先尽力删除音频文件，再删记录
func (m *Manager) Delete(ctx context.Context, id auth.Identity, trackID string) error {
	if err := auth.RequireAuthenticated(id); err != nil {
		return err
	}
	t, err := m.load(ctx, trackID)
	if err != nil {
		return err
	}
	if err := auth.RequireOwnerOrAdmin(id, t.AuthorID); err != nil {
		return err
	}

	storage.Release(ctx, m.assets, t.FileRef)

	ok, err := m.tracks.Delete(ctx, t.ID)
	if err != nil {
		return apperr.Unexpected("failed to delete track", err)
	}
	if !ok {
		return apperr.NotFound("Track not found")
	}
	m.cache.Invalidate(ctx)

	logger.Info("曲目已删除", logger.String("trackId", t.ID), logger.String("by", id.UserID))
	return nil
}

func (m *Manager) Approve(ctx context.Context, id auth.Identity, trackID string) (*view.Track, error) {
	return m.setStatus(ctx, id, trackID, model.StatusApproved)
}

func (m *Manager) Reject(ctx context.Context, id auth.Identity, trackID string) (*view.Track, error) {
	return m.setStatus(ctx, id, trackID, model.StatusRejected)
}

// setStatus 无条件写入，重复执行结果相同
func (m *Manager) setStatus(ctx context.Context, id auth.Identity, trackID string, status model.TrackStatus) (*view.Track, error) {
	if err := auth.RequireAdmin(id); err != nil {
		return nil, err
	}
	ok, err := m.tracks.UpdateStatus(ctx, trackID, status)
	if err != nil {
		return nil, apperr.Unexpected("failed to update track status", err)
	}
	if !ok {
		return nil, apperr.NotFound("Track not found")
	}
	m.cache.Invalidate(ctx)

	t, err := m.load(ctx, trackID)
	if err != nil {
		return nil, err
	}
	logger.Info("曲目审核", logger.String("trackId", trackID), logger.String("status", string(status)))
	return m.views.Track(ctx, t)
}

func visible(id auth.Identity, t *model.Track) bool {
	if !id.Authenticated() {
		return t.Status == model.StatusApproved
	}
	return t.Visible(id.UserID, id.Role)
}

// Get 未通过审核的曲目对无权查看者表现为不存在
func (m *Manager) Get(ctx context.Context, id auth.Identity, trackID string) (*view.Track, error) {
	t, err := m.load(ctx, trackID)
	if err != nil {
		return nil, err
	}
	if !visible(id, t) {
		return nil, apperr.NotFound("Track not found")
	}
	return m.views.Track(ctx, t)
}

func (m *Manager) page(ctx context.Context, f repository.TrackFilter, p pagination.Params) (pagination.Page[view.Track], error) {
	tracks, total, err := m.tracks.List(ctx, f, p.Offset(), p.Size)
	if err != nil {
		return pagination.Page[view.Track]{}, apperr.Unexpected("failed to list tracks", err)
	}
	items, err := m.views.Tracks(ctx, tracks)
	if err != nil {
		return pagination.Page[view.Track]{}, err
	}
	return pagination.NewPage(items, total, p), nil
}

var approvedOnly = []model.TrackStatus{model.StatusApproved}

func (m *Manager) ListApproved(ctx context.Context, p pagination.Params) (pagination.Page[view.Track], error) {
	key := fmt.Sprintf("tracks:approved:%d:%d", p.Page, p.Size)
	var page pagination.Page[view.Track]
	err := m.cache.Fetch(ctx, key, &page, func() (err error) {
		page, err = m.page(ctx, repository.TrackFilter{Statuses: approvedOnly}, p)
		return err
	})
	if err != nil {
		return pagination.Page[view.Track]{}, err
	}
	return page, nil
}

func (m *Manager) ListPending(ctx context.Context, id auth.Identity, p pagination.Params) (pagination.Page[view.Track], error) {
	if err := auth.RequireAdmin(id); err != nil {
		return pagination.Page[view.Track]{}, err
	}
	return m.page(ctx, repository.TrackFilter{Statuses: []model.TrackStatus{model.StatusPending}}, p)
}

// ListByAuthor 作者本人和管理员可以看到全部状态
func (m *Manager) ListByAuthor(ctx context.Context, id auth.Identity, authorID string, p pagination.Params) (pagination.Page[view.Track], error) {
	f := repository.TrackFilter{AuthorID: authorID}
	if !id.Owns(authorID) {
		f.Statuses = approvedOnly
	}
	return m.page(ctx, f, p)
}

// Search 空查询返回空页
func (m *Manager) Search(ctx context.Context, q string, p pagination.Params) (pagination.Page[view.Track], error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return pagination.Empty[view.Track](p), nil
	}
	return m.page(ctx, repository.TrackFilter{Statuses: approvedOnly, Query: q}, p)
}
