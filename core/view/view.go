// Package view 把存储实体投影成接口返回结构，补全作者名与合集名
package view

import (
	"context"
	"time"

	"Romaly/core/apperr"
	"Romaly/model"
	"Romaly/repository"
	"Romaly/storage"
)

type AuthorRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CollectionRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Track struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Status     model.TrackStatus `json:"status"`
	FileURL    string            `json:"fileUrl"`
	Author     AuthorRef         `json:"author"`
	Collection *CollectionRef    `json:"collection"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

type Collection struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CoverURL    string    `json:"coverUrl,omitempty"`
	CreatorID   string    `json:"creatorId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CollectionDetail 合集及其成员曲目
type CollectionDetail struct {
	Collection
	Tracks []Track `json:"tracks"`
}

type User struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Login     string     `json:"emailOrPhone"`
	Role      model.Role `json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Resolver 批量查询作者与合集，避免 N+1
type Resolver struct {
	users       repository.UserRepository
	collections repository.CollectionRepository
	assets      storage.AssetStore
}

func NewResolver(users repository.UserRepository, collections repository.CollectionRepository, assets storage.AssetStore) *Resolver {
	return &Resolver{users: users, collections: collections, assets: assets}
}

func (r *Resolver) url(ref string) string {
	if r.assets == nil {
		return ""
	}
	return r.assets.URLFor(ref)
}

// Tracks 投影一组曲目。collection id 指向已删除的合集时输出 null。
func (r *Resolver) Tracks(ctx context.Context, tracks []*model.Track) ([]Track, error) {
	out := make([]Track, 0, len(tracks))
	if len(tracks) == 0 {
		return out, nil
	}

	authorIDs := make([]string, 0, len(tracks))
	collectionIDs := make([]string, 0, len(tracks))
	seenA, seenC := map[string]bool{}, map[string]bool{}
	for _, t := range tracks {
		if !seenA[t.AuthorID] {
			seenA[t.AuthorID] = true
			authorIDs = append(authorIDs, t.AuthorID)
		}
		if t.CollectionID != nil && !seenC[*t.CollectionID] {
			seenC[*t.CollectionID] = true
			collectionIDs = append(collectionIDs, *t.CollectionID)
		}
	}

	users, err := r.users.GetByIDs(ctx, authorIDs)
	if err != nil {
		return nil, apperr.Unexpected("failed to resolve authors", err)
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}

	colls, err := r.collections.GetByIDs(ctx, collectionIDs)
	if err != nil {
		return nil, apperr.Unexpected("failed to resolve collections", err)
	}
	byID := make(map[string]*model.Collection, len(colls))
	for _, c := range colls {
		byID[c.ID] = c
	}

	for _, t := range tracks {
		v := Track{
			ID:        t.ID,
			Title:     t.Title,
			Status:    t.Status,
			FileURL:   r.url(t.FileRef),
			Author:    AuthorRef{ID: t.AuthorID, Name: names[t.AuthorID]},
			CreatedAt: t.CreatedAt,
			UpdatedAt: t.UpdatedAt,
		}
		if t.CollectionID != nil {
			if c, ok := byID[*t.CollectionID]; ok {
				v.Collection = &CollectionRef{ID: c.ID, Name: c.Name}
			}
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *Resolver) Track(ctx context.Context, t *model.Track) (*Track, error) {
	views, err := r.Tracks(ctx, []*model.Track{t})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (r *Resolver) Collection(c *model.Collection) Collection {
	return Collection{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		CoverURL:    r.url(c.CoverRef),
		CreatorID:   c.CreatorID,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func (r *Resolver) Collections(cs []*model.Collection) []Collection {
	out := make([]Collection, 0, len(cs))
	for _, c := range cs {
		out = append(out, r.Collection(c))
	}
	return out
}

// NewUser 不包含密码哈希与重置令牌
func NewUser(u *model.User) User {
	return User{ID: u.ID, Name: u.Name, Login: u.Login, Role: u.Role, CreatedAt: u.CreatedAt}
}
