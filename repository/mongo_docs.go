package repository

import (
	"time"

	"Romaly/model"
)

// Mongo 文档结构，与 model 分离以保持 bson 字段名稳定

const (
	mongoUsers       = "users"
	mongoTracks      = "tracks"
	mongoCollections = "collections"
)

type userDoc struct {
	ID                  string     `bson:"_id"`
	Name                string     `bson:"name"`
	Login               string     `bson:"login"`
	PasswordHash        string     `bson:"password_hash"`
	Role                string     `bson:"role"`
	ResetTokenHash      *string    `bson:"reset_token_hash,omitempty"`
	ResetTokenExpiresAt *time.Time `bson:"reset_token_expires_at,omitempty"`
	CreatedAt           time.Time  `bson:"created_at"`
	UpdatedAt           time.Time  `bson:"updated_at"`
}

func newUserDoc(u *model.User) userDoc {
	return userDoc{
		ID:                  u.ID,
		Name:                u.Name,
		Login:               u.Login,
		PasswordHash:        u.PasswordHash,
		Role:                u.Role.String(),
		ResetTokenHash:      u.ResetTokenHash,
		ResetTokenExpiresAt: u.ResetTokenExpiresAt,
		CreatedAt:           u.CreatedAt,
		UpdatedAt:           u.UpdatedAt,
	}
}

func (d userDoc) model() *model.User {
	role, _ := model.ParseRole(d.Role)
	return &model.User{
		ID:                  d.ID,
		Name:                d.Name,
		Login:               d.Login,
		PasswordHash:        d.PasswordHash,
		Role:                role,
		ResetTokenHash:      d.ResetTokenHash,
		ResetTokenExpiresAt: d.ResetTokenExpiresAt,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}

type trackDoc struct {
	ID           string    `bson:"_id"`
	Title        string    `bson:"title"`
	AuthorID     string    `bson:"author_id"`
	CollectionID *string   `bson:"collection_id"`
	Status       string    `bson:"status"`
	FileRef      string    `bson:"file_ref"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func newTrackDoc(t *model.Track) trackDoc {
	return trackDoc{
		ID:           t.ID,
		Title:        t.Title,
		AuthorID:     t.AuthorID,
		CollectionID: t.CollectionID,
		Status:       string(t.Status),
		FileRef:      t.FileRef,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func (d trackDoc) model() *model.Track {
	return &model.Track{
		ID:           d.ID,
		Title:        d.Title,
		AuthorID:     d.AuthorID,
		CollectionID: d.CollectionID,
		Status:       model.TrackStatus(d.Status),
		FileRef:      d.FileRef,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

type collectionDoc struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	Description string    `bson:"description"`
	CoverRef    string    `bson:"cover_ref"`
	CreatorID   string    `bson:"creator_id"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func newCollectionDoc(c *model.Collection) collectionDoc {
	return collectionDoc{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		CoverRef:    c.CoverRef,
		CreatorID:   c.CreatorID,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func (d collectionDoc) model() *model.Collection {
	return &model.Collection{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		CoverRef:    d.CoverRef,
		CreatorID:   d.CreatorID,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// stampNew 补齐 id 与时间戳
func stampNew(id *string, created, updated *time.Time, newID func() string) {
	if *id == "" {
		*id = newID()
	}
	now := time.Now().UTC()
	if created.IsZero() {
		*created = now
	}
	*updated = now
}
