package repository_test

import (
	"context"
	"testing"
	"time"

	"Romaly/db/dbtest"
	"Romaly/model"
	"Romaly/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type repos struct {
	users       repository.UserRepository
	tracks      repository.TrackRepository
	collections repository.CollectionRepository
}

func newRepos(t *testing.T) repos {
	gdb := dbtest.NewSQLite(t)
	return repos{
		users:       repository.NewGormUserRepository(gdb),
		tracks:      repository.NewGormTrackRepository(gdb),
		collections: repository.NewGormCollectionRepository(gdb),
	}
}

func addUser(t *testing.T, r repos, name string) *model.User {
	u := &model.User{Name: name, Login: name + "@example.com", PasswordHash: "x", Role: model.RoleAuthor}
	require.NoError(t, r.users.Create(context.Background(), u))
	return u
}

func addTrack(t *testing.T, r repos, title, authorID string, status model.TrackStatus) *model.Track {
	tr := &model.Track{Title: title, AuthorID: authorID, Status: status, FileRef: "audio/" + title}
	require.NoError(t, r.tracks.Create(context.Background(), tr))
	return tr
}

func TestUserDuplicateLogin(t *testing.T) {
	r := newRepos(t)
	addUser(t, r, "alice")

	err := r.users.Create(context.Background(), &model.User{Name: "other", Login: "alice@example.com", PasswordHash: "x", Role: model.RoleAuthor})
	assert.ErrorIs(t, err, repository.ErrDuplicateUser)
}

func TestUserGetMissing(t *testing.T) {
	r := newRepos(t)
	u, err := r.users.GetByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestUserResetToken(t *testing.T) {
	ctx := context.Background()
	r := newRepos(t)
	u := addUser(t, r, "alice")
	now := time.Now()

	ok, err := r.users.SetResetToken(ctx, u.ID, "hash", now.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	got, err := r.users.FindByResetToken(ctx, "hash", now)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)

	got, err = r.users.FindByResetToken(ctx, "hash", now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = r.users.UpdatePassword(ctx, u.ID, "new")
	require.NoError(t, err)
	got, err = r.users.FindByResetToken(ctx, "hash", now)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTrackListOrderAndPaging(t *testing.T) {
	ctx := context.Background()
	r := newRepos(t)
	u := addUser(t, r, "alice")
	for _, title := range []string{"one", "two", "three"} {
		addTrack(t, r, title, u.ID, model.StatusApproved)
		time.Sleep(2 * time.Millisecond)
	}
	addTrack(t, r, "hidden", u.ID, model.StatusPending)

	items, total, err := r.tracks.List(ctx, repository.TrackFilter{Statuses: []model.TrackStatus{model.StatusApproved}}, 0, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, items, 2)
	assert.Equal(t, "three", items[0].Title)
	assert.Equal(t, "two", items[1].Title)

	items, _, err = r.tracks.List(ctx, repository.TrackFilter{Statuses: []model.TrackStatus{model.StatusApproved}}, 2, 2)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "one", items[0].Title)
}

func TestTrackSearch(t *testing.T) {
	ctx := context.Background()
	r := newRepos(t)
	alice := addUser(t, r, "Alice")
	bob := addUser(t, r, "bob")
	addTrack(t, r, "Summer Rain", bob.ID, model.StatusApproved)
	addTrack(t, r, "Winter", alice.ID, model.StatusApproved)
	addTrack(t, r, "100%_pure", bob.ID, model.StatusApproved)

	approved := []model.TrackStatus{model.StatusApproved}
	tests := []struct {
		query string
		want  int64
	}{
		{"summer", 1},
		{"ALICE", 1},
		{"r", 3},
		{"%", 1},
		{"_", 1},
		{"nothing", 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			_, total, err := r.tracks.List(ctx, repository.TrackFilter{Statuses: approved, Query: tt.query}, 0, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, total)
		})
	}
}

func TestTrackSearchUnicodeCase(t *testing.T) {
	ctx := context.Background()
	r := newRepos(t)
	olga := addUser(t, r, "Ольга")
	song := addTrack(t, r, "Летняя Песня", olga.ID, model.StatusApproved)
	addTrack(t, r, "Straße", olga.ID, model.StatusPending)

	approved := []model.TrackStatus{model.StatusApproved}
	for _, q := range []string{"песня", "ЛЕТНЯЯ", "ольга", "ОЛЬГ"} {
		t.Run(q, func(t *testing.T) {
			tracks, total, err := r.tracks.List(ctx, repository.TrackFilter{Statuses: approved, Query: q}, 0, 0)
			require.NoError(t, err)
			require.Equal(t, int64(1), total)
			assert.Equal(t, song.ID, tracks[0].ID)
		})
	}

	// 改名后折叠列同步更新
	ok, err := r.tracks.UpdateTitle(ctx, song.ID, "Зимняя Ночь")
	require.NoError(t, err)
	require.True(t, ok)
	_, total, err := r.tracks.List(ctx, repository.TrackFilter{Statuses: approved, Query: "ночь"}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	_, total, err = r.tracks.List(ctx, repository.TrackFilter{Statuses: approved, Query: "песня"}, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, total)

	_, total, err = r.tracks.List(ctx, repository.TrackFilter{Query: "STRASSE"}, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	_, total, err = r.tracks.List(ctx, repository.TrackFilter{Query: "STRAßE"}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestTrackConditionalMembership(t *testing.T) {
	ctx := context.Background()
	r := newRepos(t)
	u := addUser(t, r, "alice")
	tr := addTrack(t, r, "song", u.ID, model.StatusApproved)

	ok, err := r.tracks.AssignCollection(ctx, tr.ID, "c1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.tracks.AssignCollection(ctx, tr.ID, "c1")
	require.NoError(t, err)
	assert.False(t, ok, "already a member")

	ok, err = r.tracks.AssignCollection(ctx, tr.ID, "c2")
	require.NoError(t, err)
	assert.True(t, ok, "move to another collection")

	ok, err = r.tracks.ClearCollection(ctx, tr.ID, "c1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.tracks.ClearCollection(ctx, tr.ID, "c2")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := r.tracks.GetByID(ctx, tr.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CollectionID)
}

func TestTrackDeleteByAuthor(t *testing.T) {
	ctx := context.Background()
	r := newRepos(t)
	alice := addUser(t, r, "alice")
	bob := addUser(t, r, "bob")
	addTrack(t, r, "a1", alice.ID, model.StatusApproved)
	addTrack(t, r, "a2", alice.ID, model.StatusPending)
	addTrack(t, r, "b1", bob.ID, model.StatusApproved)

	n, err := r.tracks.DeleteByAuthor(ctx, alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, total, err := r.tracks.List(ctx, repository.TrackFilter{}, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestCollectionNameUnique(t *testing.T) {
	ctx := context.Background()
	r := newRepos(t)
	u := addUser(t, r, "root")

	c := &model.Collection{Name: "Summer", CreatorID: u.ID}
	require.NoError(t, r.collections.Create(ctx, c))

	err := r.collections.Create(ctx, &model.Collection{Name: "Summer", CreatorID: u.ID})
	assert.ErrorIs(t, err, repository.ErrDuplicateCollectionName)

	// 名称区分大小写
	other := &model.Collection{Name: "summer", CreatorID: u.ID}
	require.NoError(t, r.collections.Create(ctx, other))

	name := "Summer"
	_, err = r.collections.Update(ctx, other.ID, repository.CollectionUpdate{Name: &name})
	assert.ErrorIs(t, err, repository.ErrDuplicateCollectionName)

	items, total, err := r.collections.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, "Summer", items[0].Name)
}

func TestCollectionDeleteClearsMembers(t *testing.T) {
	ctx := context.Background()
	r := newRepos(t)
	u := addUser(t, r, "root")
	c := &model.Collection{Name: "Summer", CreatorID: u.ID}
	require.NoError(t, r.collections.Create(ctx, c))
	tr := addTrack(t, r, "song", u.ID, model.StatusApproved)
	_, err := r.tracks.AssignCollection(ctx, tr.ID, c.ID)
	require.NoError(t, err)

	ok, err := r.collections.Delete(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := r.tracks.GetByID(ctx, tr.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.CollectionID)

	ok, err = r.collections.Delete(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
