package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"Romaly/config"
	"Romaly/core/account"
	"Romaly/core/auth"
	"Romaly/core/collection"
	"Romaly/core/track"
	"Romaly/core/view"
	"Romaly/db/dbtest"
	"Romaly/model"
	"Romaly/repository"
	"Romaly/storage"
	"Romaly/storage/storagetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t        *testing.T
	handler  http.Handler
	tokens   *auth.TokenService
	accounts *account.Service
	repos    Repositories
	root     string
}

func newTestServer(t *testing.T) *testServer {
	root := t.TempDir()
	store, err := storage.NewLocalStore(root, uploadsPrefix)
	require.NoError(t, err)
	s := newTestServerWithStore(t, store, http.StripPrefix(uploadsPrefix, http.FileServer(http.Dir(root))))
	s.root = root
	return s
}

func newTestServerWithStore(t *testing.T, store storage.AssetStore, files http.Handler) *testServer {
	gdb := dbtest.NewSQLite(t)
	repos := Repositories{
		Users:       repository.NewGormUserRepository(gdb),
		Tracks:      repository.NewGormTrackRepository(gdb),
		Collections: repository.NewGormCollectionRepository(gdb),
	}

	cfg := &config.Config{MaxAudioMB: 1, AllowedAudioTypes: []string{"audio/mpeg"}}
	tokens := auth.NewTokenService("test-secret", time.Hour)
	views := view.NewResolver(repos.Users, repos.Collections, store)
	tracks := track.NewManager(repos.Tracks, repos.Collections, store, views, nil)
	collections := collection.NewManager(repos.Collections, repos.Tracks, store, views, nil)
	accounts := account.NewService(repos.Users, repos.Tracks, store, tokens, account.Options{})

	h := NewAPIHandler(cfg, tokens, tracks, collections, accounts, store)
	return &testServer{
		t:        t,
		handler:  NewRouter(h, uploadsPrefix, files),
		tokens:   tokens,
		accounts: accounts,
		repos:    repos,
	}
}

func (s *testServer) do(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) doJSON(method, path, token string, v interface{}) *httptest.ResponseRecorder {
	var body io.Reader
	if v != nil {
		b, err := json.Marshal(v)
		require.NoError(s.t, err)
		body = bytes.NewReader(b)
	}
	return s.do(method, path, token, body, "application/json")
}

// register 返回令牌和用户 id
func (s *testServer) register(name string) (string, string) {
	rec := s.doJSON(http.MethodPost, "/api/users/register", "", map[string]string{
		"name": name, "emailOrPhone": name + "@example.com", "password": "pw", "password2": "pw",
	})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	var sess account.Session
	decode(s.t, rec, &sess)
	claims, err := s.tokens.Verify(sess.Token)
	require.NoError(s.t, err)
	return sess.Token, claims.UserID
}

func (s *testServer) admin() string {
	_, err := s.accounts.SeedAdmin(context.Background(), "root", "root@example.com", "rootpw")
	require.NoError(s.t, err)
	rec := s.doJSON(http.MethodPost, "/api/users/login", "", map[string]string{"emailOrPhone": "root@example.com", "password": "rootpw"})
	require.Equal(s.t, http.StatusOK, rec.Code)
	var sess account.Session
	decode(s.t, rec, &sess)
	assert.Equal(s.t, model.RoleAdmin, sess.Role)
	return sess.Token
}

func mp3Payload() []byte {
	b := []byte("ID3\x03\x00\x00\x00\x00\x00\x00")
	return append(b, bytes.Repeat([]byte{0}, 256)...)
}

func audioForm(t *testing.T, fields map[string]string, contentType string, payload []byte) (io.Reader, string) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="trackFile"; filename="song.mp3"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (s *testServer) upload(token string, fields map[string]string) *httptest.ResponseRecorder {
	body, ct := audioForm(s.t, fields, "audio/mpeg", mp3Payload())
	return s.do(http.MethodPost, "/api/tracks/upload", token, body, ct)
}

func (s *testServer) storedAudio() []os.DirEntry {
	entries, err := os.ReadDir(filepath.Join(s.root, string(storage.KindAudio)))
	require.NoError(s.t, err)
	return entries
}

func coverForm(t *testing.T, name string) (io.Reader, string) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", name))
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="coverFile"; filename="cover.png"`)
	hdr.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func msgOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	var m message
	decode(t, rec, &m)
	return m.Msg
}

type trackPage struct {
	Items       []view.Track `json:"items"`
	TotalPages  int          `json:"totalPages"`
	CurrentPage int          `json:"currentPage"`
}

func TestWelcomeAndHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api", "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, msgOf(t, rec))

	rec = s.do(http.MethodGet, "/api/health", "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodOptions, "/api/tracks/upload", "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)
	author, _ := s.register("alice")

	rec := s.upload("", map[string]string{"title": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Authorization denied, token missing or malformed", msgOf(t, rec))

	rec = s.upload("garbage", map[string]string{"title": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token is not valid", msgOf(t, rec))

	rec = s.do(http.MethodGet, "/api/tracks/pending", author, nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/api/users", author, nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	assert.Empty(t, s.storedAudio())
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)
	s.register("alice")

	rec := s.doJSON(http.MethodPost, "/api/users/register", "", map[string]string{
		"name": "again", "emailOrPhone": "alice@example.com", "password": "pw", "password2": "pw",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "User already exists", msgOf(t, rec))

	rec = s.doJSON(http.MethodPost, "/api/users/register", "", map[string]string{
		"name": "bob", "emailOrPhone": "bob@example.com", "password": "a", "password2": "b",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.doJSON(http.MethodPost, "/api/users/login", "", map[string]string{"emailOrPhone": "alice", "password": "pw"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.doJSON(http.MethodPost, "/api/users/login", "", map[string]string{"emailOrPhone": "alice", "password": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid credentials", msgOf(t, rec))

	rec = s.do(http.MethodPost, "/api/users/login", "", strings.NewReader("{"), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForgotPasswordIsNeutral(t *testing.T) {
	s := newTestServer(t)
	s.register("alice")

	for _, login := range []string{"alice@example.com", "ghost@example.com"} {
		rec := s.doJSON(http.MethodPost, "/api/users/forgot-password", "", map[string]string{"emailOrPhone": login})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, account.ResetNotice, msgOf(t, rec))
	}

	rec := s.doJSON(http.MethodPost, "/api/users/reset-password/bogus", "", map[string]string{"password": "new"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadModerationFlow(t *testing.T) {
	s := newTestServer(t)
	admin := s.admin()
	author, authorID := s.register("alice")

	rec := s.upload(author, map[string]string{"title": "Song"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created view.Track
	decode(t, rec, &created)
	assert.Equal(t, model.StatusPending, created.Status)
	assert.Equal(t, authorID, created.Author.ID)
	assert.Nil(t, created.Collection)
	assert.True(t, strings.HasPrefix(created.FileURL, "/uploads/audio/"), created.FileURL)

	var page trackPage
	rec = s.do(http.MethodGet, "/api/tracks", "", nil, "")
	decode(t, rec, &page)
	assert.Empty(t, page.Items)

	// 未审核的曲目对匿名用户不存在
	rec = s.do(http.MethodGet, "/api/tracks/"+created.ID, "", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(http.MethodGet, "/api/tracks/"+created.ID, author, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/tracks/pending", admin, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &page)
	assert.Len(t, page.Items, 1)

	rec = s.do(http.MethodPut, "/api/tracks/"+created.ID+"/approve", admin, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var approved view.Track
	decode(t, rec, &approved)
	assert.Equal(t, model.StatusApproved, approved.Status)

	rec = s.do(http.MethodGet, "/api/tracks", "", nil, "")
	decode(t, rec, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 1, page.TotalPages)

	rec = s.do(http.MethodGet, created.FileURL, "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, mp3Payload(), rec.Body.Bytes())

	rec = s.doJSON(http.MethodPut, "/api/tracks/"+created.ID, author, map[string]string{"title": "Song v2"})
	require.Equal(t, http.StatusOK, rec.Code)
	var edited view.Track
	decode(t, rec, &edited)
	assert.Equal(t, "Song v2", edited.Title)
	assert.Equal(t, model.StatusApproved, edited.Status)

	rec = s.do(http.MethodDelete, "/api/tracks/"+created.ID, author, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, s.storedAudio())
}

func TestUploadValidation(t *testing.T) {
	s := newTestServer(t)
	author, _ := s.register("alice")

	body, ct := audioForm(t, map[string]string{"title": "x"}, "text/plain", []byte("hello world"))
	rec := s.do(http.MethodPost, "/api/tracks/upload", author, body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	big := append(mp3Payload(), bytes.Repeat([]byte{1}, 1<<20)...)
	body, ct = audioForm(t, map[string]string{"title": "x"}, "audio/mpeg", big)
	rec = s.do(http.MethodPost, "/api/tracks/upload", author, body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 记录创建失败时文件被清理
	rec = s.upload(author, map[string]string{"title": "x", "collectionId": "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.upload(author, map[string]string{"title": " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, s.storedAudio())
}

func TestRouteOrder(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/tracks/search?q=anything", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page trackPage
	decode(t, rec, &page)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)

	rec = s.do(http.MethodGet, "/api/tracks/pending", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCollectionEndpoints(t *testing.T) {
	s := newTestServer(t)
	admin := s.admin()

	rec := s.doJSON(http.MethodPost, "/api/collections", admin, map[string]string{"name": "Summer", "description": "hot"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c view.Collection
	decode(t, rec, &c)

	rec = s.doJSON(http.MethodPost, "/api/collections", admin, map[string]string{"name": "Summer"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.upload(admin, map[string]string{"title": "Demo"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var tr view.Track
	decode(t, rec, &tr)
	assert.Equal(t, model.StatusApproved, tr.Status)

	addPath := "/api/collections/" + c.ID + "/add-track"
	rec = s.doJSON(http.MethodPut, addPath, admin, map[string]string{"trackId": tr.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.doJSON(http.MethodPut, addPath, admin, map[string]string{"trackId": tr.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = s.doJSON(http.MethodPut, addPath, admin, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.doJSON(http.MethodPut, "/api/collections/"+c.ID, admin, map[string]string{"name": "Summer Hits"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/collections/"+c.ID, "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var detail view.CollectionDetail
	decode(t, rec, &detail)
	assert.Equal(t, "Summer Hits", detail.Name)
	require.Len(t, detail.Tracks, 1)
	require.NotNil(t, detail.Tracks[0].Collection)
	assert.Equal(t, "Summer Hits", detail.Tracks[0].Collection.Name)

	rec = s.do(http.MethodDelete, "/api/collections/"+c.ID, admin, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/tracks/"+tr.ID, "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var after view.Track
	decode(t, rec, &after)
	assert.Nil(t, after.Collection)
}

func TestDeleteUserEndpoint(t *testing.T) {
	s := newTestServer(t)
	admin := s.admin()
	author, authorID := s.register("alice")

	rec := s.upload(author, map[string]string{"title": "Song"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodGet, "/api/users/authors", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var authors []view.AuthorRef
	decode(t, rec, &authors)
	assert.Len(t, authors, 2)

	rec = s.do(http.MethodDelete, "/api/users/"+authorID, admin, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, msgOf(t, rec), "alice")
	assert.Empty(t, s.storedAudio())

	_, total, err := s.repos.Tracks.List(context.Background(), repository.TrackFilter{AuthorID: authorID}, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, total)

	rec = s.do(http.MethodDelete, "/api/users/"+authorID, admin, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// 校验失败的上传不应写入存储
func TestInvalidUploadsNeverStored(t *testing.T) {
	assets := &storagetest.MockAssetStore{}
	s := newTestServerWithStore(t, assets, http.NotFoundHandler())
	author, _ := s.register("alice")
	admin := s.admin()

	rec := s.upload(author, map[string]string{"title": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.upload(author, map[string]string{"title": "x", "collectionId": "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	body, ct := coverForm(t, " ")
	rec = s.do(http.MethodPost, "/api/collections", admin, body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.doJSON(http.MethodPost, "/api/collections", admin, map[string]string{"name": "Summer"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c view.Collection
	decode(t, rec, &c)

	body, ct = coverForm(t, "Summer")
	rec = s.do(http.MethodPost, "/api/collections", admin, body, ct)
	assert.Equal(t, http.StatusConflict, rec.Code)

	body, ct = coverForm(t, "Winter")
	rec = s.do(http.MethodPut, "/api/collections/missing", admin, body, ct)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, s.repos.Collections.Create(context.Background(), &model.Collection{Name: "Winter"}))
	body, ct = coverForm(t, "Winter")
	rec = s.do(http.MethodPut, "/api/collections/"+c.ID, admin, body, ct)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// 非管理员在保存封面之前就被拒绝
	body, ct = coverForm(t, "Autumn")
	rec = s.do(http.MethodPost, "/api/collections", author, body, ct)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	assets.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
