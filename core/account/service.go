// Package account 注册、登录、密码重置与用户删除
package account

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"Romaly/cache"
	"Romaly/core/apperr"
	"Romaly/core/auth"
	"Romaly/core/view"
	"Romaly/logger"
	"Romaly/model"
	"Romaly/repository"
	"Romaly/storage"
)

// ResetNotice 不论账号是否存在都返回同一句话
const ResetNotice = "If an account with that email or phone exists, a password reset link has been sent."

const authorListLimit = 10

type Service struct {
	users    repository.UserRepository
	tracks   repository.TrackRepository
	assets   storage.AssetStore
	tokens   *auth.TokenService
	cache    cache.PageCache
	resetTTL time.Duration
	baseURL  string
	now      func() time.Time
}

type Options struct {
	ResetTTL time.Duration
	BaseURL  string
	Cache    cache.PageCache
}

func NewService(
	users repository.UserRepository,
	tracks repository.TrackRepository,
	assets storage.AssetStore,
	tokens *auth.TokenService,
	opts Options,
) *Service {
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = time.Hour
	}
	if opts.Cache == nil {
		opts.Cache = cache.Nop{}
	}
	return &Service{
		users:    users,
		tracks:   tracks,
		assets:   assets,
		tokens:   tokens,
		cache:    opts.Cache,
		resetTTL: opts.ResetTTL,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		now:      time.Now,
	}
}

// Session 登录成功后返回给客户端
type Session struct {
	Token string     `json:"token"`
	Role  model.Role `json:"role"`
}

type RegisterInput struct {
	Name      string `json:"name"`
	Login     string `json:"emailOrPhone"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
}

func (s *Service) issue(u *model.User) (*Session, error) {
	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, apperr.Unexpected("failed to issue token", err)
	}
	return &Session{Token: token, Role: u.Role}, nil
}

var errPasswordTooLong = apperr.Validation(fmt.Sprintf("Password must be at most %d bytes", auth.MaxPasswordBytes))

// Register 新用户一律是作者
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	name := strings.TrimSpace(in.Name)
	login := strings.TrimSpace(in.Login)
	if name == "" || login == "" || in.Password == "" || in.Password2 == "" {
		return nil, apperr.Validation("Please enter all fields")
	}
	if in.Password != in.Password2 {
		return nil, apperr.Validation("Passwords do not match")
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return nil, errPasswordTooLong
	}

	existing, err := s.users.FindByLogin(ctx, login)
	if err != nil {
		return nil, apperr.Unexpected("failed to look up user", err)
	}
	if existing != nil {
		return nil, apperr.Conflict("User already exists")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Unexpected("failed to hash password", err)
	}
	u := &model.User{Name: name, Login: login, PasswordHash: hash, Role: model.RoleAuthor}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, apperr.Conflict("User already exists")
		}
		return nil, apperr.Unexpected("failed to create user", err)
	}

	logger.Info("[Register] 新用户注册", logger.String("userId", u.ID), logger.String("name", u.Name))
	return s.issue(u)
}

// Login 支持登录名或显示名
func (s *Service) Login(ctx context.Context, login, password string) (*Session, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, apperr.Validation("Please enter all fields")
	}
	u, err := s.users.FindByLoginOrName(ctx, login)
	if err != nil {
		return nil, apperr.Unexpected("failed to look up user", err)
	}
	if u == nil || !auth.CheckPasswordHash(password, u.PasswordHash) {
		logger.Warn("[Login] 登录失败", logger.String("login", login))
		return nil, apperr.Validation("Invalid credentials")
	}
	logger.Info("[Login] 登录成功", logger.String("userId", u.ID))
	return s.issue(u)
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newResetToken() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// ForgotPassword 生成重置令牌并记录重置链接。返回的 token 只用于测试与日志。
func (s *Service) ForgotPassword(ctx context.Context, login string) (string, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return "", apperr.Validation("Please enter your email or phone")
	}
	u, err := s.users.FindByLogin(ctx, login)
	if err != nil {
		return "", apperr.Unexpected("failed to look up user", err)
	}
	if u == nil {
		return "", nil
	}

	token, err := newResetToken()
	if err != nil {
		return "", apperr.Unexpected("failed to generate reset token", err)
	}
	if _, err := s.users.SetResetToken(ctx, u.ID, hashToken(token), s.now().Add(s.resetTTL)); err != nil {
		return "", apperr.Unexpected("failed to store reset token", err)
	}

	logger.Info("[ForgotPassword] 已生成重置链接",
		logger.String("userId", u.ID),
		logger.String("url", s.baseURL+"/reset-password.html?token="+token))
	return token, nil
}

func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if password == "" {
		return apperr.Validation("Please enter a new password")
	}
	if err := auth.ValidatePassword(password); err != nil {
		return errPasswordTooLong
	}
	if token == "" {
		return apperr.Validation("Password reset token is invalid or has expired")
	}
	u, err := s.users.FindByResetToken(ctx, hashToken(token), s.now())
	if err != nil {
		return apperr.Unexpected("failed to look up reset token", err)
	}
	if u == nil {
		return apperr.Validation("Password reset token is invalid or has expired")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return apperr.Unexpected("failed to hash password", err)
	}
	if _, err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return apperr.Unexpected("failed to update password", err)
	}
	logger.Info("[ResetPassword] 密码已重置", logger.String("userId", u.ID))
	return nil
}

func (s *Service) ListUsers(ctx context.Context, id auth.Identity) ([]view.User, error) {
	if err := auth.RequireAdmin(id); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx, nil, 0)
	if err != nil {
		return nil, apperr.Unexpected("failed to list users", err)
	}
	out := make([]view.User, 0, len(users))
	for _, u := range users {
		out = append(out, view.NewUser(u))
	}
	return out, nil
}

// ListAuthors 公开接口，只返回名字
func (s *Service) ListAuthors(ctx context.Context) ([]view.AuthorRef, error) {
	users, err := s.users.List(ctx, []model.Role{model.RoleAuthor, model.RoleAdmin}, authorListLimit)
	if err != nil {
		return nil, apperr.Unexpected("failed to list authors", err)
	}
	out := make([]view.AuthorRef, 0, len(users))
	for _, u := range users {
		out = append(out, view.AuthorRef{ID: u.ID, Name: u.Name})
	}
	return out, nil
}

// DeleteUser 管理员删除用户及其全部曲目，不能删除自己
func (s *Service) DeleteUser(ctx context.Context, id auth.Identity, userID string) (*view.User, error) {
	if err := auth.RequireAdmin(id); err != nil {
		return nil, err
	}
	if userID == id.UserID {
		return nil, apperr.Validation("You cannot delete your own account")
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.Unexpected("failed to look up user", err)
	}
	if u == nil {
		return nil, apperr.NotFound("User not found")
	}
	if err := s.purge(ctx, u); err != nil {
		return nil, err
	}
	v := view.NewUser(u)
	return &v, nil
}

// purge 删除音频文件（失败只记日志）、曲目记录，最后删除用户
func (s *Service) purge(ctx context.Context, u *model.User) error {
	tracks, err := s.tracks.FindByAuthor(ctx, u.ID)
	if err != nil {
		return apperr.Unexpected("failed to load user tracks", err)
	}
	for _, t := range tracks {
		storage.Release(ctx, s.assets, t.FileRef)
	}
	removed, err := s.tracks.DeleteByAuthor(ctx, u.ID)
	if err != nil {
		return apperr.Unexpected("failed to delete user tracks", err)
	}
	if _, err := s.users.Delete(ctx, u.ID); err != nil {
		return apperr.Unexpected("failed to delete user", err)
	}
	s.cache.Invalidate(ctx)

	logger.Info("用户已删除",
		logger.String("userId", u.ID),
		logger.String("name", u.Name),
		logger.Int64("tracks", removed))
	return nil
}

// SeedAdmin 幂等：登录名已存在时什么也不做
func (s *Service) SeedAdmin(ctx context.Context, name, login, password string) (bool, error) {
	name, login = strings.TrimSpace(name), strings.TrimSpace(login)
	if name == "" || login == "" || password == "" {
		return false, apperr.Validation("admin name, login and password are required")
	}
	if err := auth.ValidatePassword(password); err != nil {
		return false, errPasswordTooLong
	}
	existing, err := s.users.FindByLogin(ctx, login)
	if err != nil {
		return false, apperr.Unexpected("failed to look up admin", err)
	}
	if existing != nil {
		if existing.Role != model.RoleAdmin {
			logger.Warn("种子管理员的登录名已被普通用户占用", logger.String("login", login))
		}
		return false, nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, apperr.Unexpected("failed to hash password", err)
	}
	u := &model.User{Name: name, Login: login, PasswordHash: hash, Role: model.RoleAdmin}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return false, nil
		}
		return false, apperr.Unexpected("failed to create admin", err)
	}
	logger.Info("管理员账号已创建", logger.String("login", login))
	return true, nil
}

// CleanupNonAdmins 删除全部非管理员用户及其曲目，返回删除的用户数
func (s *Service) CleanupNonAdmins(ctx context.Context) (int, error) {
	users, err := s.users.List(ctx, []model.Role{model.RoleAuthor, model.RoleListener}, 0)
	if err != nil {
		return 0, apperr.Unexpected("failed to list users", err)
	}
	n := 0
	for _, u := range users {
		if err := s.purge(ctx, u); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
