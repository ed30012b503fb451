package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Role 用户角色。Listener 只代表未登录的访问者，不会落库。
type Role uint8

const (
	RoleListener Role = iota
	RoleAuthor
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleListener:
		return "listener"
	case RoleAuthor:
		return "author"
	case RoleAdmin:
		return "admin"
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

// ParseRole 解析角色字符串，大小写不敏感
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "listener":
		return RoleListener, nil
	case "author":
		return RoleAuthor, nil
	case "admin":
		return RoleAdmin, nil
	}
	return RoleListener, fmt.Errorf("unknown role %q", s)
}

func (r Role) MarshalText() ([]byte, error) {
	if r > RoleAdmin {
		return nil, fmt.Errorf("invalid role %d", uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Value 以字符串形式存储
func (r Role) Value() (driver.Value, error) {
	if r > RoleAdmin {
		return nil, fmt.Errorf("invalid role %d", uint8(r))
	}
	return r.String(), nil
}

func (r *Role) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return r.UnmarshalText([]byte(v))
	case []byte:
		return r.UnmarshalText(v)
	case nil:
		*r = RoleListener
		return nil
	}
	return fmt.Errorf("cannot scan %T into Role", src)
}
