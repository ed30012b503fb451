package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"Romaly/logger"

	"github.com/google/uuid"
)

// Kind 资源类别，同时是存储路径的第一级目录
type Kind string

const (
	KindAudio Kind = "audio"
	KindCover Kind = "covers"
)

// ErrInvalidRef 引用为空或试图跳出存储根目录
var ErrInvalidRef = errors.New("invalid asset reference")

// AssetStore 上传资源的存取。Delete 失败不影响记录删除，由调用方记录日志。
type AssetStore interface {
	Put(ctx context.Context, kind Kind, r io.Reader, size int64, contentType, ext string) (string, error)
	Delete(ctx context.Context, ref string) error
	URLFor(ref string) string
}

// ObjectInfo 文件信息
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
}

// Lister 列出已存储的资源，供 cmd assets 使用
type Lister interface {
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// NewRef 生成形如 audio/<uuid>.mp3 的引用
func NewRef(kind Kind, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return string(kind) + "/" + uuid.NewString() + strings.ToLower(ext)
}

// CleanRef 规范化引用并拒绝绝对路径与 ..
func CleanRef(ref string) (string, error) {
	ref = strings.TrimSpace(strings.ReplaceAll(ref, "\\", "/"))
	if ref == "" || strings.HasPrefix(ref, "/") {
		return "", ErrInvalidRef
	}
	cleaned := path.Clean(ref)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidRef
	}
	return cleaned, nil
}

// Release 尽力删除资源，失败只记日志
func Release(ctx context.Context, store AssetStore, ref string) {
	if store == nil || ref == "" {
		return
	}
	if err := store.Delete(ctx, ref); err != nil {
		logger.Warn("资源删除失败", logger.String("ref", ref), logger.ErrorField(err))
	}
}

// BucketStats 存储统计信息
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
	PerKind      map[string]int64
}

// Summarize 汇总对象列表
func Summarize(objects []ObjectInfo) BucketStats {
	stats := BucketStats{PerKind: map[string]int64{}}
	for _, obj := range objects {
		stats.TotalObjects++
		stats.TotalSize += obj.Size
		if obj.LastModified.After(stats.LastModified) {
			stats.LastModified = obj.LastModified
		}
		kind := obj.Key
		if i := strings.Index(kind, "/"); i >= 0 {
			kind = kind[:i]
		}
		stats.PerKind[kind] += obj.Size
	}
	return stats
}

// FormatSize 格式化文件大小
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
