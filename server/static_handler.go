package server

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"Romaly/logger"
	"Romaly/storage"
)

// objectOpener 由 storage.MinioStore 实现
type objectOpener interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, *storage.ObjectInfo, error)
}

// StaticHandler 处理 MinIO 静态文件请求
type StaticHandler struct {
	prefix string
	store  objectOpener
}

// NewStaticHandler 创建 StaticHandler 实例
func NewStaticHandler(prefix string, store objectOpener) *StaticHandler {
	return &StaticHandler{prefix: prefix, store: store}
}

// ServeHTTP 实现 http.Handler 接口
func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimPrefix(r.URL.Path, h.prefix)

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	object, info, err := h.store.Open(ctx, ref)
	if err != nil {
		if !storage.IsNotFound(err) {
			logger.Warn("读取对象失败", logger.String("ref", ref), logger.ErrorField(err))
		}
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	defer object.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = detectContentType(ref)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("Cache-Control", "public, max-age=31536000")

	if _, err := io.Copy(w, object); err != nil {
		logger.Error("Error serving file from MinIO", logger.ErrorField(err))
	}
}

// detectContentType 根据路径前缀检测内容类型
func detectContentType(path string) string {
	switch {
	case strings.HasPrefix(path, string(storage.KindCover)+"/"):
		return "image/jpeg"
	case strings.HasPrefix(path, string(storage.KindAudio)+"/"):
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}
