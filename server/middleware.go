package server

import (
	"net/http"
	"strings"
	"time"

	"Romaly/core/auth"
	"Romaly/logger"
)

const bearerPrefix = "Bearer "

// identify 解析 Authorization 头。没有头时返回匿名身份，ok 为 false 表示令牌无效。
func (h *APIHandler) identify(r *http.Request) (id auth.Identity, present, ok bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return auth.Anonymous(), false, true
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return auth.Anonymous(), true, false
	}
	claims, err := h.tokens.Verify(strings.TrimSpace(header[len(bearerPrefix):]))
	if err != nil {
		return auth.Anonymous(), true, false
	}
	return auth.FromClaims(claims), true, true
}

// AuthMiddleware 要求有效令牌
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, present, ok := h.identify(r)
		if !present {
			writeMsg(w, http.StatusUnauthorized, "Authorization denied, token missing or malformed")
			return
		}
		if !ok {
			writeMsg(w, http.StatusUnauthorized, "Token is not valid")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	}
}

// OptionalAuth 公开接口：无令牌按匿名处理，带了无效令牌仍然拒绝
func (h *APIHandler) OptionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _, ok := h.identify(r)
		if !ok {
			writeMsg(w, http.StatusUnauthorized, "Token is not valid")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	}
}

// AdminMiddleware 在读取请求体之前拒绝非管理员
func (h *APIHandler) AdminMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return h.AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IdentityFrom(r.Context()).IsAdmin() {
			writeMsg(w, http.StatusForbidden, "Access denied. Admin role required.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("HTTP请求",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rec.status),
			logger.Duration("duration", time.Since(start)))
	})
}
