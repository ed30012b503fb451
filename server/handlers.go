package server

import (
	"net/http"

	"Romaly/config"
	"Romaly/core/account"
	"Romaly/core/auth"
	"Romaly/core/collection"
	"Romaly/core/pagination"
	"Romaly/core/track"
	"Romaly/storage"
)

// APIHandler 处理所有API请求
type APIHandler struct {
	tokens      *auth.TokenService
	tracks      *track.Manager
	collections *collection.Manager
	accounts    *account.Service
	assets      storage.AssetStore
	audioPolicy storage.Policy
	coverPolicy storage.Policy
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(
	cfg *config.Config,
	tokens *auth.TokenService,
	tracks *track.Manager,
	collections *collection.Manager,
	accounts *account.Service,
	assets storage.AssetStore,
) *APIHandler {
	return &APIHandler{
		tokens:      tokens,
		tracks:      tracks,
		collections: collections,
		accounts:    accounts,
		assets:      assets,
		audioPolicy: storage.AudioPolicy(cfg.MaxAudioMB, cfg.AllowedAudioTypes),
		coverPolicy: storage.CoverPolicy(),
	}
}

func (h *APIHandler) WelcomeHandler(w http.ResponseWriter, r *http.Request) {
	writeMsg(w, http.StatusOK, "Welcome to the AI-Romaly API")
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pageParams 读取 ?page=&limit=
func pageParams(r *http.Request) pagination.Params {
	q := r.URL.Query()
	return pagination.Parse(q.Get("page"), q.Get("limit"))
}
