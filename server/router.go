package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter 注册全部 API。/search、/pending 必须在 /{id} 之前注册。
// assets 不为空时挂载在 assetPrefix 下提供上传文件。
// CORS 包在 mux 外层，否则预检请求匹配不到路由。
func NewRouter(h *APIHandler, assetPrefix string, assets http.Handler) http.Handler {
	router := mux.NewRouter()
	router.Use(loggingMiddleware)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("", h.WelcomeHandler).Methods(http.MethodGet)
	api.HandleFunc("/", h.WelcomeHandler).Methods(http.MethodGet)
	api.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)

	// 曲目
	api.HandleFunc("/tracks", h.GetTracksHandler).Methods(http.MethodGet)
	api.HandleFunc("/tracks/search", h.SearchTracksHandler).Methods(http.MethodGet)
	api.HandleFunc("/tracks/pending", h.AdminMiddleware(h.GetPendingTracksHandler)).Methods(http.MethodGet)
	api.HandleFunc("/tracks/upload", h.AuthMiddleware(h.UploadTrackHandler)).Methods(http.MethodPost)
	api.HandleFunc("/tracks/author/{authorId}", h.OptionalAuth(h.GetTracksByAuthorHandler)).Methods(http.MethodGet)
	api.HandleFunc("/tracks/{id}", h.OptionalAuth(h.GetTrackHandler)).Methods(http.MethodGet)
	api.HandleFunc("/tracks/{id}", h.AuthMiddleware(h.UpdateTrackHandler)).Methods(http.MethodPut)
	api.HandleFunc("/tracks/{id}", h.AuthMiddleware(h.DeleteTrackHandler)).Methods(http.MethodDelete)
	api.HandleFunc("/tracks/{id}/approve", h.AdminMiddleware(h.ApproveTrackHandler)).Methods(http.MethodPut)
	api.HandleFunc("/tracks/{id}/reject", h.AdminMiddleware(h.RejectTrackHandler)).Methods(http.MethodPut)

	// 合集
	api.HandleFunc("/collections", h.GetCollectionsHandler).Methods(http.MethodGet)
	api.HandleFunc("/collections", h.AdminMiddleware(h.CreateCollectionHandler)).Methods(http.MethodPost)
	api.HandleFunc("/collections/{id}", h.OptionalAuth(h.GetCollectionHandler)).Methods(http.MethodGet)
	api.HandleFunc("/collections/{id}", h.AdminMiddleware(h.UpdateCollectionHandler)).Methods(http.MethodPut)
	api.HandleFunc("/collections/{id}", h.AdminMiddleware(h.DeleteCollectionHandler)).Methods(http.MethodDelete)
	api.HandleFunc("/collections/{id}/add-track", h.AdminMiddleware(h.AddTrackToCollectionHandler)).Methods(http.MethodPut)
	api.HandleFunc("/collections/{id}/remove-track", h.AdminMiddleware(h.RemoveTrackFromCollectionHandler)).Methods(http.MethodPut)

	// 用户
	api.HandleFunc("/users/register", h.RegisterHandler).Methods(http.MethodPost)
	api.HandleFunc("/users/login", h.LoginHandler).Methods(http.MethodPost)
	api.HandleFunc("/users/forgot-password", h.ForgotPasswordHandler).Methods(http.MethodPost)
	api.HandleFunc("/users/reset-password/{token}", h.ResetPasswordHandler).Methods(http.MethodPost)
	api.HandleFunc("/users/authors", h.GetAuthorsHandler).Methods(http.MethodGet)
	api.HandleFunc("/users", h.AdminMiddleware(h.GetUsersHandler)).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}", h.AdminMiddleware(h.DeleteUserHandler)).Methods(http.MethodDelete)

	if assets != nil {
		router.PathPrefix(assetPrefix).Handler(assets).Methods(http.MethodGet, http.MethodHead)
	}
	return corsMiddleware(router)
}
