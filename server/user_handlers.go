package server

import (
	"net/http"

	"Romaly/core/account"
	"Romaly/core/auth"

	"github.com/gorilla/mux"
)

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req account.RegisterInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// LoginHandler emailOrPhone 也可以填显示名
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Login    string `json:"emailOrPhone"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.accounts.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// ForgotPasswordHandler 不暴露账号是否存在
func (h *APIHandler) ForgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Login string `json:"emailOrPhone"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.accounts.ForgotPassword(r.Context(), req.Login); err != nil {
		writeError(w, r, err)
		return
	}
	writeMsg(w, http.StatusOK, account.ResetNotice)
}

func (h *APIHandler) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.accounts.ResetPassword(r.Context(), mux.Vars(r)["token"], req.Password); err != nil {
		writeError(w, r, err)
		return
	}
	writeMsg(w, http.StatusOK, "Password has been updated.")
}

func (h *APIHandler) GetUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.accounts.ListUsers(r.Context(), auth.IdentityFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *APIHandler) GetAuthorsHandler(w http.ResponseWriter, r *http.Request) {
	authors, err := h.accounts.ListAuthors(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authors)
}

func (h *APIHandler) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	u, err := h.accounts.DeleteUser(r.Context(), auth.IdentityFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeMsg(w, http.StatusOK, "User "+u.Name+" and all of their tracks have been deleted.")
}
