package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"phonecase-backend/internal/middleware"
	"phonecase-backend/internal/models"

	"github.com/rs/zerolog/log"
)

type userAccounts interface {
	SignUp(ctx context.Context, name, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	GoogleLoginURL(ctx context.Context) (string, error)
	GoogleCallback(ctx context.Context, state, code string) (string, error)
	SendPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	Me(ctx context.Context, publicID string) (*models.User, error)
}

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userService userAccounts
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService userAccounts) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// SignUpRequest is the body of POST /user/user-signup
type SignUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUpResponse is returned by a successful signup
type SignUpResponse struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

// TokenResponse is returned by a successful login
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// SignUp handles POST /user/user-signup
func (h *UserHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.userService.SignUp(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		respondServiceError(w, err, "create user")
		return
	}

	log.Info().Str("public_id", user.PublicID).Msg("User created")
	respondJSON(w, http.StatusCreated, SignUpResponse{
		Message: "user created successfully",
		UserID:  user.PublicID,
	})
}

// Login handles POST /user/user-login with an OAuth2 password form
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, "Invalid form", http.StatusBadRequest)
		return
	}

	token, err := h.userService.Login(r.Context(), r.PostForm.Get("username"), r.PostForm.Get("password"))
	if err != nil {
		respondServiceError(w, err, "log in")
		return
	}

	respondJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// GoogleLogin handles GET /user/google-login
func (h *UserHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	url, err := h.userService.GoogleLoginURL(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to start google login")
		respondError(w, "Google login unavailable", http.StatusServiceUnavailable)
		return
	}
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// GoogleCallback handles GET /user/google/callback
func (h *UserHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		respondError(w, "google login failed: "+e, http.StatusUnauthorized)
		return
	}

	redirect, err := h.userService.GoogleCallback(r.Context(), q.Get("state"), q.Get("code"))
	if err != nil {
		respondServiceError(w, err, "complete google login")
		return
	}
	http.Redirect(w, r, redirect, http.StatusTemporaryRedirect)
}

// SendPasswordResetMail handles POST /user/send-password-reset-mail
func (h *UserHandler) SendPasswordResetMail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		respondError(w, "email is required", http.StatusBadRequest)
		return
	}

	if err := h.userService.SendPasswordReset(r.Context(), req.Email); err != nil {
		respondServiceError(w, err, "send password reset mail")
		return
	}
	respondJSON(w, http.StatusOK, MessageResponse{Message: "password reset mail sent"})
}

// ResetPassword handles POST /user/reset-password
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		respondError(w, "token and new_password are required", http.StatusBadRequest)
		return
	}

	if err := h.userService.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		respondServiceError(w, err, "reset password")
		return
	}
	respondJSON(w, http.StatusOK, MessageResponse{Message: "password updated successfully"})
}

// Me handles GET /user/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.Me(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, err, "get user")
		return
	}
	respondJSON(w, http.StatusOK, user)
}
