package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tunahanclrr/salon-api/internal/model"
	"github.com/tunahanclrr/salon-api/internal/storage"
	"github.com/tunahanclrr/salon-api/libs/auth"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandler struct {
	users     *storage.UserRepository
	secret    string
	accessTTL time.Duration
	logger    *slog.Logger
}

func NewAuthHandler(users *storage.UserRepository, secret string, accessTTL time.Duration, logger *slog.Logger) *AuthHandler {
	if accessTTL <= 0 {
		accessTTL = 12 * time.Hour
	}
	return &AuthHandler{users: users, secret: secret, accessTTL: accessTTL, logger: logger}
}

type registerRequest struct {
	Email       string          `json:"email"`
	Password    string          `json:"password"`
	Name        string          `json:"name"`
	Role        string          `json:"role"`
	Permissions map[string]bool `json:"permissions"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type userResponse struct {
	UserID      string          `json:"user_id"`
	Email       string          `json:"email"`
	Name        string          `json:"name"`
	Role        string          `json:"role"`
	Permissions map[string]bool `json:"permissions,omitempty"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "valid email is required"})
		return
	}
	if len(req.Password) < 8 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "password must be at least 8 characters"})
		return
	}
	switch req.Role {
	case "":
		req.Role = "staff"
	case "owner", "admin", "staff":
	default:
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "role must be owner, admin or staff"})
		return
	}
	// Only an authenticated owner/admin can create elevated accounts. The
	// very first registration (no claims) bootstraps the owner.
	claims := ClaimsFromContext(r.Context())
	if claims != nil && !claims.Allowed("settings") {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "permission denied"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, err)
		return
	}
	user := model.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: string(hash),
		Role:         req.Role,
		Permissions:  req.Permissions,
	}
	id, err := h.users.Create(r.Context(), &user)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, errorBody{Error: "email already registered"})
			return
		}
		writeError(w, err)
		return
	}
	h.logger.Info("user registered", "user_id", id, "role", req.Role)
	writeJSON(w, http.StatusCreated, userResponse{
		UserID:      id,
		Email:       user.Email,
		Name:        user.Name,
		Role:        user.Role,
		Permissions: user.Permissions,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if storage.IsNotFound(err) {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid credentials"})
			return
		}
		writeError(w, err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid credentials"})
		return
	}

	now := time.Now()
	token, err := auth.SignHS256(auth.Claims{
		Sub:         user.ID,
		Role:        user.Role,
		Permissions: user.Permissions,
		Iat:         now.Unix(),
		Exp:         now.Add(h.accessTTL).Unix(),
	}, h.secret)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.accessTTL.Seconds()),
	})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing bearer token"})
		return
	}
	user, err := h.users.Get(r.Context(), claims.Sub)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{
		UserID:      user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Role:        user.Role,
		Permissions: user.Permissions,
	})
}

func (h *AuthHandler) Users(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		users, err := h.users.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]userResponse, 0, len(users))
		for _, u := range users {
			out = append(out, userResponse{
				UserID:      u.ID,
				Email:       u.Email,
				Name:        u.Name,
				Role:        u.Role,
				Permissions: u.Permissions,
			})
		}
		writeJSON(w, http.StatusOK, out)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type updatePermissionsRequest struct {
	Permissions map[string]bool `json:"permissions"`
}

func (h *AuthHandler) UpdatePermissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "id is required"})
		return
	}
	var req updatePermissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}
	if err := h.users.UpdatePermissions(r.Context(), id, req.Permissions); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": id, "permissions": req.Permissions})
}
