package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	users  database.UserStore
	tokens *middleware.TokenManager
	logger *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users database.UserStore, tokens *middleware.TokenManager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the access token; ExpiresIn is in milliseconds.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

type signupRequest struct {
	Name        string   `json:"name"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	PhoneNumber string   `json:"phoneNumber"`
	Role        []string `json:"role"`
	Roles       []string `json:"roles"`
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// Require both username and password
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := h.users.GetByUsername(r.Context(), req.Username)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		respondStoreError(w, h.logger, err, "user not found")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		h.logger.Info("Failed login", zap.String("username", sanitizeForLog(req.Username)))
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	issued, err := h.tokens.Issue(user)
	if err != nil {
		h.logger.Error("Failed to issue token", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	respondJSON(w, http.StatusOK, LoginResponse{
		Token:     issued.Token,
		ExpiresIn: issued.TTL.Milliseconds(),
	})
}

// Signup registers a new account
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username, email and password are required")
		return
	}

	ctx := r.Context()
	if exists, err := h.users.ExistsByUsername(ctx, req.Username); err != nil {
		respondStoreError(w, h.logger, err, "")
		return
	} else if exists {
		respondError(w, http.StatusBadRequest, "Error: Username is already taken!")
		return
	}
	if exists, err := h.users.ExistsByEmail(ctx, req.Email); err != nil {
		respondStoreError(w, h.logger, err, "")
		return
	} else if exists {
		respondError(w, http.StatusBadRequest, "Error: Email is already in use!")
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		h.logger.Error("Failed to hash password", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	user := &database.User{
		Name:         req.Name,
		Username:     req.Username,
		Email:        req.Email,
		PhoneNumber:  req.PhoneNumber,
		PasswordHash: hash,
		Roles:        requestedRoles(append(req.Role, req.Roles...)),
	}
	if err := h.users.Create(ctx, user); err != nil {
		if errors.Is(err, database.ErrConflict) {
			respondError(w, http.StatusBadRequest, "Error: Username or email is already in use!")
			return
		}
		respondStoreError(w, h.logger, err, "")
		return
	}

	h.logger.Info("User signed up", zap.Int64("user_id", user.ID), zap.String("username", sanitizeForLog(user.Username)))
	respondJSON(w, http.StatusOK, user)
}

// Logout revokes the presented token
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.tokens.Revoke(r.Context(), p); err != nil {
		h.logger.Error("Failed to revoke token", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to log out")
		return
	}
	respondMessage(w, "Logged out")
}

// Me returns the authenticated user
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, err := h.users.Get(r.Context(), p.UserID)
	if err != nil {
		respondStoreError(w, h.logger, err, "user not found")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// requestedRoles maps requested role names; no request means ROLE_USER.
func requestedRoles(names []string) []database.Role {
	if len(names) == 0 {
		return []database.Role{database.RoleUser}
	}
	seen := make(map[database.Role]bool)
	var roles []database.Role
	for _, name := range names {
		role := database.RoleFromRequest(name)
		if !seen[role] {
			seen[role] = true
			roles = append(roles, role)
		}
	}
	return roles
}
