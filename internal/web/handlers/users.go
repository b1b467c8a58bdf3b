package handlers

import (
	"net/http"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/database"
	"go.uber.org/zap"
)

// UsersHandler manages user accounts
type UsersHandler struct {
	users  database.UserStore
	logger *zap.Logger
}

// NewUsersHandler creates a new users handler
func NewUsersHandler(users database.UserStore, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{users: users, logger: logger}
}

type userRequest struct {
	Name        string   `json:"name"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	PhoneNumber string   `json:"phoneNumber"`
	Roles       []string `json:"roles"`
}

const errUserNotFound = "user not found"

// List returns every user
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		respondStoreError(w, h.logger, err, "")
		return
	}
	if users == nil {
		users = []database.User{}
	}
	respondJSON(w, http.StatusOK, users)
}

// Get returns one user
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		respondStoreError(w, h.logger, err, errUserNotFound)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// Create adds a user with the given roles
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username, email and password are required")
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
		Roles:        requestedRoles(req.Roles),
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		respondStoreError(w, h.logger, err, "")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// Update changes profile fields; an empty password keeps the old one and
// an empty role list keeps the old roles.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req userRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		respondStoreError(w, h.logger, err, errUserNotFound)
		return
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if s := strings.TrimSpace(req.Username); s != "" {
		user.Username = s
	}
	if s := strings.TrimSpace(req.Email); s != "" {
		user.Email = s
	}
	if req.PhoneNumber != "" {
		user.PhoneNumber = req.PhoneNumber
	}
	if req.Password != "" {
		hash, err := hashPassword(req.Password)
		if err != nil {
			h.logger.Error("Failed to hash password", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to update user")
			return
		}
		user.PasswordHash = hash
	}
	if len(req.Roles) > 0 {
		user.Roles = requestedRoles(req.Roles)
	}

	if err := h.users.Update(r.Context(), user); err != nil {
		respondStoreError(w, h.logger, err, errUserNotFound)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// Delete removes a user
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.users.Delete(r.Context(), id); err != nil {
		respondStoreError(w, h.logger, err, errUserNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
