package handler

import (
	"context"
	"net/http"
	"strings"

	"taskboard/internal/apperr"
	"taskboard/internal/auth"
	"taskboard/internal/middleware"
	"taskboard/internal/model"

	"github.com/gin-gonic/gin"
)

// UserRepository is the part of the user store the handler needs.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	ListByRoles(ctx context.Context, roles ...model.Role) ([]model.User, error)
}

type UserHandler struct {
	repo   UserRepository
	tokens *auth.TokenManager
}

func NewUserHandler(repo UserRepository, tokens *auth.TokenManager) *UserHandler {
	return &UserHandler{repo: repo, tokens: tokens}
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"omitempty,oneof=user manager admin"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

var userMessages = map[string]string{
	"Name.required":     "Name is required",
	"Name.min":          "Name must be at least 2 characters",
	"Email.required":    "Email is required",
	"Email.email":       "Invalid email",
	"Password.required": "Password is required",
	"Password.min":      "Password must be at least 6 characters",
	"Role.oneof":        "Invalid role",
}

func (h *UserHandler) authResponse(user *model.User) (AuthResponse, error) {
	token, err := h.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return AuthResponse{}, apperr.Internal("Failed to generate token", err)
	}
	return AuthResponse{
		ID:    user.ID.String(),
		Name:  user.Name,
		Email: user.Email,
		Role:  string(user.Role),
		Token: token,
	}, nil
}

// Register создает учетную запись. Роль по умолчанию: user.
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindingError(err, userMessages))
		return
	}

	role := model.RoleUser
	if req.Role != "" {
		parsed, err := model.ParseRole(req.Role)
		if err != nil {
			respondError(c, apperr.Validation("Invalid role", map[string]string{"role": "Invalid role"}))
			return
		}
		role = parsed
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	// Между проверкой и вставкой возможна гонка; уникальный индекс её закрывает
	existing, err := h.repo.FindByEmail(c.Request.Context(), email)
	if err != nil {
		respondError(c, apperr.Internal("Failed to look up user", err))
		return
	}
	if existing != nil {
		respondError(c, apperr.Validation("User already exists", nil))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(c, apperr.Internal("Failed to hash password", err))
		return
	}

	user := &model.User{
		Name:           strings.TrimSpace(req.Name),
		Email:          email,
		HashedPassword: hash,
		Role:           role,
	}
	if err := h.repo.Create(c.Request.Context(), user); err != nil {
		respondError(c, apperr.Internal("Failed to create user", err))
		return
	}

	resp, err := h.authResponse(user)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Login проверяет пароль и выдает токен
func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindingError(err, userMessages))
		return
	}

	user, err := h.repo.FindByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		respondError(c, apperr.Internal("Failed to look up user", err))
		return
	}
	if user == nil || !auth.CheckPassword(req.Password, user.HashedPassword) {
		respondError(c, apperr.Unauthorized("Invalid email or password"))
		return
	}

	resp, err := h.authResponse(user)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetUsers lists the accounts the caller may assign tasks to: admins see
// users and managers, managers see users.
func (h *UserHandler) GetUsers(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		respondError(c, apperr.Unauthorized("Unauthorized: Invalid token"))
		return
	}

	var roles []model.Role
	switch actor.Role {
	case model.RoleAdmin:
		roles = []model.Role{model.RoleUser, model.RoleManager}
	case model.RoleManager:
		roles = []model.Role{model.RoleUser}
	default:
		respondError(c, apperr.Forbidden("Access Denied"))
		return
	}

	users, err := h.repo.ListByRoles(c.Request.Context(), roles...)
	if err != nil {
		respondError(c, apperr.Internal("Failed to list users", err))
		return
	}

	resp := UsersResponse{Success: true, Users: make([]UserResponse, 0, len(users))}
	for i := range users {
		resp.Users = append(resp.Users, newUserResponse(&users[i]))
	}
	c.JSON(http.StatusOK, resp)
}
