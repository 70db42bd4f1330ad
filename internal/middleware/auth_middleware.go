package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"taskboard/internal/auth"
	"taskboard/internal/model"
)

const (
	UserIDKey = "userID"
	RoleKey   = "userRole"
)

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}

// JWTAuthMiddleware resolves the caller from the bearer token. The role claim
// is stored as is; unknown roles are rejected by the authorization checks.
func JWTAuthMiddleware(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			abort(c, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
			return
		}

		claims, err := tokens.ParseToken(parts[1])
		if err != nil {
			if errors.Is(err, auth.ErrInvalidClaims) {
				abort(c, http.StatusUnauthorized, "Invalid user ID in token")
				return
			}
			abort(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			abort(c, http.StatusUnauthorized, "Invalid user ID in token")
			return
		}

		c.Set(UserIDKey, userID)
		c.Set(RoleKey, model.Role(claims.Role))
		c.Next()
	}
}

// GetActor returns the caller stored by JWTAuthMiddleware.
func GetActor(c *gin.Context) (model.Actor, bool) {
	id, ok := c.Get(UserIDKey)
	if !ok {
		return model.Actor{}, false
	}
	userID, ok := id.(uuid.UUID)
	if !ok {
		return model.Actor{}, false
	}
	role, _ := c.Get(RoleKey)
	r, _ := role.(model.Role)
	return model.Actor{ID: userID, Role: r}, true
}

// RequireRoles lets the request through only for the given roles.
func RequireRoles(allowed ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "Unauthorized: Invalid token")
			return
		}

		for _, role := range allowed {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "You do not have permission to access this resource")
	}
}
