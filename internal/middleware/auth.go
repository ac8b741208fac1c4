package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/healthmate/core/internal/models"
	"github.com/healthmate/core/internal/pkg/jwt"
	"github.com/healthmate/core/internal/pkg/response"
	"gorm.io/gorm"
)

const ContextKeyUserID = "user_id"

// Auth returns a middleware that enforces JWT authentication and checks the
// user still exists.
func Auth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := validateRequest(db, c)
		if err != nil {
			response.Unauthorized(c)
			return
		}
		c.Set(ContextKeyUserID, user.ID)
		c.Next()
	}
}

// AdminOnly enforces authentication and requires the admin flag. Mount after
// no other auth middleware; it resolves the user itself.
func AdminOnly(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := validateRequest(db, c)
		if err != nil {
			response.Unauthorized(c)
			return
		}
		if !user.IsAdmin {
			response.Forbidden(c)
			return
		}
		c.Set(ContextKeyUserID, user.ID)
		c.Next()
	}
}

// OptionalAuth sets the user ID if a valid token is present, but does not
// block the request.
func OptionalAuth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user, err := validateRequest(db, c); err == nil {
			c.Set(ContextKeyUserID, user.ID)
		}
		c.Next()
	}
}

func validateRequest(db *gorm.DB, c *gin.Context) (*models.UserModel, error) {
	token := extractToken(c)
	if token == "" {
		return nil, errors.New("token is required")
	}

	claims, err := jwt.ParseFor(token, jwt.PurposeAuth)
	if err != nil {
		return nil, err
	}

	var user models.UserModel
	if err := db.First(&user, "id = ?", claims.UserID).Error; err != nil {
		return nil, errors.New("user no longer exists")
	}
	return &user, nil
}

// CurrentUserID extracts the authenticated user ID from context.
func CurrentUserID(c *gin.Context) string {
	v, _ := c.Get(ContextKeyUserID)
	id, _ := v.(string)
	return id
}

// IsAuthenticated returns true if the request has a valid auth token.
func IsAuthenticated(c *gin.Context) bool {
	return CurrentUserID(c) != ""
}

func extractToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if auth != "" {
		return NormalizeToken(auth)
	}
	return NormalizeToken(c.Query("token"))
}

// NormalizeToken trims spaces and strips optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
