package api

import (
	"alcyxob/wellness-portal/internal/domain"
	"alcyxob/wellness-portal/internal/identity"
	"alcyxob/wellness-portal/internal/logger"
	"alcyxob/wellness-portal/internal/repository"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Constants for context keys
const (
	ContextUserIDKey   = "userID"
	ContextUserRoleKey = "userRole"
	ContextSessionKey  = "session"
)

// AuthMiddleware verifies the bearer token with the identity service and
// loads the caller's role from their profile.
func AuthMiddleware(auth identity.Service, profiles repository.ProfileRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
			return
		}

		session, err := auth.Verify(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, identity.ErrSessionRevoked) {
				abortWithError(c, http.StatusUnauthorized, "Session has been signed out")
			} else {
				abortWithError(c, http.StatusUnauthorized, "Invalid or expired token")
			}
			return
		}

		profile, err := profiles.GetByID(c.Request.Context(), session.AccountID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				abortWithError(c, http.StatusForbidden, "Profile not found for this account")
			} else {
				abortWithError(c, http.StatusInternalServerError, "Failed to load profile")
			}
			return
		}

		c.Set(ContextUserIDKey, session.AccountID.Hex())
		c.Set(ContextUserRoleKey, profile.Role)
		c.Set(ContextSessionKey, session)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.Split(c.GetHeader("Authorization"), " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// Helper to return JSON error response and abort request
func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

// RoleMiddleware creates middleware to check if user has the required role(s).
// Must run AFTER AuthMiddleware.
func RoleMiddleware(allowedRoles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, err := getUserRoleFromContext(c)
		if err != nil {
			abortWithError(c, http.StatusInternalServerError, err.Error())
			return
		}
		if !slices.Contains(allowedRoles, userRole) {
			abortWithError(c, http.StatusForbidden, fmt.Sprintf("Access denied: Role '%s' does not have permission", userRole))
			return
		}
		c.Next()
	}
}

// RequestLogger logs one line per request, leveled by response status.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if uid, ok := c.Get(ContextUserIDKey); ok {
			fields = append(fields, "user_id", uid)
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}

func CORS(allowOrigins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Location"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// Helper function to get User ID from context (used by handlers)
func getUserIDFromContext(c *gin.Context) (primitive.ObjectID, error) {
	idRaw, exists := c.Get(ContextUserIDKey)
	if !exists {
		return primitive.NilObjectID, errors.New("user ID not found in context")
	}
	idStr, ok := idRaw.(string)
	if !ok {
		return primitive.NilObjectID, errors.New("invalid user ID type in context")
	}
	return primitive.ObjectIDFromHex(idStr)
}

// Helper function to get User Role from context (used by handlers)
func getUserRoleFromContext(c *gin.Context) (domain.Role, error) {
	roleRaw, exists := c.Get(ContextUserRoleKey)
	if !exists {
		return "", errors.New("user role not found in context")
	}
	role, ok := roleRaw.(domain.Role)
	if !ok {
		return "", errors.New("invalid user role type in context")
	}
	return role, nil
}

func getSessionFromContext(c *gin.Context) (*identity.Session, error) {
	raw, exists := c.Get(ContextSessionKey)
	if !exists {
		return nil, errors.New("session not found in context")
	}
	session, ok := raw.(*identity.Session)
	if !ok {
		return nil, errors.New("invalid session type in context")
	}
	return session, nil
}
