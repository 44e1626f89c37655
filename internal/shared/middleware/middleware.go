package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/YeonwooSung/ticketing-system/internal/shared/config"
	"github.com/YeonwooSung/ticketing-system/internal/shared/utils/response"
	"github.com/YeonwooSung/ticketing-system/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

// ContextUserID is the gin context key carrying the caller identity.
const ContextUserID = "user_id"

// Identity resolves the caller identity for every protected route.
// The primary source is the X-User-ID header; a Bearer token whose
// subject claim names the user is accepted as an alternative.
func Identity(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := c.GetHeader("X-User-ID"); userID != "" {
			c.Set(ContextUserID, userID)
			c.Next()
			return
		}

		if sub, ok := subjectFromBearer(c, cfg); ok {
			c.Set(ContextUserID, sub)
			c.Next()
			return
		}

		response.RespondJSON(c, "error", http.StatusUnauthorized, "X-User-ID header is required", nil, nil)
		c.Abort()
	}
}

// subjectFromBearer extracts the subject claim from an Authorization
// Bearer token, if one is present and valid.
func subjectFromBearer(c *gin.Context, cfg *config.Config) (string, bool) {
	if cfg == nil || cfg.JWT.Secret == "" {
		return "", false
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(cfg.JWT.Secret), nil
	})
	if err != nil || !token.Valid {
		return "", false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", false
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", false
	}
	return sub, true
}

// UserID returns the caller identity set by Identity, or "" when absent.
func UserID(c *gin.Context) string {
	if v, exists := c.Get(ContextUserID); exists {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// RequestLogger logs every request with method, path, status and latency.
func RequestLogger(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}
