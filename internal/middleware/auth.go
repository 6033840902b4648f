package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "studytrack/backend/internal/errors"
)

const (
	UserIDContextKey = "userID"

	// accessTokenParam carries the token for clients that cannot set
	// headers, such as EventSource.
	accessTokenParam = "access_token"
)

// TokenParser resolves a bearer token to a user id.
type TokenParser interface {
	ParseToken(token string) (string, *apperrors.APIError)
}

func Auth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, apiErr := bearerToken(c)
		if apiErr != nil {
			writeError(c, apiErr)
			return
		}

		userID, apiErr := parser.ParseToken(token)
		if apiErr != nil {
			writeError(c, apiErr)
			return
		}

		c.Set(UserIDContextKey, userID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, *apperrors.APIError) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := strings.TrimSpace(c.Query(accessTokenParam)); token != "" {
			return token, nil
		}
		return "", apperrors.Unauthorized("missing authorization header")
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", apperrors.Unauthorized("invalid authorization format")
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", apperrors.Unauthorized("invalid authorization format")
	}
	return token, nil
}

func UserID(c *gin.Context) string {
	value, ok := c.Get(UserIDContextKey)
	if !ok {
		return ""
	}
	userID, ok := value.(string)
	if !ok {
		return ""
	}
	return userID
}

func writeError(c *gin.Context, apiErr *apperrors.APIError) {
	body := gin.H{
		"code":    apiErr.Code,
		"message": apiErr.Message,
	}
	if apiErr.Details != nil {
		body["details"] = apiErr.Details
	}
	c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": body})
}
