package http

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fanchat-io/fanchat-server/internal/core"
)

const (
	// ContextKeyUser is the context key for the resolved acting user.
	ContextKeyUser = "current_user"
	// ContextKeyUTCOffset is the context key for the client UTC offset in minutes.
	ContextKeyUTCOffset = "utc_offset"
	// ContextKeyRequestID is the context key for the request id.
	ContextKeyRequestID = "request_id"

	headerUser      = "X-User"
	headerUTCOffset = "X-Utc-Offset"
	headerAPIKey    = "X-Api-Key"
	headerRequestID = "X-Request-Id"
)

// IdentityResolver derives the acting user for a request. Authentication is
// an external collaborator; this only decides where the identity comes from.
type IdentityResolver func(c *gin.Context) string

// HeaderIdentity reads the identity from the X-User header.
func HeaderIdentity() IdentityResolver {
	return func(c *gin.Context) string {
		return c.GetHeader(headerUser)
	}
}

// LocalIdentity reads X-User but substitutes a constant for requests
// without one. Development and tests only.
func LocalIdentity(user string) IdentityResolver {
	return func(c *gin.Context) string {
		if header := c.GetHeader(headerUser); header != "" {
			return header
		}
		return user
	}
}

// CurrentUserMiddleware stores the resolved identity in the context.
func CurrentUserMiddleware(resolve IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextKeyUser, resolve(c))
		c.Next()
	}
}

// UTCOffsetMiddleware parses the client's UTC offset header (minutes).
func UTCOffsetMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		offset := 0
		if header := c.GetHeader(headerUTCOffset); header != "" {
			if parsed, err := strconv.Atoi(strings.TrimSpace(header)); err == nil {
				offset = parsed
			}
		}
		c.Set(ContextKeyUTCOffset, offset)
		c.Next()
	}
}

// RequestIDMiddleware tags each request with a uuid for log correlation.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, id)
		c.Writer.Header().Set(headerRequestID, id)
		c.Next()
	}
}

// RequireAPIKey rejects requests without a known API key. Local mode skips
// the check entirely.
func RequireAPIKey(keys []string, localMode bool) gin.HandlerFunc {
	return requireKey(keys, localMode)
}

// RequireAdminKey rejects requests without the admin key.
func RequireAdminKey(adminKey string, localMode bool) gin.HandlerFunc {
	return requireKey([]string{adminKey}, localMode)
}

func requireKey(keys []string, localMode bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if localMode {
			c.Next()
			return
		}

		header := strings.TrimSpace(c.GetHeader(headerAPIKey))
		if header == "" {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "API key is missing", Code: core.ErrCodeUnauthorized})
			c.Abort()
			return
		}
		for _, key := range keys {
			if key != "" && subtle.ConstantTimeCompare([]byte(header), []byte(key)) == 1 {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "Invalid API key", Code: core.ErrCodeUnauthorized})
		c.Abort()
	}
}

// LoggerMiddleware logs each request after it completes.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Str("request_id", c.GetString(ContextKeyRequestID)).
			Msg("http request")
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString(ContextKeyUser)
}

func utcOffset(c *gin.Context) int {
	return c.GetInt(ContextKeyUTCOffset)
}
