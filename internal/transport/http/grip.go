package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/fanchat-io/fanchat-server/internal/core"
)

const (
	contextKeyGrip = "grip_status"

	headerGripSig     = "Grip-Sig"
	headerGripHold    = "Grip-Hold"
	headerGripChannel = "Grip-Channel"

	contentTypeEventStream = "text/event-stream"
)

// GripStatus describes how a request arrived relative to the streaming edge
// proxy. It is resolved once per request by GripMiddleware.
type GripStatus struct {
	// Proxied is true when the request carries a Grip-Sig header, meaning
	// it passed through a GRIP proxy.
	Proxied bool
	// Signed is true when the Grip-Sig validated against the verify key.
	Signed bool
	// NeedsSigned is true when this deployment requires signed proxies.
	NeedsSigned bool
}

// GripMiddleware inspects the Grip-Sig header. The signature is a JWT
// issued by the proxy; when a verify key is configured it must validate.
func GripMiddleware(verifyKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := GripStatus{NeedsSigned: verifyKey != ""}

		if sig := c.GetHeader(headerGripSig); sig != "" {
			status.Proxied = true
			if verifyKey != "" {
				status.Signed = validGripSig(sig, verifyKey)
			}
		}

		c.Set(contextKeyGrip, status)
		c.Next()
	}
}

func validGripSig(sig, verifyKey string) bool {
	token, err := jwt.Parse(sig, func(*jwt.Token) (interface{}, error) {
		return []byte(verifyKey), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	return err == nil && token.Valid
}

func gripStatus(c *gin.Context) GripStatus {
	if v, ok := c.Get(contextKeyGrip); ok {
		if status, ok := v.(GripStatus); ok {
			return status
		}
	}
	return GripStatus{}
}

// wantsEventStream reports whether the request negotiates a streaming
// content type.
func wantsEventStream(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), contentTypeEventStream)
}

// holdStream issues the hold instruction: bind the connection to the room
// channel and leave it open. The proxy keeps the connection alive; no
// heartbeat or timeout logic lives here.
func holdStream(c *gin.Context, slug string) {
	c.Header(headerGripHold, "stream")
	c.Header(headerGripChannel, core.ChannelForSlug(slug))
	c.Data(http.StatusOK, contentTypeEventStream, nil)
}
