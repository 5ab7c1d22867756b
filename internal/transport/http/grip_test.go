package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fanchat-io/fanchat-server/internal/config"
)

func signGripSig(t *testing.T, key string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "fanout",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	sig, err := token.SignedString([]byte(key))
	if err != nil {
		t.Fatalf("failed to sign grip sig: %v", err)
	}
	return sig
}

func streamRequest(slug string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/room/"+slug+"/messages", nil)
	req.Header.Set("Accept", "text/event-stream")
	return req
}

func TestStreamNegotiationRejectsUnproxied(t *testing.T) {
	router, _, _ := newTestRouter(t, nil)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, streamRequest("devops-bcn"))

	if resp.Code != http.StatusNotAcceptable {
		t.Errorf("expected status 406 without GRIP proxy, got %d", resp.Code)
	}
}

func TestStreamNegotiationRejectsUnsigned(t *testing.T) {
	router, _, _ := newTestRouter(t, func(cfg *config.Config) {
		cfg.GripVerifyKey = "verify-key"
	})

	// Proxied but carrying a signature from the wrong key.
	req := streamRequest("devops-bcn")
	req.Header.Set("Grip-Sig", signGripSig(t, "wrong-key"))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotImplemented {
		t.Errorf("expected status 501 for unsigned proxy, got %d", resp.Code)
	}
}

func TestStreamNegotiationHold(t *testing.T) {
	tests := []struct {
		name      string
		verifyKey string
		sigKey    string
	}{
		{name: "unsigned deployment", verifyKey: "", sigKey: "anything"},
		{name: "signed deployment", verifyKey: "verify-key", sigKey: "verify-key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _, _ := newTestRouter(t, func(cfg *config.Config) {
				cfg.GripVerifyKey = tt.verifyKey
			})

			req := streamRequest("devops-bcn")
			req.Header.Set("Grip-Sig", signGripSig(t, tt.sigKey))
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			if resp.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
			}
			if got := resp.Header().Get("Grip-Hold"); got != "stream" {
				t.Errorf("expected Grip-Hold 'stream', got %q", got)
			}
			if got := resp.Header().Get("Grip-Channel"); got != "room-devops-bcn" {
				t.Errorf("expected Grip-Channel 'room-devops-bcn', got %q", got)
			}
			if got := resp.Header().Get("Content-Type"); got != "text/event-stream" {
				t.Errorf("expected event-stream content type, got %q", got)
			}
			if resp.Body.Len() != 0 {
				t.Errorf("expected empty hold body, got %q", resp.Body.String())
			}
		})
	}
}

func TestStreamNegotiationExpiredSig(t *testing.T) {
	router, _, _ := newTestRouter(t, func(cfg *config.Config) {
		cfg.GripVerifyKey = "verify-key"
	})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "fanout",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	sig, err := token.SignedString([]byte("verify-key"))
	if err != nil {
		t.Fatalf("failed to sign grip sig: %v", err)
	}

	req := streamRequest("devops-bcn")
	req.Header.Set("Grip-Sig", sig)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotImplemented {
		t.Errorf("expected status 501 for expired signature, got %d", resp.Code)
	}
}

func TestNonStreamingRequestFallsThrough(t *testing.T) {
	// An ordinary JSON request on the same endpoint is handled as a
	// one-shot page fetch even with GRIP configured.
	router, _, _ := newTestRouter(t, func(cfg *config.Config) {
		cfg.GripVerifyKey = "verify-key"
	})

	req := httptest.NewRequest(http.MethodGet, "/room/devops-bcn/messages", nil)
	req.Header.Set("Accept", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.Code)
	}
	if got := resp.Header().Get("Grip-Hold"); got != "" {
		t.Errorf("expected no hold instruction, got %q", got)
	}
}
