package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/net/websocket"
)

const (
	ErrTypeUnauthorized = "unauthorized"

	HeaderClientID = "X-Client-Id"
)

// GetTokenFromHTTPRequest returns the bearer token of the Authorization
// header, or the token query parameter when the header is missing.
func GetTokenFromHTTPRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

func verifyToken(token string, r *http.Request) error {
	if token == "" {
		return nil
	}

	got := GetTokenFromHTTPRequest(r)
	if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
		return errors.New("invalid auth token").
			WithType(ErrTypeUnauthorized).
			WithTag("remote_addr", r.RemoteAddr)
	}
	return nil
}

// VerifyAuthToken returns a websocket handshake that rejects connections
// without the given token. An empty token accepts every connection.
func VerifyAuthToken(token string) func(*websocket.Config, *http.Request) error {
	return func(c *websocket.Config, r *http.Request) error {
		if err := verifyToken(token, r); err != nil {
			logs.WithClientID(r.Header.Get(HeaderClientID)).Warn(err)
			return err
		}
		return nil
	}
}

// VerifyAuthTokenHandler is a middleware that responds 401 to requests
// without the given token.
func VerifyAuthTokenHandler(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := verifyToken(token, r); err != nil {
				logs.WithClientID(r.Header.Get(HeaderClientID)).Warn(err)
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
