package middleware

import (
	"context"
	"net/http"
	"strings"

	"hooka/internal/util"

	"github.com/rs/zerolog"
)

// Injected key type to avoid context collisions
type contextKey string

const (
	UserContextKey     = contextKey("user")
	rejectedContextKey = contextKey("token_rejected")
)

// TokenVerifier validates a bearer token.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*util.Claims, error)
}

// Identity attaches the verified user id to the request context. Requests
// without a token continue anonymously; requests with an invalid token
// continue too but are marked so user-scoped actions can refuse them.
// A nil verifier leaves every request anonymous.
func Identity(verifier TokenVerifier, logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("middleware", "Identity").Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if verifier == nil || authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				logger.Warn().Msg("Invalid authorization header")
				next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, rejectedContextKey, true)))
				return
			}
			claims, err := verifier.Verify(ctx, parts[1])
			if err != nil {
				logger.Warn().Err(err).Msg("Invalid token")
				next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, rejectedContextKey, true)))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, UserContextKey, claims.Subject)))
		})
	}
}

// UserID returns the verified user id, if any.
func UserID(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(UserContextKey).(string)
	return uid, ok && uid != ""
}

// TokenRejected reports whether the request carried a token that failed verification.
func TokenRejected(ctx context.Context) bool {
	v, _ := ctx.Value(rejectedContextKey).(bool)
	return v
}

// WithUserID returns ctx carrying uid, as Identity would after verification.
func WithUserID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, UserContextKey, uid)
}
