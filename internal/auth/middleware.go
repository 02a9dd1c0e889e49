package auth

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"lifelock-backend/internal/httpx"
	"lifelock-backend/internal/logging"
)

type ctxKey string

const userIDKey ctxKey = "user_id"

// Middleware authenticates bearer tokens. With an empty secret it is
// disabled and every request runs as user 0.
type Middleware struct {
	secret []byte
	logger *zap.Logger
}

func New(secret []byte, logger *zap.Logger) Middleware {
	return Middleware{secret: secret, logger: logging.OrNop(logger)}
}

func (m Middleware) Enabled() bool { return len(m.secret) > 0 }

func (m Middleware) Wrap(next http.HandlerFunc) http.HandlerFunc {
	if !m.Enabled() {
		return func(w http.ResponseWriter, r *http.Request) {
			next(w, r.WithContext(WithUserID(r.Context(), 0)))
		}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			httpx.Error(w, http.StatusUnauthorized, "missing token")
			return
		}

		tokenString := strings.TrimPrefix(h, "Bearer ")
		userID, err := ParseToken(m.secret, tokenString)
		if err != nil {
			m.logger.Debug("rejected token", zap.Error(err), zap.String("path", r.URL.Path))
			httpx.Error(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next(w, r.WithContext(WithUserID(r.Context(), userID)))
	}
}

func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the authenticated user, or 0 and false outside
// a wrapped handler.
func UserIDFromContext(ctx context.Context) (int, bool) {
	v := ctx.Value(userIDKey)
	if v == nil {
		return 0, false
	}
	uid, ok := v.(int)
	return uid, ok
}
