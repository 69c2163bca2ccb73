package httpx

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-storefront-checkout/internal/redisx"
	"github.com/redis/go-redis/v9"
)

type ctxKey int

const userIDKey ctxKey = iota

// Auth: Bearer token -> sess:{token} di Redis -> user_id. Session ditulis
// auth service (di luar repo ini). Token tak dikenal -> 401 sebelum ada
// akses store lain.
func Auth(rdb *redis.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" || token == r.Header.Get("Authorization") {
				writeError(w, http.StatusUnauthorized, "missing token")
				return
			}
			uid, err := rdb.Get(r.Context(), fmt.Sprintf(redisx.KeySession, token)).Result()
			if err != nil || uid == "" {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), uid)))
		})
	}
}

func WithUserID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, userIDKey, uid)
}

func UserID(ctx context.Context) string {
	uid, _ := ctx.Value(userIDKey).(string)
	return uid
}
