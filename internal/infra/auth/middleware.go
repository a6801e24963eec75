package auth

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// Тип для ключей в контексте (избегаем коллизий)
type ctxKey string

const (
	permissionsKey ctxKey = "caller_permissions"
	userIDKey      ctxKey = "user_id"
)

// NewMiddleware проверяет Bearer-токен и прокидывает набор разрешений
// вызывающего в контекст. Сам конвейер токены не трогает — он получает
// уже готовый набор разрешений.
func NewMiddleware(v TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := v.VerifyToken(authHeader)
			if err != nil {
				logger.Warn("auth failure", zap.Error(err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			// Прокидываем данные в контекст
			ctx := context.WithValue(r.Context(), permissionsKey, claims.Permissions)
			ctx = context.WithValue(ctx, userIDKey, claims.UserID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerPermissions достает набор разрешений из контекста.
// Пустой набор — валидный вход для конвейера: Guard откажет сам.
func CallerPermissions(ctx context.Context) map[string]bool {
	if perms, ok := ctx.Value(permissionsKey).(map[string]bool); ok {
		return perms
	}
	return map[string]bool{}
}

// UserID достает идентификатор вызывающего (для логов).
func UserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}
