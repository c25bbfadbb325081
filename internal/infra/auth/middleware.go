package auth

import (
	"context"
	"net/http"

	"github.com/xela07ax/salesai-autopilot/internal/domain"
	"go.uber.org/zap"
)

// TokenValidator — интерфейс, который должны реализовать и губернатор, и консоль
type TokenValidator interface {
	VerifyToken(tokenStr string) (*domain.CustomClaims, error)
}

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
			ctx := context.WithValue(r.Context(), "user_scopes", claims.Scopes)
			ctx = context.WithValue(ctx, "user_id", claims.UserID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireScope — точечный контроль прав поверх NewMiddleware.
// admin покрывает любой scope.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scopes := ScopesFromContext(r.Context())
			if !scopes[domain.ScopeAdmin] && !scopes[scope] {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext — кто делает запрос; пустая строка, если контекст без авторизации
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value("user_id").(string)
	return id
}

// ScopesFromContext всегда возвращает ненулевую map (удобно для проверок)
func ScopesFromContext(ctx context.Context) map[string]bool {
	scopes, _ := ctx.Value("user_scopes").(map[string]bool)
	if scopes == nil {
		return map[string]bool{}
	}
	return scopes
}
