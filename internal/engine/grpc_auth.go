package engine

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/xela07ax/salesai-autopilot/internal/domain"
	"github.com/xela07ax/salesai-autopilot/internal/infra/auth"
)

// UnaryAuthInterceptor проверяет RS256-токен в метаданных gRPC вызова.
// Та же проверка и те же ключи контекста, что и в HTTP middleware консоли:
// откуда бы запрос ни пришел, scopes достаются одинаково.
func UnaryAuthInterceptor(v auth.TokenValidator) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		// 1. Извлекаем метаданные из контекста
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Errorf(codes.Unauthenticated, "missing metadata")
		}

		// 2. Ищем токен (в gRPC заголовки обычно в нижнем регистре)
		tokens := md.Get("authorization")
		if len(tokens) == 0 {
			return nil, status.Errorf(codes.Unauthenticated, "missing access token")
		}

		// 3. Валидируем подпись ("Bearer " срезает сам валидатор)
		claims, err := v.VerifyToken(tokens[0])
		if err != nil {
			return nil, status.Errorf(codes.Unauthenticated, "invalid token")
		}

		// 4. Обогащаем контекст для хендлеров
		newCtx := context.WithValue(ctx, "user_scopes", claims.Scopes)
		newCtx = context.WithValue(newCtx, "user_id", claims.UserID)

		// Идем дальше по цепочке
		return handler(newCtx, req)
	}
}

// requireScope — точечный контроль прав в хендлерах; admin покрывает всё
func requireScope(ctx context.Context, scope string) error {
	scopes := auth.ScopesFromContext(ctx)
	if !scopes[domain.ScopeAdmin] && !scopes[scope] {
		return status.Errorf(codes.PermissionDenied, "scope %s required", scope)
	}
	return nil
}
