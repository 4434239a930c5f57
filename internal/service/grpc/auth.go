package grpcsvc

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
)

const authorizationHeader = "authorization"

type userContextKey struct{}

// Authenticator проверяет токен сессии.
type Authenticator interface {
	Authenticate(token string) (domain.User, error)
}

// AuthInterceptor кладёт пользователя в контекст, если передан bearer-токен.
// Неверный токен отклоняется; отсутствие токена допускается.
func AuthInterceptor(auth Authenticator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		token := bearerToken(ctx)
		if token == "" || auth == nil {
			return handler(ctx, req)
		}
		user, err := auth.Authenticate(token)
		if err != nil {
			return nil, toStatus(err)
		}
		return handler(context.WithValue(ctx, userContextKey{}, user), req)
	}
}

// UserFromContext возвращает пользователя, положенного AuthInterceptor.
func UserFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(userContextKey{}).(domain.User)
	return user, ok
}

func bearerToken(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(authorizationHeader)
	if len(values) == 0 {
		return ""
	}
	value := strings.TrimSpace(values[0])
	if len(value) > 7 && strings.EqualFold(value[:7], "bearer ") {
		return strings.TrimSpace(value[7:])
	}
	return value
}
