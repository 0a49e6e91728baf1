package middleware

import (
	"context"
	"net/http"
	"strings"

	apierrors "auth-sessions-service/internal/transport/http/errors"

	"github.com/google/uuid"
)

// CtxAccountID — ключ контекста с id аккаунта аутентифицированного запроса.
const CtxAccountID ctxKey = "account_id"

// Authenticator проверяет access-токен и возвращает id аккаунта.
// Контракт реализует сервисный слой.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (uuid.UUID, error)
}

// RequireAuth требует валидный Bearer access-токен в Authorization
// и кладёт id аккаунта в контекст по ключу CtxAccountID.
// Отсутствие/невалидность токена — 401 до вызова обработчика.
func RequireAuth(authn Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				apierrors.WriteStatus(w, r, http.StatusUnauthorized,
					"unauthenticated", "missing bearer token")
				return
			}

			accountID, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				apierrors.WriteError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), CtxAccountID, accountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccountIDFrom возвращает id аккаунта, положенный RequireAuth.
func AccountIDFrom(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(CtxAccountID).(uuid.UUID)
	return id, ok
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}

	return strings.TrimSpace(auth[len(prefix):])
}
