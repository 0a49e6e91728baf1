package middleware

import (
	"log/slog"
	"net/http"

	apierrors "auth-sessions-service/internal/transport/http/errors"

	logctx "auth-sessions-service/internal/pkg/log"
)

// Recover перехватывает panic, конвертирует в 500/internal и пишет
// унифицированный ответ. Детали паники не утекают на клиент.
func Recover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					// Безопасно логируем факт паники; детали наружу не отдаём.
					logctx.From(r.Context()).
						LogAttrs(r.Context(), slog.LevelError, "panic",
							slog.String("path", r.URL.Path),
							slog.Any("reason", rec),
						)
					apierrors.WriteStatus(w, r, http.StatusInternalServerError,
						"internal", "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
