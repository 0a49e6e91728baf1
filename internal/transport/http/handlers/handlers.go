// handlers реализует REST-эндпойнты сервиса сессий поверх chi.
// Слой тонкий: парсинг тела, извлечение клиентских меток, вызов сервиса
// и маппинг исходов/ошибок на HTTP-статусы. Бизнес-логики здесь нет.
package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"auth-sessions-service/internal/service"
)

// Handlers агрегирует зависимости эндпойнтов.
type Handlers struct {
	svc *service.Service
}

func New(svc *service.Service) *Handlers {
	return &Handlers{svc: svc}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError / WriteStatus.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}

// clientContext извлекает provenance-метки клиента из запроса.
// IP берётся из первого значения X-Forwarded-For (сервис живёт за
// reverse-proxy), иначе из RemoteAddr.
func clientContext(r *http.Request) service.ClientContext {
	return service.ClientContext{
		UserAgent: r.UserAgent(),
		IPAddress: clientIP(r),
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, ok := strings.Cut(xff, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(xff)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
