package handlers

import (
	"net/http"
	"time"

	"auth-sessions-service/internal/transport/http/middleware"

	apierrors "auth-sessions-service/internal/transport/http/errors"
)

type sessionView struct {
	DeviceLabel string    `json:"device_label"`
	UserAgent   string    `json:"user_agent"`
	IPAddress   string    `json:"ip_address"`
	CreatedAt   time.Time `json:"created_at"`
}

type sessionsResponse struct {
	Sessions []sessionView `json:"sessions"`
}

// Sessions — GET /v1/auth/sessions (за RequireAuth).
// Возвращает активные сессии аккаунта: только provenance-метки,
// сами токены в ответ не попадают.
func (h *Handlers) Sessions(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFrom(r.Context())
	if !ok {
		// Достижимо только при ошибке монтирования маршрута без RequireAuth.
		apierrors.WriteStatus(w, r, http.StatusUnauthorized,
			"unauthenticated", "missing bearer token")
		return
	}

	sessions, err := h.svc.Sessions(r.Context(), accountID)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	out := sessionsResponse{Sessions: make([]sessionView, 0, len(sessions))}
	for _, s := range sessions {
		out.Sessions = append(out.Sessions, sessionView{
			DeviceLabel: s.DeviceLabel,
			UserAgent:   s.UserAgent,
			IPAddress:   s.IPAddress,
			CreatedAt:   s.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, out)
}
