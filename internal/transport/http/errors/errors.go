// errors стандартизирует ответы об ошибках HTTP-слоя.
// На вход он принимает ошибку сервисного слоя, а на выход даёт:
//   - корректный HTTP-статус;
//   - краткое безопасное message без утечки деталей.
//
// Бизнес-исходы signin/refresh (SUCCESS/DUPLICATE/INVALID) сюда не
// попадают: по ним ветвятся сами хендлеры. Здесь маппятся только
// ошибки-ошибки: валидация, конфликты, отказы инфраструктуры.
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"auth-sessions-service/internal/service"
)

// APIError — единый формат ошибки для клиента.
// Code — короткий стабильный код для машиночитаемой обработки.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует ошибку сервисного слоя в HTTP-статус и
// унифицированный ответ.
//
// Поведение:
//   - err == nil — программная ошибка вызова: 500/internal, чтобы не
//     послать "200 OK" с телом ошибки и не замаскировать баг;
//   - валидация регистрации -> 400, занятый email -> 409;
//   - проблемы с токеном -> 401 (invalid/expired/revoked различимы кодом);
//   - истёкший дедлайн запроса -> 504;
//   - прочее -> 500/internal (без утечки деталей).
func ToHTTP(err error) (int, ErrorResponse) {
	if err == nil {
		return http.StatusInternalServerError, response("internal", "internal error")
	}

	switch {
	case errors.Is(err, service.ErrInvalidEmail):
		return http.StatusBadRequest, response("invalid_email", "invalid email format")
	case errors.Is(err, service.ErrEmptyPassword):
		return http.StatusBadRequest, response("empty_password", "password is empty")
	case errors.Is(err, service.ErrWeakPassword):
		return http.StatusBadRequest, response("weak_password", "password is too weak")
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, response("email_taken", "email already taken")
	case errors.Is(err, service.ErrTokenExpired):
		return http.StatusUnauthorized, response("token_expired", "token expired")
	case errors.Is(err, service.ErrTokenRevoked):
		return http.StatusUnauthorized, response("token_revoked", "token revoked")
	case errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized, response("invalid_token", "invalid token")
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, response("deadline_exceeded", "deadline exceeded")
	default:
		return http.StatusInternalServerError, response("internal", "internal error")
	}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)
	writeResponse(w, r, status, resp)
}

// WriteStatus пишет ответ с заданным кодом/сообщением без маппинга ошибки.
// Используется хендлерами для бизнес-исходов (invalid_credentials,
// duplicate_request) и локальных ошибок парсинга тела.
func WriteStatus(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeResponse(w, r, status, response(code, message))
}

func writeResponse(w http.ResponseWriter, r *http.Request, status int, resp ErrorResponse) {
	// Прокидываем request_id, чтобы клиент мог репортить баги с привязкой.
	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func response(code, message string) ErrorResponse {
	return ErrorResponse{Error: APIError{Code: code, Message: message}}
}
