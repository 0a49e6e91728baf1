package handlers

import (
	"net/http"
	"time"

	"auth-sessions-service/internal/service"

	apierrors "auth-sessions-service/internal/transport/http/errors"
)

type signUpRequest struct {
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name,omitempty"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type signOutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccountID       string    `json:"account_id,omitempty"`
	AccessToken     string    `json:"access_token"`
	RefreshToken    string    `json:"refresh_token"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
}

// SignUp — POST /v1/auth/signup.
// 201 — аккаунт создан, выдана первая пара токенов;
// 400 — валидация email/пароля; 409 — email занят.
func (h *Handlers) SignUp(w http.ResponseWriter, r *http.Request) {
	var in signUpRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteStatus(w, r, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	params := service.SignUpParams{
		FirstName:  in.FirstName,
		MiddleName: in.MiddleName,
		LastName:   in.LastName,
		Email:      in.Email,
		Password:   in.Password,
	}

	pair, accountID, err := h.svc.SignUp(r.Context(), params, clientContext(r))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, tokenResponse{
		AccountID:       accountID.String(),
		AccessToken:     pair.AccessToken,
		RefreshToken:    pair.RefreshToken,
		AccessExpiresAt: pair.AccessExpiresAt,
	})
}

// SignIn — POST /v1/auth/signin.
// 200 — вход выполнен; 401 — неверные учётные данные (без различения
// «нет такого email» и «неверный пароль»).
func (h *Handlers) SignIn(w http.ResponseWriter, r *http.Request) {
	var in signInRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteStatus(w, r, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	result, err := h.svc.SignIn(r.Context(), in.Email, in.Password, clientContext(r))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if result.Outcome != service.OutcomeSuccess {
		apierrors.WriteStatus(w, r, http.StatusUnauthorized,
			"invalid_credentials", "invalid email or password")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccountID:       result.AccountID.String(),
		AccessToken:     result.Tokens.AccessToken,
		RefreshToken:    result.Tokens.RefreshToken,
		AccessExpiresAt: result.Tokens.AccessExpiresAt,
	})
}

// Refresh — POST /v1/auth/refresh.
// 200 — ротация выполнена, выдана свежая пара;
// 409 — безобидный повтор внутри грейс-окна (клиенту стоит дождаться
// исходного ответа, новые токены не выдавались);
// 401 — токен недействителен (в т.ч. повтор вне окна: линия отозвана).
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteStatus(w, r, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	result, err := h.svc.Refresh(r.Context(), in.RefreshToken)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	switch result.Outcome {
	case service.OutcomeSuccess:
		writeJSON(w, http.StatusOK, tokenResponse{
			AccountID:       result.AccountID.String(),
			AccessToken:     result.Tokens.AccessToken,
			RefreshToken:    result.Tokens.RefreshToken,
			AccessExpiresAt: result.Tokens.AccessExpiresAt,
		})
	case service.OutcomeDuplicate:
		apierrors.WriteStatus(w, r, http.StatusConflict,
			"duplicate_request", "refresh already in progress")
	default:
		apierrors.WriteStatus(w, r, http.StatusUnauthorized,
			"invalid_token", "invalid token")
	}
}

// SignOut — POST /v1/auth/signout.
// 204 — предъявленный refresh-токен отозван (одна запись, не линия);
// 401 — токен невалиден или уже отозван.
func (h *Handlers) SignOut(w http.ResponseWriter, r *http.Request) {
	var in signOutRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteStatus(w, r, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	if err := h.svc.SignOut(r.Context(), in.RefreshToken); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
