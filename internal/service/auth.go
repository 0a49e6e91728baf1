package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"auth-sessions-service/internal/models"
	"auth-sessions-service/internal/pkg/log"
	"auth-sessions-service/internal/pkg/redact"
	"auth-sessions-service/internal/pkg/useragent"
	"auth-sessions-service/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// SignUp регистрирует аккаунт и атомарно открывает первую линию
// refresh-токенов: аккаунт и первая запись создаются одной транзакцией,
// при занятом email не появляется ни одна из них (ErrEmailTaken).
func (s *Service) SignUp(ctx context.Context, params SignUpParams, client ClientContext) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.auth.SignUp"

	normEmail, err := validateEmail(params.Email)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if err := validatePassword(params.Password); err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	hashedPassword, err := hashPassword(params.Password)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	accountID := uuid.New()
	jti := uuid.New()

	family, err := newFamilyID()
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.mintTokenPair(ctx, accountID, jti, now)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	account := &models.Account{
		ID:           accountID,
		FirstName:    params.FirstName,
		MiddleName:   params.MiddleName,
		LastName:     params.LastName,
		Email:        normEmail,
		PasswordHash: hashedPassword,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	token := s.newTokenRecord(accountID, jti, family, pair.RefreshToken, now, client)

	if err := s.storage.CreateAccountWithToken(ctx, account, token); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	s.cacheToken(ctx, token)

	log.From(ctx).Info("account_registered",
		slog.String("op", op),
		slog.String("account_id", accountID.String()),
		slog.String("email", redact.Email(normEmail)),
	)

	return pair, accountID, nil
}

// SignIn выполняет вход по email+пароль.
//
// Каждый успешный вход открывает независимую линию refresh-токенов
// (новый family), поэтому сессии разных устройств отзываются независимо.
// «Нет такого email» и «неверный пароль» не различаются в ответе
// (защита от перебора аккаунтов): оба дают OutcomeInvalid.
func (s *Service) SignIn(ctx context.Context, email, password string, client ClientContext) (*AuthResult, error) {
	const op = "service.auth.SignIn"

	invalid := &AuthResult{Outcome: OutcomeInvalid}

	normEmail, err := validateEmail(email)
	if err != nil {
		return invalid, nil
	}

	if len(password) == 0 {
		return invalid, nil
	}

	account, err := s.storage.AccountByEmail(ctx, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return invalid, nil
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(account.PasswordHash, password) {
		log.From(ctx).Warn("signin_wrong_password",
			slog.String("op", op),
			slog.String("email", redact.Email(normEmail)),
		)
		return invalid, nil
	}

	now := time.Now().UTC()
	jti := uuid.New()

	family, err := newFamilyID()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.mintTokenPair(ctx, account.ID, jti, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	token := s.newTokenRecord(account.ID, jti, family, pair.RefreshToken, now, client)

	if err := s.storage.SaveRefreshToken(ctx, token); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.cacheToken(ctx, token)

	return &AuthResult{
		Outcome:   OutcomeSuccess,
		AccountID: account.ID,
		Tokens:    pair,
	}, nil
}

// Authenticate проверяет access-токен и возвращает id аккаунта.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (uuid.UUID, error) {
	const op = "service.auth.Authenticate"

	accountID, err := s.parseAccessToken(accessToken)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	return accountID, nil
}

// mintTokenPair выпускает свежую пару access+refresh без обращения к хранилищу.
func (s *Service) mintTokenPair(ctx context.Context, accountID, jti uuid.UUID, now time.Time) (*models.TokenPair, error) {
	accessToken, err := s.issueAccessToken(ctx, accountID, now)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.issueRefreshToken(ctx, accountID, jti, now)
	if err != nil {
		return nil, err
	}

	return &models.TokenPair{
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		AccessExpiresAt: now.Add(s.cfg.AccessTokenTTL),
	}, nil
}

// newTokenRecord собирает запись refresh-токена с provenance-метками клиента.
func (s *Service) newTokenRecord(accountID, jti uuid.UUID, family, rawRefresh string, now time.Time, client ClientContext) *models.RefreshToken {
	userAgent := client.UserAgent
	if userAgent == "" {
		userAgent = "Unknown"
	}

	ipAddress := client.IPAddress
	if ipAddress == "" {
		ipAddress = "Unknown"
	}

	return &models.RefreshToken{
		JTI:         jti,
		Family:      family,
		AccountID:   accountID,
		Fingerprint: fingerprint(rawRefresh),
		Revoked:     false,
		ExpiresAt:   now.Add(s.cfg.RefreshTokenTTL),
		CreatedAt:   now,
		UserAgent:   userAgent,
		DeviceLabel: useragent.DeviceLabel(client.UserAgent),
		IPAddress:   ipAddress,
	}
}

// hashPassword хэширует пароль с помощью bcrypt.
func hashPassword(password string) (string, error) {
	const op = "service.auth.hashPassword"

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

// checkPassword сравнивает пароль с хэшем.
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// validateEmail проверяет базовый формат email и обрезает пробелы снаружи.
func validateEmail(raw string) (string, error) {
	const op = "service.auth.validateEmail"

	email := strings.TrimSpace(raw)
	if email == "" {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	return strings.ToLower(email), nil
}

// validatePassword проверяет минимальные требования к паролю.
// Политика по умолчанию: длина >= 8, хотя бы одна строчная, заглавная, цифра и спецсимвол.
func validatePassword(pw string) error {
	const op = "service.auth.validatePassword"

	if len(pw) == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}

	if len([]rune(pw)) < 8 {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !(hasLower && hasUpper && hasDigit && hasSpecial) {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	return nil
}
