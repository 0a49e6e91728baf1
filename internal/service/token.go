package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"auth-sessions-service/internal/cache"
	"auth-sessions-service/internal/models"
	"auth-sessions-service/internal/pkg/log"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// refreshClaims — claims refresh-токена: Subject несёт id аккаунта,
// RegisteredClaims.ID — jti. Идентификатор линии (family) в токен
// не попадает и существует только на сервере.
type refreshClaims struct {
	jwt.RegisteredClaims
}

// issueAccessToken выпускает access-токен, связывающий только id аккаунта.
func (s *Service) issueAccessToken(ctx context.Context, accountID uuid.UUID, now time.Time) (string, error) {
	const op = "service.token.issueAccessToken"

	claims := jwt.RegisteredClaims{
		Subject:   accountID.String(),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTokenTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    s.cfg.Issuer,
		Audience:  jwt.ClaimStrings(s.cfg.Audience),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		log.From(ctx).Error("access_token_sign_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// issueRefreshToken выпускает refresh-токен, связывающий id аккаунта и jti.
func (s *Service) issueRefreshToken(ctx context.Context, accountID, jti uuid.UUID, now time.Time) (string, error) {
	const op = "service.token.issueRefreshToken"

	claims := refreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti.String(),
			Subject:   accountID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.RefreshTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.cfg.Issuer,
			Audience:  jwt.ClaimStrings(s.cfg.Audience),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		log.From(ctx).Error("refresh_token_sign_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// parseAccessToken валидирует access-токен и возвращает id аккаунта.
func (s *Service) parseAccessToken(tokenStr string) (uuid.UUID, error) {
	const op = "service.token.parseAccessToken"

	token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
			}

			return []byte(s.cfg.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5*time.Second),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience...),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}

		return uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return accountID, nil
}

// parseRefreshToken валидирует refresh-токен и возвращает (accountID, jti).
func (s *Service) parseRefreshToken(tokenStr string) (uuid.UUID, uuid.UUID, error) {
	const op = "service.token.parseRefreshToken"

	token, err := jwt.ParseWithClaims(tokenStr, &refreshClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
			}

			return []byte(s.cfg.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5*time.Second),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience...),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}

		return uuid.Nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	claims, ok := token.Claims.(*refreshClaims)
	if !ok || !token.Valid {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	jti, err := uuid.Parse(claims.ID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return accountID, jti, nil
}

// fingerprint — детерминированный дайджест сырого значения токена
// (sha256 → base64url). Хранится для сверки/аудита; ключом поиска
// и основанием решений остаётся jti.
func fingerprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// newFamilyID генерирует идентификатор новой линии refresh-токенов:
// 32 случайных байта в hex, независимо от jti.
func newFamilyID() (string, error) {
	const op = "service.token.newFamilyID"

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return hex.EncodeToString(b), nil
}

// cacheToken кладёт снимок записи в кэш (best-effort: ошибка кэша
// не влияет на исход операции, только логируется).
func (s *Service) cacheToken(ctx context.Context, token *models.RefreshToken) {
	if s.tcache == nil {
		return
	}

	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return
	}

	entry := &cache.Entry{
		AccountID: token.AccountID,
		Family:    token.Family,
		Revoked:   token.Revoked,
		ExpiresAt: token.ExpiresAt,
	}
	if token.RevokedAt != nil {
		entry.RevokedAt = *token.RevokedAt
	}

	if err := s.tcache.Set(ctx, token.JTI, entry, ttl); err != nil {
		log.From(ctx).Warn("token_cache_set_failed",
			slog.String("jti", token.JTI.String()),
			slog.String("err", err.Error()),
		)
	}
}

// cacheMarkRevoked помечает снимок в кэше отозванным (best-effort).
func (s *Service) cacheMarkRevoked(ctx context.Context, jti uuid.UUID, revokedAt time.Time) {
	if s.tcache == nil {
		return
	}

	if err := s.tcache.MarkRevoked(ctx, jti, revokedAt); err != nil {
		log.From(ctx).Warn("token_cache_revoke_failed",
			slog.String("jti", jti.String()),
			slog.String("err", err.Error()),
		)
	}
}
