package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"auth-sessions-service/internal/models"
	"auth-sessions-service/internal/pkg/log"
	"auth-sessions-service/internal/storage"

	"github.com/google/uuid"
)

// Refresh обновляет пару токенов по refresh-токену, ротируя его запись.
//
// Ветвление (каждая ветка возвращает ровно один из трёх тегов):
//  1. битая подпись/формат/истёкший JWT — OutcomeInvalid без похода в БД;
//  2. запись по jti отсутствует — OutcomeInvalid (токен никогда не
//     пересоздаётся по предъявленному значению);
//  3. запись активна — атомарная ротация: старая отзывается, преемница
//     в той же линии вставляется, выдаётся свежая пара (OutcomeSuccess);
//  4. запись уже отозвана — повтор использования:
//     внутри грейс-окна — OutcomeDuplicate без изменения состояния;
//     вне окна — сигнал компрометации: вся линия отзывается каскадом,
//     OutcomeInvalid.
//
// При гонке двух ротаций одного jti хранилище гарантирует победу ровно
// одной; проигравшая перечитывает запись и попадает в ветку повтора.
func (s *Service) Refresh(ctx context.Context, rawRefreshToken string) (*AuthResult, error) {
	const op = "service.refresh.Refresh"

	lg := log.From(ctx)
	invalid := &AuthResult{Outcome: OutcomeInvalid}

	accountID, jti, err := s.parseRefreshToken(rawRefreshToken)
	if err != nil {
		lg.Warn("refresh_token_rejected",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return invalid, nil
	}

	now := time.Now().UTC()

	// Быстрый путь: отозванный снимок в кэше решает ветку повтора без БД.
	// Снимок «не отозвана» для решения не используется: он может отставать.
	if s.tcache != nil {
		if entry, ok, err := s.tcache.Get(ctx, jti); err != nil {
			lg.Warn("token_cache_get_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		} else if ok && entry.Revoked {
			return s.decideReuse(ctx, jti, entry.AccountID, entry.Family, entry.RevokedAt, now)
		}
	}

	record, err := s.storage.RefreshTokenByJTI(ctx, jti)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("refresh_record_missing",
				slog.String("op", op),
				slog.String("jti", jti.String()),
			)
			return invalid, nil
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if record.Revoked {
		revokedAt := now
		if record.RevokedAt != nil {
			revokedAt = *record.RevokedAt
		}
		return s.decideReuse(ctx, jti, record.AccountID, record.Family, revokedAt, now)
	}

	// Страховка для записи, пережившей свой JWT (например, рассинхрон часов):
	// просроченная запись недействительна при использовании.
	if !now.Before(record.ExpiresAt) {
		return invalid, nil
	}

	result, err := s.rotate(ctx, record, accountID, now)
	if err != nil {
		if errors.Is(err, storage.ErrRevoked) {
			// Конкурентная ротация успела первой: перечитываем состояние
			// и принимаем решение по уже отозванной записи.
			fresh, rerr := s.storage.RefreshTokenByJTI(ctx, jti)
			if rerr != nil {
				if errors.Is(rerr, storage.ErrNotFound) {
					return invalid, nil
				}
				return nil, fmt.Errorf("%s: %w", op, rerr)
			}

			revokedAt := now
			if fresh.RevokedAt != nil {
				revokedAt = *fresh.RevokedAt
			}
			return s.decideReuse(ctx, jti, fresh.AccountID, fresh.Family, revokedAt, now)
		}

		if errors.Is(err, storage.ErrNotFound) {
			return invalid, nil
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

// rotate выпускает преемницу записи record и атомарно меняет их местами.
// Provenance-метки переносятся со старой записи: линия принадлежит одному
// устройству, а метки display-only.
func (s *Service) rotate(ctx context.Context, record *models.RefreshToken, accountID uuid.UUID, now time.Time) (*AuthResult, error) {
	const op = "service.refresh.rotate"

	newJTI := uuid.New()

	pair, err := s.mintTokenPair(ctx, accountID, newJTI, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	next := &models.RefreshToken{
		JTI:         newJTI,
		Family:      record.Family,
		AccountID:   record.AccountID,
		Fingerprint: fingerprint(pair.RefreshToken),
		Revoked:     false,
		ExpiresAt:   now.Add(s.cfg.RefreshTokenTTL),
		CreatedAt:   now,
		UserAgent:   record.UserAgent,
		DeviceLabel: record.DeviceLabel,
		IPAddress:   record.IPAddress,
	}

	if err := s.storage.Rotate(ctx, record.JTI, next); err != nil {
		return nil, err
	}

	s.cacheMarkRevoked(ctx, record.JTI, now)
	s.cacheToken(ctx, next)

	return &AuthResult{
		Outcome:   OutcomeSuccess,
		AccountID: record.AccountID,
		Tokens:    pair,
	}, nil
}

// decideReuse классифицирует повторное предъявление отозванного токена.
//
// Внутри грейс-окна повтор считается ретраем клиента, обогнавшим собственную
// ротацию: состояние не меняется, токены не выдаются. Вне окна повтор —
// признак кражи: отзываются все активные записи линии, и каждый токен,
// происходящий от исходного входа, перестаёт действовать.
func (s *Service) decideReuse(ctx context.Context, jti, accountID uuid.UUID, family string, revokedAt, now time.Time) (*AuthResult, error) {
	const op = "service.refresh.decideReuse"

	lg := log.From(ctx)

	if !revokedAt.IsZero() && now.Sub(revokedAt) < s.cfg.ReuseGraceWindow {
		lg.Info("refresh_duplicate_within_grace",
			slog.String("op", op),
			slog.String("jti", jti.String()),
			slog.String("account_id", accountID.String()),
		)
		return &AuthResult{Outcome: OutcomeDuplicate}, nil
	}

	lg.Warn("refresh_reuse_detected",
		slog.String("op", op),
		slog.String("jti", jti.String()),
		slog.String("account_id", accountID.String()),
	)

	revoked, err := s.storage.RevokeFamily(ctx, family, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, revokedJTI := range revoked {
		s.cacheMarkRevoked(ctx, revokedJTI, now)
	}

	return &AuthResult{Outcome: OutcomeInvalid}, nil
}

// SignOut отзывает предъявленный refresh-токен (одну запись, не линию).
func (s *Service) SignOut(ctx context.Context, rawRefreshToken string) error {
	const op = "service.refresh.SignOut"

	_, jti, err := s.parseRefreshToken(rawRefreshToken)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()

	revoked, err := s.storage.RevokeRefreshToken(ctx, jti, now)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if !revoked {
		return fmt.Errorf("%s: %w", op, ErrTokenRevoked)
	}

	s.cacheMarkRevoked(ctx, jti, now)

	return nil
}
