package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auth-sessions-service/internal/models"
	"auth-sessions-service/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const refreshTokenColumns = `jti, jti_family, account_id, token_fingerprint, revoked, revoked_at, expires_at, created_at, user_agent, device_label, ip_address`

// insertRefreshToken — общая вставка записи; работает и в транзакции, и вне её.
func insertRefreshToken(ctx context.Context, tx pgx.Tx, token *models.RefreshToken) error {
	const query = `
		INSERT INTO refresh_tokens(jti, jti_family, account_id, token_fingerprint, revoked, expires_at, created_at, user_agent, device_label, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := tx.Exec(ctx, query,
		token.JTI,
		token.Family,
		token.AccountID,
		token.Fingerprint,
		token.Revoked,
		token.ExpiresAt,
		token.CreatedAt,
		token.UserAgent,
		token.DeviceLabel,
		token.IPAddress,
	)

	return err
}

// SaveRefreshToken сохраняет новую запись refresh-токена (новая линия при signin).
func (s *Storage) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	const op = "storage.postgres.SaveRefreshToken"

	const query = `
		INSERT INTO refresh_tokens(jti, jti_family, account_id, token_fingerprint, revoked, expires_at, created_at, user_agent, device_label, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.Exec(ctx, query,
		token.JTI,
		token.Family,
		token.AccountID,
		token.Fingerprint,
		token.Revoked,
		token.ExpiresAt,
		token.CreatedAt,
		token.UserAgent,
		token.DeviceLabel,
		token.IPAddress,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RefreshTokenByJTI находит запись refresh-токена по jti.
func (s *Storage) RefreshTokenByJTI(ctx context.Context, jti uuid.UUID) (*models.RefreshToken, error) {
	const op = "storage.postgres.RefreshTokenByJTI"

	query := `
		SELECT ` + refreshTokenColumns + `
		FROM refresh_tokens
		WHERE jti = $1
	`

	var token models.RefreshToken
	err := s.db.QueryRow(ctx, query, jti).Scan(
		&token.JTI,
		&token.Family,
		&token.AccountID,
		&token.Fingerprint,
		&token.Revoked,
		&token.RevokedAt,
		&token.ExpiresAt,
		&token.CreatedAt,
		&token.UserAgent,
		&token.DeviceLabel,
		&token.IPAddress,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &token, nil
}

// Rotate атомарно отзывает запись oldJTI и вставляет next из той же линии.
//
// Гарантии:
//   - обе операции фиксируются одной транзакцией либо откатываются вместе;
//   - предикат revoked = FALSE в UPDATE — единственная точка сериализации:
//     из двух конкурентных ротаций одного jti ровно одна увидит затронутую
//     строку, вторая получит storage.ErrRevoked и перечитает запись.
func (s *Storage) Rotate(ctx context.Context, oldJTI uuid.UUID, next *models.RefreshToken) error {
	const op = "storage.postgres.Rotate"

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const revoke = `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = $2
		WHERE jti = $1 AND revoked = FALSE
	`

	cmdTag, err := tx.Exec(ctx, revoke, oldJTI, next.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		// Либо записи нет, либо её уже отозвали — различаем отдельным чтением.
		const sel = `SELECT revoked FROM refresh_tokens WHERE jti = $1`

		var revoked bool
		if err := tx.QueryRow(ctx, sel, oldJTI).Scan(&revoked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
			}

			return fmt.Errorf("%s: %w", op, err)
		}

		return fmt.Errorf("%s: %w", op, storage.ErrRevoked)
	}

	if err := insertRefreshToken(ctx, tx, next); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RevokeFamily отзывает все неотозванные записи линии единым revokedAt.
// Возвращает jti отозванных записей (для инвалидации кэша).
// Идемпотентна: если отзывать нечего, возвращает пустой срез без ошибки.
func (s *Storage) RevokeFamily(ctx context.Context, family string, revokedAt time.Time) ([]uuid.UUID, error) {
	const op = "storage.postgres.RevokeFamily"

	const query = `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = $2
		WHERE jti_family = $1 AND revoked = FALSE
		RETURNING jti
	`

	rows, err := s.db.Query(ctx, query, family, revokedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var revoked []uuid.UUID
	for rows.Next() {
		var jti uuid.UUID
		if err := rows.Scan(&jti); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		revoked = append(revoked, jti)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return revoked, nil
}

// RevokeRefreshToken пытается отозвать одну запись, если она ещё активна.
// Возвращает:
//
//	(true, nil)  — запись была активна и отозвана сейчас;
//	(false, nil) — запись существует, но уже была отозвана;
//	(false, ErrNotFound) — запись не найдена.
func (s *Storage) RevokeRefreshToken(ctx context.Context, jti uuid.UUID, revokedAt time.Time) (bool, error) {
	const op = "storage.postgres.RevokeRefreshToken"

	const upd = `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = $2
		WHERE jti = $1 AND revoked = FALSE
		RETURNING account_id
	`

	var accountID uuid.UUID
	err := s.db.QueryRow(ctx, upd, jti, revokedAt).Scan(&accountID)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	const sel = `SELECT revoked FROM refresh_tokens WHERE jti = $1`

	var revoked bool
	err = s.db.QueryRow(ctx, sel, jti).Scan(&revoked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	return false, nil
}

// ActiveTokensByAccount возвращает неотозванные записи аккаунта,
// созданные не раньше notOlderThan, по убыванию created_at.
func (s *Storage) ActiveTokensByAccount(ctx context.Context, accountID uuid.UUID, notOlderThan time.Time) ([]models.RefreshToken, error) {
	const op = "storage.postgres.ActiveTokensByAccount"

	query := `
		SELECT ` + refreshTokenColumns + `
		FROM refresh_tokens
		WHERE account_id = $1 AND revoked = FALSE AND created_at > $2
		ORDER BY created_at DESC
	`

	rows, err := s.db.Query(ctx, query, accountID, notOlderThan)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var tokens []models.RefreshToken
	for rows.Next() {
		var token models.RefreshToken
		if err := rows.Scan(
			&token.JTI,
			&token.Family,
			&token.AccountID,
			&token.Fingerprint,
			&token.Revoked,
			&token.RevokedAt,
			&token.ExpiresAt,
			&token.CreatedAt,
			&token.UserAgent,
			&token.DeviceLabel,
			&token.IPAddress,
		); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tokens, nil
}

// DeleteExpiredTokens удаляет все просроченные записи.
func (s *Storage) DeleteExpiredTokens(ctx context.Context, now time.Time) error {
	const op = "storage.postgres.DeleteExpiredTokens"

	const query = `
		DELETE FROM refresh_tokens
		WHERE expires_at <= $1
	`

	_, err := s.db.Exec(ctx, query, now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
