package postgres

import (
	"context"
	"errors"
	"fmt"

	"auth-sessions-service/internal/models"
	"auth-sessions-service/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// CreateAccountWithToken создаёт аккаунт и первую запись его линии
// refresh-токенов в одной транзакции. Конфликт уникальности (email/id/jti)
// откатывает обе вставки и возвращает storage.ErrAlreadyExists.
func (s *Storage) CreateAccountWithToken(ctx context.Context, account *models.Account, token *models.RefreshToken) error {
	const op = "storage.postgres.CreateAccountWithToken"

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insAccount = `
		INSERT INTO accounts(id, first_name, middle_name, last_name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = tx.Exec(ctx, insAccount,
		account.ID,
		account.FirstName,
		account.MiddleName,
		account.LastName,
		account.Email,
		account.PasswordHash,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if err := insertRefreshToken(ctx, tx, token); err != nil {
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

// AccountByEmail находит аккаунт по email.
func (s *Storage) AccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	const op = "storage.postgres.AccountByEmail"

	const query = `
		SELECT id, first_name, middle_name, last_name, email, password_hash, created_at, updated_at
		FROM accounts
		WHERE email = $1
	`

	var account models.Account
	err := s.db.QueryRow(ctx, query, email).Scan(
		&account.ID,
		&account.FirstName,
		&account.MiddleName,
		&account.LastName,
		&account.Email,
		&account.PasswordHash,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &account, nil
}

// AccountByID находит аккаунт по ID.
func (s *Storage) AccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	const op = "storage.postgres.AccountByID"

	const query = `
		SELECT id, first_name, middle_name, last_name, email, password_hash, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`

	var account models.Account
	err := s.db.QueryRow(ctx, query, id).Scan(
		&account.ID,
		&account.FirstName,
		&account.MiddleName,
		&account.LastName,
		&account.Email,
		&account.PasswordHash,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &account, nil
}
