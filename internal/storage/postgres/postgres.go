package postgres

import (
	"context"
	"fmt"

	"auth-sessions-service/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Storage — реализация storage.Storage поверх пула pgx.
//
// Все мутации семейств refresh-токенов выполняются внутри транзакций
// (см. account.go и refresh_token.go); пул разделяется всеми методами.
type Storage struct {
	db *pgxpool.Pool
}

var _ storage.Storage = (*Storage)(nil)

// New открывает пул соединений к PostgreSQL и проверяет доступность
// базы одним ping. Контекст ограничивает время установки соединения.
func New(ctx context.Context, dbURL string) (*Storage, error) {
	const op = "storage.postgres.New"

	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: parse config: %w", op, err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	return &Storage{db: pool}, nil
}

// Close закрывает пул соединений.
func (s *Storage) Close() {
	s.db.Close()
}
