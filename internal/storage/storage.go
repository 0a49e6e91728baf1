package storage

import (
	"context"
	"errors"
	"time"

	"auth-sessions-service/internal/models"

	"github.com/google/uuid"
)

var (
	// ErrNotFound — запись не найдена (аккаунт/токен).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email/jti).
	ErrAlreadyExists = errors.New("already exists")
	// ErrRevoked — запись уже отозвана; при ротации означает,
	// что конкурентный вызов успел зафиксироваться первым.
	ErrRevoked = errors.New("revoked")
)

// AccountStorage выполняет операции над аккаунтами.
type AccountStorage interface {
	// CreateAccountWithToken атомарно создаёт аккаунт и первую запись
	// его новой линии refresh-токенов. При занятом email не создаётся
	// ни одна из двух записей (ErrAlreadyExists).
	CreateAccountWithToken(ctx context.Context, account *models.Account, token *models.RefreshToken) error
	// AccountByEmail находит аккаунт по email.
	AccountByEmail(ctx context.Context, email string) (*models.Account, error)
	// AccountByID находит аккаунт по ID.
	AccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// RefreshTokenStorage выполняет операции над записями refresh-токенов.
type RefreshTokenStorage interface {
	// SaveRefreshToken сохраняет новую запись (начало новой линии при signin).
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error
	// RefreshTokenByJTI находит запись по jti.
	RefreshTokenByJTI(ctx context.Context, jti uuid.UUID) (*models.RefreshToken, error)
	// Rotate атомарно отзывает запись oldJTI и вставляет next из той же линии.
	// Либо обе операции фиксируются, либо ни одна. Если запись уже отозвана —
	// ErrRevoked (победил конкурентный вызов); если отсутствует — ErrNotFound.
	Rotate(ctx context.Context, oldJTI uuid.UUID, next *models.RefreshToken) error
	// RevokeFamily отзывает все неотозванные записи линии единым моментом
	// revokedAt и возвращает их jti. Идемпотентна: повтор — no-op с пустым
	// результатом.
	RevokeFamily(ctx context.Context, family string, revokedAt time.Time) ([]uuid.UUID, error)
	// RevokeRefreshToken пытается отозвать одну запись по jti.
	// Возвращает false без ошибки, если запись уже была отозвана.
	RevokeRefreshToken(ctx context.Context, jti uuid.UUID, revokedAt time.Time) (bool, error)
	// ActiveTokensByAccount возвращает неотозванные записи аккаунта,
	// созданные не раньше notOlderThan, по убыванию created_at.
	ActiveTokensByAccount(ctx context.Context, accountID uuid.UUID, notOlderThan time.Time) ([]models.RefreshToken, error)
	// DeleteExpiredTokens удаляет записи, чей expires_at уже прошёл.
	DeleteExpiredTokens(ctx context.Context, now time.Time) error
}

// Storage задает контракт работы с БД.
type Storage interface {
	AccountStorage
	RefreshTokenStorage
	Close()
}
