// service содержит бизнес-логику сервиса сессий: регистрацию и
// аутентификацию, выпуск пары токенов, ротацию refresh-токенов с
// обнаружением повторного использования и каскадным отзывом линии,
// а также проекцию активных сессий.
//
// Основные аспекты:
//   - Service не хранит состояние запроса; экземпляр безопасен для
//     конкурентного использования, вся корректность при гонках опирается
//     на атомарные операции хранилища (Rotate, RevokeFamily);
//   - «Неверный пароль» и «повтор уже использованного токена» — ожидаемые
//     бизнес-исходы, а не сбои: signin/refresh возвращают результат с тегом
//     Outcome, ошибками остаются только отказы инфраструктуры и конфликты
//     регистрации;
//   - Ошибки возвращаются обёрнутыми (op: %w) и далее маппятся транспортом
//     на HTTP-статусы (см. комментарии к переменным ошибок ниже).
package service

import (
	"errors"

	"auth-sessions-service/internal/cache"
	"auth-sessions-service/internal/config"
	"auth-sessions-service/internal/models"
	"auth-sessions-service/internal/storage"

	"github.com/google/uuid"
)

var (
	// ErrInvalidToken — токен (access/refresh) некорректен по формату/подписи
	// или отсутствует в хранилище. Транспорт: HTTP 401.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired — срок действия токена истёк. Транспорт: HTTP 401.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked — токен уже отозван (signout/rotация/каскад)
	// и недействителен независимо от срока. Транспорт: HTTP 401.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrEmailTaken — e-mail уже занят другим аккаунтом. Транспорт: HTTP 409.
	ErrEmailTaken = errors.New("email already taken")

	// ErrInvalidEmail — e-mail имеет некорректный формат. Транспорт: HTTP 400.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrWeakPassword — пароль не удовлетворяет политике сложности.
	// Транспорт: HTTP 400.
	ErrWeakPassword = errors.New("password is too weak")

	// ErrEmptyPassword — пароль пустой. Транспорт: HTTP 400.
	ErrEmptyPassword = errors.New("password is empty")
)

// Outcome — тег бизнес-исхода для signin/refresh.
// Три значения покрывают все ветки: транспорт обязан ветвиться по тегу,
// а не по ошибке.
type Outcome string

const (
	// OutcomeSuccess — операция выполнена, выдана свежая пара токенов.
	OutcomeSuccess Outcome = "SUCCESS"
	// OutcomeDuplicate — повтор уже использованного refresh-токена внутри
	// грейс-окна: безобидный дубль (ретрай клиента), состояние не менялось,
	// новые токены не выдавались.
	OutcomeDuplicate Outcome = "DUPLICATE"
	// OutcomeInvalid — предъявленные данные недействительны; для refresh
	// вне грейс-окна это сигнал компрометации, линия отозвана целиком.
	OutcomeInvalid Outcome = "INVALID"
)

// AuthResult — результат signin/refresh.
// Tokens и AccountID заполнены только при OutcomeSuccess.
type AuthResult struct {
	Outcome   Outcome
	AccountID uuid.UUID
	Tokens    *models.TokenPair
}

// ClientContext — метаданные клиента, передаваемые транспортом.
// Значения не валидируются и используются только как provenance-метки.
type ClientContext struct {
	UserAgent string
	IPAddress string
}

// SignUpParams — данные регистрации.
type SignUpParams struct {
	FirstName  string
	MiddleName string
	LastName   string
	Email      string
	Password   string
}

// Service описывает бизнес-логику сервиса сессий.
type Service struct {
	storage storage.Storage
	cfg     config.AuthConfig
	tcache  cache.TokenCache // может быть nil, если кэш не сконфигурирован.
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, cfg config.AuthConfig) *Service {
	return &Service{
		storage: storage,
		cfg:     cfg,
	}
}

// SetTokenCache устанавливает кэш записей refresh-токенов (опционально).
func (s *Service) SetTokenCache(c cache.TokenCache) {
	s.tcache = c
}
