package models

import (
	"time"

	"github.com/google/uuid"
)

// Account — учётная запись пользователя.
//
// ID неизменяем после создания; уникальность email обеспечивается
// хранилищем (CITEXT, без учёта регистра).
type Account struct {
	ID           uuid.UUID
	FirstName    string
	MiddleName   string
	LastName     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
