package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken — запись об одном выпущенном refresh-токене.
//
// Описание полей:
//   - JTI — глобально уникальный идентификатор конкретного токена;
//     ключ поиска (зашит в сам токен как claim "jti");
//   - Family — идентификатор линии (lineage): общий для всех токенов,
//     произошедших ротациями от одного signin/signup; стабилен между ротациями;
//   - Fingerprint — детерминированный дайджест сырого значения токена
//     (sha256 → base64url); хранится для сверки/аудита, не для авторизации;
//   - Revoked/RevokedAt — признак и момент отзыва; RevokedAt выставляется
//     ровно один раз и никогда не сбрасывается;
//   - UserAgent/DeviceLabel/IPAddress — метаданные происхождения,
//     фиксируются при создании записи и далее не меняются.
//
// Внутри одной Family в любой момент времени активна (не отозвана)
// не более чем одна запись; записи образуют цепочку по CreatedAt.
type RefreshToken struct {
	JTI         uuid.UUID
	Family      string
	AccountID   uuid.UUID
	Fingerprint string
	Revoked     bool
	RevokedAt   *time.Time
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UserAgent   string
	DeviceLabel string
	IPAddress   string
}
