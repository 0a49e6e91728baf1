package models

import "time"

// Session — проекция активной записи refresh-токена для списка сессий.
// Содержит только метаданные происхождения, без самих токенов.
type Session struct {
	DeviceLabel string
	UserAgent   string
	IPAddress   string
	CreatedAt   time.Time
}
