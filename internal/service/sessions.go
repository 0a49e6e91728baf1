package service

import (
	"context"
	"fmt"
	"time"

	"auth-sessions-service/internal/models"

	"github.com/google/uuid"
)

// Sessions возвращает проекции активных сессий аккаунта: записи,
// которые не отозваны и созданы внутри окна жизни refresh-токена
// (дешёвая аппроксимация «не просрочена» без отдельного сравнения
// по expires_at). Сами токены в проекцию не попадают.
func (s *Service) Sessions(ctx context.Context, accountID uuid.UUID) ([]models.Session, error) {
	const op = "service.sessions.Sessions"

	notOlderThan := time.Now().UTC().Add(-s.cfg.RefreshTokenTTL)

	tokens, err := s.storage.ActiveTokensByAccount(ctx, accountID, notOlderThan)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sessions := make([]models.Session, 0, len(tokens))
	for _, t := range tokens {
		sessions = append(sessions, models.Session{
			DeviceLabel: t.DeviceLabel,
			UserAgent:   t.UserAgent,
			IPAddress:   t.IPAddress,
			CreatedAt:   t.CreatedAt,
		})
	}

	return sessions, nil
}
