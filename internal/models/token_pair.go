package models

import "time"

// TokenPair — пара токенов, выдаваемая при регистрации/входе/ротации.
//
// Описание:
//   - AccessToken — короткоживущий JWT для доступа к API;
//   - RefreshToken — долгоживущий JWT с claim "jti"; предъявляется
//     ровно один раз для выпуска следующей пары;
//   - AccessExpiresAt — момент истечения access-токена (UTC).
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
}
