package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"auth-sessions-service/internal/config"
	"auth-sessions-service/mocks"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testCfg() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:        "unit-secret",
		AccessTokenTTL:   30 * time.Second,
		RefreshTokenTTL:  24 * time.Hour,
		ReuseGraceWindow: 5 * time.Second,
		Issuer:           "auth-sessions-service",
		Audience:         []string{"api"},
	}
}

func newSvc(t *testing.T) (*Service, *mocks.MockStorage, *gomock.Controller) {
	t.Helper()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStorage(ctrl)
	svc := New(st, testCfg())
	return svc, st, ctrl
}

// Round-trip refresh-токена: parseRefreshToken восстанавливает (accountID, jti)
// в точности до истечения срока.
func TestRefreshToken_RoundTrip(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	accountID := uuid.New()
	jti := uuid.New()
	now := time.Now().UTC()

	raw, err := svc.issueRefreshToken(context.Background(), accountID, jti, now)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	gotAccount, gotJTI, err := svc.parseRefreshToken(raw)
	require.NoError(t, err)
	require.Equal(t, accountID, gotAccount)
	require.Equal(t, jti, gotJTI)
}

// Round-trip access-токена: subject несёт только id аккаунта.
func TestAccessToken_RoundTrip(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	accountID := uuid.New()

	raw, err := svc.issueAccessToken(context.Background(), accountID, time.Now().UTC())
	require.NoError(t, err)

	got, err := svc.parseAccessToken(raw)
	require.NoError(t, err)
	require.Equal(t, accountID, got)
}

// Просроченный токен — ErrTokenExpired (не ErrInvalidToken): вызывающие
// реагируют на них по-разному.
func TestParseToken_Expired(t *testing.T) {
	t.Parallel()

	cfg := testCfg()
	cfg.AccessTokenTTL = -time.Minute
	cfg.RefreshTokenTTL = -time.Minute

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	svc := New(mocks.NewMockStorage(ctrl), cfg)

	access, err := svc.issueAccessToken(context.Background(), uuid.New(), time.Now().UTC())
	require.NoError(t, err)

	_, err = svc.parseAccessToken(access)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrTokenExpired)

	refresh, err := svc.issueRefreshToken(context.Background(), uuid.New(), uuid.New(), time.Now().UTC())
	require.NoError(t, err)

	_, _, err = svc.parseRefreshToken(refresh)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrTokenExpired)
}

// Искажённая подпись/мусор — ErrInvalidToken.
func TestParseToken_Invalid(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	raw, err := svc.issueRefreshToken(context.Background(), uuid.New(), uuid.New(), time.Now().UTC())
	require.NoError(t, err)

	// Ломаем подпись (последний сегмент).
	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + "AAAA" + parts[2][4:]

	_, _, err = svc.parseRefreshToken(tampered)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = svc.parseRefreshToken("not-a-jwt")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.parseAccessToken("")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidToken)
}

// Токен, подписанный другим секретом, отвергается.
func TestParseToken_WrongSecret(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	otherCfg := testCfg()
	otherCfg.JWTSecret = "other-secret"

	otherCtrl := gomock.NewController(t)
	defer otherCtrl.Finish()
	other := New(mocks.NewMockStorage(otherCtrl), otherCfg)

	raw, err := other.issueRefreshToken(context.Background(), uuid.New(), uuid.New(), time.Now().UTC())
	require.NoError(t, err)

	_, _, err = svc.parseRefreshToken(raw)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidToken)
}

// fingerprint детерминирован и различает значения.
func TestFingerprint(t *testing.T) {
	t.Parallel()

	require.Equal(t, fingerprint("abc"), fingerprint("abc"))
	require.NotEqual(t, fingerprint("abc"), fingerprint("abd"))
	require.NotEmpty(t, fingerprint(""))
}

// newFamilyID даёт 64 hex-символа и не повторяется.
func TestNewFamilyID(t *testing.T) {
	t.Parallel()

	a, err := newFamilyID()
	require.NoError(t, err)
	require.Len(t, a, 64)

	b, err := newFamilyID()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
