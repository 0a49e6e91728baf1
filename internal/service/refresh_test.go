package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"auth-sessions-service/internal/cache"
	"auth-sessions-service/internal/models"
	"auth-sessions-service/internal/storage"
	"auth-sessions-service/mocks"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// mintRefresh выпускает валидный refresh-токен сервиса для тестов.
func mintRefresh(t *testing.T, svc *Service, accountID, jti uuid.UUID) string {
	t.Helper()

	raw, err := svc.issueRefreshToken(context.Background(), accountID, jti, time.Now().UTC())
	require.NoError(t, err)

	return raw
}

func activeRecord(accountID, jti uuid.UUID, family string) *models.RefreshToken {
	now := time.Now().UTC()
	return &models.RefreshToken{
		JTI:         jti,
		Family:      family,
		AccountID:   accountID,
		Fingerprint: "fp",
		Revoked:     false,
		ExpiresAt:   now.Add(24 * time.Hour),
		CreatedAt:   now,
		UserAgent:   "ua",
		DeviceLabel: "Chrome on Windows",
		IPAddress:   "10.0.0.1",
	}
}

// Валидный токен с активной записью: ротация, свежая пара, преемница
// остаётся в той же линии под новым jti.
func TestRefresh_Success(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	accountID := uuid.New()
	jti := uuid.New()
	record := activeRecord(accountID, jti, "fam-1")
	raw := mintRefresh(t, svc, accountID, jti)

	var next *models.RefreshToken

	st.EXPECT().RefreshTokenByJTI(gomock.Any(), jti).Return(record, nil)
	st.EXPECT().Rotate(gomock.Any(), jti, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, n *models.RefreshToken) error {
			next = n
			return nil
		})

	result, err := svc.Refresh(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, result.Outcome)
	require.Equal(t, accountID, result.AccountID)
	require.NotNil(t, result.Tokens)
	require.NotEmpty(t, result.Tokens.AccessToken)
	require.NotEmpty(t, result.Tokens.RefreshToken)
	require.NotEqual(t, raw, result.Tokens.RefreshToken)

	// Преемница: та же линия, тот же аккаунт, новый jti,
	// provenance-метки перенесены.
	require.NotNil(t, next)
	require.Equal(t, record.Family, next.Family)
	require.Equal(t, accountID, next.AccountID)
	require.NotEqual(t, jti, next.JTI)
	require.False(t, next.Revoked)
	require.Equal(t, record.DeviceLabel, next.DeviceLabel)
	require.Equal(t, record.IPAddress, next.IPAddress)
	require.Equal(t, fingerprint(result.Tokens.RefreshToken), next.Fingerprint)
}

// Мусор вместо токена: OutcomeInvalid без обращения к хранилищу.
func TestRefresh_MalformedToken(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	result, err := svc.Refresh(context.Background(), "not-a-token")
	require.NoError(t, err)
	require.Equal(t, OutcomeInvalid, result.Outcome)
	require.Nil(t, result.Tokens)
}

// Просроченный JWT: OutcomeInvalid без обращения к хранилищу.
func TestRefresh_ExpiredJWT(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	expiredCfg := testCfg()
	expiredCfg.RefreshTokenTTL = -time.Minute

	otherCtrl := gomock.NewController(t)
	defer otherCtrl.Finish()
	expired := New(mocks.NewMockStorage(otherCtrl), expiredCfg)

	raw := mintRefresh(t, expired, uuid.New(), uuid.New())

	result, err := svc.Refresh(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, OutcomeInvalid, result.Outcome)
}

// Запись по jti отсутствует: OutcomeInvalid.
func TestRefresh_RecordMissing(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	jti := uuid.New()
	raw := mintRefresh(t, svc, uuid.New(), jti)

	st.EXPECT().RefreshTokenByJTI(gomock.Any(), jti).Return(nil, storage.ErrNotFound)

	result, err := svc.Refresh(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, OutcomeInvalid, result.Outcome)
}

// Запись пережила собственный срок: OutcomeInvalid без ротации.
func TestRefresh_RecordExpired(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	accountID := uuid.New()
	jti := uuid.New()
	record := activeRecord(accountID, jti, "fam-1")
	record.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	raw := mintRefresh(t, svc, accountID, jti)

	st.EXPECT().RefreshTokenByJTI(gomock.Any(), jti).Return(record, nil)

	result, err := svc.Refresh(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, OutcomeInvalid, result.Outcome)
}

// Повтор внутри грейс-окна: OutcomeDuplicate, состояние не меняется
// (ни ротации, ни каскада).
func TestRefresh_DuplicateWithinGrace(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	accountID := uuid.New()
	jti := uuid.New()
	record := activeRecord(accountID, jti, "fam-1")
	record.Revoked = true
	revokedAt := time.Now().UTC().Add(-time.Second)
	record.RevokedAt = &revokedAt
	raw := mintRefresh(t, svc, accountID, jti)

	st.EXPECT().RefreshTokenByJTI(gomock.Any(), jti).Return(record, nil)

	result, err := svc.Refresh(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicate, result.Outcome)
	require.Nil(t, result.Tokens)
}

// Повтор вне грейс-окна: компрометация, отзывается вся линия,
// OutcomeInvalid.
func TestRefresh_ReuseCascadesFamily(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	accountID := uuid.New()
	jti := uuid.New()
	record := activeRecord(accountID, jti, "fam-1")
	record.Revoked = true
	revokedAt := time.Now().UTC().Add(-time.Minute)
	record.RevokedAt = &revokedAt
	raw := mintRefresh(t, svc, accountID, jti)

	st.EXPECT().RefreshTokenByJTI(gomock.Any(), jti).Return(record, nil)
	st.EXPECT().RevokeFamily(gomock.Any(), "fam-1", gomock.Any()).
		Return([]uuid.UUID{uuid.New(), uuid.New()}, nil)

	result, err := svc.Refresh(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, OutcomeInvalid, result.Outcome)
	require.Nil(t, result.Tokens)
}

// Проигравшая конкурентная ротация: хранилище отвечает ErrRevoked,
// перечитанная запись отозвана только что — безобидный дубль.
func TestRefresh_ConcurrentLoserWithinGrace(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	accountID := uuid.New()
	jti := uuid.New()
	record := activeRecord(accountID, jti, "fam-1")
	raw := mintRefresh(t, svc, accountID, jti)

	revokedAt := time.Now().UTC()
	revoked := *record
	revoked.Revoked = true
	revoked.RevokedAt = &revokedAt

	gomock.InOrder(
		st.EXPECT().RefreshTokenByJTI(gomock.Any(), jti).Return(record, nil),
		st.EXPECT().Rotate(gomock.Any(), jti, gomock.Any()).Return(storage.ErrRevoked),
		st.EXPECT().RefreshTokenByJTI(gomock.Any(), jti).Return(&revoked, nil),
	)

	result, err := svc.Refresh(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicate, result.Outcome)
}

// Та же гонка, но перечитанная запись отозвана давно: ветка компрометации.
func TestRefresh_ConcurrentLoserBeyondGrace(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	accountID := uuid.New()
	jti := uuid.New()
	record := activeRecord(accountID, jti, "fam-1")
	raw := mintRefresh(t, svc, accountID, jti)

	revokedAt := time.Now().UTC().Add(-time.Minute)
	revoked := *record
	revoked.Revoked = true
	revoked.RevokedAt = &revokedAt

	gomock.InOrder(
		st.EXPECT().RefreshTokenByJTI(gomock.Any(), jti).Return(record, nil),
		st.EXPECT().Rotate(gomock.Any(), jti, gomock.Any()).Return(storage.ErrRevoked),
		st.EXPECT().RefreshTokenByJTI(gomock.Any(), jti).Return(&revoked, nil),
		st.EXPECT().RevokeFamily(gomock.Any(), "fam-1", gomock.Any()).
			Return([]uuid.UUID{jti}, nil),
	)

	result, err := svc.Refresh(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, OutcomeInvalid, result.Outcome)
}

// Инфраструктурная ошибка хранилища возвращается как ошибка, а не как исход.
func TestRefresh_StorageError(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	jti := uuid.New()
	raw := mintRefresh(t, svc, uuid.New(), jti)

	st.EXPECT().RefreshTokenByJTI(gomock.Any(), jti).Return(nil, errors.New("connection refused"))

	result, err := svc.Refresh(context.Background(), raw)
	require.Error(t, err)
	require.Nil(t, result)
}

// stubCache — минимальный TokenCache в памяти для проверки быстрого пути.
type stubCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*cache.Entry
}

func newStubCache() *stubCache {
	return &stubCache{entries: make(map[uuid.UUID]*cache.Entry)}
}

func (c *stubCache) Get(_ context.Context, jti uuid.UUID) (*cache.Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[jti]
	if !ok {
		return nil, false, nil
	}

	cp := *entry
	return &cp, true, nil
}

func (c *stubCache) Set(_ context.Context, jti uuid.UUID, entry *cache.Entry, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := *entry
	c.entries[jti] = &cp
	return nil
}

func (c *stubCache) MarkRevoked(_ context.Context, jti uuid.UUID, revokedAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[jti]; ok {
		entry.Revoked = true
		entry.RevokedAt = revokedAt
	}
	return nil
}

func (c *stubCache) Close() error { return nil }

// Отозванный снимок в кэше решает ветку повтора без обращения к БД.
func TestRefresh_CacheFastPathDuplicate(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	accountID := uuid.New()
	jti := uuid.New()
	raw := mintRefresh(t, svc, accountID, jti)

	tc := newStubCache()
	require.NoError(t, tc.Set(context.Background(), jti, &cache.Entry{
		AccountID: accountID,
		Family:    "fam-1",
		Revoked:   true,
		RevokedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
	}, time.Hour))
	svc.SetTokenCache(tc)

	result, err := svc.Refresh(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicate, result.Outcome)
}

// SignOut отзывает одну запись; уже отозванная — ErrTokenRevoked,
// отсутствующая — ErrInvalidToken.
func TestSignOut(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	jti := uuid.New()
	raw := mintRefresh(t, svc, uuid.New(), jti)

	st.EXPECT().RevokeRefreshToken(gomock.Any(), jti, gomock.Any()).Return(true, nil)
	require.NoError(t, svc.SignOut(context.Background(), raw))

	st.EXPECT().RevokeRefreshToken(gomock.Any(), jti, gomock.Any()).Return(false, nil)
	err := svc.SignOut(context.Background(), raw)
	require.ErrorIs(t, err, ErrTokenRevoked)

	st.EXPECT().RevokeRefreshToken(gomock.Any(), jti, gomock.Any()).Return(false, storage.ErrNotFound)
	err = svc.SignOut(context.Background(), raw)
	require.ErrorIs(t, err, ErrInvalidToken)

	err = svc.SignOut(context.Background(), "garbage")
	require.ErrorIs(t, err, ErrInvalidToken)
}
