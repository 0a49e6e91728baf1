package service

import (
	"context"
	"testing"
	"time"

	"auth-sessions-service/internal/models"
	"auth-sessions-service/internal/storage"
	"auth-sessions-service/mocks"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testPassword  = "Str0ng!pass"
	testUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/126.0"
)

func signUpParams() SignUpParams {
	return SignUpParams{
		FirstName: "Ivan",
		LastName:  "Petrov",
		Email:     "Ivan.Petrov@Example.com",
		Password:  testPassword,
	}
}

// Успешная регистрация: аккаунт и первая запись линии создаются вместе,
// email нормализуется, пароль хэшируется, запись несёт provenance-метки.
func TestSignUp_Success(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	var (
		gotAccount *models.Account
		gotToken   *models.RefreshToken
	)

	st.EXPECT().CreateAccountWithToken(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, a *models.Account, tok *models.RefreshToken) error {
			gotAccount = a
			gotToken = tok
			return nil
		})

	client := ClientContext{UserAgent: testUserAgent, IPAddress: "192.0.2.10"}

	pair, accountID, err := svc.SignUp(context.Background(), signUpParams(), client)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, accountID)
	require.NotNil(t, pair)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	require.NotNil(t, gotAccount)
	require.Equal(t, accountID, gotAccount.ID)
	require.Equal(t, "ivan.petrov@example.com", gotAccount.Email)
	require.NoError(t, bcrypt.CompareHashAndPassword(
		[]byte(gotAccount.PasswordHash), []byte(testPassword)))

	require.NotNil(t, gotToken)
	require.Equal(t, accountID, gotToken.AccountID)
	require.Len(t, gotToken.Family, 64)
	require.Equal(t, fingerprint(pair.RefreshToken), gotToken.Fingerprint)
	require.False(t, gotToken.Revoked)
	require.Equal(t, "Chrome on Windows", gotToken.DeviceLabel)
	require.Equal(t, "192.0.2.10", gotToken.IPAddress)

	// refresh-токен связывает аккаунт и jti записи.
	gotAccountID, gotJTI, err := svc.parseRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, accountID, gotAccountID)
	require.Equal(t, gotToken.JTI, gotJTI)
}

// Отсутствующие UA/IP заменяются плейсхолдерами, а не пустыми строками.
func TestSignUp_UnknownClient(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	var gotToken *models.RefreshToken
	st.EXPECT().CreateAccountWithToken(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ *models.Account, tok *models.RefreshToken) error {
			gotToken = tok
			return nil
		})

	_, _, err := svc.SignUp(context.Background(), signUpParams(), ClientContext{})
	require.NoError(t, err)
	require.Equal(t, "Unknown", gotToken.UserAgent)
	require.Equal(t, "Unknown", gotToken.IPAddress)
	require.Equal(t, "Unknown device", gotToken.DeviceLabel)
}

// Валидация входа: хранилище не трогается.
func TestSignUp_Validation(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	cases := []struct {
		name    string
		mutate  func(*SignUpParams)
		wantErr error
	}{
		{
			name:    "invalid email",
			mutate:  func(p *SignUpParams) { p.Email = "not-an-email" },
			wantErr: ErrInvalidEmail,
		},
		{
			name:    "empty password",
			mutate:  func(p *SignUpParams) { p.Password = "" },
			wantErr: ErrEmptyPassword,
		},
		{
			name:    "short password",
			mutate:  func(p *SignUpParams) { p.Password = "S1!a" },
			wantErr: ErrWeakPassword,
		},
		{
			name:    "no special char",
			mutate:  func(p *SignUpParams) { p.Password = "Str0ngpass" },
			wantErr: ErrWeakPassword,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			params := signUpParams()
			tc.mutate(&params)

			_, _, err := svc.SignUp(context.Background(), params, ClientContext{})
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

// Занятый email: конфликт из транзакции мапится в ErrEmailTaken.
func TestSignUp_EmailTaken(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().CreateAccountWithToken(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(storage.ErrAlreadyExists)

	_, _, err := svc.SignUp(context.Background(), signUpParams(), ClientContext{})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func storedAccount(t *testing.T, email string) *models.Account {
	t.Helper()

	hash, err := hashPassword(testPassword)
	require.NoError(t, err)

	return &models.Account{
		ID:           uuid.New(),
		FirstName:    "Ivan",
		LastName:     "Petrov",
		Email:        email,
		PasswordHash: hash,
	}
}

// Успешный вход: новая независимая линия, свежая пара токенов.
func TestSignIn_Success(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	account := storedAccount(t, "ivan.petrov@example.com")

	var saved *models.RefreshToken
	st.EXPECT().AccountByEmail(gomock.Any(), "ivan.petrov@example.com").Return(account, nil)
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, tok *models.RefreshToken) error {
			saved = tok
			return nil
		})

	result, err := svc.SignIn(context.Background(), "Ivan.Petrov@example.com", testPassword,
		ClientContext{UserAgent: testUserAgent, IPAddress: "192.0.2.10"})
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, result.Outcome)
	require.Equal(t, account.ID, result.AccountID)
	require.NotNil(t, result.Tokens)

	require.NotNil(t, saved)
	require.Equal(t, account.ID, saved.AccountID)
	require.Len(t, saved.Family, 64)
	require.Equal(t, fingerprint(result.Tokens.RefreshToken), saved.Fingerprint)
}

// Каждый вход открывает собственную линию: family двух входов различаются.
func TestSignIn_NewFamilyPerSignIn(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	account := storedAccount(t, "ivan.petrov@example.com")

	families := make([]string, 0, 2)
	st.EXPECT().AccountByEmail(gomock.Any(), account.Email).Return(account, nil).Times(2)
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, tok *models.RefreshToken) error {
			families = append(families, tok.Family)
			return nil
		}).Times(2)

	for i := 0; i < 2; i++ {
		result, err := svc.SignIn(context.Background(), account.Email, testPassword, ClientContext{})
		require.NoError(t, err)
		require.Equal(t, OutcomeSuccess, result.Outcome)
	}

	require.Len(t, families, 2)
	require.NotEqual(t, families[0], families[1])
}

// «Нет такого email» и «неверный пароль» неразличимы: оба — OutcomeInvalid
// без ошибки.
func TestSignIn_Invalid(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().AccountByEmail(gomock.Any(), "ghost@example.com").
		Return(nil, storage.ErrNotFound)

	result, err := svc.SignIn(context.Background(), "ghost@example.com", testPassword, ClientContext{})
	require.NoError(t, err)
	require.Equal(t, OutcomeInvalid, result.Outcome)
	require.Nil(t, result.Tokens)

	account := storedAccount(t, "ivan.petrov@example.com")
	st.EXPECT().AccountByEmail(gomock.Any(), account.Email).Return(account, nil)

	result, err = svc.SignIn(context.Background(), account.Email, "Wrong!pass1", ClientContext{})
	require.NoError(t, err)
	require.Equal(t, OutcomeInvalid, result.Outcome)

	// Некорректный формат email и пустой пароль отклоняются без похода в БД.
	result, err = svc.SignIn(context.Background(), "not-an-email", testPassword, ClientContext{})
	require.NoError(t, err)
	require.Equal(t, OutcomeInvalid, result.Outcome)

	result, err = svc.SignIn(context.Background(), account.Email, "", ClientContext{})
	require.NoError(t, err)
	require.Equal(t, OutcomeInvalid, result.Outcome)
}

// Authenticate: валидный access-токен даёт id аккаунта, мусор — ErrInvalidToken.
func TestAuthenticate(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	accountID := uuid.New()

	access, err := svc.issueAccessToken(context.Background(), accountID, time.Now().UTC())
	require.NoError(t, err)

	got, err := svc.Authenticate(context.Background(), access)
	require.NoError(t, err)
	require.Equal(t, accountID, got)

	_, err = svc.Authenticate(context.Background(), "garbage")
	require.ErrorIs(t, err, ErrInvalidToken)
}

// Пустой конструктор для полноты: SetTokenCache навешивает кэш после New.
func TestService_SetTokenCache(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := New(mocks.NewMockStorage(ctrl), testCfg())
	require.Nil(t, svc.tcache)

	svc.SetTokenCache(newStubCache())
	require.NotNil(t, svc.tcache)
}
