package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zjoart/varlixo/internal/user"
	"github.com/zjoart/varlixo/internal/wallet"
	"github.com/zjoart/varlixo/pkg/apperr"
	"github.com/zjoart/varlixo/pkg/database"
	"github.com/zjoart/varlixo/pkg/database/databasetest"
	"github.com/zjoart/varlixo/pkg/utils"
)

const testSecret = "test-secret"

type fixture struct {
	svc     *Service
	users   user.Repository
	wallets wallet.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := databasetest.Open(t, &user.User{}, &wallet.Wallet{}, &wallet.Transaction{})
	tx := database.NewTransactor(db)
	users := user.NewRepository(db)
	wallets := wallet.NewRepository(db)

	return &fixture{
		svc:     NewService(users, wallet.NewProcessor(wallets, tx), tx, nil, testSecret, time.Hour),
		users:   users,
		wallets: wallets,
	}
}

func validInput() RegisterInput {
	return RegisterInput{FullName: "Ada Obi", Email: "Ada@Example.com", Password: "correct-horse", Country: "ng"}
}

func TestRegisterCreatesUserAndWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.svc.Register(ctx, validInput())
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "ada@example.com", session.User.Email)
	assert.Equal(t, "NG", session.User.Country)
	assert.Equal(t, user.RoleUser, session.User.Role)

	w, err := f.wallets.GetWalletByUserID(ctx, session.User.ID)
	require.NoError(t, err)
	assert.True(t, w.MainBalance.IsZero())

	id, err := ParseToken([]byte(testSecret), session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, id)

	_, err = f.svc.Register(ctx, validInput())
	assert.True(t, errors.Is(err, user.ErrEmailTaken))
}

func TestRegisterReferral(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	referrer, err := f.svc.Register(ctx, validInput())
	require.NoError(t, err)

	in := validInput()
	in.Email = "bola@example.com"
	in.ReferralCode = " " + referrer.User.ReferralCode
	session, err := f.svc.Register(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, session.User.ReferredBy)
	assert.Equal(t, referrer.User.ID, *session.User.ReferredBy)

	in.Email = "chi@example.com"
	in.ReferralCode = "NOPE0000"
	_, err = f.svc.Register(ctx, in)
	assert.True(t, errors.Is(err, ErrUnknownReferral))

	_, err = f.users.FindByEmail(ctx, "chi@example.com")
	assert.True(t, errors.Is(err, user.ErrUserNotFound), "failed registration leaves no user")
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{"missing name", func(in *RegisterInput) { in.FullName = " " }},
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }},
		{"short password", func(in *RegisterInput) { in.Password = "short" }},
		{"bad country", func(in *RegisterInput) { in.Country = "NGA" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			_, err := f.svc.Register(context.Background(), in)
			assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)
		})
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, validInput())
	require.NoError(t, err)

	session, err := f.svc.Login(ctx, LoginInput{Email: "ADA@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)

	_, err = f.svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "wrong-password"})
	assert.True(t, errors.Is(err, ErrInvalidCredentials))

	_, err = f.svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "correct-horse"})
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
}

func TestParseTokenRejects(t *testing.T) {
	sign := func(method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	id := uuid.NewString()

	tests := map[string]string{
		"expired":       sign(jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{utils.UserIDKey: id, utils.ExpKey: time.Now().Add(-time.Minute).Unix()}),
		"no expiry":     sign(jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{utils.UserIDKey: id}),
		"wrong secret":  sign(jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{utils.UserIDKey: id, utils.ExpKey: time.Now().Add(time.Hour).Unix()}),
		"bad user id":   sign(jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{utils.UserIDKey: "42", utils.ExpKey: time.Now().Add(time.Hour).Unix()}),
		"not a jwt":     "garbage",
		"unsigned none": sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.MapClaims{utils.UserIDKey: id, utils.ExpKey: time.Now().Add(time.Hour).Unix()}),
	}
	for name, token := range tests {
		_, err := ParseToken([]byte(testSecret), token)
		assert.True(t, errors.Is(err, ErrInvalidToken), name)
	}
}

func TestHandlersAndMiddleware(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)

	body, _ := json.Marshal(validInput())
	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.Register(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp struct {
		Data Session `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))

	me := JWTMiddleware(f.svc)(http.HandlerFunc(h.Me))
	admin := JWTMiddleware(f.svc)(RequireAdmin(http.HandlerFunc(h.Me)))

	call := func(handler http.Handler, token string) int {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, call(me, resp.Data.Token))
	assert.Equal(t, http.StatusUnauthorized, call(me, ""))
	assert.Equal(t, http.StatusUnauthorized, call(me, "garbage"))
	assert.Equal(t, http.StatusForbidden, call(admin, resp.Data.Token))

	require.NoError(t, f.users.UpdateRole(context.Background(), resp.Data.User.ID, user.RoleAdmin))
	assert.Equal(t, http.StatusOK, call(admin, resp.Data.Token))

	req = httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader([]byte(`{"email":"ada@example.com","password":"nope-nope"}`)))
	req.Header.Set("Content-Type", "application/json")
	rr = httptest.NewRecorder()
	h.Login(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
