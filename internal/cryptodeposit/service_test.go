package cryptodeposit

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zjoart/varlixo/internal/lifecycle"
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
	wallets wallet.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := databasetest.Open(t, &wallet.Wallet{}, &wallet.Transaction{}, &CryptoDeposit{})
	tx := database.NewTransactor(db)
	wallets := wallet.NewRepository(db)

	return &fixture{
		svc:     NewService(NewRepository(db), wallet.NewProcessor(wallets, tx), tx, NewSealer(testSecret), nil),
		wallets: wallets,
	}
}

func (f *fixture) balance(t *testing.T, userID uuid.UUID) decimal.Decimal {
	t.Helper()
	w, err := f.wallets.GetWalletByUserID(context.Background(), userID)
	if errors.Is(err, wallet.ErrWalletNotFound) {
		return decimal.Zero
	}
	require.NoError(t, err)
	return w.MainBalance
}

func TestCreateIssuesAddress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	d, err := f.svc.Create(ctx, userID, CreateInput{Currency: "usdt", Network: "erc20"})
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusPending, d.Status)
	assert.Equal(t, "USDT", d.Currency)
	assert.Equal(t, 12, d.MinConfirmations)
	assert.True(t, strings.HasPrefix(d.Address, "0x"))

	key, err := NewSealer(testSecret).Open(d.EncryptedPrivateKey)
	require.NoError(t, err)
	priv, err := crypto.ToECDSA(key)
	require.NoError(t, err)
	assert.Equal(t, d.Address, crypto.PubkeyToAddress(priv.PublicKey).Hex())
	assert.NotContains(t, d.EncryptedPrivateKey, hex.EncodeToString(key))

	_, err = f.svc.Create(ctx, userID, CreateInput{Currency: "DOGE", Network: "bitcoin"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestConfirmCreditsAmountUSD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	d, err := f.svc.Create(ctx, userID, CreateInput{Currency: "BTC", Network: "bitcoin"})
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, d.ID, uuid.New(), ConfirmInput{AmountUSD: decimal.RequireFromString("1200")})
	assert.True(t, errors.Is(err, apperr.ErrValidation), "tx hash is required")
	_, err = f.svc.Confirm(ctx, d.ID, uuid.New(), ConfirmInput{TxHash: "abc"})
	assert.True(t, errors.Is(err, apperr.ErrValidation), "amount is required")

	confirmed, err := f.svc.Confirm(ctx, d.ID, uuid.New(), ConfirmInput{AmountUSD: decimal.RequireFromString("1200.455"), TxHash: "f4184fc5"})
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusConfirmed, confirmed.Status)
	assert.Equal(t, "f4184fc5", confirmed.TxHash)
	assert.True(t, f.balance(t, userID).Equal(decimal.RequireFromString("1200.46")))

	_, err = f.svc.Confirm(ctx, d.ID, uuid.New(), ConfirmInput{AmountUSD: decimal.RequireFromString("5"), TxHash: "x"})
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))
	_, err = f.svc.Reject(ctx, d.ID, uuid.New(), "wrong chain")
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))
	assert.True(t, f.balance(t, userID).Equal(decimal.RequireFromString("1200.46")))
}

func TestRejectDoesNotCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	d, err := f.svc.Create(ctx, userID, CreateInput{Currency: "TRX", Network: "trc20"})
	require.NoError(t, err)

	rejected, err := f.svc.Reject(ctx, d.ID, uuid.New(), "nothing arrived")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusRejected, rejected.Status)
	assert.True(t, f.balance(t, userID).IsZero())
}

func TestGetHidesOtherUsersDeposits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := user.User{ID: uuid.New(), Role: user.RoleUser}

	d, err := f.svc.Create(ctx, owner.ID, CreateInput{Currency: "BNB", Network: "bep20"})
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, owner, d.ID)
	assert.NoError(t, err)
	_, err = f.svc.Get(ctx, user.User{ID: uuid.New(), Role: user.RoleAdmin}, d.ID)
	assert.NoError(t, err)
	_, err = f.svc.Get(ctx, user.User{ID: uuid.New(), Role: user.RoleUser}, d.ID)
	assert.True(t, errors.Is(err, ErrCryptoDepositNotFound))
}

func TestUpdateStatusHandler(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	userID := uuid.New()
	admin := user.User{ID: uuid.New(), Role: user.RoleAdmin}

	d, err := f.svc.Create(context.Background(), userID, CreateInput{Currency: "ETH", Network: "erc20"})
	require.NoError(t, err)

	patch := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPatch, "/api/v1/crypto-deposits/"+d.ID.String()+"/status", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req = req.WithContext(context.WithValue(req.Context(), utils.UserKey, admin))
		req = mux.SetURLVars(req, map[string]string{"id": d.ID.String()})
		rr := httptest.NewRecorder()
		h.UpdateStatus(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusBadRequest, patch(`{"status":"approved"}`).Code)

	rr := patch(`{"status":"confirmed","amount_usd":"310.50","tx_hash":"0xabc"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.NotContains(t, rr.Body.String(), "private")
	assert.True(t, f.balance(t, userID).Equal(decimal.RequireFromString("310.5")))

	assert.Equal(t, http.StatusConflict, patch(`{"status":"rejected","reason":"dup"}`).Code)
}
