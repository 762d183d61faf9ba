package fx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zjoart/varlixo/pkg/apperr"
)

func erAPIServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.Equal(t, "/v6/latest/USD", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":"success","base_code":"USD","rates":{"USD":1,"NGN":1530.25,"GHS":5.2}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func currencyAPIServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/currencies/usd.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"date":"2024-05-01","usd":{"ngn":1499.5,"kes":129.1}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func failingServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPrimaryProvider(t *testing.T) {
	var hits int32
	c := NewClient(time.Minute,
		NewERAPIProvider(erAPIServer(t, &hits).URL, time.Second),
		NewCurrencyAPIProvider(failingServer(t).URL, time.Second),
	)

	rates, err := c.Latest(context.Background())
	require.NoError(t, err)
	rate, ok := rates.Rate("ghs")
	require.True(t, ok)
	assert.Equal(t, "5.2", rate.String())

	_, err = c.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "second call is served from cache")

	_, err = c.Fresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestFallbackProvider(t *testing.T) {
	c := NewClient(time.Minute,
		NewERAPIProvider(failingServer(t).URL, time.Second),
		NewCurrencyAPIProvider(currencyAPIServer(t).URL, time.Second),
	)

	rates, err := c.Latest(context.Background())
	require.NoError(t, err)
	rate, ok := rates.Rate("NGN")
	require.True(t, ok)
	assert.Equal(t, "1499.5", rate.String())
	usd, _ := rates.Rate("USD")
	assert.Equal(t, "1", usd.String())
}

func TestFallbackAfterTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(slow.Close)

	c := NewClient(time.Minute,
		NewERAPIProvider(slow.URL, 100*time.Millisecond),
		NewCurrencyAPIProvider(currencyAPIServer(t).URL, time.Second),
	)

	rates, err := c.Latest(context.Background())
	require.NoError(t, err)
	_, ok := rates.Rate("KES")
	assert.True(t, ok)
}

func TestAllProvidersFail(t *testing.T) {
	c := NewClient(time.Minute,
		NewERAPIProvider(failingServer(t).URL, time.Second),
		NewCurrencyAPIProvider(failingServer(t).URL, time.Second),
	)

	_, err := c.Latest(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrUpstreamUnavailable))
	assert.Equal(t, "exchange rates unavailable", apperr.MessageOf(err))
}

func TestRateRejectsMissingOrZero(t *testing.T) {
	rates := Rates{"XYZ": {}}
	_, ok := rates.Rate("XYZ")
	assert.False(t, ok)
	_, ok = rates.Rate("ABC")
	assert.False(t, ok)
}
