// Package fx fetches USD exchange rates from public providers, falling back
// to the next provider when one fails.
package fx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/zjoart/varlixo/pkg/apperr"
	"github.com/zjoart/varlixo/pkg/cache"
	"github.com/zjoart/varlixo/pkg/logger"
)

const (
	ERAPIBaseURL       = "https://open.er-api.com"
	CurrencyAPIBaseURL = "https://cdn.jsdelivr.net/npm/@fawazahmed0/currency-api@latest/v1"

	DefaultTimeout = 7 * time.Second
	cacheKey       = "USD"
)

var ErrRatesUnavailable = apperr.New(apperr.KindUpstreamUnavailable, "exchange rates unavailable")

// Rates maps an upper-case ISO 4217 code to units of that currency per USD.
type Rates map[string]decimal.Decimal

func (r Rates) Rate(currency string) (decimal.Decimal, bool) {
	rate, ok := r[strings.ToUpper(currency)]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, false
	}
	return rate, true
}

type Provider interface {
	Name() string
	Latest(ctx context.Context) (Rates, error)
}

type erAPIProvider struct {
	client *resty.Client
}

// NewERAPIProvider reads {base}/v6/latest/USD from open.er-api.com.
func NewERAPIProvider(baseURL string, timeout time.Duration) Provider {
	return &erAPIProvider{client: resty.New().SetBaseURL(baseURL).SetTimeout(timeout)}
}

func (p *erAPIProvider) Name() string { return "open.er-api.com" }

func (p *erAPIProvider) Latest(ctx context.Context) (Rates, error) {
	var body struct {
		Result   string                     `json:"result"`
		BaseCode string                     `json:"base_code"`
		Rates    map[string]decimal.Decimal `json:"rates"`
	}

	resp, err := p.client.R().SetContext(ctx).SetResult(&body).Get("/v6/latest/USD")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode())
	}
	if body.Result != "success" || len(body.Rates) == 0 {
		return nil, errors.New("provider returned no rates")
	}
	return normalize(body.Rates), nil
}

type currencyAPIProvider struct {
	client *resty.Client
}

// NewCurrencyAPIProvider reads {base}/currencies/usd.json from the
// fawazahmed0 currency-api mirror.
func NewCurrencyAPIProvider(baseURL string, timeout time.Duration) Provider {
	return &currencyAPIProvider{client: resty.New().SetBaseURL(baseURL).SetTimeout(timeout)}
}

func (p *currencyAPIProvider) Name() string { return "currency-api" }

func (p *currencyAPIProvider) Latest(ctx context.Context) (Rates, error) {
	var body struct {
		Date string                     `json:"date"`
		USD  map[string]decimal.Decimal `json:"usd"`
	}

	resp, err := p.client.R().SetContext(ctx).SetResult(&body).Get("/currencies/usd.json")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode())
	}
	if len(body.USD) == 0 {
		return nil, errors.New("provider returned no rates")
	}
	return normalize(body.USD), nil
}

func normalize(raw map[string]decimal.Decimal) Rates {
	rates := make(Rates, len(raw))
	for code, rate := range raw {
		rates[strings.ToUpper(code)] = rate
	}
	rates["USD"] = decimal.NewFromInt(1)
	return rates
}

// Client asks each provider in order and caches the first answer.
type Client struct {
	providers []Provider
	cache     *cache.TTL[Rates]
}

func NewClient(cacheTTL time.Duration, providers ...Provider) *Client {
	return &Client{providers: providers, cache: cache.NewTTL[Rates](cacheTTL)}
}

// NewDefaultClient uses open.er-api.com with the currency-api mirror as fallback.
func NewDefaultClient(timeout time.Duration) *Client {
	return NewClient(time.Hour,
		NewERAPIProvider(ERAPIBaseURL, timeout),
		NewCurrencyAPIProvider(CurrencyAPIBaseURL, timeout),
	)
}

// Latest returns cached rates when still fresh.
func (c *Client) Latest(ctx context.Context) (Rates, error) {
	if rates, ok := c.cache.Get(cacheKey); ok {
		return rates, nil
	}
	return c.Fresh(ctx)
}

// Fresh always asks the providers.
func (c *Client) Fresh(ctx context.Context) (Rates, error) {
	var lastErr error
	for _, p := range c.providers {
		rates, err := p.Latest(ctx)
		if err == nil {
			c.cache.Set(cacheKey, rates)
			return rates, nil
		}
		lastErr = err
		logger.Warn("Exchange rate provider failed", logger.Merge(logger.Fields{"provider": p.Name()}, logger.WithError(err)))
	}
	if lastErr == nil {
		lastErr = errors.New("no providers configured")
	}
	return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, ErrRatesUnavailable.Message, lastErr)
}
