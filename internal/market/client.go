// Package market serves cryptocurrency prices from CoinGecko.
package market

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/zjoart/varlixo/internal/fx"
	"github.com/zjoart/varlixo/pkg/apperr"
	"github.com/zjoart/varlixo/pkg/cache"
	"github.com/zjoart/varlixo/pkg/logger"
)

const (
	CoinGeckoBaseURL = "https://api.coingecko.com/api/v3"
	CacheTTL         = time.Minute
)

var ErrMarketUnavailable = apperr.New(apperr.KindUpstreamUnavailable, "market data unavailable")

type Coin struct {
	ID                       string          `json:"id"`
	Symbol                   string          `json:"symbol"`
	Name                     string          `json:"name"`
	Image                    string          `json:"image"`
	CurrentPrice             decimal.Decimal `json:"current_price"`
	MarketCap                decimal.Decimal `json:"market_cap"`
	MarketCapRank            int             `json:"market_cap_rank"`
	TotalVolume              decimal.Decimal `json:"total_volume"`
	PriceChangePercentage24h decimal.Decimal `json:"price_change_percentage_24h"`
}

type PricePoint struct {
	Time  time.Time       `json:"time"`
	Price decimal.Decimal `json:"price"`
}

type Conversion struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
	Result decimal.Decimal `json:"result"`
	Rate   decimal.Decimal `json:"rate"`
}

type RateSource interface {
	Latest(ctx context.Context) (fx.Rates, error)
}

type Client struct {
	http  *resty.Client
	rates RateSource
	cache *cache.TTL[interface{}]
}

// NewClient talks to CoinGecko at baseURL. apiKey is sent as the demo key
// header when set. Fiat legs of conversions use rates.
func NewClient(baseURL, apiKey string, timeout time.Duration, rates RateSource) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetHeader("x-cg-demo-api-key", apiKey)
	}
	return &Client{http: client, rates: rates, cache: cache.NewTTL[interface{}](CacheTTL)}
}

// get decodes path into a T. Repeated requests inside CacheTTL are served
// from memory.
func get[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	key := path + "?" + query.Encode()
	if cached, ok := c.cache.Get(key); ok {
		if v, ok := cached.(T); ok {
			return v, nil
		}
	}

	var result T
	resp, err := c.http.R().SetContext(ctx).SetQueryParamsFromValues(query).SetResult(&result).Get(path)
	if err == nil && resp.IsError() {
		err = fmt.Errorf("unexpected status %d", resp.StatusCode())
	}
	if err != nil {
		logger.Warn("CoinGecko request failed", logger.Merge(logger.Fields{"path": path}, logger.WithError(err)))
		var zero T
		return zero, apperr.Wrap(apperr.KindUpstreamUnavailable, ErrMarketUnavailable.Message, err)
	}

	c.cache.Set(key, result)
	return result, nil
}

// Markets lists the top coins by market cap priced in USD.
func (c *Client) Markets(ctx context.Context, perPage int) ([]Coin, error) {
	if perPage <= 0 || perPage > 250 {
		perPage = 50
	}
	return get[[]Coin](ctx, c, "/coins/markets", url.Values{
		"vs_currency":             {"usd"},
		"order":                   {"market_cap_desc"},
		"per_page":                {fmt.Sprint(perPage)},
		"page":                    {"1"},
		"sparkline":               {"false"},
		"price_change_percentage": {"24h"},
	})
}

func (c *Client) Global(ctx context.Context) (map[string]interface{}, error) {
	body, err := get[struct {
		Data map[string]interface{} `json:"data"`
	}](ctx, c, "/global", url.Values{})
	return body.Data, err
}

func (c *Client) Trending(ctx context.Context) ([]map[string]interface{}, error) {
	body, err := get[struct {
		Coins []struct {
			Item map[string]interface{} `json:"item"`
		} `json:"coins"`
	}](ctx, c, "/search/trending", url.Values{})
	if err != nil {
		return nil, err
	}

	items := make([]map[string]interface{}, 0, len(body.Coins))
	for _, coin := range body.Coins {
		items = append(items, coin.Item)
	}
	return items, nil
}

// History returns the USD price series of a coin over the last days.
func (c *Client) History(ctx context.Context, coinID string, days int) ([]PricePoint, error) {
	if days <= 0 || days > 365 {
		days = 7
	}
	body, err := get[struct {
		Prices [][2]decimal.Decimal `json:"prices"`
	}](ctx, c, "/coins/"+url.PathEscape(coinID)+"/market_chart", url.Values{
		"vs_currency": {"usd"},
		"days":        {fmt.Sprint(days)},
	})
	if err != nil {
		return nil, err
	}

	points := make([]PricePoint, 0, len(body.Prices))
	for _, p := range body.Prices {
		points = append(points, PricePoint{Time: time.UnixMilli(p[0].IntPart()).UTC(), Price: p[1]})
	}
	return points, nil
}

var coinIDs = map[string]string{
	"btc":  "bitcoin",
	"eth":  "ethereum",
	"usdt": "tether",
	"bnb":  "binancecoin",
	"trx":  "tron",
	"usdc": "usd-coin",
	"sol":  "solana",
	"xrp":  "ripple",
	"ltc":  "litecoin",
	"doge": "dogecoin",
}

// usdPrice is the USD value of one unit, kept as a fraction so a conversion
// needs a single division.
type usdPrice struct {
	num, den decimal.Decimal
}

func (c *Client) usdValue(ctx context.Context, symbol string) (usdPrice, error) {
	one := decimal.NewFromInt(1)
	symbol = strings.ToLower(symbol)
	if symbol == "usd" {
		return usdPrice{one, one}, nil
	}

	if id, ok := coinIDs[symbol]; ok {
		prices, err := get[map[string]map[string]decimal.Decimal](ctx, c, "/simple/price", url.Values{
			"ids":           {id},
			"vs_currencies": {"usd"},
		})
		if err != nil {
			return usdPrice{}, err
		}
		price := prices[id]["usd"]
		if !price.IsPositive() {
			return usdPrice{}, apperr.Upstream(ErrMarketUnavailable.Message, fmt.Errorf("no usd price for %s", id))
		}
		return usdPrice{price, one}, nil
	}

	rates, err := c.rates.Latest(ctx)
	if err != nil {
		return usdPrice{}, err
	}
	rate, ok := rates.Rate(symbol)
	if !ok {
		return usdPrice{}, apperr.Validation(fmt.Sprintf("unsupported currency %s", strings.ToUpper(symbol)))
	}
	return usdPrice{one, rate}, nil
}

// Convert prices amount of one coin or fiat currency in another, through USD.
func (c *Client) Convert(ctx context.Context, from, to string, amount decimal.Decimal) (*Conversion, error) {
	if !amount.IsPositive() {
		return nil, apperr.Validation("amount must be greater than zero")
	}
	if from == "" || to == "" {
		return nil, apperr.Validation("from and to are required")
	}

	fromUSD, err := c.usdValue(ctx, from)
	if err != nil {
		return nil, err
	}
	toUSD, err := c.usdValue(ctx, to)
	if err != nil {
		return nil, err
	}

	rate := fromUSD.num.Mul(toUSD.den).Div(fromUSD.den.Mul(toUSD.num))
	return &Conversion{
		From:   strings.ToUpper(from),
		To:     strings.ToUpper(to),
		Amount: amount,
		Result: amount.Mul(rate).Round(8),
		Rate:   rate.Round(8),
	}, nil
}
