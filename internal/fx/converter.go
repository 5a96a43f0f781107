// Package fx converts invoice totals to the TRY reference currency using
// a live rate service with a static fallback table. Conversion is
// best-effort: it degrades, it never fails the pipeline.
package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/emredeveloper/invoice-ai-extractor/internal/models"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/logger"
)

const (
	defaultAPIURL = "https://api.exchangerate-api.com/v4/latest"
	targetCode    = "TRY"
	cacheTTL      = time.Hour
)

// fallbackRates covers the major currencies when the rate service is
// unreachable or lacks the pair.
var fallbackRates = map[string]float64{
	"USD": 30.25,
	"EUR": 33.10,
	"GBP": 38.50,
}

// Converter fetches conversion rates with an optional Redis cache in
// front of the live service.
type Converter struct {
	apiURL     string
	httpClient *http.Client
	cache      *redis.Client
	logger     logger.Logger
}

// NewConverter creates a converter. cache may be nil to disable caching.
func NewConverter(apiURL string, cache *redis.Client, log logger.Logger) *Converter {
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	return &Converter{
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      cache,
		logger:     log,
	}
}

// normalizeCurrency maps local aliases to ISO codes.
func normalizeCurrency(code string) string {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "TL" {
		return targetCode
	}
	return normalized
}

// ConversionRate returns the rate from one currency into TRY. The second
// return value is false when neither the live service nor the fallback
// table knows the currency.
func (c *Converter) ConversionRate(ctx context.Context, from string) (float64, bool) {
	if from == "" {
		return 0, false
	}

	code := normalizeCurrency(from)
	if code == targetCode {
		return 1.0, true
	}

	if rate, ok := c.cachedRate(ctx, code); ok {
		return rate, true
	}

	if rate, ok := c.liveRate(ctx, code); ok {
		c.storeRate(ctx, code, rate)
		return rate, true
	}

	rate, ok := fallbackRates[code]
	return rate, ok
}

// ConvertToTRY converts an amount into TRY. A nil or zero amount
// short-circuits without any network call; an unknown currency returns
// the amount unconverted with rate 1.0.
func (c *Converter) ConvertToTRY(ctx context.Context, amount *float64, currency *string) models.ConversionResult {
	if amount == nil || *amount == 0 {
		return models.ConversionResult{AmountTRY: 0, Rate: 0}
	}

	code := ""
	if currency != nil {
		code = *currency
	}

	rate, ok := c.ConversionRate(ctx, code)
	if !ok {
		return models.ConversionResult{
			AmountTRY: *amount,
			Rate:      1.0,
			Currency:  code,
			Note:      "currency unchanged",
		}
	}

	return models.ConversionResult{
		AmountTRY: math.Round(*amount*rate*100) / 100,
		Rate:      rate,
		Currency:  targetCode,
	}
}

func (c *Converter) liveRate(ctx context.Context, code string) (float64, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", c.apiURL, code), nil)
	if err != nil {
		return 0, false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Rate service unreachable",
			logger.String("currency", code),
			logger.Error(err),
		)
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, false
	}

	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, false
	}

	rate, ok := payload.Rates[targetCode]
	return rate, ok
}

func (c *Converter) cachedRate(ctx context.Context, code string) (float64, bool) {
	if c.cache == nil {
		return 0, false
	}

	val, err := c.cache.Get(ctx, rateKey(code)).Result()
	if err != nil {
		return 0, false
	}

	rate, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false
	}
	return rate, true
}

func (c *Converter) storeRate(ctx context.Context, code string, rate float64) {
	if c.cache == nil {
		return
	}
	// Cache failures are ignored; the live rate already succeeded.
	_ = c.cache.Set(ctx, rateKey(code), strconv.FormatFloat(rate, 'f', -1, 64), cacheTTL).Err()
}

func rateKey(code string) string {
	return "fxrate:" + code + ":" + targetCode
}
