package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mkravets/fin-advisor-agent/internal/core/domain"
	"github.com/mkravets/fin-advisor-agent/internal/infrastructure/resilience"
)

// Client fetches live quotes and company profiles from a Yahoo-compatible
// finance API. Outbound calls are rate limited so tool-heavy query bursts
// cannot hammer the upstream.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
	limiter    *rate.Limiter
}

func New(baseURL string, requestsPerSecond float64, executor *resilience.Executor) *Client {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		executor:   executor,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

func (c *Client) Quote(ctx context.Context, ticker string) (*domain.Quote, error) {
	var response struct {
		QuoteResponse struct {
			Result []struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				Currency           string  `json:"currency"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"result"`
		} `json:"quoteResponse"`
	}

	endpoint := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", c.baseURL, url.QueryEscape(ticker))
	if err := c.getJSON(ctx, "market_quote", endpoint, &response); err != nil {
		if isNotFound(err) {
			return nil, domain.WrapError(domain.ErrValidation, "fetch quote", err)
		}
		return nil, domain.WrapError(domain.ErrToolUnavailable, "fetch quote", err)
	}

	if len(response.QuoteResponse.Result) == 0 {
		return nil, domain.WrapError(domain.ErrValidation, "fetch quote",
			fmt.Errorf("no quote data for ticker %q", ticker))
	}

	r := response.QuoteResponse.Result[0]
	asOf := time.Now().UTC()
	if r.RegularMarketTime > 0 {
		asOf = time.Unix(r.RegularMarketTime, 0).UTC()
	}
	return &domain.Quote{
		Ticker:   r.Symbol,
		Price:    r.RegularMarketPrice,
		Currency: r.Currency,
		AsOf:     asOf,
	}, nil
}

func (c *Client) CompanyProfile(ctx context.Context, ticker string) (*domain.CompanyProfile, error) {
	var response struct {
		QuoteSummary struct {
			Result []struct {
				AssetProfile struct {
					Sector              string `json:"sector"`
					LongBusinessSummary string `json:"longBusinessSummary"`
				} `json:"assetProfile"`
				Price struct {
					LongName  string `json:"longName"`
					MarketCap struct {
						Raw float64 `json:"raw"`
					} `json:"marketCap"`
				} `json:"price"`
			} `json:"result"`
		} `json:"quoteSummary"`
	}

	endpoint := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=assetProfile,price",
		c.baseURL, url.PathEscape(ticker))
	if err := c.getJSON(ctx, "market_profile", endpoint, &response); err != nil {
		if isNotFound(err) {
			return nil, domain.WrapError(domain.ErrValidation, "fetch company profile", err)
		}
		return nil, domain.WrapError(domain.ErrToolUnavailable, "fetch company profile", err)
	}

	if len(response.QuoteSummary.Result) == 0 {
		return nil, domain.WrapError(domain.ErrValidation, "fetch company profile",
			fmt.Errorf("no profile data for ticker %q", ticker))
	}

	r := response.QuoteSummary.Result[0]
	return &domain.CompanyProfile{
		Ticker:    ticker,
		Name:      r.Price.LongName,
		Sector:    r.AssetProfile.Sector,
		MarketCap: int64(r.Price.MarketCap.Raw),
		Summary:   r.AssetProfile.LongBusinessSummary,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, operation, endpoint string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	fn := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return &HTTPStatusError{
				Operation:  operation,
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Body:       strings.TrimSpace(string(raw)),
			}
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	}

	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Execute(ctx, operation, fn, classifyMarketError)
}
