// Package client talks to a running marketsim server over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"marketsim/internal/market"
	"marketsim/internal/trading"
)

const userHeader = "X-User-ID"

// APIError is a non-2xx answer other than an order rejection.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("marketsim: %d %s", e.Status, e.Message)
}

type RESTClient struct {
	baseURL    string
	userID     int64
	httpClient *http.Client
}

func NewRESTClient(baseURL string, userID int64, timeout time.Duration) *RESTClient {
	return &RESTClient{
		baseURL:    baseURL,
		userID:     userID,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *RESTClient) HTTPClient() *http.Client {
	return c.httpClient
}

func (c *RESTClient) GetQuote(ctx context.Context, symbol string) (*market.Quote, error) {
	var quote market.Quote
	if err := c.do(ctx, http.MethodGet, "/api/stocks/"+url.PathEscape(symbol)+"/data", nil, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

// GetChart returns the bars of symbol inside period ("1D", "1W", "1M", "3M", "1Y").
func (c *RESTClient) GetChart(ctx context.Context, symbol, period string) ([]market.PricePoint, error) {
	endpoint := fmt.Sprintf("/api/stocks/%s/chart?period=%s", url.PathEscape(symbol), url.QueryEscape(period))
	var chart struct {
		Data []market.PricePoint `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &chart); err != nil {
		return nil, err
	}
	return chart.Data, nil
}

// PlaceOrder submits an order. Rejected orders come back as a result with
// Accepted false, not as an error.
func (c *RESTClient) PlaceOrder(ctx context.Context, order trading.Order) (*trading.OrderResult, error) {
	var result trading.OrderResult
	err := c.do(ctx, http.MethodPost, "/api/paper/orders", order, &result)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnprocessableEntity {
		return &result, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *RESTClient) GetPortfolio(ctx context.Context) (*trading.Portfolio, error) {
	var portfolio trading.Portfolio
	if err := c.do(ctx, http.MethodGet, "/api/paper/portfolio", nil, &portfolio); err != nil {
		return nil, err
	}
	return &portfolio, nil
}

func (c *RESTClient) GetTrades(ctx context.Context, limit int) ([]trading.Trade, error) {
	var trades []trading.Trade
	if err := c.do(ctx, http.MethodGet, "/api/paper/trades?limit="+strconv.Itoa(limit), nil, &trades); err != nil {
		return nil, err
	}
	return trades, nil
}

// do sends body as JSON and decodes the response into out. A 422 body is
// still decoded before the APIError is returned.
func (c *RESTClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	// Construct the request with context for timeout/cancel support
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID > 0 {
		req.Header.Set(userHeader, strconv.FormatInt(c.userID, 10))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusUnprocessableEntity {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &e)
		if e.Error == "" {
			e.Error = string(raw)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode == http.StatusUnprocessableEntity {
		return &APIError{Status: resp.StatusCode, Message: "order rejected"}
	}
	return nil
}
