// Package roostoo talks to the Roostoo spot exchange REST API: a public
// ticker for the whole market and signed market orders.
package roostoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"spot-trading-bot/internal/api"
	"spot-trading-bot/internal/interfaces"
	"spot-trading-bot/internal/logger"
	"spot-trading-bot/internal/store"
	"spot-trading-bot/internal/types"
)

const (
	ModeDryRun = "DRY_RUN"
	ModeLive   = "LIVE"

	EnvAPIKey    = "ROOSTOO_API_KEY"
	EnvSecretKey = "ROOSTOO_SECRET_KEY"

	tickerPath = "/v3/ticker"
	orderPath  = "/v3/place_order"
)

var (
	ErrRejected           = errors.New("order rejected")
	ErrMissingCredentials = errors.New("missing API credentials")
)

type Credentials struct {
	APIKey    string
	SecretKey string
}

// CredentialsFromEnv reads the API key pair from the environment.
func CredentialsFromEnv() Credentials {
	return Credentials{
		APIKey:    os.Getenv(EnvAPIKey),
		SecretKey: os.Getenv(EnvSecretKey),
	}
}

// Client implements interfaces.Broker. In DRY_RUN mode market data is real
// but orders are filled locally at the last fetched price.
type Client struct {
	http         *api.Client
	creds        Credentials
	mode         string
	timeout      time.Duration
	orderTimeout time.Duration
	now          func() time.Time

	mu   sync.Mutex
	last map[string]float64
}

var _ interfaces.Broker = (*Client)(nil)

// New builds a client from the exchange section of cfg. Extra options are
// applied after the configured ones.
func New(cfg *store.Config, creds Credentials, opts ...api.ClientOption) (*Client, error) {
	if cfg.Mode == ModeLive && (creds.APIKey == "" || creds.SecretKey == "") {
		return nil, fmt.Errorf("%s mode needs %s and %s: %w", ModeLive, EnvAPIKey, EnvSecretKey, ErrMissingCredentials)
	}
	ex := cfg.Exchange
	base := []api.ClientOption{
		api.WithBaseURL(ex.BaseURL),
		api.WithTimeout(ex.OrderTimeout),
		api.WithMinSpacing(ex.MinRequestSpacing),
		api.WithCircuitBreaker("roostoo", ex.Breaker.Failures, ex.Breaker.Cooldown),
		api.WithLogging(true),
	}
	return &Client{
		http:         api.NewClient(append(base, opts...)...),
		creds:        creds,
		mode:         cfg.Mode,
		timeout:      ex.Timeout,
		orderTimeout: ex.OrderTimeout,
		now:          time.Now,
		last:         map[string]float64{},
	}, nil
}

func (c *Client) Mode() string { return c.mode }

func (c *Client) timestamp() string {
	return strconv.FormatInt(c.now().UnixMilli(), 10)
}

// FetchSnapshot returns every pair the ticker reports.
func (c *Client) FetchSnapshot(ctx context.Context) (types.MarketSnapshot, error) {
	q := url.Values{}
	q.Set("timestamp", c.timestamp())
	req := api.NewRequest(http.MethodGet, tickerPath+"?"+q.Encode()).
		WithContext(ctx).
		WithTimeout(c.timeout)

	resp, err := c.http.Do(req)
	if err != nil {
		return types.MarketSnapshot{}, fmt.Errorf("ticker: %w", err)
	}
	var body tickerResponse
	if err := resp.ParseJSON(&body); err != nil {
		return types.MarketSnapshot{}, fmt.Errorf("ticker: %w", err)
	}
	if !body.Success {
		return types.MarketSnapshot{}, fmt.Errorf("ticker: unsuccessful response: %s", body.ErrMsg)
	}

	snap := types.MarketSnapshot{
		Quotes:    make(map[string]types.Quote, len(body.Data)),
		FetchedAt: c.now(),
	}
	c.mu.Lock()
	for pair, t := range body.Data {
		q := t.quote()
		snap.Quotes[pair] = q
		c.last[pair] = q.LastPrice
	}
	c.mu.Unlock()
	return snap, nil
}

// PlaceOrder submits a market order. It is never retried.
func (c *Client) PlaceOrder(ctx context.Context, req types.OrderReq) (types.Fill, error) {
	if c.mode != ModeLive {
		return c.simulate(ctx, req)
	}

	params := map[string]string{
		"pair":      req.Asset,
		"side":      string(req.Side),
		"type":      "MARKET",
		"quantity":  formatQuantity(req.Quantity),
		"timestamp": c.timestamp(),
	}
	payload := canonicalQuery(params)

	httpReq := api.NewRequest(http.MethodPost, orderPath).
		WithContext(ctx).
		WithTimeout(c.orderTimeout).
		WithRawBody("application/x-www-form-urlencoded", []byte(payload)).
		WithHeader("RST-API-KEY", c.creds.APIKey).
		WithHeader("MSG-SIGNATURE", sign(c.creds.SecretKey, payload))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return types.Fill{}, fmt.Errorf("place %s %s: %w", req.Side, req.Asset, err)
	}
	var body orderResponse
	if err := resp.ParseJSON(&body); err != nil {
		return types.Fill{}, fmt.Errorf("place %s %s: %w", req.Side, req.Asset, err)
	}
	if !body.Success {
		msg := body.ErrMsg
		if msg == "" {
			msg = "Unknown error"
		}
		return types.Fill{}, fmt.Errorf("place %s %s: %w: %s", req.Side, req.Asset, ErrRejected, msg)
	}

	d := body.OrderDetail
	return types.Fill{
		OrderID:     string(d.OrderID),
		Asset:       req.Asset,
		Side:        req.Side,
		Quantity:    req.Quantity,
		FilledPrice: d.FilledAverPrice,
		Status:      d.Status,
	}, nil
}

func (c *Client) simulate(ctx context.Context, req types.OrderReq) (types.Fill, error) {
	c.mu.Lock()
	price, ok := c.last[req.Asset]
	c.mu.Unlock()
	if !ok || price <= 0 {
		return types.Fill{}, fmt.Errorf("simulate %s %s: no price: %w", req.Side, req.Asset, ErrRejected)
	}
	fill := types.Fill{
		OrderID:     "SIM-" + uuid.NewString(),
		Asset:       req.Asset,
		Side:        req.Side,
		Quantity:    req.Quantity,
		FilledPrice: price,
		Status:      "FILLED",
	}
	logger.Debug(ctx, "Simulated fill", "asset", req.Asset, "side", req.Side, "price", price, "order_id", fill.OrderID)
	return fill, nil
}

func formatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}
