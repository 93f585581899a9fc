package store

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MinOrder is a venue minimum for one pair: either a whole-unit quantity or a
// quote-currency notional. Exactly one of the two is set.
type MinOrder struct {
	Quantity *int     `yaml:"quantity,omitempty"`
	Notional *float64 `yaml:"notional,omitempty"`
}

type Config struct {
	Mode     string   `yaml:"mode"`
	Universe []string `yaml:"universe"`
	Exchange struct {
		BaseURL           string        `yaml:"base_url"`
		Timeout           time.Duration `yaml:"timeout"`
		OrderTimeout      time.Duration `yaml:"order_timeout"`
		MinRequestSpacing time.Duration `yaml:"min_request_spacing"`
		Breaker           struct {
			Failures uint32        `yaml:"failures"`
			Cooldown time.Duration `yaml:"cooldown"`
		} `yaml:"breaker"`
	} `yaml:"exchange"`
	Indicators struct {
		ShortWindow int `yaml:"short_window"`
		LongWindow  int `yaml:"long_window"`
		RSIPeriod   int `yaml:"rsi_period"`
	} `yaml:"indicators"`
	Strategy struct {
		LegacyRSIGate bool `yaml:"legacy_rsi_gate"`
	} `yaml:"strategy"`
	Risk struct {
		MaxExposure   float64 `yaml:"max_exposure"`
		StopLossPct   float64 `yaml:"stop_loss_pct"`
		TakeProfitPct float64 `yaml:"take_profit_pct"`
	} `yaml:"risk"`
	Sizing struct {
		Budget           float64             `yaml:"budget"`
		MinOrder         map[string]MinOrder `yaml:"min_order"`
		IntegerOnlyBases []string            `yaml:"integer_only_bases"`
	} `yaml:"sizing"`
	Loop struct {
		WarmupTicks    int           `yaml:"warmup_ticks"`
		WarmupInterval time.Duration `yaml:"warmup_interval"`
		PollInterval   time.Duration `yaml:"poll_interval"`
		ErrorBackoff   time.Duration `yaml:"error_backoff"`
		HeartbeatEvery int           `yaml:"heartbeat_every"`
	} `yaml:"loop"`
	Status struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"status"`
	Journal struct {
		Dir string `yaml:"dir"`
	} `yaml:"journal"`
}

// Defaults mirror the reference deployment against the Roostoo mock venue.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = "DRY_RUN"
	}
	if len(c.Universe) == 0 {
		c.Universe = []string{"XRP/USD", "TRX/USD", "BNB/USD", "BTC/USD", "ETH/USD"}
	}
	if c.Exchange.BaseURL == "" {
		c.Exchange.BaseURL = "https://mock-api.roostoo.com"
	}
	if c.Exchange.Timeout == 0 {
		c.Exchange.Timeout = 10 * time.Second
	}
	if c.Exchange.OrderTimeout == 0 {
		c.Exchange.OrderTimeout = 15 * time.Second
	}
	if c.Exchange.MinRequestSpacing == 0 {
		c.Exchange.MinRequestSpacing = 500 * time.Millisecond
	}
	if c.Exchange.Breaker.Failures == 0 {
		c.Exchange.Breaker.Failures = 5
	}
	if c.Exchange.Breaker.Cooldown == 0 {
		c.Exchange.Breaker.Cooldown = 30 * time.Second
	}
	if c.Indicators.ShortWindow == 0 {
		c.Indicators.ShortWindow = 10
	}
	if c.Indicators.LongWindow == 0 {
		c.Indicators.LongWindow = 20
	}
	if c.Indicators.RSIPeriod == 0 {
		c.Indicators.RSIPeriod = 14
	}
	if c.Risk.MaxExposure == 0 {
		c.Risk.MaxExposure = 10.0
	}
	if c.Risk.StopLossPct == 0 {
		c.Risk.StopLossPct = 0.02
	}
	if c.Risk.TakeProfitPct == 0 {
		c.Risk.TakeProfitPct = 0.03
	}
	if c.Sizing.Budget == 0 {
		c.Sizing.Budget = 2.0
	}
	if c.Sizing.MinOrder == nil {
		c.Sizing.MinOrder = map[string]MinOrder{
			"BNB/USD": {Notional: floatPtr(1.0)},
			"BTC/USD": {Notional: floatPtr(1.0)},
			"ETH/USD": {Notional: floatPtr(1.0)},
			"XRP/USD": {Quantity: intPtr(1)},
			"TRX/USD": {Quantity: intPtr(10)},
		}
	}
	if c.Sizing.IntegerOnlyBases == nil {
		c.Sizing.IntegerOnlyBases = []string{"XRP", "TRX"}
	}
	if c.Loop.WarmupTicks == 0 {
		c.Loop.WarmupTicks = 20
	}
	if c.Loop.WarmupInterval == 0 {
		c.Loop.WarmupInterval = time.Second
	}
	if c.Loop.PollInterval == 0 {
		c.Loop.PollInterval = 10 * time.Second
	}
	if c.Loop.ErrorBackoff == 0 {
		c.Loop.ErrorBackoff = 30 * time.Second
	}
	if c.Loop.HeartbeatEvery == 0 {
		c.Loop.HeartbeatEvery = 10
	}
	if c.Status.Addr == "" {
		c.Status.Addr = "127.0.0.1:9090"
	}
	if c.Journal.Dir == "" {
		c.Journal.Dir = "logs"
	}
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if len(c.Universe) == 0 {
		return errors.New("universe cannot be empty")
	}
	seen := make(map[string]bool, len(c.Universe))
	for _, a := range c.Universe {
		if !strings.Contains(a, "/") {
			return fmt.Errorf("universe entry '%s' must look like BASE/QUOTE", a)
		}
		if seen[a] {
			return fmt.Errorf("universe entry '%s' is duplicated", a)
		}
		seen[a] = true
	}
	if c.Indicators.ShortWindow < 1 || c.Indicators.LongWindow < c.Indicators.ShortWindow {
		return fmt.Errorf("indicators: need 1 <= short_window (%d) <= long_window (%d)", c.Indicators.ShortWindow, c.Indicators.LongWindow)
	}
	if c.Indicators.RSIPeriod < 1 {
		return fmt.Errorf("indicators.rsi_period must be >= 1, got %d", c.Indicators.RSIPeriod)
	}
	if c.Risk.MaxExposure <= 0 {
		return fmt.Errorf("risk.max_exposure must be > 0, got %.4f", c.Risk.MaxExposure)
	}
	if c.Risk.StopLossPct <= 0 || c.Risk.StopLossPct >= 1 {
		return fmt.Errorf("risk.stop_loss_pct must be in (0,1), got %.4f", c.Risk.StopLossPct)
	}
	if c.Risk.TakeProfitPct <= 0 {
		return fmt.Errorf("risk.take_profit_pct must be > 0, got %.4f", c.Risk.TakeProfitPct)
	}
	if c.Sizing.Budget <= 0 {
		return fmt.Errorf("sizing.budget must be > 0, got %.4f", c.Sizing.Budget)
	}
	for pair, m := range c.Sizing.MinOrder {
		if (m.Quantity == nil) == (m.Notional == nil) {
			return fmt.Errorf("sizing.min_order.%s: set exactly one of quantity or notional", pair)
		}
		if m.Quantity != nil && *m.Quantity < 0 {
			return fmt.Errorf("sizing.min_order.%s.quantity must be >= 0", pair)
		}
		if m.Notional != nil && *m.Notional < 0 {
			return fmt.Errorf("sizing.min_order.%s.notional must be >= 0", pair)
		}
	}
	if c.Loop.WarmupTicks < 0 {
		return fmt.Errorf("loop.warmup_ticks must be >= 0, got %d", c.Loop.WarmupTicks)
	}
	if c.Loop.HeartbeatEvery < 1 {
		return fmt.Errorf("loop.heartbeat_every must be >= 1, got %d", c.Loop.HeartbeatEvery)
	}
	return nil
}

// HistoryCapacity is the largest trailing window any indicator or signal reads.
func (c *Config) HistoryCapacity() int {
	n := 20
	if c.Indicators.LongWindow > n {
		n = c.Indicators.LongWindow
	}
	if c.Indicators.RSIPeriod+1 > n {
		n = c.Indicators.RSIPeriod + 1
	}
	return n
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}

func ParseConfig(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
