package types

import "time"

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Quote is one asset's entry in a ticker snapshot.
type Quote struct {
	LastPrice      float64 `json:"last_price"`
	ReferencePrice float64 `json:"reference_price"`
}

type MarketSnapshot struct {
	Quotes    map[string]Quote
	FetchedAt time.Time
}

// Price returns the last price of asset and whether the snapshot carried it.
func (s MarketSnapshot) Price(asset string) (float64, bool) {
	q, ok := s.Quotes[asset]
	if !ok {
		return 0, false
	}
	return q.LastPrice, true
}

type Sample struct {
	LastPrice      float64
	ReferencePrice float64
	ChangePct      float64
}

type Indicators struct {
	ShortMA float64 `json:"short_ma"`
	LongMA  float64 `json:"long_ma"`
	RSI     float64 `json:"rsi"`
}

type Position struct {
	Asset      string    `json:"asset"`
	Quantity   float64   `json:"quantity"`
	EntryPrice float64   `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`
	OrderID    string    `json:"order_id"`
}

type Signal struct {
	Asset      string  `json:"asset"`
	MACross    int     `json:"ma_cross"`
	Breakout   int     `json:"breakout"`
	RSIExtreme int     `json:"rsi_extreme"`
	Total      int     `json:"total"`
	Action     string  `json:"action"`
	Price      float64 `json:"price"`
}

type OrderReq struct {
	Asset    string
	Side     Side
	Quantity float64
	Tag      string
}

type Fill struct {
	OrderID     string  `json:"order_id"`
	Asset       string  `json:"asset"`
	Side        Side    `json:"side"`
	Quantity    float64 `json:"quantity"`
	FilledPrice float64 `json:"filled_price"`
	Status      string  `json:"status"`
}

type RiskTrigger struct {
	Asset  string  `json:"asset"`
	Reason string  `json:"reason"`
	PnLPct float64 `json:"pnl_pct"`
}

type StepStatus string

const (
	StepTraded StepStatus = "TRADED"
	StepIdle   StepStatus = "IDLE"
	StepEmpty  StepStatus = "EMPTY"
)

type Heartbeat struct {
	Tick          int     `json:"tick"`
	OpenPositions int     `json:"open_positions"`
	Exposure      float64 `json:"exposure"`
}

type StepResult struct {
	Tick      int           `json:"tick"`
	Status    StepStatus    `json:"status"`
	Buys      []string      `json:"buys,omitempty"`
	Sells     []string      `json:"sells,omitempty"`
	Forced    []RiskTrigger `json:"forced,omitempty"`
	Signals   []Signal      `json:"signals,omitempty"`
	Fills     []Fill        `json:"fills,omitempty"`
	Heartbeat *Heartbeat    `json:"heartbeat,omitempty"`
}

// IngestResult reports one market-data ingest.
type IngestResult struct {
	Fresh   bool // market data was obtainable
	Updated bool // history was long enough to produce indicator snapshots
	Samples int
}
