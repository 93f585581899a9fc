// Package tradelog journals fills and decisions as JSON lines, one file per
// UTC day, and summarizes a day's fills into a CSV report.
package tradelog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"spot-trading-bot/internal/types"
)

const (
	kindFill     = "fill"
	kindDecision = "decision"
)

type Entry struct {
	Asset    string
	Side     types.Side
	Quantity float64
	Price    float64
	OrderID  string
	Reason   string
	PnL      float64 // realized, sells only
}

type DecisionEntry struct {
	Asset      string
	Action     string
	Score      int
	Price      float64
	Signal     types.Signal
	Indicators types.Indicators
}

// Journal is safe for concurrent use.
type Journal struct {
	log  *zap.Logger
	sink *dailyFile
}

// Open creates a journal writing under dir, creating it if needed.
func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	sink := &dailyFile{dir: dir, now: time.Now}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "time"
	enc.MessageKey = "kind"
	enc.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), sink, zapcore.InfoLevel)

	return &Journal{log: zap.New(core), sink: sink}, nil
}

// Nop returns a journal that discards everything.
func Nop() *Journal {
	return &Journal{log: zap.NewNop()}
}

func (j *Journal) Fill(e Entry) {
	j.log.Info(kindFill,
		zap.String("asset", e.Asset),
		zap.String("side", string(e.Side)),
		zap.Float64("quantity", e.Quantity),
		zap.Float64("price", e.Price),
		zap.String("order_id", e.OrderID),
		zap.String("reason", e.Reason),
		zap.Float64("pnl", e.PnL),
	)
}

func (j *Journal) Decision(e DecisionEntry) {
	j.log.Info(kindDecision,
		zap.String("asset", e.Asset),
		zap.String("action", e.Action),
		zap.Int("score", e.Score),
		zap.Float64("price", e.Price),
		zap.Int("ma_cross", e.Signal.MACross),
		zap.Int("breakout", e.Signal.Breakout),
		zap.Int("rsi_extreme", e.Signal.RSIExtreme),
		zap.Float64("short_ma", e.Indicators.ShortMA),
		zap.Float64("long_ma", e.Indicators.LongMA),
		zap.Float64("rsi", e.Indicators.RSI),
	)
}

func (j *Journal) Close() error {
	_ = j.log.Sync()
	if j.sink != nil {
		return j.sink.Close()
	}
	return nil
}

// Path returns the journal file for day under dir.
func Path(dir string, day time.Time) string {
	return filepath.Join(dir, day.UTC().Format("2006-01-02")+".jsonl")
}

// dailyFile is a zapcore.WriteSyncer that switches files at UTC midnight.
type dailyFile struct {
	dir string
	now func() time.Time

	mu  sync.Mutex
	day string
	f   *os.File
}

func (d *dailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	day := now.UTC().Format("2006-01-02")
	if d.f == nil || day != d.day {
		if d.f != nil {
			_ = d.f.Close()
		}
		f, err := os.OpenFile(Path(d.dir, now), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			d.f = nil
			return 0, err
		}
		d.f, d.day = f, day
	}
	return d.f.Write(p)
}

func (d *dailyFile) Sync() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	return d.f.Sync()
}

func (d *dailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}
