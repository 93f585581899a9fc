package engine

import (
	"spot-trading-bot/internal/ta"
	"spot-trading-bot/internal/types"
)

const (
	breakoutWindow = 20
	rsiOversold    = 30.0
	rsiOverbought  = 70.0
)

const (
	ActionNone = "NONE"
	ActionBuy  = "BUY"
	ActionSell = "SELL"
)

type fusionInput struct {
	cur, prev types.Indicators
	window    []float64 // trailing raw prices, current last
	price     float64
}

// strategy is one independent vote in {-1, 0, 1}.
type strategy struct {
	name string
	vote func(in fusionInput) int
}

// threshold maps a score range to an action, gated on whether a position is open.
type threshold struct {
	action       string
	matches      func(score int) bool
	needPosition bool
}

var thresholds = []threshold{
	{action: ActionBuy, matches: func(s int) bool { return s >= 2 }, needPosition: false},
	{action: ActionSell, matches: func(s int) bool { return s <= -2 }, needPosition: true},
}

func maCrossVote(in fusionInput) int {
	switch {
	case in.prev.ShortMA <= in.prev.LongMA && in.cur.ShortMA > in.cur.LongMA:
		return 1
	case in.prev.ShortMA >= in.prev.LongMA && in.cur.ShortMA < in.cur.LongMA:
		return -1
	}
	return 0
}

func breakoutVote(in fusionInput) int {
	if len(in.window) < breakoutWindow {
		return 0
	}
	return ta.Breakout(in.window[len(in.window)-breakoutWindow:])
}

func rsiVote(in fusionInput) int {
	switch {
	case in.cur.RSI < rsiOversold:
		return 1
	case in.cur.RSI > rsiOverbought:
		return -1
	}
	return 0
}

func mutedVote(fusionInput) int { return 0 }

type signalFusion struct {
	maCross  strategy
	breakout strategy
	rsi      strategy
}

// newSignalFusion builds the three-strategy fusion. legacyRSIGate mutes the RSI
// vote, reproducing a deployment where that input was never populated.
func newSignalFusion(legacyRSIGate bool) *signalFusion {
	sf := &signalFusion{
		maCross:  strategy{name: "ma_cross", vote: maCrossVote},
		breakout: strategy{name: "breakout", vote: breakoutVote},
		rsi:      strategy{name: "rsi_extreme", vote: rsiVote},
	}
	if legacyRSIGate {
		sf.rsi.vote = mutedVote
	}
	return sf
}

func (sf *signalFusion) evaluate(asset string, in fusionInput, hasPosition bool) types.Signal {
	sig := types.Signal{
		Asset:      asset,
		MACross:    sf.maCross.vote(in),
		Breakout:   sf.breakout.vote(in),
		RSIExtreme: sf.rsi.vote(in),
		Action:     ActionNone,
		Price:      in.price,
	}
	sig.Total = sig.MACross + sig.Breakout + sig.RSIExtreme

	for _, th := range thresholds {
		if th.matches(sig.Total) && th.needPosition == hasPosition {
			sig.Action = th.action
			break
		}
	}
	return sig
}

// logFields renders the per-strategy votes of sig as key/value pairs.
func (sf *signalFusion) logFields(sig types.Signal) []any {
	return []any{
		sf.maCross.name, sig.MACross,
		sf.breakout.name, sig.Breakout,
		sf.rsi.name, sig.RSIExtreme,
	}
}
