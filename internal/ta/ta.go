package ta

// NeutralRSI is returned when there is not enough data or the market is flat.
const NeutralRSI = 50.0

// SMA is the mean of the last n values. With fewer than n values it is the
// mean of all of them, so early readings are biased rather than undefined.
func SMA(vals []float64, n int) float64 {
	if len(vals) == 0 || n <= 0 {
		return 0
	}
	start := len(vals) - n
	if start < 0 {
		start = 0
	}
	sum := 0.0
	for i := start; i < len(vals); i++ {
		sum += vals[i]
	}
	return sum / float64(len(vals)-start)
}

// RSI is a simple-average relative strength index over the last period deltas.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return NeutralRSI
	}
	gain, loss := 0.0, 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	gain /= float64(period)
	loss /= float64(period)
	if loss == 0 {
		if gain != 0 {
			return 100.0
		}
		return NeutralRSI
	}
	rs := gain / loss
	return 100.0 - (100.0 / (1.0 + rs))
}

// Extremes returns the max and min of vals; both are zero for an empty slice.
func Extremes(vals []float64) (hi, lo float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	hi, lo = vals[0], vals[0]
	for _, v := range vals[1:] {
		if v > hi {
			hi = v
		}
		if v < lo {
			lo = v
		}
	}
	return hi, lo
}

// Breakout compares the last value of window with the rest of it: +1 when it
// is strictly above all of them, -1 when strictly below, 0 otherwise.
func Breakout(window []float64) int {
	if len(window) < 2 {
		return 0
	}
	cur := window[len(window)-1]
	hi, lo := Extremes(window[:len(window)-1])
	switch {
	case cur > hi:
		return 1
	case cur < lo:
		return -1
	}
	return 0
}

// ChangePct is the percent move of last against ref, 0 when ref is not positive.
func ChangePct(last, ref float64) float64 {
	if ref <= 0 {
		return 0
	}
	return (last/ref - 1) * 100
}
