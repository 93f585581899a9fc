package roostoo

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"spot-trading-bot/internal/types"
)

type tickerResponse struct {
	Success bool              `json:"Success"`
	ErrMsg  string            `json:"ErrMsg"`
	Data    map[string]ticker `json:"Data"`
}

// ticker fields are optional; absent values decode to 0.
type ticker struct {
	LastPrice float64  `json:"LastPrice"`
	MinAsk    *float64 `json:"MinAsk"`
	MaxBid    float64  `json:"MaxBid"`
	Change    float64  `json:"Change"`
}

// quote uses MinAsk as the reference price, falling back to LastPrice.
func (t ticker) quote() types.Quote {
	ref := t.LastPrice
	if t.MinAsk != nil {
		ref = *t.MinAsk
	}
	return types.Quote{LastPrice: t.LastPrice, ReferencePrice: ref}
}

type orderResponse struct {
	Success     bool        `json:"Success"`
	ErrMsg      string      `json:"ErrMsg"`
	OrderDetail orderDetail `json:"OrderDetail"`
}

type orderDetail struct {
	OrderID         orderID `json:"OrderID"`
	Status          string  `json:"Status"`
	FilledAverPrice float64 `json:"FilledAverPrice"`
}

// orderID accepts either a JSON number or a string.
type orderID string

func (o *orderID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*o = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*o = orderID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*o = orderID(n.String())
	return nil
}

// canonicalQuery joins params as k=v pairs sorted by key, unescaped.
func canonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + params[k]
	}
	return strings.Join(parts, "&")
}

// sign is the hex HMAC-SHA256 of payload under secret.
func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
