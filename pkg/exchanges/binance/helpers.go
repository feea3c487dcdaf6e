package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
)

func sign(data, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// stepFromPrecision converts a decimal precision into its step size, e.g.
// 3 -> 0.001.
func stepFromPrecision(precision int) float64 {
	return 1 / math.Pow(10, float64(precision))
}
