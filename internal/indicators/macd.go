package indicators

// MACD computes the moving average convergence/divergence line (fast EMA
// minus slow EMA) and its signal line (EMA of the MACD line). It returns the
// latest value of each; ok is false when the series is too short for the
// slow EMA to have any history.
func MACD(closes []float64, fastSpan, slowSpan, signalSpan int) (line, signal float64, ok bool) {
	if len(closes) < 2 || fastSpan <= 0 || slowSpan <= 0 || signalSpan <= 0 {
		return 0, 0, false
	}

	emaFast := EMA(closes, fastSpan)
	emaSlow := EMA(closes, slowSpan)

	diff := make([]float64, len(closes))
	for i := range closes {
		diff[i] = emaFast[i] - emaSlow[i]
	}
	signalLine := EMA(diff, signalSpan)

	n := len(closes) - 1
	return diff[n], signalLine[n], true
}
