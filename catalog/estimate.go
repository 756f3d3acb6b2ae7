package catalog

// Cost breaks down an estimated request cost in USD.
type Cost struct {
	InputUSD  float64
	OutputUSD float64
	TotalUSD  float64
	// Priced is false when the model has no known token prices.
	// All cost fields are zero in that case.
	Priced bool
}

// perM converts a nullable price-per-million-tokens to a cost for n tokens.
func perM(price *float64, n int) float64 {
	if price == nil || n <= 0 {
		return 0
	}
	return *price * float64(n) / 1_000_000
}

// Estimate computes the expected cost of a request against the given model,
// assuming promptTokens of input and completionTokens of output. Callers that
// do not know the completion size pass the model's MaxOutputTokens for a
// worst-case bound, or a fixed assumption for ranking purposes.
func Estimate(m ModelSpec, promptTokens, completionTokens int) Cost {
	if !m.Pricing.Priced() {
		return Cost{}
	}
	c := Cost{
		InputUSD:  perM(m.Pricing.InputPerMTokens, promptTokens),
		OutputUSD: perM(m.Pricing.OutputPerMTokens, completionTokens),
		Priced:    true,
	}
	c.TotalUSD = c.InputUSD + c.OutputUSD
	return c
}
