package catalog

// DefaultRatePerThousand is the USD rate applied to any model id missing
// from the rate table, so billing always produces a number.
const DefaultRatePerThousand = 0.002

// Pricing converts token counts into USD cost. Pure lookup, no I/O, never
// negative.
type Pricing struct {
	rates       map[string]float64 // model id -> USD per 1000 tokens
	defaultRate float64
}

// NewPricing builds a pricing table from explicit per-model rates.
func NewPricing(rates map[string]float64, defaultRate float64) *Pricing {
	r := make(map[string]float64, len(rates))
	for m, v := range rates {
		r[m] = v
	}
	return &Pricing{rates: r, defaultRate: defaultRate}
}

// DefaultPricing derives the production rate table from the model table.
func DefaultPricing() *Pricing {
	rates := make(map[string]float64)
	for id, d := range DefaultModels() {
		rates[id] = d.USDPerThousand
	}
	return NewPricing(rates, DefaultRatePerThousand)
}

// RatePerThousand returns the USD rate per 1000 tokens for a model,
// falling back to the default rate for unrecognized ids.
func (p *Pricing) RatePerThousand(modelID string) float64 {
	if rate, ok := p.rates[modelID]; ok {
		return rate
	}
	return p.defaultRate
}

// Cost returns the USD cost of consuming the given number of tokens.
// Non-positive token counts cost zero.
func (p *Pricing) Cost(modelID string, tokens int64) float64 {
	if tokens <= 0 {
		return 0
	}
	return float64(tokens) / 1000 * p.RatePerThousand(modelID)
}
