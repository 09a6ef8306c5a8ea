package catalog

import (
	"sort"
	"strings"
)

// Tier is a subscription plan tier. Tiers are totally ordered and model
// grants are cumulative: a model granted at some tier is allowed at every
// higher tier.
type Tier string

const (
	TierBasic    Tier = "basic"
	TierMax      Tier = "max"
	TierBeast    Tier = "beast"
	TierUltimate Tier = "ultimate"
)

var tierRank = map[Tier]int{
	TierBasic:    0,
	TierMax:      1,
	TierBeast:    2,
	TierUltimate: 3,
}

// ParseTier normalizes a stored plan name. Unrecognized values map to the
// lowest tier so a corrupted plan column can never grant elevated access.
func ParseTier(s string) Tier {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := tierRank[t]; !ok {
		return TierBasic
	}
	return t
}

// Rank returns the tier's position in the plan order, treating unknown
// tiers as basic.
func (t Tier) Rank() int {
	if r, ok := tierRank[t]; ok {
		return r
	}
	return tierRank[TierBasic]
}

// Catalog maps plan tiers to their monthly token quota and allowed model
// set. It is a plain value built once at startup; tests construct their own
// tables with New.
type Catalog struct {
	quotas map[Tier]int64
	grants map[string]Tier // model id -> lowest tier that grants it
}

// New builds a catalog from an explicit quota table and model grant table.
func New(quotas map[Tier]int64, grants map[string]Tier) *Catalog {
	q := make(map[Tier]int64, len(quotas))
	for t, v := range quotas {
		q[t] = v
	}
	g := make(map[string]Tier, len(grants))
	for m, t := range grants {
		g[m] = t
	}
	return &Catalog{quotas: q, grants: g}
}

// Default returns the production plan table.
func Default() *Catalog {
	return New(
		map[Tier]int64{
			TierBasic:    100_000,
			TierMax:      1_000_000,
			TierBeast:    5_000_000,
			TierUltimate: 20_000_000,
		},
		map[string]Tier{
			"openai/gpt-4o-mini":          TierBasic,
			"anthropic/claude-3-haiku":    TierBasic,
			"google/gemini-1.5-flash":     TierBasic,
			"openai/gpt-4o":               TierMax,
			"anthropic/claude-3-5-sonnet": TierMax,
			"google/gemini-1.5-pro":       TierBeast,
			"anthropic/claude-3-opus":     TierBeast,
			"openai/o1":                   TierUltimate,
		},
	)
}

// QuotaTokens returns the monthly token quota for a tier. Unknown tiers get
// the basic quota.
func (c *Catalog) QuotaTokens(t Tier) int64 {
	if q, ok := c.quotas[t]; ok {
		return q
	}
	return c.quotas[TierBasic]
}

// IsModelAllowed reports whether the tier grants access to the model.
func (c *Catalog) IsModelAllowed(t Tier, modelID string) bool {
	granted, ok := c.grants[modelID]
	if !ok {
		return false
	}
	return t.Rank() >= granted.Rank()
}

// AllowedModels returns every model id the tier may use, sorted for stable
// output.
func (c *Catalog) AllowedModels(t Tier) []string {
	var models []string
	for m, granted := range c.grants {
		if t.Rank() >= granted.Rank() {
			models = append(models, m)
		}
	}
	sort.Strings(models)
	return models
}

// MinTierFor returns the lowest tier that grants the model, so a rejection
// can tell the client which plan would unlock it.
func (c *Catalog) MinTierFor(modelID string) (Tier, bool) {
	t, ok := c.grants[modelID]
	return t, ok
}
