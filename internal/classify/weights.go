package classify

import (
	"crypto/md5"
	"encoding/hex"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"courtline/internal/config"
)

// Weights resolves a free-form role hint to a suspicion multiplier.
type Weights struct {
	exact map[string]float64
	keys  []string
}

// NewWeights indexes the configured role tiers.
func NewWeights(tiers map[string]config.RoleTier) Weights {
	w := Weights{exact: map[string]float64{}}
	names := make([]string, 0, len(tiers))
	for name := range tiers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		tier := tiers[name]
		for _, role := range tier.Roles {
			role = strings.ToLower(strings.TrimSpace(role))
			if role == "" {
				continue
			}
			if _, dup := w.exact[role]; dup {
				continue
			}
			w.exact[role] = tier.Weight
			w.keys = append(w.keys, role)
		}
	}
	return w
}

// Of returns the weight for hint. Exact labels win; otherwise the longest
// label contained in the hint (or containing it) decides. Unknown hints weigh 1.
func (w Weights) Of(hint string) float64 {
	h := strings.ToLower(strings.TrimSpace(hint))
	if h == "" {
		return 1.0
	}
	if v, ok := w.exact[h]; ok {
		return v
	}
	best := ""
	for _, k := range w.keys {
		if (strings.Contains(h, k) || strings.Contains(k, h)) && len(k) > len(best) {
			best = k
		}
	}
	if best == "" {
		return 1.0
	}
	return w.exact[best]
}

// seed derives the deterministic draw seed: the first 8 hex digits of
// md5(parts joined by ':'), skipping an empty role hint.
func seed(name, stage, hint string) int64 {
	parts := []string{name}
	if stage != "" {
		parts = append(parts, stage)
	}
	if h := strings.ToLower(hint); h != "" {
		parts = append(parts, h)
	}
	sum := md5.Sum([]byte(strings.Join(parts, ":")))
	v, _ := strconv.ParseInt(hex.EncodeToString(sum[:])[:8], 16, 64)
	return v
}

// draw returns the uniform [0,1) value for a seed.
func draw(s int64) float64 {
	return rand.New(rand.NewSource(s)).Float64()
}
