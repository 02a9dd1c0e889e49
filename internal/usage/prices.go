package usage

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed prices.yaml
var defaultPricesYAML []byte

const perMillion = 1_000_000

// Pricing is the USD cost of a single token of each kind.
type Pricing struct {
	Input      float64 `json:"input"`
	Output     float64 `json:"output"`
	CacheWrite float64 `json:"cache_write"`
	CacheRead  float64 `json:"cache_read"`
}

// Cost prices a set of token counts. Negative counts are treated as zero.
func (p Pricing) Cost(t TokenCounts) float64 {
	return float64(max(t.Input, 0))*p.Input +
		float64(max(t.Output, 0))*p.Output +
		float64(max(t.CacheCreation, 0))*p.CacheWrite +
		float64(max(t.CacheRead, 0))*p.CacheRead
}

type priceFile struct {
	Default  string            `yaml:"default"`
	Families map[string]string `yaml:"families"`
	Models   map[string]struct {
		Input      float64 `yaml:"input"`
		Output     float64 `yaml:"output"`
		CacheWrite float64 `yaml:"cache_write"`
		CacheRead  float64 `yaml:"cache_read"`
	} `yaml:"models"`
}

// PriceTable maps model names to per-token prices. Keys are normalized so
// "claude-3.5-sonnet" and "Claude-3-5-Sonnet" are the same model.
type PriceTable struct {
	models       map[string]Pricing
	keys         []string
	families     []family
	defaultModel string
}

type family struct {
	keyword string
	model   string
}

// ParsePriceTable reads a YAML table of per-million-token rates.
func ParsePriceTable(b []byte) (*PriceTable, error) {
	var f priceFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse price table: %w", err)
	}
	if len(f.Models) == 0 {
		return nil, fmt.Errorf("price table has no models")
	}

	t := &PriceTable{models: make(map[string]Pricing, len(f.Models))}
	for name, m := range f.Models {
		if m.Input < 0 || m.Output < 0 || m.CacheWrite < 0 || m.CacheRead < 0 {
			return nil, fmt.Errorf("model %s: negative price", name)
		}
		key := normalizeModel(name)
		t.models[key] = Pricing{
			Input:      m.Input / perMillion,
			Output:     m.Output / perMillion,
			CacheWrite: m.CacheWrite / perMillion,
			CacheRead:  m.CacheRead / perMillion,
		}
		t.keys = append(t.keys, key)
	}
	sort.Strings(t.keys)

	t.defaultModel = normalizeModel(f.Default)
	if _, ok := t.models[t.defaultModel]; !ok {
		return nil, fmt.Errorf("default model %q is not in the table", f.Default)
	}
	for keyword, model := range f.Families {
		key := normalizeModel(model)
		if _, ok := t.models[key]; !ok {
			return nil, fmt.Errorf("family %s points at unknown model %q", keyword, model)
		}
		t.families = append(t.families, family{keyword: strings.ToLower(keyword), model: key})
	}
	sort.Slice(t.families, func(i, j int) bool { return t.families[i].keyword < t.families[j].keyword })
	return t, nil
}

var loadDefaultPrices = sync.OnceValue(func() *PriceTable {
	t, err := ParsePriceTable(defaultPricesYAML)
	if err != nil {
		panic(err)
	}
	return t
})

// DefaultPrices is the built-in table.
func DefaultPrices() *PriceTable {
	return loadDefaultPrices()
}

func normalizeModel(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), ".", "-")
}

// Resolve finds the pricing for model: exact key, then the longest table key
// contained in the name, then a family keyword, then the default model. It
// returns the table key that matched.
func (t *PriceTable) Resolve(model string) (string, Pricing) {
	name := normalizeModel(model)
	if p, ok := t.models[name]; ok {
		return name, p
	}

	best := ""
	for _, key := range t.keys {
		if len(key) > len(best) && strings.Contains(name, key) {
			best = key
		}
	}
	if best != "" {
		return best, t.models[best]
	}

	for _, f := range t.families {
		if strings.Contains(name, f.keyword) {
			return f.model, t.models[f.model]
		}
	}
	return t.defaultModel, t.models[t.defaultModel]
}

// Estimate returns the USD cost of one request.
func (t *PriceTable) Estimate(model string, tokens TokenCounts) float64 {
	_, p := t.Resolve(model)
	return p.Cost(tokens)
}

// Models lists the table keys in order.
func (t *PriceTable) Models() []string {
	return append([]string(nil), t.keys...)
}

// EstimateCost prices one request with the built-in table. Unknown models
// fall back to the default model's pricing; it never fails.
func EstimateCost(model string, input, output, cacheCreation, cacheRead int64) float64 {
	return DefaultPrices().Estimate(model, TokenCounts{
		Input:         input,
		Output:        output,
		CacheCreation: cacheCreation,
		CacheRead:     cacheRead,
	})
}
