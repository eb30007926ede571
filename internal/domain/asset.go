package domain

import "fmt"

// AssetConfig maps a tracked asset to its series keys.
type AssetConfig struct {
	ID            string // stable asset identifier, e.g. GOLD
	HistoricalKey string // column in the historical file / asset in the history table
	LiveKey       string // symbol requested from the live quote provider
}

// Registry is the immutable set of configured assets, in processing order.
// Build it once at startup and pass it explicitly.
type Registry struct {
	assets []AssetConfig
	byID   map[string]int
}

// NewRegistry builds a registry. Asset IDs must be unique and non-empty.
func NewRegistry(assets []AssetConfig) (*Registry, error) {
	r := &Registry{
		assets: make([]AssetConfig, 0, len(assets)),
		byID:   make(map[string]int, len(assets)),
	}
	for _, a := range assets {
		if a.ID == "" {
			return nil, fmt.Errorf("%w: asset id is empty", ErrConfiguration)
		}
		if a.HistoricalKey == "" || a.LiveKey == "" {
			return nil, fmt.Errorf("%w: asset %s needs historical and live keys", ErrConfiguration, a.ID)
		}
		if _, dup := r.byID[a.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate asset %s", ErrConfiguration, a.ID)
		}
		r.byID[a.ID] = len(r.assets)
		r.assets = append(r.assets, a)
	}
	return r, nil
}

// DefaultAssets returns the built-in commodity set.
func DefaultAssets() []AssetConfig {
	return []AssetConfig{
		{ID: "GOLD", HistoricalKey: "GOLD", LiveKey: "micro_gold"},
		{ID: "SILVER", HistoricalKey: "SILVER", LiveKey: "micro_silver"},
		{ID: "NATURAL_GAS", HistoricalKey: "NATURAL GAS", LiveKey: "natural_gas"},
		{ID: "LIVE_CATTLE", HistoricalKey: "LIVE CATTLE", LiveKey: "live_cattle"},
	}
}

// Assets returns a copy of the configured assets in order.
func (r *Registry) Assets() []AssetConfig {
	out := make([]AssetConfig, len(r.assets))
	copy(out, r.assets)
	return out
}

// IDs returns the asset identifiers in order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.assets))
	for i, a := range r.assets {
		ids[i] = a.ID
	}
	return ids
}

// Lookup returns the config for an asset. Returns ErrUnknownAsset if not configured.
func (r *Registry) Lookup(id string) (AssetConfig, error) {
	i, ok := r.byID[id]
	if !ok {
		return AssetConfig{}, fmt.Errorf("%w: %s", ErrUnknownAsset, id)
	}
	return r.assets[i], nil
}

// Len returns the number of assets.
func (r *Registry) Len() int {
	return len(r.assets)
}
