package store

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-process AssetStore and ProviderConfigStore used when
// no MongoDB URI is configured.
type MemoryStore struct {
	mu        sync.RWMutex
	assets    map[string]Asset
	providers map[string]ProviderConfig
	now       func() time.Time
}

var (
	_ AssetStore          = (*MemoryStore)(nil)
	_ ProviderConfigStore = (*MemoryStore)(nil)
)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assets:    make(map[string]Asset),
		providers: make(map[string]ProviderConfig),
		now:       time.Now,
	}
}

// SaveAsset inserts or replaces the asset with the same id.
func (m *MemoryStore) SaveAsset(_ context.Context, a Asset) error {
	if a.ID == "" {
		return errors.New("asset id is required")
	}
	if a.SessionID == "" {
		return errors.New("session id is required")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = m.now()
	}
	m.mu.Lock()
	m.assets[a.ID] = a
	m.mu.Unlock()
	return nil
}

// GetAsset loads one asset by id.
func (m *MemoryStore) GetAsset(_ context.Context, id string) (Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assets[id]
	if !ok {
		return Asset{}, ErrAssetNotFound
	}
	return a, nil
}

// ListAssetsBySession returns the assets of a session, oldest first.
func (m *MemoryStore) ListAssetsBySession(_ context.Context, sessionID string) ([]Asset, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	m.mu.RLock()
	var out []Asset
	for _, a := range m.assets {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	m.mu.RUnlock()
	slices.SortStableFunc(out, byCreated)
	return out, nil
}

// ListRecentAssets returns the most recent assets, newest first.
func (m *MemoryStore) ListRecentAssets(_ context.Context, limit int) ([]Asset, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	m.mu.RLock()
	out := make([]Asset, 0, len(m.assets))
	for _, a := range m.assets {
		out = append(out, a)
	}
	m.mu.RUnlock()
	slices.SortStableFunc(out, func(a, b Asset) int { return byCreated(b, a) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func byCreated(a, b Asset) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// UpsertProviderConfig stores the non-nil fields of cfg.
func (m *MemoryStore) UpsertProviderConfig(_ context.Context, cfg ProviderConfig) error {
	if cfg.ProviderID == "" {
		return errors.New("provider id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.providers[cfg.ProviderID]
	cur.ProviderID = cfg.ProviderID
	if cfg.Priority != nil {
		p := *cfg.Priority
		cur.Priority = &p
	}
	if cfg.Enabled != nil {
		e := *cfg.Enabled
		cur.Enabled = &e
	}
	cur.UpdatedAt = m.now().UTC()
	m.providers[cfg.ProviderID] = cur
	return nil
}

// SetProviderEnabled toggles a provider on or off.
func (m *MemoryStore) SetProviderEnabled(ctx context.Context, providerID string, enabled bool) error {
	return m.UpsertProviderConfig(ctx, ProviderConfig{ProviderID: providerID, Enabled: &enabled})
}

// ListProviderConfigs returns every stored override ordered by provider id.
func (m *MemoryStore) ListProviderConfigs(_ context.Context) ([]ProviderConfig, error) {
	m.mu.RLock()
	out := make([]ProviderConfig, 0, len(m.providers))
	for _, c := range m.providers {
		out = append(out, c)
	}
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b ProviderConfig) int { return cmp.Compare(a.ProviderID, b.ProviderID) })
	return out, nil
}
