package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/agbru/lookforge/internal/provider"
)

const (
	defaultAssetsCollection    = "assets"
	defaultProvidersCollection = "provider_configs"
	defaultOpTimeout           = 5 * time.Second
	defaultRecentLimit         = 50
)

var (
	// ErrAssetNotFound is returned when no asset matches the requested id.
	ErrAssetNotFound = errors.New("asset not found")
	// ErrProviderConfigNotFound is returned when no configuration exists for a provider.
	ErrProviderConfigNotFound = errors.New("provider config not found")
)

// Asset is the persisted record of one generated image or video.
type Asset struct {
	ID         string        `json:"id"`
	SessionID  string        `json:"sessionId"`
	Kind       provider.Kind `json:"kind"`
	ProviderID string        `json:"providerId"`
	// URL is the provider-hosted location, if any.
	URL string `json:"url,omitempty"`
	// Digest and Location point at the blob store copy, if any.
	Digest    string    `json:"digest,omitempty"`
	Location  string    `json:"location,omitempty"`
	MIMEType  string    `json:"mimeType,omitempty"`
	Size      int       `json:"size,omitempty"`
	Prompt    string    `json:"prompt,omitempty"`
	Style     string    `json:"style,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProviderConfig is an operator override of a catalog entry. Nil fields
// leave the catalog value in place.
type ProviderConfig struct {
	ProviderID string    `json:"providerId"`
	Priority   *int      `json:"priority,omitempty"`
	Enabled    *bool     `json:"enabled,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// AssetStore persists generated assets.
type AssetStore interface {
	SaveAsset(ctx context.Context, a Asset) error
	GetAsset(ctx context.Context, id string) (Asset, error)
	ListAssetsBySession(ctx context.Context, sessionID string) ([]Asset, error)
	ListRecentAssets(ctx context.Context, limit int) ([]Asset, error)
}

// ProviderConfigStore persists provider overrides.
type ProviderConfigStore interface {
	UpsertProviderConfig(ctx context.Context, cfg ProviderConfig) error
	ListProviderConfigs(ctx context.Context) ([]ProviderConfig, error)
	SetProviderEnabled(ctx context.Context, providerID string, enabled bool) error
}

// Options configures the Mongo store.
type Options struct {
	Client              *mongodriver.Client
	Database            string
	AssetsCollection    string
	ProvidersCollection string
	Timeout             time.Duration
}

// Store implements AssetStore and ProviderConfigStore on MongoDB.
type Store struct {
	mongo     *mongodriver.Client
	assets    collection
	providers collection
	timeout   time.Duration
	now       func() time.Time
}

var (
	_ AssetStore          = (*Store)(nil)
	_ ProviderConfigStore = (*Store)(nil)
)

// New returns a Store backed by MongoDB and ensures its indexes exist.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	assetsName := opts.AssetsCollection
	if assetsName == "" {
		assetsName = defaultAssetsCollection
	}
	providersName := opts.ProvidersCollection
	if providersName == "" {
		providersName = defaultProvidersCollection
	}
	db := opts.Client.Database(opts.Database)
	assets := mongoCollection{coll: db.Collection(assetsName)}
	providers := mongoCollection{coll: db.Collection(providersName)}

	s, err := newStoreWithCollections(opts.Client, assets, providers, opts.Timeout)
	if err != nil {
		return nil, err
	}
	ictx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := ensureIndexes(ictx, assets, providers); err != nil {
		return nil, err
	}
	return s, nil
}

func newStoreWithCollections(mongoClient *mongodriver.Client, assets, providers collection, timeout time.Duration) (*Store, error) {
	if assets == nil || providers == nil {
		return nil, errors.New("collections are required")
	}
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	return &Store{
		mongo:     mongoClient,
		assets:    assets,
		providers: providers,
		timeout:   timeout,
		now:       time.Now,
	}, nil
}

// Name identifies the store in health reports.
func (s *Store) Name() string { return "mongo" }

// Ping checks connectivity to the primary.
func (s *Store) Ping(ctx context.Context) error {
	if s.mongo == nil {
		return errors.New("mongo client not configured")
	}
	return s.mongo.Ping(ctx, readpref.Primary())
}

// SaveAsset inserts or replaces the asset with the same id.
func (s *Store) SaveAsset(ctx context.Context, a Asset) error {
	if a.ID == "" {
		return errors.New("asset id is required")
	}
	if a.SessionID == "" {
		return errors.New("session id is required")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	doc := fromAsset(a)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.assets.UpdateOne(ctx, bson.M{"asset_id": a.ID}, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	return err
}

// GetAsset loads one asset by id.
func (s *Store) GetAsset(ctx context.Context, id string) (Asset, error) {
	if id == "" {
		return Asset{}, errors.New("asset id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var doc assetDocument
	if err := s.assets.FindOne(ctx, bson.M{"asset_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return Asset{}, ErrAssetNotFound
		}
		return Asset{}, err
	}
	return doc.toAsset(), nil
}

// ListAssetsBySession returns the assets of a session, oldest first.
func (s *Store) ListAssetsBySession(ctx context.Context, sessionID string) ([]Asset, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	return s.findAssets(ctx, bson.M{"session_id": sessionID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

// ListRecentAssets returns the most recent assets, newest first. A
// non-positive limit uses a default of 50.
func (s *Store) ListRecentAssets(ctx context.Context, limit int) ([]Asset, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	return s.findAssets(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(int64(limit)))
}

func (s *Store) findAssets(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]Asset, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	cur, err := s.assets.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cur.Close(ctx)
	}()
	var out []Asset
	for cur.Next(ctx) {
		var doc assetDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAsset())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertProviderConfig stores the non-nil fields of cfg.
func (s *Store) UpsertProviderConfig(ctx context.Context, cfg ProviderConfig) error {
	if cfg.ProviderID == "" {
		return errors.New("provider id is required")
	}
	set := bson.M{
		"provider_id": cfg.ProviderID,
		"updated_at":  s.now().UTC(),
	}
	if cfg.Priority != nil {
		set["priority"] = *cfg.Priority
	}
	if cfg.Enabled != nil {
		set["enabled"] = *cfg.Enabled
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.providers.UpdateOne(ctx, bson.M{"provider_id": cfg.ProviderID}, bson.M{"$set": set}, options.Update().SetUpsert(true))
	return err
}

// SetProviderEnabled toggles a provider on or off.
func (s *Store) SetProviderEnabled(ctx context.Context, providerID string, enabled bool) error {
	return s.UpsertProviderConfig(ctx, ProviderConfig{ProviderID: providerID, Enabled: &enabled})
}

// GetProviderConfig loads the override of one provider.
func (s *Store) GetProviderConfig(ctx context.Context, providerID string) (ProviderConfig, error) {
	if providerID == "" {
		return ProviderConfig{}, errors.New("provider id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var doc providerConfigDocument
	if err := s.providers.FindOne(ctx, bson.M{"provider_id": providerID}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return ProviderConfig{}, ErrProviderConfigNotFound
		}
		return ProviderConfig{}, err
	}
	return doc.toConfig(), nil
}

// ListProviderConfigs returns every stored override ordered by provider id.
func (s *Store) ListProviderConfigs(ctx context.Context) ([]ProviderConfig, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	cur, err := s.providers.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "provider_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cur.Close(ctx)
	}()
	var out []ProviderConfig
	for cur.Next(ctx) {
		var doc providerConfigDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toConfig())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Overrides converts stored provider configuration into catalog overrides.
func Overrides(ctx context.Context, s ProviderConfigStore) ([]provider.Override, error) {
	cfgs, err := s.ListProviderConfigs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]provider.Override, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, provider.Override{ProviderID: c.ProviderID, Priority: c.Priority, Enabled: c.Enabled})
	}
	return out, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

type assetDocument struct {
	AssetID    string    `bson:"asset_id"`
	SessionID  string    `bson:"session_id"`
	Kind       string    `bson:"kind"`
	ProviderID string    `bson:"provider_id"`
	URL        string    `bson:"url,omitempty"`
	Digest     string    `bson:"digest,omitempty"`
	Location   string    `bson:"location,omitempty"`
	MIMEType   string    `bson:"mime_type,omitempty"`
	Size       int       `bson:"size,omitempty"`
	Prompt     string    `bson:"prompt,omitempty"`
	Style      string    `bson:"style,omitempty"`
	CreatedAt  time.Time `bson:"created_at"`
}

func fromAsset(a Asset) assetDocument {
	return assetDocument{
		AssetID:    a.ID,
		SessionID:  a.SessionID,
		Kind:       string(a.Kind),
		ProviderID: a.ProviderID,
		URL:        a.URL,
		Digest:     a.Digest,
		Location:   a.Location,
		MIMEType:   a.MIMEType,
		Size:       a.Size,
		Prompt:     a.Prompt,
		Style:      a.Style,
		CreatedAt:  a.CreatedAt.UTC(),
	}
}

func (doc assetDocument) toAsset() Asset {
	return Asset{
		ID:         doc.AssetID,
		SessionID:  doc.SessionID,
		Kind:       provider.Kind(doc.Kind),
		ProviderID: doc.ProviderID,
		URL:        doc.URL,
		Digest:     doc.Digest,
		Location:   doc.Location,
		MIMEType:   doc.MIMEType,
		Size:       doc.Size,
		Prompt:     doc.Prompt,
		Style:      doc.Style,
		CreatedAt:  doc.CreatedAt.UTC(),
	}
}

type providerConfigDocument struct {
	ProviderID string    `bson:"provider_id"`
	Priority   *int      `bson:"priority,omitempty"`
	Enabled    *bool     `bson:"enabled,omitempty"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

func (doc providerConfigDocument) toConfig() ProviderConfig {
	return ProviderConfig{
		ProviderID: doc.ProviderID,
		Priority:   doc.Priority,
		Enabled:    doc.Enabled,
		UpdatedAt:  doc.UpdatedAt.UTC(),
	}
}

func ensureIndexes(ctx context.Context, assets, providers collection) error {
	models := []struct {
		coll  collection
		model mongodriver.IndexModel
	}{
		{assets, mongodriver.IndexModel{Keys: bson.D{{Key: "asset_id", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{assets, mongodriver.IndexModel{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "created_at", Value: 1}}}},
		{assets, mongodriver.IndexModel{Keys: bson.D{{Key: "created_at", Value: -1}}}},
		{providers, mongodriver.IndexModel{Keys: bson.D{{Key: "provider_id", Value: 1}}, Options: options.Index().SetUnique(true)}},
	}
	for _, m := range models {
		if _, err := m.coll.Indexes().CreateOne(ctx, m.model); err != nil {
			return err
		}
	}
	return nil
}
