package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-recorder-backend/internal/domain"
	"github.com/tbourn/go-recorder-backend/internal/repo"
)

// LocalParams are the per-user parameters for the filesystem backend.
// An empty Root falls back to the factory default.
type LocalParams struct {
	Root string `mapstructure:"root"`
}

// Factory resolves exactly one Provider per user from the user's storage
// configuration. Built providers are cached for TTL; Invalidate drops a
// user's entry after the configuration changes.
type Factory struct {
	DB          *gorm.DB
	DefaultRoot string

	cache    *cache.Cache
	validate *validator.Validate

	// newS3 is swapped in tests.
	newS3 func(ctx context.Context, p S3Params) (Provider, error)
}

// NewFactory returns a factory whose providers live in memory for ttl.
// ttl <= 0 disables expiry.
func NewFactory(db *gorm.DB, defaultRoot string, ttl time.Duration) *Factory {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &Factory{
		DB:          db,
		DefaultRoot: defaultRoot,
		cache:       cache.New(ttl, 2*ttl),
		validate:    validator.New(),
		newS3: func(ctx context.Context, p S3Params) (Provider, error) {
			return NewS3Provider(ctx, p)
		},
	}
}

// ForUser returns the user's provider. Users without a stored configuration
// get a local provider rooted at DefaultRoot.
func (f *Factory) ForUser(ctx context.Context, userID string) (Provider, error) {
	if p, ok := f.cache.Get(userID); ok {
		return p.(Provider), nil
	}

	sc, err := repo.GetStorageConfig(ctx, f.DB, userID)
	if errors.Is(err, repo.ErrNotFound) {
		sc = &domain.StorageConfig{UserID: userID, Backend: BackendLocal}
	} else if err != nil {
		return nil, fmt.Errorf("load storage config: %w", err)
	}

	p, err := f.Build(ctx, sc)
	if err != nil {
		return nil, err
	}
	f.cache.SetDefault(userID, p)
	log.Debug().Str("component", "storage").Str("user_id", userID).Str("backend", p.Backend()).Msg("storage provider built")
	return p, nil
}

// Build constructs a provider from a configuration record without caching.
func (f *Factory) Build(ctx context.Context, sc *domain.StorageConfig) (Provider, error) {
	raw := map[string]any{}
	if sc.Params != "" {
		if err := json.Unmarshal([]byte(sc.Params), &raw); err != nil {
			return nil, fmt.Errorf("%w: params: %v", ErrInvalidConfig, err)
		}
	}

	switch sc.Backend {
	case BackendLocal, "":
		var lp LocalParams
		if err := f.decode(raw, &lp); err != nil {
			return nil, err
		}
		if lp.Root == "" {
			lp.Root = f.DefaultRoot
		}
		return NewLocalProvider(lp.Root)
	case BackendS3:
		var sp S3Params
		if err := f.decode(raw, &sp); err != nil {
			return nil, err
		}
		return f.newS3(ctx, sp)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, sc.Backend)
	}
}

// Invalidate forgets the cached provider for userID.
func (f *Factory) Invalidate(userID string) {
	f.cache.Delete(userID)
}

func (f *Factory) decode(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := f.validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
