package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-pg/pg/v10"
	"github.com/redis/go-redis/v9"
)

// Store persists the provider-credential key bag and UI style settings in
// postgres with a redis read-through cache.
type Store struct {
	db    *pg.DB
	redis redis.Cmdable
}

func NewStore(db *pg.DB, redis redis.Cmdable) *Store {
	return &Store{
		db:    db,
		redis: redis,
	}
}

// Providers reports configured/unconfigured per known provider key.
// Credential values are never returned.
func (s *Store) Providers(ctx context.Context) ([]ProviderStatus, error) {
	statuses := make([]ProviderStatus, 0, len(KnownProviders))
	for _, name := range KnownProviders {
		val, err := s.get(ctx, name)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, ProviderStatus{
			Name:       name,
			Configured: val != "",
		})
	}
	return statuses, nil
}

// SetProviders stores the supplied credentials. Unknown keys are rejected;
// empty values clear a credential.
func (s *Store) SetProviders(ctx context.Context, values map[string]string) error {
	for key := range values {
		if !isKnownProvider(key) {
			return fmt.Errorf("unknown provider key: %s", key)
		}
	}
	for key, val := range values {
		if err := s.set(ctx, key, val); err != nil {
			return err
		}
	}
	return nil
}

// Style returns the stored style settings, or the defaults when nothing has
// been saved yet.
func (s *Store) Style(ctx context.Context) (StyleSettings, error) {
	val, err := s.get(ctx, styleSettingsKey)
	if err != nil {
		return StyleSettings{}, err
	}
	if val == "" {
		return DefaultStyleSettings(), nil
	}

	style := DefaultStyleSettings()
	if err := json.Unmarshal([]byte(val), &style); err != nil {
		// A corrupt blob degrades to defaults rather than failing the UI.
		return DefaultStyleSettings(), nil
	}
	return style, nil
}

func (s *Store) SetStyle(ctx context.Context, style StyleSettings) error {
	b, err := json.Marshal(style)
	if err != nil {
		return err
	}
	return s.set(ctx, styleSettingsKey, string(b))
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	if s.redis != nil {
		val, err := s.redis.Get(ctx, settingCacheKey(key)).Result()
		if err == nil {
			return val, nil
		}
	}

	model := &SettingModel{Key: key}
	err := s.db.Model(model).WherePK().Select()
	if err != nil {
		if errors.Is(err, pg.ErrNoRows) {
			return "", nil
		}
		return "", err
	}

	if s.redis != nil {
		_ = s.redis.Set(ctx, settingCacheKey(key), model.Value, settingCacheTTL).Err()
	}
	return model.Value, nil
}

func (s *Store) set(ctx context.Context, key, value string) error {
	model := &SettingModel{Key: key, Value: value}
	_, err := s.db.Model(model).
		OnConflict("(key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Insert()
	if err != nil {
		return err
	}

	// Invalidate cache
	if s.redis != nil {
		_ = s.redis.Del(ctx, settingCacheKey(key)).Err()
	}
	return nil
}

func isKnownProvider(key string) bool {
	for _, name := range KnownProviders {
		if name == key {
			return true
		}
	}
	return false
}
