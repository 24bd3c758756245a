package repo

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-pg/pg/v10"
	"github.com/redis/go-redis/v9"

	"investmon/internal/monitor"
)

var _ monitor.CatalogRepository = (*Repository)(nil)

type Repository struct {
	db    *pg.DB
	redis redis.Cmdable
}

func NewRepository(db *pg.DB, redis redis.Cmdable) *Repository {
	return &Repository{
		db:    db,
		redis: redis,
	}
}

func (r *Repository) List(ctx context.Context) ([]monitor.Endpoint, error) {
	if r.redis != nil {
		val, err := r.redis.Get(ctx, catalogCacheKey()).Result()
		if err == nil {
			var cached []monitor.Endpoint
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				return cached, nil
			}
		}
	}

	var models []EndpointModel
	err := r.db.Model(&models).
		Order("name ASC").
		Select()
	if err != nil {
		return nil, err
	}

	endpoints := make([]monitor.Endpoint, 0, len(models))
	for _, m := range models {
		endpoints = append(endpoints, toEndpoint(m))
	}

	if r.redis != nil {
		if b, err := json.Marshal(endpoints); err == nil {
			_ = r.redis.Set(ctx, catalogCacheKey(), b, catalogCacheTTL).Err()
		}
	}

	return endpoints, nil
}

func (r *Repository) GetByName(ctx context.Context, name string) (*monitor.Endpoint, error) {
	model := &EndpointModel{Name: name}
	err := r.db.Model(model).WherePK().Select()
	if err != nil {
		if errors.Is(err, pg.ErrNoRows) {
			return nil, monitor.ErrEndpointNotFound
		}
		return nil, err
	}

	ep := toEndpoint(*model)
	return &ep, nil
}

func (r *Repository) Upsert(ctx context.Context, ep *monitor.Endpoint) error {
	model := &EndpointModel{
		Name:     ep.Name,
		URL:      ep.URL,
		Category: ep.Category,
		Source:   ep.Source,
		DataType: ep.DataType,
		Enabled:  ep.Enabled,
	}

	_, err := r.db.Model(model).
		OnConflict("(name) DO UPDATE").
		Set("url = EXCLUDED.url, category = EXCLUDED.category, source = EXCLUDED.source, data_type = EXCLUDED.data_type, enabled = EXCLUDED.enabled").
		Insert()
	if err != nil {
		return err
	}

	// Invalidate cache
	if r.redis != nil {
		_ = r.redis.Del(ctx, catalogCacheKey()).Err()
	}

	return nil
}

// Seed inserts catalog entries that do not exist yet. Existing rows are left
// untouched so operator edits survive restarts.
func (r *Repository) Seed(ctx context.Context, endpoints []monitor.Endpoint) error {
	for _, ep := range endpoints {
		model := &EndpointModel{
			Name:     ep.Name,
			URL:      ep.URL,
			Category: ep.Category,
			Source:   ep.Source,
			DataType: ep.DataType,
			Enabled:  ep.Enabled,
		}
		_, err := r.db.Model(model).
			OnConflict("(name) DO NOTHING").
			Insert()
		if err != nil {
			return err
		}
	}

	if r.redis != nil {
		_ = r.redis.Del(ctx, catalogCacheKey()).Err()
	}
	return nil
}

func toEndpoint(m EndpointModel) monitor.Endpoint {
	return monitor.Endpoint{
		Name:     m.Name,
		URL:      m.URL,
		Category: m.Category,
		Source:   m.Source,
		DataType: m.DataType,
		Enabled:  m.Enabled,
	}
}
