package monitor

import "context"

type CatalogRepository interface {
	List(ctx context.Context) ([]Endpoint, error)
	GetByName(ctx context.Context, name string) (*Endpoint, error)
	Upsert(ctx context.Context, ep *Endpoint) error
}
