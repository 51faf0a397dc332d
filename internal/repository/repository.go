package repository

import (
	"context"

	"github.com/tm-acme-shop/acme-shop-pos-service/internal/models"
)

// SessionCache stores session snapshots between requests and restarts.
// Get returns nil, nil on a miss.
type SessionCache interface {
	Get(ctx context.Context, id string) (*models.SessionSnapshot, error)
	Set(ctx context.Context, snap *models.SessionSnapshot) error
	Delete(ctx context.Context, id string) error
}

// IdempotencyStore guards a checkout against replays of the same key.
type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Release(ctx context.Context, scope, key string) error
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

// SaleRepository is the local audit log of committed sales.
type SaleRepository interface {
	Create(ctx context.Context, sale *models.SaleRecord) error
	GetByOrderID(ctx context.Context, orderID string) (*models.SaleRecord, error)
	ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]*models.SaleRecord, int, error)
}

var (
	_ SessionCache     = (*RedisSessionCache)(nil)
	_ IdempotencyStore = (*RedisIdempotencyStore)(nil)
	_ SaleRepository   = (*PostgresSaleRepository)(nil)
)
