package handlers

import (
	"context"

	"github.com/tm-acme-shop/acme-shop-pos-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/service"
)

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// BreakerReporter exposes the order service circuit breaker state.
type BreakerReporter interface {
	BreakerState() string
}

// Handlers holds all HTTP handlers for the POS service.
type Handlers struct {
	sessions *service.SessionService
	breaker  BreakerReporter
	checks   map[string]ReadinessCheck
	config   *config.Config
	logger   *logging.Logger
}

// NewHandlers creates a new handlers instance. breaker and checks may be nil.
func NewHandlers(
	sessions *service.SessionService,
	breaker BreakerReporter,
	checks map[string]ReadinessCheck,
	cfg *config.Config,
	logger *logging.Logger,
) *Handlers {
	return &Handlers{
		sessions: sessions,
		breaker:  breaker,
		checks:   checks,
		config:   cfg,
		logger:   logger.Named("handlers"),
	}
}
