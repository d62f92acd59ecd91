package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/bus-dispatch-api/internal/models"
	appErrors "github.com/noah-isme/bus-dispatch-api/pkg/errors"
)

type routeReader interface {
	FindByID(ctx context.Context, id string) (*models.Route, error)
}

// RouteCatalogService serves read-only route topology, cached in Redis.
type RouteCatalogService struct {
	routes routeReader
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewRouteCatalogService constructs the catalog. cache may be nil.
func NewRouteCatalogService(routes routeReader, cache *CacheService, ttl time.Duration, logger *zap.Logger) *RouteCatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RouteCatalogService{routes: routes, cache: cache, ttl: ttl, logger: logger}
}

func routeCacheKey(id string) string {
	return "routes:" + id
}

// GetRoute returns the route with its ordered stops. Routes whose topology is
// inconsistent are refused with INVALID_STATE.
func (s *RouteCatalogService) GetRoute(ctx context.Context, id string) (*models.Route, error) {
	var cached models.Route
	if s.cache.Get(ctx, routeCacheKey(id), &cached) {
		if err := cached.Validate(); err == nil {
			return &cached, nil
		}
		s.logger.Warn("cached route topology invalid, reloading", zap.String("route_id", id))
		s.invalidate(ctx, id)
	}

	route, err := s.routes.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "route", id)
	}
	if err := route.Validate(); err != nil {
		s.logger.Warn("route topology invalid", zap.String("route_id", id), zap.Error(err))
		return nil, invariantError(appErrors.ErrInvalidState, "route is inconsistent", "route_topology", "route", id).
			WithDetails(map[string]interface{}{"reason": err.Error()})
	}

	s.cache.Set(ctx, routeCacheKey(id), route, s.ttl)
	return route, nil
}

func (s *RouteCatalogService) invalidate(ctx context.Context, id string) {
	s.cache.Invalidate(ctx, routeCacheKey(id))
}
