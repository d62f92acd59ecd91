package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/bus-dispatch-api/internal/models"
)

// RouteRepository reads route topology.
type RouteRepository struct {
	db *sqlx.DB
}

// NewRouteRepository constructs the repository.
func NewRouteRepository(db *sqlx.DB) *RouteRepository {
	return &RouteRepository{db: db}
}

// FindByID loads a route with its stops ordered by stop_order.
func (r *RouteRepository) FindByID(ctx context.Context, id string) (*models.Route, error) {
	const routeQuery = `SELECT id, name, origin_id, destination_id, is_active FROM routes WHERE id = $1`
	var route models.Route
	if err := r.db.GetContext(ctx, &route, routeQuery, id); err != nil {
		return nil, err
	}

	const stopsQuery = `SELECT station_id, stop_order, estimated_time, distance FROM route_stops
WHERE route_id = $1 ORDER BY stop_order`
	var stops []models.RouteStop
	if err := r.db.SelectContext(ctx, &stops, stopsQuery, id); err != nil {
		return nil, fmt.Errorf("load route stops: %w", err)
	}
	route.Stops = stops
	return &route, nil
}
