package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/bus-dispatch-api/internal/models"
)

// BusRepository reads the fleet registry.
type BusRepository struct {
	db *sqlx.DB
}

// NewBusRepository constructs the repository.
func NewBusRepository(db *sqlx.DB) *BusRepository {
	return &BusRepository{db: db}
}

// FindByID returns the bus identified by id.
func (r *BusRepository) FindByID(ctx context.Context, id string) (*models.Bus, error) {
	const query = `SELECT id, number, status, is_active FROM buses WHERE id = $1`
	var bus models.Bus
	if err := r.db.GetContext(ctx, &bus, query, id); err != nil {
		return nil, err
	}
	return &bus, nil
}
