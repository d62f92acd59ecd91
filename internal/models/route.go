package models

import (
	"fmt"
	"sort"
)

// RouteStop is one ordered station reference on a route.
type RouteStop struct {
	StationID     string  `db:"station_id" json:"stationId"`
	Order         int     `db:"stop_order" json:"order"`
	EstimatedTime int     `db:"estimated_time" json:"estimatedTime"`
	Distance      float64 `db:"distance" json:"distance"`
}

// Route is a read-only ordered stop sequence between origin and destination.
type Route struct {
	ID            string      `db:"id" json:"id"`
	Name          string      `db:"name" json:"name"`
	OriginID      string      `db:"origin_id" json:"originId"`
	DestinationID string      `db:"destination_id" json:"destinationId"`
	IsActive      bool        `db:"is_active" json:"isActive"`
	Stops         []RouteStop `db:"-" json:"stops"`
}

// HasStation reports whether stationID is an exact stop reference on the route.
func (r *Route) HasStation(stationID string) bool {
	for _, stop := range r.Stops {
		if stop.StationID == stationID {
			return true
		}
	}
	return false
}

// Validate checks the route topology invariants.
func (r *Route) Validate() error {
	if r.OriginID == r.DestinationID {
		return fmt.Errorf("route %s: origin and destination are the same station", r.ID)
	}
	if len(r.Stops) < 2 {
		return fmt.Errorf("route %s: needs at least 2 stops, has %d", r.ID, len(r.Stops))
	}

	stops := make([]RouteStop, len(r.Stops))
	copy(stops, r.Stops)
	sort.SliceStable(stops, func(i, j int) bool { return stops[i].Order < stops[j].Order })

	seen := make(map[string]struct{}, len(stops))
	for i, stop := range stops {
		if stop.Order != i+1 {
			return fmt.Errorf("route %s: stop orders must be contiguous from 1, found %d at position %d", r.ID, stop.Order, i+1)
		}
		if _, dup := seen[stop.StationID]; dup {
			return fmt.Errorf("route %s: station %s appears more than once", r.ID, stop.StationID)
		}
		seen[stop.StationID] = struct{}{}
	}
	if stops[0].StationID != r.OriginID {
		return fmt.Errorf("route %s: first stop must be origin %s", r.ID, r.OriginID)
	}
	if stops[len(stops)-1].StationID != r.DestinationID {
		return fmt.Errorf("route %s: last stop must be destination %s", r.ID, r.DestinationID)
	}
	return nil
}
