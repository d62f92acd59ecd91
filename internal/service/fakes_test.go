package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/bus-dispatch-api/internal/models"
	"github.com/noah-isme/bus-dispatch-api/internal/repository"
)

// fakeDB mirrors the store contract: every mutating call is one critical
// section, which is what the SQL transactions guarantee.
type fakeDB struct {
	mu          sync.Mutex
	seq         int
	assignments map[string]*models.Assignment
	requests    map[string]*models.ClearanceRequest
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		assignments: map[string]*models.Assignment{},
		requests:    map[string]*models.ClearanceRequest{},
	}
}

func (db *fakeDB) nextID(prefix string) string {
	db.seq++
	return fmt.Sprintf("%s-%d", prefix, db.seq)
}

type fakeAssignmentStore struct{ db *fakeDB }

func (s fakeAssignmentStore) CreateActive(ctx context.Context, a *models.Assignment) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, check := range []struct {
		resource string
		id       string
		match    func(*models.Assignment) string
	}{
		{"bus", a.BusID, func(x *models.Assignment) string { return x.BusID }},
		{"driver", a.DriverID, func(x *models.Assignment) string { return x.DriverID }},
		{"conductor", a.ConductorID, func(x *models.Assignment) string { return x.ConductorID }},
	} {
		for _, existing := range s.db.assignments {
			if existing.Status == models.AssignmentStatusActive && check.match(existing) == check.id {
				return &repository.ActiveConflictError{Resource: check.resource, ResourceID: check.id, AssignmentID: existing.ID}
			}
		}
	}

	if a.ID == "" {
		a.ID = s.db.nextID("asg")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.ApplyStatus(models.AssignmentStatusActive, a.CreatedAt)
	stored := *a
	s.db.assignments[a.ID] = &stored
	return nil
}

func (s fakeAssignmentStore) GetByID(ctx context.Context, id string) (*models.Assignment, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a, ok := s.db.assignments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (s fakeAssignmentStore) FindActiveByCrew(ctx context.Context, userID string) (*models.Assignment, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, a := range s.db.assignments {
		if a.Status == models.AssignmentStatusActive && a.HasCrewMember(userID) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s fakeAssignmentStore) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.Assignment
	for _, a := range s.db.assignments {
		if filter.DriverID != "" && a.DriverID != filter.DriverID {
			continue
		}
		if len(filter.Status) > 0 && !containsStatus(filter.Status, a.Status) {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func containsStatus(list []models.AssignmentStatus, status models.AssignmentStatus) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}

func (s fakeAssignmentStore) UpdateStatus(ctx context.Context, params repository.UpdateStatusParams) (*models.Assignment, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a, ok := s.db.assignments[params.ID]
	if !ok || a.Status != params.From {
		return nil, sql.ErrNoRows
	}
	a.ApplyStatus(params.To, params.At)
	cp := *a
	return &cp, nil
}

func (s fakeAssignmentStore) Reposition(ctx context.Context, id, stationID string, inTransit bool, at time.Time) (*models.Assignment, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.db.repositionLocked(id, stationID, inTransit, at)
}

func (db *fakeDB) repositionLocked(id, stationID string, inTransit bool, at time.Time) (*models.Assignment, error) {
	a, ok := db.assignments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if a.Status != models.AssignmentStatusActive {
		return nil, repository.ErrAssignmentNotActive
	}
	a.Reposition(stationID, inTransit, at)
	cp := *a
	return &cp, nil
}

type fakeClearanceStore struct{ db *fakeDB }

func (s fakeClearanceStore) Create(ctx context.Context, r *models.ClearanceRequest) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a, ok := s.db.assignments[r.AssignmentID]
	if !ok {
		return sql.ErrNoRows
	}
	if a.Status != models.AssignmentStatusActive {
		return repository.ErrAssignmentNotActive
	}
	if r.ID == "" {
		r.ID = s.db.nextID("req")
	}
	r.CreatedAt = r.RequestedAt
	r.UpdatedAt = r.RequestedAt
	stored := *r
	s.db.requests[r.ID] = &stored
	return nil
}

func (s fakeClearanceStore) GetByID(ctx context.Context, id string) (*models.ClearanceRequest, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r, ok := s.db.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *r
	return &cp, nil
}

func (s fakeClearanceStore) List(ctx context.Context, filter models.ClearanceFilter) ([]models.ClearanceRequest, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.ClearanceRequest
	for _, r := range s.db.requests {
		if filter.AssignmentID != "" && r.AssignmentID != filter.AssignmentID {
			continue
		}
		if filter.StationID != "" && r.StationID != filter.StationID {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out, nil
}

func (s fakeClearanceStore) Resolve(ctx context.Context, params repository.ResolveParams) (*repository.ResolveResult, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r, ok := s.db.requests[params.ID]
	if !ok || r.Status != models.RequestStatusPending {
		return nil, repository.ErrRequestNotPending
	}

	// Work on a copy so a failed reposition leaves the request untouched.
	updated := *r
	updated.Resolve(params.Decision, params.ActorID, params.Reason, params.At)
	result := &repository.ResolveResult{Request: &updated}
	if params.Decision == models.DecisionApprove {
		a, err := s.db.repositionLocked(r.AssignmentID, r.StationID, r.RequestType == models.RequestTypeDeparture, params.At)
		if err != nil {
			return nil, err
		}
		result.Assignment = a
	}
	s.db.requests[params.ID] = &updated
	cp := updated
	result.Request = &cp
	return result, nil
}

type directoryStub struct {
	users map[string]*models.User
}

func (d directoryStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := d.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type busRegistryStub struct {
	buses map[string]*models.Bus
}

func (b busRegistryStub) FindByID(ctx context.Context, id string) (*models.Bus, error) {
	if bus, ok := b.buses[id]; ok {
		cp := *bus
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type routeReaderStub struct {
	mu     sync.Mutex
	routes map[string]*models.Route
	calls  int
}

func (r *routeReaderStub) FindByID(ctx context.Context, id string) (*models.Route, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if route, ok := r.routes[id]; ok {
		cp := *route
		cp.Stops = append([]models.RouteStop(nil), route.Stops...)
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type notifierSpy struct {
	mu     sync.Mutex
	events []models.Event
}

func (n *notifierSpy) Publish(ctx context.Context, event models.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *notifierSpy) names() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, e := range n.events {
		out[i] = e.Name
	}
	return out
}

func (n *notifierSpy) last() models.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.events[len(n.events)-1]
}

// dispatchFixture wires both services over one fake store with a seeded fleet.
type dispatchFixture struct {
	db          *fakeDB
	assignments *AssignmentService
	clearance   *ClearanceService
	notifier    *notifierSpy
	metrics     *MetricsService
	routes      *routeReaderStub
}

func northLoop() *models.Route {
	return &models.Route{
		ID:            "R1",
		Name:          "North Loop",
		OriginID:      "S1",
		DestinationID: "S3",
		IsActive:      true,
		Stops: []models.RouteStop{
			{StationID: "S1", Order: 1},
			{StationID: "S2", Order: 2, EstimatedTime: 15, Distance: 7.5},
			{StationID: "S3", Order: 3, EstimatedTime: 30, Distance: 14},
		},
	}
}

func newDispatchFixture() *dispatchFixture {
	db := newFakeDB()
	users := map[string]*models.User{
		"D1": {ID: "D1", Name: "Driver One", Role: models.RoleDriver, IsActive: true},
		"D2": {ID: "D2", Name: "Driver Two", Role: models.RoleDriver, IsActive: true},
		"C1": {ID: "C1", Name: "Conductor One", Role: models.RoleConductor, IsActive: true},
		"C2": {ID: "C2", Name: "Conductor Two", Role: models.RoleConductor, IsActive: true},
		"O1": {ID: "O1", Name: "Officer One", Role: models.RoleOfficer, IsActive: true},
		"A1": {ID: "A1", Name: "Admin", Role: models.RoleAdmin, IsActive: true},
	}
	buses := map[string]*models.Bus{}
	for i := 1; i <= 50; i++ {
		id := fmt.Sprintf("B%d", i)
		buses[id] = &models.Bus{ID: id, Number: fmt.Sprintf("BUS-%03d", i), IsActive: true}
	}
	for i := 3; i <= 50; i++ {
		id := fmt.Sprintf("C%d", i)
		users[id] = &models.User{ID: id, Role: models.RoleConductor, IsActive: true}
	}

	broken := &models.Route{ID: "R-bad", OriginID: "S1", DestinationID: "S3", Stops: []models.RouteStop{{StationID: "S1", Order: 1}, {StationID: "S3", Order: 3}}}
	routes := &routeReaderStub{routes: map[string]*models.Route{"R1": northLoop(), "R-bad": broken}}

	directory := directoryStub{users: users}
	catalog := NewRouteCatalogService(routes, nil, 0, nil)
	notifier := &notifierSpy{}
	metrics := NewMetricsService()

	return &dispatchFixture{
		db:          db,
		assignments: NewAssignmentService(fakeAssignmentStore{db}, busRegistryStub{buses: buses}, catalog, directory, notifier, metrics, nil, nil),
		clearance:   NewClearanceService(fakeClearanceStore{db}, fakeAssignmentStore{db}, catalog, directory, notifier, metrics, nil, nil),
		notifier:    notifier,
		metrics:     metrics,
		routes:      routes,
	}
}
