package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/bus-dispatch-api/internal/dto"
	"github.com/noah-isme/bus-dispatch-api/internal/models"
	appErrors "github.com/noah-isme/bus-dispatch-api/pkg/errors"
	"github.com/noah-isme/bus-dispatch-api/pkg/export"
)

type clearanceLister interface {
	List(ctx context.Context, filter models.ClearanceFilter) ([]models.ClearanceRequest, error)
}

type tableRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
}

var tripSheetHeaders = []string{"Requested At", "Station", "Type", "Status", "Requested By", "Resolved By", "Resolved At", "Reason"}

// maxTripSheetRows bounds the clearance log included in one export.
const maxTripSheetRows = 200

// TripSheetService renders an assignment header and its clearance log.
type TripSheetService struct {
	assignments assignmentReader
	requests    clearanceLister
	buses       BusRegistry
	routes      RouteCatalog
	renderers   map[dto.TripSheetFormat]tableRenderer
	enabled     bool
}

// NewTripSheetService constructs the exporter.
func NewTripSheetService(assignments assignmentReader, requests clearanceLister, buses BusRegistry, routes RouteCatalog, enabled bool) *TripSheetService {
	return &TripSheetService{
		assignments: assignments,
		requests:    requests,
		buses:       buses,
		routes:      routes,
		renderers: map[dto.TripSheetFormat]tableRenderer{
			dto.TripSheetCSV: export.NewCSVExporter(),
			dto.TripSheetPDF: export.NewPDFExporter(),
		},
		enabled: enabled,
	}
}

// Generate renders the trip sheet for assignmentID in format.
func (s *TripSheetService) Generate(ctx context.Context, assignmentID string, format dto.TripSheetFormat) (*dto.TripSheet, error) {
	if !s.enabled {
		return nil, appErrors.ErrFeatureDisabled
	}
	if format == "" {
		format = dto.TripSheetCSV
	}
	renderer, ok := s.renderers[dto.TripSheetFormat(strings.ToLower(string(format)))]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedExport, "format must be csv or pdf")
	}

	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, lookupError(err, "assignment", assignmentID)
	}
	requests, err := s.requests.List(ctx, models.ClearanceFilter{AssignmentID: assignmentID, Limit: maxTripSheetRows})
	if err != nil {
		return nil, storeError(err, "failed to load clearance log")
	}

	dataset := export.Dataset{
		Title:   "Trip sheet",
		Summary: s.summary(ctx, assignment),
		Headers: tripSheetHeaders,
		Rows:    make([]map[string]string, 0, len(requests)),
	}
	// Oldest first reads as a log.
	for i := len(requests) - 1; i >= 0; i-- {
		dataset.Rows = append(dataset.Rows, tripSheetRow(requests[i]))
	}

	body, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render trip sheet")
	}
	ext := strings.ToLower(string(format))
	return &dto.TripSheet{
		Filename:    fmt.Sprintf("trip-sheet-%s.%s", assignment.ID, ext),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

func (s *TripSheetService) summary(ctx context.Context, a *models.Assignment) []export.Field {
	busLabel := a.BusID
	if bus, err := s.buses.FindByID(ctx, a.BusID); err == nil && bus.Number != "" {
		busLabel = bus.Number
	}
	routeLabel := a.RouteID
	if route, err := s.routes.GetRoute(ctx, a.RouteID); err == nil && route.Name != "" {
		routeLabel = route.Name
	}

	fields := []export.Field{
		{Label: "Assignment", Value: a.ID},
		{Label: "Bus", Value: busLabel},
		{Label: "Route", Value: routeLabel},
		{Label: "Driver", Value: a.DriverID},
		{Label: "Conductor", Value: a.ConductorID},
		{Label: "Status", Value: string(a.Status)},
		{Label: "Start Time", Value: formatTime(&a.StartTime)},
	}
	if a.EndTime != nil {
		fields = append(fields, export.Field{Label: "End Time", Value: formatTime(a.EndTime)})
	}
	return fields
}

func tripSheetRow(r models.ClearanceRequest) map[string]string {
	row := map[string]string{
		"Requested At": formatTime(&r.RequestedAt),
		"Station":      r.StationID,
		"Type":         string(r.RequestType),
		"Status":       string(r.Status),
		"Requested By": r.RequestedBy,
	}
	switch r.Status {
	case models.RequestStatusApproved:
		row["Resolved By"] = deref(r.ApprovedBy)
		row["Resolved At"] = formatTime(r.ApprovedAt)
	case models.RequestStatusRejected:
		row["Resolved By"] = deref(r.RejectedBy)
		row["Resolved At"] = formatTime(r.RejectedAt)
		row["Reason"] = deref(r.RejectionReason)
	}
	return row
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
