// Package busapi wraps the public transit open-data feed behind a small
// port so the rest of the app never sees provider-specific payloads.
package busapi

import (
	"context"
)

// Arrival is one predicted vehicle arrival at a stop, nearest first.
type Arrival struct {
	VehicleNo      string `json:"vehicle_no"`
	EtaMinutes     int    `json:"eta_minutes"`
	RemainingStops int    `json:"remaining_stops"`
}

// Route is a bus route returned by a number search.
type Route struct {
	RouteID   string `json:"route_id"`
	BusNumber string `json:"bus_number"`
	RouteType string `json:"route_type"`
	StartStop string `json:"start_stop"`
	EndStop   string `json:"end_stop"`
}

// Stop is one stop along a route, in traversal order.
type Stop struct {
	StopID   string `json:"stop_id"`
	StopName string `json:"stop_name"`
	Order    int    `json:"order"`
}

// ArrivalSource returns current arrival predictions for a route/stop pair.
// An empty slice means "no service currently predicted", which is a valid
// non-error outcome. Implementations return an error only on transport or
// provider failure.
type ArrivalSource interface {
	GetArrivals(ctx context.Context, routeID, stopID, cityCode string) ([]Arrival, error)
}

// Client is the full feed surface used by the HTTP layer.
type Client interface {
	ArrivalSource
	SearchRoutes(ctx context.Context, cityCode, keyword string) ([]Route, error)
	GetRouteStops(ctx context.Context, cityCode, routeID string) ([]Stop, error)
}
