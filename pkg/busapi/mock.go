package busapi

import (
	"context"
	"sync"
)

// MockClient serves canned feed data for local development when no TAGO
// service key is configured.
type MockClient struct {
	mu       sync.RWMutex
	arrivals map[string][]Arrival
	routes   []Route
}

func NewMockClient() *MockClient {
	return &MockClient{
		arrivals: make(map[string][]Arrival),
		routes: []Route{
			{RouteID: "DJB30300052", BusNumber: "102", RouteType: "간선버스", StartStop: "대전역", EndStop: "유성온천역"},
			{RouteID: "DJB30300101", BusNumber: "705", RouteType: "간선버스", StartStop: "비래동", EndStop: "충대농대"},
		},
	}
}

// SetArrivals replaces the canned predictions for a route/stop pair.
func (m *MockClient) SetArrivals(routeID, stopID string, arrivals []Arrival) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.arrivals[routeID+":"+stopID] = arrivals
}

func (m *MockClient) GetArrivals(_ context.Context, routeID, stopID, _ string) ([]Arrival, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if arrivals, ok := m.arrivals[routeID+":"+stopID]; ok {
		return arrivals, nil
	}
	return []Arrival{{VehicleNo: "75자1234", EtaMinutes: 12, RemainingStops: 7}}, nil
}

func (m *MockClient) GetRouteStops(_ context.Context, _, _ string) ([]Stop, error) {
	return []Stop{
		{StopID: "DJB8001793", StopName: "대전역", Order: 1},
		{StopID: "DJB8001940", StopName: "중앙로역", Order: 2},
		{StopID: "DJB8002155", StopName: "시청", Order: 3},
	}, nil
}

func (m *MockClient) SearchRoutes(_ context.Context, _, keyword string) ([]Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := make([]Route, 0, len(m.routes))
	for _, r := range m.routes {
		if keyword == "" || r.BusNumber == keyword {
			matched = append(matched, r)
		}
	}
	return matched, nil
}
