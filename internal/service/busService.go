package service

import (
	"context"
	"fmt"
	"strings"

	"busalarm/internal/entity"
	"busalarm/pkg/busapi"
)

type busService struct {
	client busapi.Client
}

func NewBusService(client busapi.Client) BusService {
	return &busService{client: client}
}

func (s *busService) SearchRoutes(ctx context.Context, cityCode, keyword string) ([]busapi.Route, error) {
	if strings.TrimSpace(cityCode) == "" || strings.TrimSpace(keyword) == "" {
		return nil, entity.ErrInvalidInput
	}

	routes, err := s.client.SearchRoutes(ctx, cityCode, keyword)
	if err != nil {
		return nil, fmt.Errorf("failed to search routes: %w", err)
	}
	return routes, nil
}

func (s *busService) GetRouteStops(ctx context.Context, cityCode, routeID string) ([]busapi.Stop, error) {
	if cityCode == "" || routeID == "" {
		return nil, entity.ErrInvalidInput
	}

	stops, err := s.client.GetRouteStops(ctx, cityCode, routeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get route stops: %w", err)
	}
	return stops, nil
}

func (s *busService) GetArrivals(ctx context.Context, routeID, stopID, cityCode string) ([]busapi.Arrival, error) {
	if routeID == "" || stopID == "" || cityCode == "" {
		return nil, entity.ErrInvalidInput
	}

	arrivals, err := s.client.GetArrivals(ctx, routeID, stopID, cityCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query arrivals: %w", err)
	}
	return arrivals, nil
}
