package service

import (
	"context"

	"busalarm/internal/entity"
	"busalarm/pkg/busapi"
)

// ReservationScheduler is the slice of the scheduler the service layer
// drives: hand over a freshly created reservation, drop a canceled one.
type ReservationScheduler interface {
	Schedule(ctx context.Context, id int64, traceID string)
	Cancel(id int64)
}

type ReservationService interface {
	// Core operations
	Create(ctx context.Context, userID int64, req *entity.CreateReservationRequest) (*entity.Reservation, error)
	Get(ctx context.Context, userID, id int64) (*entity.Reservation, error)
	ListActive(ctx context.Context, userID int64) ([]*entity.Reservation, error)
	Cancel(ctx context.Context, userID, id int64) error

	// Delivery history
	NotificationLogs(ctx context.Context, userID, id int64) ([]*entity.NotificationLog, error)
}

type DeviceService interface {
	Register(ctx context.Context, userID int64, req *entity.RegisterDeviceRequest) error
	Remove(ctx context.Context, userID int64, token string) error
}

// BusService exposes the transit feed to the HTTP layer.
type BusService interface {
	SearchRoutes(ctx context.Context, cityCode, keyword string) ([]busapi.Route, error)
	GetRouteStops(ctx context.Context, cityCode, routeID string) ([]busapi.Stop, error)
	GetArrivals(ctx context.Context, routeID, stopID, cityCode string) ([]busapi.Arrival, error)
}
