package entity

import (
	"time"
)

type ReservationStatus string

const (
	ReservationStatusReserved ReservationStatus = "reserved"
	ReservationStatusDone     ReservationStatus = "done"
	ReservationStatusCanceled ReservationStatus = "canceled"
	ReservationStatusExpired  ReservationStatus = "expired"
)

// IsTerminal reports whether no further scheduling activity may occur.
func (s ReservationStatus) IsTerminal() bool {
	return s == ReservationStatusDone || s == ReservationStatusCanceled || s == ReservationStatusExpired
}

type NotificationType string

const (
	NotificationTypeTime  NotificationType = "time"
	NotificationTypeStops NotificationType = "stops"
)

// Reservation is a user's request to be notified before a specific bus
// reaches a specific stop. Target fields are immutable after creation;
// only the scheduling fields change while the reservation is reserved.
type Reservation struct {
	ID               int64             `json:"id" db:"id"`
	UserID           int64             `json:"user_id" db:"user_id"`
	RouteID          string            `json:"route_id" db:"route_id"`
	CityCode         string            `json:"city_code" db:"city_code"`
	BusNumber        string            `json:"bus_number" db:"bus_number"`
	Direction        string            `json:"direction,omitempty" db:"direction"`
	StopID           string            `json:"stop_id" db:"stop_id"`
	StopName         string            `json:"stop_name" db:"stop_name"`
	NotificationType NotificationType  `json:"notification_type" db:"notification_type"`
	MinutesBefore    int               `json:"minutes_before,omitempty" db:"minutes_before"`
	StopsBefore      int               `json:"stops_before,omitempty" db:"stops_before"`
	Status           ReservationStatus `json:"status" db:"status"`
	LastEtaMinutes   *int              `json:"last_eta_minutes,omitempty" db:"last_eta_minutes"`
	NextPollAt       *time.Time        `json:"next_poll_at,omitempty" db:"next_poll_at"`
	ExpiresAt        time.Time         `json:"expires_at" db:"expires_at"`
	CreatedAt        time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at" db:"updated_at"`
}

// CreateReservationRequest carries the creation payload.
type CreateReservationRequest struct {
	RouteID          string           `json:"route_id" binding:"required"`
	CityCode         string           `json:"city_code" binding:"required"`
	BusNumber        string           `json:"bus_number" binding:"required"`
	Direction        string           `json:"direction"`
	StopID           string           `json:"stop_id" binding:"required"`
	StopName         string           `json:"stop_name" binding:"required"`
	NotificationType NotificationType `json:"notification_type" binding:"required,oneof=time stops"`
	MinutesBefore    int              `json:"minutes_before" binding:"omitempty,min=1,max=30"`
	StopsBefore      int              `json:"stops_before" binding:"omitempty,min=1,max=10"`
}
