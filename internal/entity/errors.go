package entity

import (
	"errors"
	"fmt"
)

var (
	// Reservation errors
	ErrReservationNotFound     = errors.New("reservation not found")
	ErrActiveReservationExists = errors.New("user already has an active reservation")
	ErrMinutesBeforeRequired   = errors.New("minutes_before is required for time mode")
	ErrStopsBeforeRequired     = errors.New("stops_before is required for stops mode")

	// ETA validation errors
	ErrNoArrivalData      = errors.New("no bus is currently predicted for this stop")
	ErrLeadTimeExceedsEta = errors.New("requested lead time exceeds the current arrival estimate")

	// Device token errors
	ErrDeviceTokenNotFound = errors.New("device token not found")

	// General errors
	ErrInvalidInput  = errors.New("invalid input")
	ErrDatabaseError = errors.New("database error")
)

// ValidationError is a creation-time failure carrying a corrective
// suggestion where one is computable.
type ValidationError struct {
	Err        error
	Suggestion string
}

func (e *ValidationError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (%s)", e.Err.Error(), e.Suggestion)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
