package service

import (
	"context"
	"fmt"
	"time"

	repository "busalarm/internal/database/postgres"
	"busalarm/internal/entity"
	"busalarm/pkg/busapi"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// reservationTTL bounds how long a reservation may stay reserved before
// the expiry sweep claims it.
const reservationTTL = 24 * time.Hour

type reservationService struct {
	reservations repository.ReservationRepository
	logs         repository.NotificationLogRepository
	arrivals     busapi.ArrivalSource
	scheduler    ReservationScheduler
}

func NewReservationService(
	reservations repository.ReservationRepository,
	logs repository.NotificationLogRepository,
	arrivals busapi.ArrivalSource,
	scheduler ReservationScheduler,
) ReservationService {
	return &reservationService{
		reservations: reservations,
		logs:         logs,
		arrivals:     arrivals,
		scheduler:    scheduler,
	}
}

// Create validates the request against the live feed, persists the
// reservation and hands it to the scheduler. The persisted row is the
// commit point: a crash right after Create still recovers the wake-up
// on the next startup sweep.
func (s *reservationService) Create(ctx context.Context, userID int64, req *entity.CreateReservationRequest) (*entity.Reservation, error) {
	if err := validateModeParams(req); err != nil {
		return nil, err
	}

	existing, err := s.reservations.GetActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check active reservations: %w", err)
	}
	if existing != nil {
		return nil, entity.ErrActiveReservationExists
	}

	if req.NotificationType == entity.NotificationTypeTime {
		if err := s.validateLeadTime(ctx, req); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	reservation := &entity.Reservation{
		UserID:           userID,
		RouteID:          req.RouteID,
		CityCode:         req.CityCode,
		BusNumber:        req.BusNumber,
		Direction:        req.Direction,
		StopID:           req.StopID,
		StopName:         req.StopName,
		NotificationType: req.NotificationType,
		MinutesBefore:    req.MinutesBefore,
		StopsBefore:      req.StopsBefore,
		Status:           entity.ReservationStatusReserved,
		NextPollAt:       &now,
		ExpiresAt:        now.Add(reservationTTL),
	}

	if err := s.reservations.Create(ctx, reservation); err != nil {
		return nil, err
	}

	traceID := uuid.New().String()
	logrus.WithFields(logrus.Fields{
		"reservation_id": reservation.ID,
		"user_id":        userID,
		"bus_number":     reservation.BusNumber,
		"trace_id":       traceID,
	}).Info("Reservation created")

	s.scheduler.Schedule(ctx, reservation.ID, traceID)

	return reservation, nil
}

// validateLeadTime rejects time-mode reservations the feed can no longer
// honor, suggesting a lead time that would still work when possible.
func (s *reservationService) validateLeadTime(ctx context.Context, req *entity.CreateReservationRequest) error {
	arrivals, err := s.arrivals.GetArrivals(ctx, req.RouteID, req.StopID, req.CityCode)
	if err != nil {
		return fmt.Errorf("failed to query arrival data: %w", err)
	}
	if len(arrivals) == 0 {
		return &entity.ValidationError{Err: entity.ErrNoArrivalData}
	}

	bestEta := arrivals[0].EtaMinutes
	if bestEta < req.MinutesBefore {
		suggestion := bestEta - 1
		if suggestion < 1 {
			suggestion = 1
		}
		return &entity.ValidationError{
			Err:        entity.ErrLeadTimeExceedsEta,
			Suggestion: fmt.Sprintf("the nearest bus arrives in %d minutes, try %d minutes instead", bestEta, suggestion),
		}
	}
	return nil
}

func validateModeParams(req *entity.CreateReservationRequest) error {
	switch req.NotificationType {
	case entity.NotificationTypeTime:
		if req.MinutesBefore <= 0 {
			return &entity.ValidationError{Err: entity.ErrMinutesBeforeRequired}
		}
	case entity.NotificationTypeStops:
		if req.StopsBefore <= 0 {
			return &entity.ValidationError{Err: entity.ErrStopsBeforeRequired}
		}
	default:
		return &entity.ValidationError{Err: entity.ErrInvalidInput}
	}
	return nil
}

// Get returns the reservation only to its owner; anyone else sees not found.
func (s *reservationService) Get(ctx context.Context, userID, id int64) (*entity.Reservation, error) {
	reservation, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if reservation.UserID != userID {
		return nil, entity.ErrReservationNotFound
	}
	return reservation, nil
}

func (s *reservationService) ListActive(ctx context.Context, userID int64) ([]*entity.Reservation, error) {
	reservations, err := s.reservations.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return reservations, nil
}

// Cancel moves the owner's reserved reservation to canceled and drops its
// pending wake-up. Canceling a reservation that is already terminal, or
// that belongs to someone else, reports not found.
func (s *reservationService) Cancel(ctx context.Context, userID, id int64) error {
	reservation, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if reservation.UserID != userID {
		return entity.ErrReservationNotFound
	}
	if reservation.Status != entity.ReservationStatusReserved {
		return entity.ErrReservationNotFound
	}

	claimed, err := s.reservations.Finalize(ctx, id, entity.ReservationStatusCanceled, nil)
	if err != nil {
		return fmt.Errorf("failed to cancel reservation: %w", err)
	}
	if !claimed {
		// Lost the race against the scheduler or the expiry sweep.
		return entity.ErrReservationNotFound
	}

	s.scheduler.Cancel(id)

	logrus.WithFields(logrus.Fields{
		"reservation_id": id,
		"user_id":        userID,
	}).Info("Reservation canceled")

	return nil
}

func (s *reservationService) NotificationLogs(ctx context.Context, userID, id int64) ([]*entity.NotificationLog, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.logs.ListByReservation(ctx, id)
}
