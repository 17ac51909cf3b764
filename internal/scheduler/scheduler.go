// Package scheduler drives reserved bus-arrival reservations through their
// state machine. Every reserved reservation owns at most one pending
// in-memory wake-up; each wake-up either re-arms the next check or
// finalizes the reservation. The store is the single source of truth for
// status, the timers only decide when to look at it again.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	repository "busalarm/internal/database/postgres"
	"busalarm/internal/entity"
	"busalarm/pkg/busapi"
	"busalarm/pkg/push"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const DefaultRetryDelay = 60 * time.Second

// User-facing push text, matching the product language.
const (
	failureTitle = "버스 알림 예약 만료"

	reasonDeadlinePassed  = "24시간이 지나 예약이 만료되었습니다"
	reasonStopsMode       = "남은 정류장 수 알림은 아직 지원되지 않습니다"
	reasonFeedUnavailable = "실시간 도착 정보를 조회할 수 없습니다"
	reasonNoPredictions   = "현재 도착 예정인 버스가 없습니다"
)

type Scheduler struct {
	reservations repository.ReservationRepository
	logs         repository.NotificationLogRepository
	arrivals     busapi.ArrivalSource
	notifier     push.Notifier
	retryDelay   time.Duration

	mu     sync.Mutex
	timers map[int64]*time.Timer
	traces map[int64]string
}

func New(
	reservations repository.ReservationRepository,
	logs repository.NotificationLogRepository,
	arrivals busapi.ArrivalSource,
	notifier push.Notifier,
	retryDelay time.Duration,
) *Scheduler {
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	return &Scheduler{
		reservations: reservations,
		logs:         logs,
		arrivals:     arrivals,
		notifier:     notifier,
		retryDelay:   retryDelay,
		timers:       make(map[int64]*time.Timer),
		traces:       make(map[int64]string),
	}
}

// nextPollDelay picks the wait before the next check from how far away the
// alert moment still is. Checks get denser as the bus closes in.
func nextPollDelay(etaMinutes, minutesBefore int) time.Duration {
	minutesUntilAlert := etaMinutes - minutesBefore
	switch {
	case minutesUntilAlert >= 20:
		return 10 * time.Minute
	case minutesUntilAlert >= 10:
		return 5 * time.Minute
	case minutesUntilAlert >= 5:
		return 2 * time.Minute
	case minutesUntilAlert >= 2:
		return time.Minute
	default:
		return 30 * time.Second
	}
}

// Schedule starts or restarts polling for a reservation. Any previously
// pending wake-up for the id is dropped first, so re-arming is idempotent.
// The initial ETA query decides the first wait; a failing query arms a
// short fixed retry instead of giving up.
func (s *Scheduler) Schedule(ctx context.Context, id int64, traceID string) {
	s.clearTimer(id)
	s.setTrace(id, traceID)
	log := s.logger(id)

	reservation, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, entity.ErrReservationNotFound) {
			log.Errorf("Failed to load reservation: %v", err)
		}
		s.release(id)
		return
	}
	if reservation.Status != entity.ReservationStatusReserved {
		s.release(id)
		return
	}

	if reservation.NotificationType != entity.NotificationTypeTime {
		// Stops mode has no ETA-based wait; let the check cycle decide.
		s.runCheck(id, 0)
		return
	}

	arrivals, err := s.arrivals.GetArrivals(ctx, reservation.RouteID, reservation.StopID, reservation.CityCode)
	if err != nil {
		log.Warnf("Initial ETA query failed, retrying in %s: %v", s.retryDelay, err)
		s.armTimer(id, s.retryDelay, 1)
		return
	}
	if len(arrivals) == 0 {
		s.runCheck(id, 0)
		return
	}

	etaMinutes := arrivals[0].EtaMinutes
	delay := time.Duration(etaMinutes-reservation.MinutesBefore) * time.Minute
	if delay <= 0 {
		s.runCheck(id, 0)
		return
	}

	nextPollAt := time.Now().Add(delay)
	if err := s.reservations.UpdatePolling(ctx, id, etaMinutes, nextPollAt); err != nil {
		log.Warnf("Failed to persist polling state: %v", err)
	}
	s.armTimer(id, delay, 0)
	log.Infof("Scheduled wake-up in %s (eta %dm, alert %dm before)", delay, etaMinutes, reservation.MinutesBefore)
}

// Cancel drops the pending wake-up for a reservation. Storage is not
// touched here; the caller already moved the row to its terminal state.
func (s *Scheduler) Cancel(id int64) {
	s.release(id)
}

// RecoverActive re-arms every reserved reservation after a restart. The
// stored next_poll_at is ignored on purpose: the wake-up is always
// recomputed from a fresh ETA query.
func (s *Scheduler) RecoverActive(ctx context.Context) error {
	active, err := s.reservations.GetByStatus(ctx, entity.ReservationStatusReserved)
	if err != nil {
		return fmt.Errorf("failed to list active reservations: %w", err)
	}

	for _, reservation := range active {
		s.Schedule(ctx, reservation.ID, uuid.New().String())
	}

	logrus.Infof("Recovery sweep rescheduled %d active reservations", len(active))
	return nil
}

// runCheck is one check cycle: reload, query the feed, then either notify
// and finalize, finalize with a failure, or re-arm the next check.
// attempt is non-zero when this wake-up is the single retry after a
// transient feed failure.
func (s *Scheduler) runCheck(id int64, attempt int) {
	ctx := context.Background()
	log := s.logger(id)

	reservation, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, entity.ErrReservationNotFound) {
			s.release(id)
			return
		}
		if attempt == 0 {
			log.Warnf("Failed to reload reservation, retrying in %s: %v", s.retryDelay, err)
			s.armTimer(id, s.retryDelay, 1)
			return
		}
		log.Errorf("Failed to reload reservation after retry: %v", err)
		s.release(id)
		return
	}

	// Handles cancellation races: a cycle that finds the row no longer
	// reserved stops without side effects.
	if reservation.Status != entity.ReservationStatusReserved {
		log.Debugf("Reservation no longer reserved (status %s), dropping timer", reservation.Status)
		s.release(id)
		return
	}

	now := time.Now()
	if now.After(reservation.ExpiresAt) {
		s.finalizeWithFailure(ctx, reservation, reasonDeadlinePassed)
		return
	}

	if reservation.NotificationType == entity.NotificationTypeStops {
		s.finalizeWithFailure(ctx, reservation, reasonStopsMode)
		return
	}

	arrivals, err := s.arrivals.GetArrivals(ctx, reservation.RouteID, reservation.StopID, reservation.CityCode)
	if err != nil {
		if attempt == 0 {
			log.Warnf("ETA query failed, retrying in %s: %v", s.retryDelay, err)
			s.armTimer(id, s.retryDelay, 1)
			return
		}
		log.Errorf("ETA query failed after retry: %v", err)
		s.finalizeWithFailure(ctx, reservation, reasonFeedUnavailable)
		return
	}

	if len(arrivals) == 0 {
		s.finalizeWithFailure(ctx, reservation, reasonNoPredictions)
		return
	}

	etaMinutes := arrivals[0].EtaMinutes
	if etaMinutes <= reservation.MinutesBefore {
		s.finalizeWithArrival(ctx, reservation, etaMinutes)
		return
	}

	delay := nextPollDelay(etaMinutes, reservation.MinutesBefore)
	if untilDeadline := reservation.ExpiresAt.Sub(now); delay > untilDeadline {
		delay = untilDeadline
	}
	nextPollAt := now.Add(delay)
	if err := s.reservations.UpdatePolling(ctx, id, etaMinutes, nextPollAt); err != nil {
		log.Warnf("Failed to persist polling state: %v", err)
	}
	s.armTimer(id, delay, 0)
	log.Infof("ETA %dm, alert at %dm, next check in %s", etaMinutes, reservation.MinutesBefore, delay)
}

// finalizeWithArrival claims the terminal transition to done and, only if
// this cycle won the claim, dispatches the arrival push. The conditional
// store write is what bounds notifications to at most one per reservation.
func (s *Scheduler) finalizeWithArrival(ctx context.Context, reservation *entity.Reservation, etaMinutes int) {
	log := s.logger(reservation.ID)

	claimed, err := s.reservations.Finalize(ctx, reservation.ID, entity.ReservationStatusDone, &etaMinutes)
	s.release(reservation.ID)
	if err != nil {
		log.Errorf("Terminal write failed: %v", err)
		return
	}
	if !claimed {
		log.Debug("Reservation already finalized, skipping notification")
		return
	}

	log.Infof("Bus arriving in %dm, dispatching arrival notification", etaMinutes)
	s.dispatch(ctx, reservation, push.Message{
		Title: fmt.Sprintf("%s 도착 임박", reservation.BusNumber),
		Body:  fmt.Sprintf("%s 정류장에 곧 도착합니다. (도착 %d분 전)", reservation.StopName, etaMinutes),
		Data:  map[string]string{"reservation_id": fmt.Sprintf("%d", reservation.ID)},
	})
}

// finalizeWithFailure claims the terminal transition to expired and tells
// the user why their alarm could not be honored.
func (s *Scheduler) finalizeWithFailure(ctx context.Context, reservation *entity.Reservation, reason string) {
	log := s.logger(reservation.ID)

	claimed, err := s.reservations.Finalize(ctx, reservation.ID, entity.ReservationStatusExpired, nil)
	s.release(reservation.ID)
	if err != nil {
		log.Errorf("Terminal write failed: %v", err)
		return
	}
	if !claimed {
		log.Debug("Reservation already finalized, skipping failure notification")
		return
	}

	log.Warnf("Expiring reservation: %s", reason)
	s.dispatch(ctx, reservation, push.Message{
		Title: failureTitle,
		Body:  fmt.Sprintf("%s(%s) 알림이 취소되었습니다. %s.", reservation.BusNumber, reservation.StopName, reason),
		Data:  map[string]string{"reservation_id": fmt.Sprintf("%d", reservation.ID)},
	})
}

// dispatch performs the best-effort push and records the attempt. Notifier
// errors are logged, never propagated; the terminal state already stands.
func (s *Scheduler) dispatch(ctx context.Context, reservation *entity.Reservation, msg push.Message) {
	log := s.logger(reservation.ID)

	entry := &entity.NotificationLog{
		ReservationID: reservation.ID,
		Outcome:       entity.NotificationOutcomeSent,
		SentAt:        time.Now(),
	}

	if err := s.notifier.Send(ctx, reservation.UserID, msg); err != nil {
		log.Errorf("Push dispatch failed: %v", err)
		entry.Outcome = entity.NotificationOutcomeError
		entry.ErrorMessage = err.Error()
	}

	if err := s.logs.Append(ctx, entry); err != nil {
		log.Warnf("Failed to append notification log: %v", err)
	}
}

// armTimer replaces the pending wake-up for the id. At most one timer per
// reservation is ever live.
func (s *Scheduler) armTimer(id int64, delay time.Duration, attempt int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[id]; ok {
		timer.Stop()
	}
	s.timers[id] = time.AfterFunc(delay, func() {
		s.runCheck(id, attempt)
	})
}

func (s *Scheduler) clearTimer(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
}

// release drops both the timer and the trace once a reservation leaves the
// scheduler's care.
func (s *Scheduler) release(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
	delete(s.traces, id)
}

func (s *Scheduler) setTrace(id int64, traceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces[id] = traceID
}

func (s *Scheduler) logger(id int64) *logrus.Entry {
	s.mu.Lock()
	traceID := s.traces[id]
	s.mu.Unlock()

	return logrus.WithFields(logrus.Fields{
		"reservation_id": id,
		"trace_id":       traceID,
	})
}

// pendingCount reports how many wake-ups are currently armed.
func (s *Scheduler) pendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// hasPending reports whether a wake-up is armed for the id.
func (s *Scheduler) hasPending(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[id]
	return ok
}
