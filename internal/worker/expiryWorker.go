// Package worker runs background maintenance loops. The expiry sweep is a
// safety net behind the scheduler: it claims reservations whose deadline
// passed while their wake-up was lost or the process was down.
package worker

import (
	"context"
	"fmt"
	"time"

	repository "busalarm/internal/database/postgres"
	"busalarm/internal/entity"
	"busalarm/pkg/push"

	"github.com/sirupsen/logrus"
)

const expiryFailureTitle = "버스 알림 예약 만료"

// TimerDropper lets the sweep discard a pending scheduler wake-up for a
// reservation it just claimed.
type TimerDropper interface {
	Cancel(id int64)
}

type ExpiryWorker struct {
	reservations repository.ReservationRepository
	logs         repository.NotificationLogRepository
	notifier     push.Notifier
	scheduler    TimerDropper
	interval     time.Duration
}

func NewExpiryWorker(
	reservations repository.ReservationRepository,
	logs repository.NotificationLogRepository,
	notifier push.Notifier,
	scheduler TimerDropper,
	interval time.Duration,
) *ExpiryWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ExpiryWorker{
		reservations: reservations,
		logs:         logs,
		notifier:     notifier,
		scheduler:    scheduler,
		interval:     interval,
	}
}

func (w *ExpiryWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logrus.Info("Reservation expiry worker started")

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Reservation expiry worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep claims every reservation past its deadline. The conditional
// Finalize write keeps the sweep safe to run concurrently with the
// scheduler: whichever side claims the row first sends the notification.
func (w *ExpiryWorker) sweep(ctx context.Context) {
	expired, err := w.reservations.GetExpired(ctx, time.Now())
	if err != nil {
		logrus.Errorf("Expiry sweep failed to list reservations: %v", err)
		return
	}
	if len(expired) == 0 {
		return
	}

	logrus.Infof("Expiry sweep found %d overdue reservations", len(expired))

	claimed := 0
	for _, reservation := range expired {
		select {
		case <-ctx.Done():
			logrus.Info("Expiry sweep interrupted by shutdown")
			return
		default:
		}

		if w.expire(ctx, reservation) {
			claimed++
		}
	}

	logrus.Infof("Expiry sweep completed: %d of %d claimed", claimed, len(expired))
}

func (w *ExpiryWorker) expire(ctx context.Context, reservation *entity.Reservation) bool {
	log := logrus.WithField("reservation_id", reservation.ID)

	ok, err := w.reservations.Finalize(ctx, reservation.ID, entity.ReservationStatusExpired, nil)
	if err != nil {
		log.Errorf("Failed to expire reservation: %v", err)
		return false
	}
	if !ok {
		// The scheduler got there first.
		return false
	}

	w.scheduler.Cancel(reservation.ID)
	log.Warn("Reservation expired by deadline sweep")

	entry := &entity.NotificationLog{
		ReservationID: reservation.ID,
		Outcome:       entity.NotificationOutcomeSent,
		SentAt:        time.Now(),
	}

	msg := push.Message{
		Title: expiryFailureTitle,
		Body:  fmt.Sprintf("%s(%s) 알림이 취소되었습니다. 24시간이 지나 예약이 만료되었습니다.", reservation.BusNumber, reservation.StopName),
		Data:  map[string]string{"reservation_id": fmt.Sprintf("%d", reservation.ID)},
	}
	if err := w.notifier.Send(ctx, reservation.UserID, msg); err != nil {
		log.Errorf("Failed to send expiry notification: %v", err)
		entry.Outcome = entity.NotificationOutcomeError
		entry.ErrorMessage = err.Error()
	}

	if err := w.logs.Append(ctx, entry); err != nil {
		log.Warnf("Failed to append notification log: %v", err)
	}

	return true
}
