package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"busalarm/internal/entity"
	"busalarm/pkg/busapi"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReservationRepo struct {
	rows   map[int64]*entity.Reservation
	nextID int64
}

func newStubReservationRepo(rows ...*entity.Reservation) *stubReservationRepo {
	repo := &stubReservationRepo{rows: make(map[int64]*entity.Reservation), nextID: 1}
	for _, row := range rows {
		repo.rows[row.ID] = row
		if row.ID >= repo.nextID {
			repo.nextID = row.ID + 1
		}
	}
	return repo
}

func (r *stubReservationRepo) Create(_ context.Context, reservation *entity.Reservation) error {
	for _, row := range r.rows {
		if row.UserID == reservation.UserID && row.Status == entity.ReservationStatusReserved {
			return entity.ErrActiveReservationExists
		}
	}
	reservation.ID = r.nextID
	r.nextID++
	r.rows[reservation.ID] = reservation
	return nil
}

func (r *stubReservationRepo) GetByID(_ context.Context, id int64) (*entity.Reservation, error) {
	row, ok := r.rows[id]
	if !ok {
		return nil, entity.ErrReservationNotFound
	}
	return row, nil
}

func (r *stubReservationRepo) GetActiveByUser(_ context.Context, userID int64) (*entity.Reservation, error) {
	for _, row := range r.rows {
		if row.UserID == userID && row.Status == entity.ReservationStatusReserved {
			return row, nil
		}
	}
	return nil, nil
}

func (r *stubReservationRepo) ListActiveByUser(_ context.Context, userID int64) ([]*entity.Reservation, error) {
	var out []*entity.Reservation
	for _, row := range r.rows {
		if row.UserID == userID && row.Status == entity.ReservationStatusReserved {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *stubReservationRepo) GetByStatus(_ context.Context, status entity.ReservationStatus) ([]*entity.Reservation, error) {
	var out []*entity.Reservation
	for _, row := range r.rows {
		if row.Status == status {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *stubReservationRepo) GetExpired(_ context.Context, before time.Time) ([]*entity.Reservation, error) {
	return nil, nil
}

func (r *stubReservationRepo) UpdatePolling(_ context.Context, id int64, lastEtaMinutes int, nextPollAt time.Time) error {
	return nil
}

func (r *stubReservationRepo) Finalize(_ context.Context, id int64, status entity.ReservationStatus, lastEtaMinutes *int) (bool, error) {
	row, ok := r.rows[id]
	if !ok || row.Status != entity.ReservationStatusReserved {
		return false, nil
	}
	row.Status = status
	return true, nil
}

type stubLogRepo struct {
	entries []*entity.NotificationLog
}

func (r *stubLogRepo) Append(_ context.Context, log *entity.NotificationLog) error {
	r.entries = append(r.entries, log)
	return nil
}

func (r *stubLogRepo) ListByReservation(_ context.Context, reservationID int64) ([]*entity.NotificationLog, error) {
	var out []*entity.NotificationLog
	for _, entry := range r.entries {
		if entry.ReservationID == reservationID {
			out = append(out, entry)
		}
	}
	return out, nil
}

type stubArrivals struct {
	arrivals []busapi.Arrival
	err      error
	calls    int
}

func (s *stubArrivals) GetArrivals(_ context.Context, _, _, _ string) ([]busapi.Arrival, error) {
	s.calls++
	return s.arrivals, s.err
}

type stubScheduler struct {
	scheduled []int64
	canceled  []int64
}

func (s *stubScheduler) Schedule(_ context.Context, id int64, _ string) {
	s.scheduled = append(s.scheduled, id)
}

func (s *stubScheduler) Cancel(id int64) {
	s.canceled = append(s.canceled, id)
}

func timeModeRequest() *entity.CreateReservationRequest {
	return &entity.CreateReservationRequest{
		RouteID:          "DJB30300004",
		CityCode:         "25",
		BusNumber:        "102",
		StopID:           "DJB8001793",
		StopName:         "대전역",
		NotificationType: entity.NotificationTypeTime,
		MinutesBefore:    5,
	}
}

func TestCreateReservation(t *testing.T) {
	repo := newStubReservationRepo()
	arrivals := &stubArrivals{arrivals: []busapi.Arrival{{EtaMinutes: 12}}}
	sched := &stubScheduler{}
	svc := NewReservationService(repo, &stubLogRepo{}, arrivals, sched)

	reservation, err := svc.Create(context.Background(), 42, timeModeRequest())

	require.NoError(t, err)
	assert.Equal(t, entity.ReservationStatusReserved, reservation.Status)
	assert.Equal(t, int64(42), reservation.UserID)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), reservation.ExpiresAt, time.Minute)
	require.Len(t, sched.scheduled, 1)
	assert.Equal(t, reservation.ID, sched.scheduled[0])
}

func TestCreateReservationConflict(t *testing.T) {
	repo := newStubReservationRepo(&entity.Reservation{
		ID:     1,
		UserID: 42,
		Status: entity.ReservationStatusReserved,
	})
	sched := &stubScheduler{}
	svc := NewReservationService(repo, &stubLogRepo{}, &stubArrivals{}, sched)

	_, err := svc.Create(context.Background(), 42, timeModeRequest())

	assert.ErrorIs(t, err, entity.ErrActiveReservationExists)
	assert.Empty(t, sched.scheduled)
}

func TestCreateReservationNoArrivalData(t *testing.T) {
	svc := NewReservationService(newStubReservationRepo(), &stubLogRepo{}, &stubArrivals{}, &stubScheduler{})

	_, err := svc.Create(context.Background(), 42, timeModeRequest())

	var validationErr *entity.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.ErrorIs(t, err, entity.ErrNoArrivalData)
}

func TestCreateReservationLeadTimeTooLong(t *testing.T) {
	arrivals := &stubArrivals{arrivals: []busapi.Arrival{{EtaMinutes: 3}}}
	svc := NewReservationService(newStubReservationRepo(), &stubLogRepo{}, arrivals, &stubScheduler{})

	_, err := svc.Create(context.Background(), 42, timeModeRequest())

	var validationErr *entity.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.ErrorIs(t, err, entity.ErrLeadTimeExceedsEta)
	assert.Contains(t, validationErr.Suggestion, "try 2 minutes")
}

func TestCreateReservationMissingModeParams(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*entity.CreateReservationRequest)
		expected error
	}{
		{
			name: "time mode without minutes_before",
			mutate: func(req *entity.CreateReservationRequest) {
				req.MinutesBefore = 0
			},
			expected: entity.ErrMinutesBeforeRequired,
		},
		{
			name: "stops mode without stops_before",
			mutate: func(req *entity.CreateReservationRequest) {
				req.NotificationType = entity.NotificationTypeStops
				req.MinutesBefore = 0
			},
			expected: entity.ErrStopsBeforeRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewReservationService(newStubReservationRepo(), &stubLogRepo{}, &stubArrivals{}, &stubScheduler{})

			req := timeModeRequest()
			tt.mutate(req)

			_, err := svc.Create(context.Background(), 42, req)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestCreateStopsModeSkipsLeadTimeValidation(t *testing.T) {
	arrivals := &stubArrivals{}
	sched := &stubScheduler{}
	svc := NewReservationService(newStubReservationRepo(), &stubLogRepo{}, arrivals, sched)

	req := timeModeRequest()
	req.NotificationType = entity.NotificationTypeStops
	req.MinutesBefore = 0
	req.StopsBefore = 3

	reservation, err := svc.Create(context.Background(), 42, req)

	require.NoError(t, err)
	assert.Equal(t, 0, arrivals.calls)
	assert.Len(t, sched.scheduled, 1)
	assert.Equal(t, entity.ReservationStatusReserved, reservation.Status)
}

func TestCreateReservationFeedFailure(t *testing.T) {
	arrivals := &stubArrivals{err: errors.New("upstream timeout")}
	sched := &stubScheduler{}
	svc := NewReservationService(newStubReservationRepo(), &stubLogRepo{}, arrivals, sched)

	_, err := svc.Create(context.Background(), 42, timeModeRequest())

	require.Error(t, err)
	var validationErr *entity.ValidationError
	assert.False(t, errors.As(err, &validationErr))
	assert.Empty(t, sched.scheduled)
}

func TestGetHidesForeignReservation(t *testing.T) {
	repo := newStubReservationRepo(&entity.Reservation{
		ID:     1,
		UserID: 42,
		Status: entity.ReservationStatusReserved,
	})
	svc := NewReservationService(repo, &stubLogRepo{}, &stubArrivals{}, &stubScheduler{})

	_, err := svc.Get(context.Background(), 99, 1)

	assert.ErrorIs(t, err, entity.ErrReservationNotFound)
}

func TestCancelReservation(t *testing.T) {
	repo := newStubReservationRepo(&entity.Reservation{
		ID:     1,
		UserID: 42,
		Status: entity.ReservationStatusReserved,
	})
	sched := &stubScheduler{}
	svc := NewReservationService(repo, &stubLogRepo{}, &stubArrivals{}, sched)

	err := svc.Cancel(context.Background(), 42, 1)

	require.NoError(t, err)
	assert.Equal(t, entity.ReservationStatusCanceled, repo.rows[1].Status)
	assert.Equal(t, []int64{1}, sched.canceled)
}

func TestCancelRejectsNonOwnedOrTerminal(t *testing.T) {
	tests := []struct {
		name   string
		userID int64
		status entity.ReservationStatus
	}{
		{name: "foreign user", userID: 99, status: entity.ReservationStatusReserved},
		{name: "already done", userID: 42, status: entity.ReservationStatusDone},
		{name: "already canceled", userID: 42, status: entity.ReservationStatusCanceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newStubReservationRepo(&entity.Reservation{
				ID:     1,
				UserID: 42,
				Status: tt.status,
			})
			sched := &stubScheduler{}
			svc := NewReservationService(repo, &stubLogRepo{}, &stubArrivals{}, sched)

			err := svc.Cancel(context.Background(), tt.userID, 1)

			assert.ErrorIs(t, err, entity.ErrReservationNotFound)
			assert.Empty(t, sched.canceled)
		})
	}
}

func TestNotificationLogsRequireOwnership(t *testing.T) {
	repo := newStubReservationRepo(&entity.Reservation{
		ID:     1,
		UserID: 42,
		Status: entity.ReservationStatusDone,
	})
	logs := &stubLogRepo{entries: []*entity.NotificationLog{
		{ID: 1, ReservationID: 1, Outcome: entity.NotificationOutcomeSent},
	}}
	svc := NewReservationService(repo, logs, &stubArrivals{}, &stubScheduler{})

	entries, err := svc.NotificationLogs(context.Background(), 42, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = svc.NotificationLogs(context.Background(), 99, 1)
	assert.ErrorIs(t, err, entity.ErrReservationNotFound)
}
