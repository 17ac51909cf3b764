package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct {
	tokens []string
	err    error
}

func (s *staticTokens) GetActiveTokens(_ context.Context, _ int64) ([]string, error) {
	return s.tokens, s.err
}

func TestSendFansOutPerToken(t *testing.T) {
	var mu sync.Mutex
	var received []fcmPayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key=test-key", r.Header.Get("Authorization"))

		var payload fcmPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		mu.Lock()
		received = append(received, payload)
		mu.Unlock()

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewFCMNotifier(srv.URL, "test-key", &staticTokens{tokens: []string{"tok-a", "tok-b"}}, 5*time.Second)

	err := n.Send(context.Background(), 42, Message{
		Title: "102 도착 임박",
		Body:  "대전역 정류장에 곧 도착합니다.",
		Data:  map[string]string{"reservation_id": "7"},
	})

	require.NoError(t, err)
	require.Len(t, received, 2)
	assert.ElementsMatch(t, []string{"tok-a", "tok-b"}, []string{received[0].To, received[1].To})
	assert.Equal(t, "102 도착 임박", received[0].Notification.Title)
	assert.Equal(t, "7", received[0].Data["reservation_id"])
}

func TestSendNoDevicesIsSuccess(t *testing.T) {
	n := NewFCMNotifier("http://unused", "test-key", &staticTokens{}, 5*time.Second)

	err := n.Send(context.Background(), 42, Message{Title: "t"})

	assert.NoError(t, err)
}

func TestSendAllDevicesFailing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	n := NewFCMNotifier(srv.URL, "bad-key", &staticTokens{tokens: []string{"tok-a", "tok-b"}}, 5*time.Second)

	err := n.Send(context.Background(), 42, Message{Title: "t"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 devices")
}

func TestSendPartialFailureIsSuccess(t *testing.T) {
	var mu sync.Mutex
	calls := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls++
		fail := calls == 1
		mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewFCMNotifier(srv.URL, "test-key", &staticTokens{tokens: []string{"tok-a", "tok-b"}}, 5*time.Second)

	err := n.Send(context.Background(), 42, Message{Title: "t"})

	assert.NoError(t, err)
}
