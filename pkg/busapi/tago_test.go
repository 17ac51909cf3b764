package busapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tagoServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("_type"))
		assert.NotEmpty(t, r.URL.Query().Get("serviceKey"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func TestGetArrivalsFiltersAndSorts(t *testing.T) {
	srv := tagoServer(t, `{
		"response": {
			"header": {"resultCode": "00", "resultMsg": "NORMAL SERVICE."},
			"body": {
				"items": {"item": [
					{"routeid": "DJB30300004", "routeno": 102, "vehicleno": "대전75자1111", "arrtime": 780, "arrprevstationcnt": 9},
					{"routeid": "DJB30300099", "routeno": "201", "vehicleno": "대전75자2222", "arrtime": 120, "arrprevstationcnt": 2},
					{"routeid": "DJB30300004", "routeno": "102", "vehicleno": "대전75자3333", "arrtime": "240", "arrprevstationcnt": "3"}
				]},
				"totalCount": 3
			}
		}
	}`)
	defer srv.Close()

	client := NewTagoClient(srv.URL, "test-key", 5*time.Second)
	arrivals, err := client.GetArrivals(context.Background(), "DJB30300004", "DJB8001793", "25")

	require.NoError(t, err)
	require.Len(t, arrivals, 2)
	// Other routes at the same stop are filtered out, nearest bus first.
	assert.Equal(t, 4, arrivals[0].EtaMinutes)
	assert.Equal(t, 3, arrivals[0].RemainingStops)
	assert.Equal(t, "대전75자3333", arrivals[0].VehicleNo)
	assert.Equal(t, 13, arrivals[1].EtaMinutes)
}

func TestGetArrivalsSingleObjectItem(t *testing.T) {
	srv := tagoServer(t, `{
		"response": {
			"header": {"resultCode": "00", "resultMsg": "NORMAL SERVICE."},
			"body": {
				"items": {"item": {"routeid": "DJB30300004", "routeno": "102", "vehicleno": "대전75자1111", "arrtime": 300, "arrprevstationcnt": 4}},
				"totalCount": 1
			}
		}
	}`)
	defer srv.Close()

	client := NewTagoClient(srv.URL, "test-key", 5*time.Second)
	arrivals, err := client.GetArrivals(context.Background(), "DJB30300004", "DJB8001793", "25")

	require.NoError(t, err)
	require.Len(t, arrivals, 1)
	assert.Equal(t, 5, arrivals[0].EtaMinutes)
}

func TestGetArrivalsEmptyItems(t *testing.T) {
	tests := []struct {
		name  string
		items string
	}{
		{name: "empty string", items: `""`},
		{name: "null", items: `null`},
		{name: "empty object", items: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := tagoServer(t, `{
				"response": {
					"header": {"resultCode": "00", "resultMsg": "NORMAL SERVICE."},
					"body": {"items": `+tt.items+`, "totalCount": 0}
				}
			}`)
			defer srv.Close()

			client := NewTagoClient(srv.URL, "test-key", 5*time.Second)
			arrivals, err := client.GetArrivals(context.Background(), "DJB30300004", "DJB8001793", "25")

			require.NoError(t, err)
			assert.Empty(t, arrivals)
		})
	}
}

func TestGetArrivalsProviderError(t *testing.T) {
	srv := tagoServer(t, `{
		"response": {
			"header": {"resultCode": "22", "resultMsg": "LIMITED NUMBER OF SERVICE REQUESTS EXCEEDS ERROR."},
			"body": {"items": "", "totalCount": 0}
		}
	}`)
	defer srv.Close()

	client := NewTagoClient(srv.URL, "test-key", 5*time.Second)
	_, err := client.GetArrivals(context.Background(), "DJB30300004", "DJB8001793", "25")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "22")
}

func TestSearchRoutes(t *testing.T) {
	srv := tagoServer(t, `{
		"response": {
			"header": {"resultCode": "00", "resultMsg": "NORMAL SERVICE."},
			"body": {
				"items": {"item": [
					{"routeid": "DJB30300004", "routeno": "102", "routetp": "간선버스", "startnodenm": "충대농대", "endnodenm": "대전역"},
					{"routeid": "DJB30300050", "routeno": "1002", "routetp": "급행버스", "startnodenm": "유성", "endnodenm": "판암역"}
				]},
				"totalCount": 2
			}
		}
	}`)
	defer srv.Close()

	client := NewTagoClient(srv.URL, "test-key", 5*time.Second)
	routes, err := client.SearchRoutes(context.Background(), "25", "102")

	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Equal(t, "DJB30300004", routes[0].RouteID)
	assert.Equal(t, "102", routes[0].BusNumber)
	assert.Equal(t, "대전역", routes[0].EndStop)
}

func TestGetRouteStopsOrdered(t *testing.T) {
	srv := tagoServer(t, `{
		"response": {
			"header": {"resultCode": "00", "resultMsg": "NORMAL SERVICE."},
			"body": {
				"items": {"item": [
					{"nodeid": "DJB8001940", "nodenm": "중앙로역", "nodeord": 2},
					{"nodeid": "DJB8001793", "nodenm": "대전역", "nodeord": "1"}
				]},
				"totalCount": 2
			}
		}
	}`)
	defer srv.Close()

	client := NewTagoClient(srv.URL, "test-key", 5*time.Second)
	stops, err := client.GetRouteStops(context.Background(), "25", "DJB30300004")

	require.NoError(t, err)
	require.Len(t, stops, 2)
	assert.Equal(t, "대전역", stops[0].StopName)
	assert.Equal(t, 1, stops[0].Order)
	assert.Equal(t, "DJB8001940", stops[1].StopID)
}

func TestGetArrivalsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewTagoClient(srv.URL, "test-key", 5*time.Second)
	_, err := client.GetArrivals(context.Background(), "DJB30300004", "DJB8001793", "25")

	assert.Error(t, err)
}
