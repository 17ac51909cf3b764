package busapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"
)

const (
	arrivalPath   = "/ArvlInfoInqireService/getSttnAcctoArvlPrearngeInfoList"
	routePath     = "/BusRouteInfoInqireService/getRouteNoList"
	routeStopPath = "/BusRouteInfoInqireService/getRouteAcctoThrghSttnList"
)

// TagoClient talks to the TAGO national public transit API.
type TagoClient struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

func NewTagoClient(baseURL, serviceKey string, timeout time.Duration) *TagoClient {
	return &TagoClient{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// tagoEnvelope is the common TAGO response wrapper.
type tagoEnvelope struct {
	Response struct {
		Header struct {
			ResultCode string `json:"resultCode"`
			ResultMsg  string `json:"resultMsg"`
		} `json:"header"`
		Body struct {
			Items      json.RawMessage `json:"items"`
			TotalCount int             `json:"totalCount"`
		} `json:"body"`
	} `json:"response"`
}

// flexString tolerates TAGO returning the same field as either a JSON
// string or a bare number depending on the dataset.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(string(b))
	return nil
}

type arrivalItem struct {
	RouteID        flexString  `json:"routeid"`
	RouteNo        flexString  `json:"routeno"`
	VehicleNo      flexString  `json:"vehicleno"`
	ArrTimeSeconds json.Number `json:"arrtime"`
	PrevStations   json.Number `json:"arrprevstationcnt"`
}

type stopItem struct {
	NodeID    flexString  `json:"nodeid"`
	NodeName  flexString  `json:"nodenm"`
	NodeOrder json.Number `json:"nodeord"`
}

type routeItem struct {
	RouteID   flexString `json:"routeid"`
	RouteNo   flexString `json:"routeno"`
	RouteType string     `json:"routetp"`
	StartStop string     `json:"startnodenm"`
	EndStop   string     `json:"endnodenm"`
}

// GetArrivals queries the stop-level arrival prediction list and keeps only
// the requested route, nearest vehicle first.
func (c *TagoClient) GetArrivals(ctx context.Context, routeID, stopID, cityCode string) ([]Arrival, error) {
	params := url.Values{}
	params.Set("cityCode", cityCode)
	params.Set("nodeId", stopID)
	params.Set("numOfRows", "50")

	var items []arrivalItem
	if err := c.get(ctx, arrivalPath, params, &items); err != nil {
		return nil, err
	}

	arrivals := make([]Arrival, 0, len(items))
	for _, it := range items {
		if string(it.RouteID) != routeID {
			continue
		}
		seconds, err := it.ArrTimeSeconds.Int64()
		if err != nil {
			continue
		}
		stops, _ := it.PrevStations.Int64()
		arrivals = append(arrivals, Arrival{
			VehicleNo:      string(it.VehicleNo),
			EtaMinutes:     int(seconds / 60),
			RemainingStops: int(stops),
		})
	}

	sort.Slice(arrivals, func(i, j int) bool {
		return arrivals[i].EtaMinutes < arrivals[j].EtaMinutes
	})

	return arrivals, nil
}

// SearchRoutes looks up routes by bus number within a city.
func (c *TagoClient) SearchRoutes(ctx context.Context, cityCode, keyword string) ([]Route, error) {
	params := url.Values{}
	params.Set("cityCode", cityCode)
	params.Set("routeNo", keyword)
	params.Set("numOfRows", "50")

	var items []routeItem
	if err := c.get(ctx, routePath, params, &items); err != nil {
		return nil, err
	}

	routes := make([]Route, 0, len(items))
	for _, it := range items {
		routes = append(routes, Route{
			RouteID:   string(it.RouteID),
			BusNumber: string(it.RouteNo),
			RouteType: it.RouteType,
			StartStop: it.StartStop,
			EndStop:   it.EndStop,
		})
	}

	return routes, nil
}

// GetRouteStops lists the stops a route passes through, in order.
func (c *TagoClient) GetRouteStops(ctx context.Context, cityCode, routeID string) ([]Stop, error) {
	params := url.Values{}
	params.Set("cityCode", cityCode)
	params.Set("routeId", routeID)
	params.Set("numOfRows", "200")

	var items []stopItem
	if err := c.get(ctx, routeStopPath, params, &items); err != nil {
		return nil, err
	}

	stops := make([]Stop, 0, len(items))
	for _, it := range items {
		order, _ := it.NodeOrder.Int64()
		stops = append(stops, Stop{
			StopID:   string(it.NodeID),
			StopName: string(it.NodeName),
			Order:    int(order),
		})
	}

	sort.Slice(stops, func(i, j int) bool {
		return stops[i].Order < stops[j].Order
	})

	return stops, nil
}

func (c *TagoClient) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	params.Set("serviceKey", c.serviceKey)
	params.Set("_type", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("transit API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("transit API error: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var envelope tagoEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if code := envelope.Response.Header.ResultCode; code != "" && code != "00" {
		return fmt.Errorf("transit API result %s: %s", code, envelope.Response.Header.ResultMsg)
	}

	return decodeItems(envelope.Response.Body.Items, out)
}

// decodeItems unwraps body.items.item, which TAGO serializes as an empty
// string when there are no rows, a single object for one row, and an array
// otherwise.
func decodeItems(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 || string(raw) == `""` || string(raw) == "null" {
		return nil
	}

	var wrapper struct {
		Item json.RawMessage `json:"item"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return fmt.Errorf("failed to decode items: %w", err)
	}
	if len(wrapper.Item) == 0 {
		return nil
	}

	if wrapper.Item[0] == '[' {
		return json.Unmarshal(wrapper.Item, out)
	}

	// Single row: wrap it into a one-element array so callers always get a slice.
	single := append([]byte{'['}, wrapper.Item...)
	single = append(single, ']')
	return json.Unmarshal(single, out)
}
