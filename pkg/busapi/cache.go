package busapi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// CachedClient is a read-through Redis cache in front of a Client.
// Route searches change rarely and are cached; live arrival predictions
// are deliberately never cached, the scheduler needs fresh ETAs.
type CachedClient struct {
	inner     Client
	client    *redis.Client
	searchTTL time.Duration
}

func NewCachedClient(inner Client, client *redis.Client, searchTTL time.Duration) *CachedClient {
	return &CachedClient{
		inner:     inner,
		client:    client,
		searchTTL: searchTTL,
	}
}

func (c *CachedClient) GetArrivals(ctx context.Context, routeID, stopID, cityCode string) ([]Arrival, error) {
	return c.inner.GetArrivals(ctx, routeID, stopID, cityCode)
}

func (c *CachedClient) SearchRoutes(ctx context.Context, cityCode, keyword string) ([]Route, error) {
	key := fmt.Sprintf("busapi:search:%s:%s", cityCode, keyword)

	cached, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var routes []Route
		if err := json.Unmarshal(cached, &routes); err == nil {
			return routes, nil
		}
	} else if err != redis.Nil {
		logrus.Warnf("Route search cache read failed: %v", err)
	}

	routes, err := c.inner.SearchRoutes(ctx, cityCode, keyword)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, routes)
	return routes, nil
}

func (c *CachedClient) GetRouteStops(ctx context.Context, cityCode, routeID string) ([]Stop, error) {
	key := fmt.Sprintf("busapi:stops:%s:%s", cityCode, routeID)

	cached, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var stops []Stop
		if err := json.Unmarshal(cached, &stops); err == nil {
			return stops, nil
		}
	} else if err != redis.Nil {
		logrus.Warnf("Route stops cache read failed: %v", err)
	}

	stops, err := c.inner.GetRouteStops(ctx, cityCode, routeID)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, stops)
	return stops, nil
}

func (c *CachedClient) store(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.searchTTL).Err(); err != nil {
		logrus.Warnf("Feed cache write failed for %s: %v", key, err)
	}
}
