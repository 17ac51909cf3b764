package transport

import (
	"errors"
	"net/http"

	"busalarm/internal/entity"
	"busalarm/internal/service"

	"github.com/gin-gonic/gin"
)

type BusHandler struct {
	busService service.BusService
}

func NewBusHandler(busService service.BusService) *BusHandler {
	return &BusHandler{busService: busService}
}

// SearchRoutes proxies a route-number search to the transit feed.
func (h *BusHandler) SearchRoutes(c *gin.Context) {
	cityCode := c.Query("city_code")
	keyword := c.Query("keyword")

	routes, err := h.busService.SearchRoutes(c.Request.Context(), cityCode, keyword)
	if err != nil {
		if errors.Is(err, entity.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "city_code and keyword are required"})
			return
		}
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "failed to reach transit data provider"})
		return
	}

	c.JSON(http.StatusOK, routes)
}

// RouteStops lists the stops a route passes through, in traversal order.
func (h *BusHandler) RouteStops(c *gin.Context) {
	cityCode := c.Query("city_code")
	routeID := c.Query("route_id")

	stops, err := h.busService.GetRouteStops(c.Request.Context(), cityCode, routeID)
	if err != nil {
		if errors.Is(err, entity.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "city_code and route_id are required"})
			return
		}
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "failed to reach transit data provider"})
		return
	}

	c.JSON(http.StatusOK, stops)
}

// GetArrivals returns the current predictions for a route/stop pair. An
// empty list is a normal answer, not an error.
func (h *BusHandler) GetArrivals(c *gin.Context) {
	routeID := c.Query("route_id")
	stopID := c.Query("stop_id")
	cityCode := c.Query("city_code")

	arrivals, err := h.busService.GetArrivals(c.Request.Context(), routeID, stopID, cityCode)
	if err != nil {
		if errors.Is(err, entity.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "route_id, stop_id and city_code are required"})
			return
		}
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "failed to reach transit data provider"})
		return
	}

	c.JSON(http.StatusOK, arrivals)
}
