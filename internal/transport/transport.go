package transport

import (
	"net/http"
	"time"

	"busalarm/internal/transport/middleware"

	"github.com/gin-gonic/gin"
)

func InitRoutes(reservationHandler *ReservationHandler, busHandler *BusHandler, deviceHandler *DeviceHandler) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(middleware.Timeout(30))

	api := router.Group("/api/v1")
	{
		reservations := api.Group("/reservations")
		{
			reservations.POST("", reservationHandler.Create)
			reservations.GET("", reservationHandler.ListActive)
			reservations.GET("/:id", reservationHandler.Get)
			reservations.GET("/:id/notifications", reservationHandler.NotificationLogs)
			reservations.DELETE("/:id", reservationHandler.Cancel)
		}

		bus := api.Group("/bus")
		{
			bus.GET("/routes", busHandler.SearchRoutes)
			bus.GET("/stops", busHandler.RouteStops)
			bus.GET("/arrivals", busHandler.GetArrivals)
		}

		devices := api.Group("/devices")
		{
			devices.POST("", deviceHandler.Register)
			devices.DELETE("/:token", deviceHandler.Remove)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return router
}
