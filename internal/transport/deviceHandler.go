package transport

import (
	"errors"
	"net/http"

	"busalarm/internal/entity"
	"busalarm/internal/service"

	"github.com/gin-gonic/gin"
)

type DeviceHandler struct {
	deviceService service.DeviceService
}

func NewDeviceHandler(deviceService service.DeviceService) *DeviceHandler {
	return &DeviceHandler{deviceService: deviceService}
}

func (h *DeviceHandler) Register(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req entity.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.deviceService.Register(c.Request.Context(), uid, &req); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to register device"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "device registered"})
}

func (h *DeviceHandler) Remove(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	token := c.Param("token")

	err := h.deviceService.Remove(c.Request.Context(), uid, token)
	switch {
	case errors.Is(err, entity.ErrDeviceTokenNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, entity.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "token is required"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to remove device"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "device removed"})
	}
}
