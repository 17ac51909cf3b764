package transport

import (
	"errors"
	"net/http"
	"strconv"

	"busalarm/internal/entity"
	"busalarm/internal/service"

	"github.com/gin-gonic/gin"
)

type ReservationHandler struct {
	reservationService service.ReservationService
}

func NewReservationHandler(reservationService service.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservationService: reservationService}
}

// ErrorResponse is the common error payload. Suggestion is set for
// validation failures that have a corrective hint.
type ErrorResponse struct {
	Error      string `json:"error"`
	Suggestion string `json:"suggestion,omitempty"`
}

// userID extracts the caller's identity from the X-User-ID header.
// Authentication itself lives at the gateway in front of this service.
func userID(c *gin.Context) (int64, bool) {
	raw := c.GetHeader("X-User-ID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing or invalid X-User-ID header"})
		return 0, false
	}
	return id, true
}

func (h *ReservationHandler) Create(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req entity.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	reservation, err := h.reservationService.Create(c.Request.Context(), uid, &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, reservation)
}

func (h *ReservationHandler) Get(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid reservation id"})
		return
	}

	reservation, err := h.reservationService.Get(c.Request.Context(), uid, id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, reservation)
}

func (h *ReservationHandler) ListActive(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	reservations, err := h.reservationService.ListActive(c.Request.Context(), uid)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if reservations == nil {
		reservations = []*entity.Reservation{}
	}
	c.JSON(http.StatusOK, reservations)
}

func (h *ReservationHandler) Cancel(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid reservation id"})
		return
	}

	if err := h.reservationService.Cancel(c.Request.Context(), uid, id); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "reservation canceled"})
}

func (h *ReservationHandler) NotificationLogs(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid reservation id"})
		return
	}

	logs, err := h.reservationService.NotificationLogs(c.Request.Context(), uid, id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if logs == nil {
		logs = []*entity.NotificationLog{}
	}
	c.JSON(http.StatusOK, logs)
}

func (h *ReservationHandler) writeError(c *gin.Context, err error) {
	var validationErr *entity.ValidationError
	switch {
	case errors.Is(err, entity.ErrActiveReservationExists):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:      validationErr.Err.Error(),
			Suggestion: validationErr.Suggestion,
		})
	case errors.Is(err, entity.ErrReservationNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, entity.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
