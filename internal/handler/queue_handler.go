package handler

import (
	"errors"
	"net/http"

	"tindahan-pos/internal/domain/sale"
	"tindahan-pos/internal/possync"
	"tindahan-pos/internal/transport/httpdto"
	"tindahan-pos/pkg/poserrors"

	"github.com/gin-gonic/gin"
)

type QueueHandler struct {
	service *possync.Service
}

func NewQueueHandler(service *possync.Service) *QueueHandler {
	return &QueueHandler{service: service}
}

// Enqueue captures a sale into the offline queue. The UI shows "queued" on
// success here, not "payment successful"; the backend has not seen the sale
// yet.
func (h *QueueHandler) Enqueue(c *gin.Context) {
	var txn sale.Transaction
	if err := c.ShouldBindJSON(&txn); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	record, err := h.service.Queue(c.Request.Context(), &txn)
	if err != nil {
		switch {
		case errors.Is(err, poserrors.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "INVALID_REQUEST"))
		case errors.Is(err, poserrors.ErrConflict):
			c.JSON(http.StatusConflict, httpdto.NewErrorResponse(err.Error(), "ALREADY_QUEUED"))
		case errors.Is(err, poserrors.ErrStoreUnavailable):
			// The sale was NOT captured. The operator must be told
			// offline mode cannot be used on this device.
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "STORE_UNAVAILABLE"))
		default:
			c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse(err.Error(), "REQUEST_FAILED"))
		}
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(record))
}

func (h *QueueHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "STORE_UNAVAILABLE"))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(stats))
}

func (h *QueueHandler) List(c *gin.Context) {
	records, err := h.service.Transactions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "STORE_UNAVAILABLE"))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(records))
}
