package handler

import (
	"net/http"

	"tindahan-pos/internal/possync"
	"tindahan-pos/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type ConnectivityHandler struct {
	service *possync.Service
}

func NewConnectivityHandler(service *possync.Service) *ConnectivityHandler {
	return &ConnectivityHandler{service: service}
}

func (h *ConnectivityHandler) State(c *gin.Context) {
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(h.service.Connectivity()))
}

// ReportOnline ingests the platform's online event from the UI shell. The
// monitor verifies reachability before flipping, so the response carries the
// state actually reached.
func (h *ConnectivityHandler) ReportOnline(c *gin.Context) {
	online := h.service.ReportOnline(c.Request.Context())
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"online": online}))
}

func (h *ConnectivityHandler) ReportOffline(c *gin.Context) {
	h.service.ReportOffline()
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"online": false}))
}
