package handler

import (
	"net/http"

	"tindahan-pos/internal/possync"
	"tindahan-pos/internal/transport/httpdto"
	"tindahan-pos/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type SyncHandler struct {
	service *possync.Service
	log     *logger.Logger
	up      websocket.Upgrader
}

func NewSyncHandler(service *possync.Service, log *logger.Logger) *SyncHandler {
	return &SyncHandler{
		service: service,
		log:     log,
		up: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The daemon only listens on localhost for the POS shell.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Trigger requests a sync pass ("Sync now" in the UI). Always accepted; the
// coordinator's single-flight guard and debounce absorb repeats.
func (h *SyncHandler) Trigger(c *gin.Context) {
	h.service.SyncNow()
	c.JSON(http.StatusAccepted, httpdto.NewSuccessResponse(gin.H{"triggered": true}))
}

// Progress streams sync events over a websocket until the client leaves.
func (h *SyncHandler) Progress(c *gin.Context) {
	conn, err := h.up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Errorf("progress stream: upgrade: %v", err)
		return
	}
	defer conn.Close()

	id, events := h.service.Subscribe()
	defer h.service.Unsubscribe(id)

	// Drain client frames so pings and close frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}
