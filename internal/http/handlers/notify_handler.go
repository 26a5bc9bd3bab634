// README: Websocket push of the caller's notification channels.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"homefix/internal/http/middleware"
	"homefix/internal/logging"
	"homefix/internal/notify"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type NotifyHandler struct {
	hub *notify.Hub
	log logrus.FieldLogger
}

func NewNotifyHandler(hub *notify.Hub, log logrus.FieldLogger) *NotifyHandler {
	return &NotifyHandler{hub: hub, log: logging.OrDiscard(log)}
}

// Stream subscribes the connection to the caller's own channel and its role broadcast.
// The protocol is server push only; client messages are read and discarded.
func (h *NotifyHandler) Stream(c *gin.Context) {
	actor := middleware.CallerActor(c)
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	sub := h.hub.Subscribe(notify.ChannelsFor(actor)...)
	log := h.log.WithFields(logrus.Fields{"actor": actor.ID, "role": actor.Role})
	log.WithField("channels", sub.Channels()).Debug("notification stream opened")

	done := make(chan struct{})
	go func() {
		defer close(done)
		ws.SetReadLimit(512)
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.Close()
		_ = ws.Close()
		log.Debug("notification stream closed")
	}()
	for {
		select {
		case <-done:
			return
		case d, ok := <-sub.Events():
			if !ok {
				return
			}
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(d); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
