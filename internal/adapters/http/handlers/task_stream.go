package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/longregen/parallelproof/internal/adapters/http/encoding"
	"github.com/longregen/parallelproof/internal/application/broadcast"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	maxReadBytes = 4096
)

// TaskEventSource is the subscriber side of the broadcast hub.
type TaskEventSource interface {
	Subscribe(taskID string) (*broadcast.Subscription, error)
	Unsubscribe(sub *broadcast.Subscription)
}

// TaskStreamHandler streams one task's events over a websocket. Frames are
// JSON text by default and msgpack binary with ?encoding=msgpack. Client
// messages are read only to keep the connection alive.
type TaskStreamHandler struct {
	upgrader     websocket.Upgrader
	events       TaskEventSource
	pingInterval time.Duration
	logger       *slog.Logger
}

func NewTaskStreamHandler(events TaskEventSource, allowedOrigins []string, logger *slog.Logger) *TaskStreamHandler {
	if logger == nil {
		logger = slog.Default()
	}

	allowAll := len(allowedOrigins) == 1 && allowedOrigins[0] == "*"
	allowedOriginsMap := make(map[string]bool)
	for _, origin := range allowedOrigins {
		allowedOriginsMap[origin] = true
	}

	return &TaskStreamHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowAll {
					return true
				}
				return allowedOriginsMap[origin]
			},
		},
		events:       events,
		pingInterval: 30 * time.Second,
		logger:       logger.With("component", "task_stream"),
	}
}

func (h *TaskStreamHandler) Handle(w http.ResponseWriter, r *http.Request) {
	taskID, ok := validateURLParam(r, w, "task_id", "Task ID")
	if !ok {
		return
	}
	format := encoding.FormatFromRequest(r)

	sub, err := h.events.Subscribe(taskID)
	if err != nil {
		respondError(w, "unavailable", "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.events.Unsubscribe(sub)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade websocket connection", "task_id", taskID, "error", err)
		return
	}
	defer conn.Close()

	log := h.logger.With("task_id", taskID, "encoding", format.String())
	log.Info("websocket connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		h.readPump(conn, log)
		cancel()
	}()

	h.writePump(ctx, conn, sub, format, log)
	log.Info("websocket closed")
}

func (h *TaskStreamHandler) readPump(conn *websocket.Conn, log *slog.Logger) {
	conn.SetReadLimit(maxReadBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn("websocket read error", "error", err)
			}
			return
		}
		// any client message counts as activity
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

func (h *TaskStreamHandler) writePump(ctx context.Context, conn *websocket.Conn, sub *broadcast.Subscription, format encoding.Format, log *slog.Logger) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	messageType := websocket.TextMessage
	if format.Binary() {
		messageType = websocket.BinaryMessage
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-sub.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscription ended"))
			return

		case ev := <-sub.Events():
			data, err := encoding.Marshal(ev.Payload, format)
			if err != nil {
				log.Error("failed to encode event", "event", ev.Type, "error", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(messageType, data); err != nil {
				log.Warn("failed to write event", "event", ev.Type, "error", err)
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn("failed to send ping", "error", err)
				return
			}
		}
	}
}
