package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/media-queue-go/internal/app"
)

const (
	writeWait       = 10 * time.Second
	maxMessageSize  = 64 * 1024
	replyBuffer     = 16
	defaultPingWait = 30 * time.Second
)

// Inbound event names
const (
	inAddToQueue      = "add_to_queue"
	inRemoveFromQueue = "remove_from_queue"
	inClearQueue      = "clear_queue"
	inStartQueue      = "start_queue_download"
	inStopQueue       = "stop_queue_download"
	inCancelDownload  = "cancel_download"
	inGetVideoInfo    = "get_video_info"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type jobRef struct {
	ID string `json:"id"`
}

type videoInfoRequest struct {
	URL   string `json:"url"`
	Index int    `json:"index"`
}

// SocketHandler serves the realtime channel: it streams orchestrator events
// and accepts queue commands from the client.
type SocketHandler struct {
	orch         *app.Orchestrator
	logger       *zap.Logger
	pingInterval time.Duration
}

// NewSocketHandler creates a new realtime handler
func NewSocketHandler(orch *app.Orchestrator, logger *zap.Logger) *SocketHandler {
	return &SocketHandler{
		orch:         orch,
		logger:       logger,
		pingInterval: defaultPingWait,
	}
}

// HandleWebSocket handles GET /ws
func (h *SocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.logger.Info("WebSocket client connected", zap.String("remote_addr", c.Request.RemoteAddr))
	defer h.logger.Info("WebSocket client disconnected", zap.String("remote_addr", c.Request.RemoteAddr))

	if err := writeFrame(conn, Frame{Event: frameConnected, Data: gin.H{"status": "ready"}}); err != nil {
		return
	}

	// The first event on a fresh subscription is the current queue
	sub := h.orch.Subscribe()
	defer h.orch.Unsubscribe(sub)

	replies := make(chan Frame, replyBuffer)
	done := make(chan struct{})
	go h.readLoop(ctx, conn, replies, done)

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			for _, frame := range eventFrames(ev) {
				if err := writeFrame(conn, frame); err != nil {
					h.logger.Debug("Failed to send event", zap.Error(err))
					return
				}
			}

		case frame := <-replies:
			if err := writeFrame(conn, frame); err != nil {
				h.logger.Debug("Failed to send reply", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}

func (h *SocketHandler) readLoop(ctx context.Context, conn *websocket.Conn, replies chan<- Frame, done chan<- struct{}) {
	defer close(done)

	pongWait := 2 * h.pingInterval
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	reply := func(frame Frame) {
		select {
		case replies <- frame:
		case <-ctx.Done():
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var in inboundFrame
		if err := json.Unmarshal(data, &in); err != nil {
			reply(Frame{Event: frameError, Data: errorPayload{Msg: "invalid message"}})
			continue
		}
		h.dispatch(ctx, in, reply)
	}
}

// dispatch applies one client command. Queue state changes reach the client
// through the event stream; only failures and previews are answered directly.
func (h *SocketHandler) dispatch(ctx context.Context, in inboundFrame, reply func(Frame)) {
	fail := func(err error, id string) {
		reply(Frame{Event: frameError, Data: errorPayload{Msg: errorMessage(err), ID: id}})
	}

	switch in.Event {
	case inAddToQueue:
		var req EnqueueRequest
		if !decodeData(in.Data, &req, reply) {
			return
		}
		result, err := h.orch.Enqueue(req.AllURLs(), req.Format, req.Quality)
		if result != nil {
			for _, rej := range result.Rejected {
				reply(Frame{Event: frameError, Data: errorPayload{Msg: "rejected " + rej.URL + ": " + rej.Reason}})
			}
		}
		if err != nil {
			fail(err, "")
		}

	case inRemoveFromQueue:
		var ref jobRef
		if !decodeData(in.Data, &ref, reply) {
			return
		}
		if _, err := h.orch.Remove(ref.ID); err != nil {
			fail(err, ref.ID)
		}

	case inClearQueue:
		h.orch.Clear()

	case inStartQueue:
		h.orch.StartQueue()

	case inStopQueue:
		h.orch.StopQueue()

	case inCancelDownload:
		var ref jobRef
		if !decodeData(in.Data, &ref, reply) {
			return
		}
		if err := h.orch.Cancel(ref.ID); err != nil {
			fail(err, ref.ID)
		}

	case inGetVideoInfo:
		var req videoInfoRequest
		if !decodeData(in.Data, &req, reply) {
			return
		}
		go func() {
			payload := videoInfoPayload{URL: req.URL, Index: req.Index}
			info, err := h.orch.Preview(ctx, req.URL)
			if err != nil {
				payload.Error = errorMessage(err)
			} else {
				payload.VideoInfo = info
			}
			reply(Frame{Event: frameVideoInfo, Data: payload})
		}()

	default:
		reply(Frame{Event: frameError, Data: errorPayload{Msg: "unknown event: " + in.Event}})
	}
}

func decodeData(raw json.RawMessage, v any, reply func(Frame)) bool {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		reply(Frame{Event: frameError, Data: errorPayload{Msg: "invalid message data"}})
		return false
	}
	return true
}

func writeFrame(conn *websocket.Conn, frame Frame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(frame)
}
