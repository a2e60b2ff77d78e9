package hostapi

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/starfleet/internal/logging"
	"github.com/signalsfoundry/starfleet/picking"
	"github.com/signalsfoundry/starfleet/scene"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 10
)

// Inbound message types on the frame stream.
const (
	MessagePointer     = "pointer"
	MessageSelect      = "select"
	MessageInteraction = "interaction"
	MessageViewport    = "viewport"
)

// InboundMessage is renderer input sent over the frame stream, so pointer
// moves need no request per event.
type InboundMessage struct {
	Type   string  `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Click  bool    `json:"click"`
	Leave  bool    `json:"leave"`
	ShipID string  `json:"ship_id"`
	Active bool    `json:"active"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
}

func (m InboundMessage) command() (scene.Command, bool) {
	switch m.Type {
	case MessagePointer:
		if m.X < -1 || m.X > 1 || m.Y < -1 || m.Y > 1 {
			return nil, false
		}
		return scene.PointerCommand{Pointer: picking.Pointer{X: m.X, Y: m.Y}, Click: m.Click, Leave: m.Leave}, true
	case MessageSelect:
		return scene.SelectCommand{ShipID: m.ShipID}, true
	case MessageInteraction:
		return scene.InteractionCommand{Active: m.Active}, true
	case MessageViewport:
		if m.Width <= 0 || m.Height <= 0 {
			return nil, false
		}
		return scene.ViewportCommand{Width: m.Width, Height: m.Height}, true
	}
	return nil, false
}

// streamFrames pushes every new frame to the client and applies the input
// messages it sends back.
func (s *Server) streamFrames(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the request.
		return
	}
	defer conn.Close()

	ctx, log := logging.WithSessionLogger(r.Context(), s.log)
	log.Debug(ctx, "frame stream opened", logging.String("remote", r.RemoteAddr))

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.readInput(ctx, conn, log)
	}()

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	var last uint64
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(writeWait))
			return
		case <-done:
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-ticker.C:
			f := s.engine.Frame()
			if f == nil || f.Seq == last {
				continue
			}
			last = f.Seq
			payload, err := json.Marshal(f)
			if err != nil {
				log.Warn(ctx, "encode frame", logging.Err(err))
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

func (s *Server) readInput(ctx context.Context, conn *websocket.Conn, log logging.Logger) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug(ctx, "frame stream closed", logging.Err(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debug(ctx, "ignoring malformed stream message", logging.Err(err))
			continue
		}
		cmd, ok := msg.command()
		if !ok {
			log.Debug(ctx, "ignoring stream message", logging.String("type", msg.Type))
			continue
		}
		if err := s.engine.Enqueue(cmd); err != nil {
			log.Warn(ctx, "dropping stream input", logging.Err(err))
		}
	}
}
