package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"ratpet.ai/internal/observerproto"
	"ratpet.ai/internal/sim/desktop"
	"ratpet.ai/internal/sim/tuning"
	"ratpet.ai/internal/sim/world"
)

// ErrBusy is reported to a client whose command found the world queue full.
var ErrBusy = errors.New("command queue full")

// Server exposes the world to the presentation layer: a bootstrap snapshot
// over HTTP and a websocket that streams frames and accepts commands.
type Server struct {
	world    *world.World
	monitors desktop.MonitorSource
	log      *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

// NewServer wires a server to w. monitors is read from HTTP goroutines and
// must be safe for concurrent use; it may be nil.
func NewServer(w *world.World, monitors desktop.MonitorSource, logger *log.Logger) *Server {
	return &Server{
		world:    w,
		monitors: monitors,
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only anyway
		},
	}
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

// Bootstrap builds the snapshot served at the bootstrap endpoint.
func (s *Server) Bootstrap() observerproto.BootstrapResponse {
	tun := s.world.Tuning()
	set := s.world.PublishedSettings()
	resp := observerproto.BootstrapResponse{
		ProtocolVersion: observerproto.Version,
		WorldID:         s.world.ID(),
		RunID:           s.world.RunID(),
		Tick:            s.world.CurrentTick(),
		Params: observerproto.WorldParams{
			TickMs:        tun.TickMs,
			OverlayTickMs: tun.OverlayTickMs,
			FrameSize:     tun.FrameSize,
			Seed:          s.world.Seed(),
		},
		Settings: observerproto.Settings(set),
		Frame:    s.world.LatestFrame().Message(),
	}
	if resp.Settings.AllowedMonitors == nil {
		resp.Settings.AllowedMonitors = []string{}
	}
	if s.monitors != nil {
		resp.Monitors = monitorViews(s.monitors.Monitors(), set.AllowedMonitors)
	}
	if resp.Monitors == nil {
		resp.Monitors = []observerproto.Monitor{}
	}
	return resp
}

func monitorViews(ms []desktop.Monitor, allowed []string) []observerproto.Monitor {
	out := make([]observerproto.Monitor, 0, len(ms))
	for _, m := range ms {
		ok := len(allowed) == 0
		for _, id := range allowed {
			if id == m.DeviceID {
				ok = true
				break
			}
		}
		wa, b := m.WorkArea, m.FullBounds()
		out = append(out, observerproto.Monitor{
			DeviceID: m.DeviceID,
			WorkArea: [4]float64{wa.Left, wa.Top, wa.Right, wa.Bottom},
			Bounds:   [4]float64{b.Left, b.Top, b.Right, b.Bottom},
			Primary:  m.Primary,
			Allowed:  ok,
		})
	}
	return out
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(s.Bootstrap())
	}
}

// ToCommand validates a COMMAND message and converts it for the world queue.
func ToCommand(msg observerproto.CommandMsg) (world.Command, error) {
	if msg.Type != observerproto.TypeCommand {
		return world.Command{}, fmt.Errorf("expected %s, got %q", observerproto.TypeCommand, msg.Type)
	}
	if msg.ProtocolVersion != observerproto.Version {
		return world.Command{}, fmt.Errorf("unsupported protocol_version %q", msg.ProtocolVersion)
	}
	t, err := world.ParseCommandType(msg.Command)
	if err != nil {
		return world.Command{}, err
	}
	cmd := world.Command{Type: t, X: msg.X, Y: msg.Y, HandOff: msg.HandOff}
	if msg.Settings != nil {
		set := tuning.Settings(*msg.Settings)
		cmd.Settings = &set
	}
	if t == world.CmdSetSettings && cmd.Settings == nil {
		return world.Command{}, world.ErrNoSettings
	}
	return cmd, nil
}

func (s *Server) submit(cmd world.Command) error {
	select {
	case s.world.Commands() <- cmd:
		return nil
	default:
		return ErrBusy
	}
}

func errorFrame(err error) []byte {
	b, _ := json.Marshal(observerproto.ErrorMsg{
		Type:            observerproto.TypeError,
		ProtocolVersion: observerproto.Version,
		Message:         err.Error(),
	})
	return b
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad subscribe"), time.Now().Add(time.Second))
			return
		}
		if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		frameOut := make(chan []byte, 8)
		errOut := make(chan []byte, 16)

		select {
		case s.world.ObserverJoin() <- world.ObserverJoinRequest{SessionID: sid, FrameOut: frameOut}:
		default:
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"), time.Now().Add(time.Second))
			return
		}
		s.logf("observer %s joined from %s", sid, r.RemoteAddr)
		defer func() {
			select {
			case s.world.ObserverLeave() <- sid:
			default:
				// World loop is stopping; nothing else to do.
			}
			s.logf("observer %s left", sid)
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine. It is the only writer of data frames on conn.
		writeErr := make(chan error, 1)
		go func() {
			write := func(b []byte) error {
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				return conn.WriteMessage(websocket.TextMessage, b)
			}
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-errOut:
					if err := write(b); err != nil {
						writeErr <- err
						return
					}
				case b, ok := <-frameOut:
					if !ok {
						writeErr <- nil
						return
					}
					if err := write(b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: COMMAND messages go to the world queue.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var cm observerproto.CommandMsg
			if err := json.Unmarshal(msg, &cm); err != nil {
				reply(errOut, errorFrame(fmt.Errorf("bad command: %w", err)))
				continue
			}
			if cm.Type == observerproto.TypeSubscribe {
				continue
			}
			cmd, err := ToCommand(cm)
			if err == nil {
				err = s.submit(cmd)
			}
			if err != nil {
				reply(errOut, errorFrame(err))
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// reply queues b without blocking the reader; errors are dropped when the
// client is not draining.
func reply(ch chan []byte, b []byte) {
	select {
	case ch <- b:
	default:
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
