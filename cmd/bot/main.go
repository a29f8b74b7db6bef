package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"ratpet.ai/internal/observerproto"
)

// The bot plays the presentation layer: it subscribes to frames, logs state
// changes and pokes the agent with toy and pointer commands.
func main() {
	var (
		url   = flag.String("url", "ws://127.0.0.1:8080/observer/ws", "observer ws url")
		every = flag.Uint64("every", 50, "send a command every N frames (0 disables)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: observerproto.Version}
	if err := conn.WriteJSON(sub); err != nil {
		logger.Fatalf("send SUBSCRIBE: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	var lastState string
	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var base struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}
		switch base.Type {
		case observerproto.TypeError:
			var e observerproto.ErrorMsg
			if err := json.Unmarshal(msg, &e); err == nil {
				logger.Printf("ERROR %s", e.Message)
			}
		case observerproto.TypeFrame:
			var f observerproto.FrameMsg
			if err := json.Unmarshal(msg, &f); err != nil {
				continue
			}
			if f.Agent.State != lastState {
				logger.Printf("tick=%d state=%s pos=%.0f,%.0f facing=%s", f.Tick, f.Agent.State, f.Agent.Pos[0], f.Agent.Pos[1], f.Agent.Facing)
				lastState = f.Agent.State
			}
			if f.Bubble != nil && f.Bubble.Opacity == 1 {
				logger.Printf("tick=%d says %q", f.Tick, f.Bubble.Text)
			}
			if *every > 0 && f.Tick > 0 && f.Tick%*every == 0 {
				_ = conn.WriteJSON(nextCommand(r, &f))
			}
		}
	}
}

func nextCommand(r *rand.Rand, f *observerproto.FrameMsg) observerproto.CommandMsg {
	cmd := observerproto.CommandMsg{Type: observerproto.TypeCommand, ProtocolVersion: observerproto.Version}
	x, y := f.Agent.Pos[0], f.Agent.Pos[1]
	switch {
	case f.Toy == nil && r.Intn(2) == 0:
		cmd.Command = "THROW_TOY"
	case f.Toy != nil && !f.Toy.Following && r.Intn(3) == 0:
		cmd.Command = "FOLLOW_START"
	case f.Toy != nil && f.Toy.Following:
		cmd.Command = "FOLLOW_STOP"
	case r.Intn(2) == 0:
		cmd.Command = "FEED"
	default:
		cmd.Command = "MOVE_POINTER"
		cmd.X = x + float64(r.Intn(401)-200)
		cmd.Y = y + float64(r.Intn(401)-200)
	}
	return cmd
}
