package observer

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"ratpet.ai/internal/observerproto"
	"ratpet.ai/internal/sim/world"
)

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

// asJSON round-trips v so the validator sees what a client would decode.
func asJSON(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestSchemas_ValidateServerMessages(t *testing.T) {
	frameSchema := compileSchema(t, "frame.schema.json")
	bootstrapSchema := compileSchema(t, "bootstrap.schema.json")
	errorSchema := compileSchema(t, "error.schema.json")

	s, w := newTestServer(t)
	if err := bootstrapSchema.Validate(asJSON(t, s.Bootstrap())); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	now := w.Start()
	step := func(cmds ...world.Command) {
		for i := 0; i < 5; i++ {
			now = now.Add(20 * time.Millisecond)
			w.StepOverlay(now)
		}
		w.StepOnce(now, cmds)
		if err := frameSchema.Validate(asJSON(t, w.LatestFrame().Message())); err != nil {
			t.Fatalf("frame tick %d: %v", w.CurrentTick()-1, err)
		}
	}
	step(world.Command{Type: world.CmdThrowToy})
	for i := 0; i < 200; i++ {
		step()
	}

	if err := errorSchema.Validate(asJSON(t, json.RawMessage(errorFrame(world.ErrNoSettings)))); err != nil {
		t.Fatalf("error: %v", err)
	}
}

func TestSchemas_ValidateClientMessages(t *testing.T) {
	subSchema := compileSchema(t, "subscribe.schema.json")
	cmdSchema := compileSchema(t, "command.schema.json")

	sub := observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: observerproto.Version}
	if err := subSchema.Validate(asJSON(t, sub)); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	drag := observerproto.CommandMsg{Type: observerproto.TypeCommand, ProtocolVersion: observerproto.Version, Command: "DRAG_TOY", X: 5, Y: 6}
	if err := cmdSchema.Validate(asJSON(t, drag)); err != nil {
		t.Fatalf("drag: %v", err)
	}
	set := observerproto.CommandMsg{
		Type:            observerproto.TypeCommand,
		ProtocolVersion: observerproto.Version,
		Command:         "SET_SETTINGS",
		Settings:        &observerproto.Settings{Scale: 2, BaseSpeed: 6, SneakChance: 0.3, ChaosMode: true},
	}
	if err := cmdSchema.Validate(asJSON(t, set)); err != nil {
		t.Fatalf("settings: %v", err)
	}

	set.Settings = nil
	if err := cmdSchema.Validate(asJSON(t, set)); err == nil {
		t.Fatalf("SET_SETTINGS without settings should not validate")
	}
	var unknown any
	_ = json.Unmarshal([]byte(`{"type":"COMMAND","protocol_version":"0.1","command":"DANCE"}`), &unknown)
	if err := cmdSchema.Validate(unknown); err == nil {
		t.Fatalf("unknown command should not validate")
	}
}
