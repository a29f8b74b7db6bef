package desktop

import (
	"errors"
	"testing"

	"ratpet.ai/internal/sim/geom"
)

func testDesktop() (*Virtual, Handle, Handle, Handle) {
	v := NewVirtual(Monitor{DeviceID: "A", WorkArea: geom.R(0, 0, 1000, 800), Primary: true})
	back := v.AddWindow(VirtualWindow{Title: "back", Bounds: geom.R(0, 0, 500, 500)})
	front := v.AddWindow(VirtualWindow{Title: "front", Bounds: geom.R(100, 100, 400, 400)})
	pet := v.AddWindow(VirtualWindow{Title: "pet", Bounds: geom.XYWH(50, 50, 64, 64), Topmost: true})
	return v, back, front, pet
}

func TestVirtual_stackingBands(t *testing.T) {
	v, back, front, pet := testDesktop()
	order := v.Order()
	if len(order) != 3 || order[0] != pet || order[1] != front || order[2] != back {
		t.Fatalf("order=%v", order)
	}

	// dropping the pet directly behind back clears topmost
	if err := v.SetZOrder(pet, InsertNoTopmost, geom.Rect{}, Keep); err != nil {
		t.Fatalf("no-topmost: %v", err)
	}
	if err := v.SetZOrder(pet, back, geom.Rect{}, Keep); err != nil {
		t.Fatalf("after back: %v", err)
	}
	order = v.Order()
	if order[2] != pet {
		t.Fatalf("pet should be last, order=%v", order)
	}
	w, _ := v.Window(pet)
	if w.Topmost {
		t.Fatalf("pet should have lost topmost")
	}

	if err := v.SetZOrder(pet, InsertTopmost, geom.Rect{}, Keep); err != nil {
		t.Fatalf("topmost: %v", err)
	}
	if v.Order()[0] != pet {
		t.Fatalf("pet should be first")
	}
	// InsertTop on a normal window never outranks the topmost band
	if err := v.SetZOrder(back, InsertTop, geom.Rect{}, Keep); err != nil {
		t.Fatalf("top: %v", err)
	}
	order = v.Order()
	if order[0] != pet || order[1] != back {
		t.Fatalf("order=%v", order)
	}
}

func TestVirtual_windowAtAndMove(t *testing.T) {
	v, back, front, _ := testDesktop()
	h, err := v.WindowAt(geom.Pt(200, 200))
	if err != nil || h != front {
		t.Fatalf("WindowAt=%v,%v want front", h, err)
	}
	if err := v.Minimize(front); err != nil {
		t.Fatalf("minimize: %v", err)
	}
	if h, _ := v.WindowAt(geom.Pt(200, 200)); h != back {
		t.Fatalf("minimized window should not be hit")
	}
	if _, err := v.WindowAt(geom.Pt(900, 700)); !errors.Is(err, ErrNoWindow) {
		t.Fatalf("expected ErrNoWindow, got %v", err)
	}

	// move keeps size when NoSize is set
	if err := v.SetZOrder(back, None, geom.XYWH(10, 20, 1, 1), NoSize|NoZOrder|NoActivate); err != nil {
		t.Fatalf("move: %v", err)
	}
	r, _ := v.Bounds(back)
	if r != geom.R(10, 20, 510, 520) {
		t.Fatalf("bounds=%v", r)
	}
}

func TestVirtual_staleHandles(t *testing.T) {
	v, back, front, pet := testDesktop()
	v.Close(front)
	if _, err := v.Bounds(front); !errors.Is(err, ErrStale) {
		t.Fatalf("Bounds: %v", err)
	}
	if err := v.Minimize(front); !errors.Is(err, ErrStale) {
		t.Fatalf("Minimize: %v", err)
	}
	if err := v.SetZOrder(pet, front, geom.Rect{}, Keep); !errors.Is(err, ErrStale) {
		t.Fatalf("SetZOrder after stale: %v", err)
	}
	if _, err := v.RootAncestor(front); !errors.Is(err, ErrStale) {
		t.Fatalf("RootAncestor: %v", err)
	}
	if _, err := v.Bounds(back); err != nil {
		t.Fatalf("live window: %v", err)
	}
}

func TestVirtual_rootAncestorAndCaption(t *testing.T) {
	v := NewVirtual(Monitor{DeviceID: "A", WorkArea: geom.R(0, 0, 1000, 800)})
	root := v.AddWindow(VirtualWindow{Title: "app", Bounds: geom.R(0, 0, 800, 600), DPI: 192})
	child := v.AddWindow(VirtualWindow{Title: "dialog", Bounds: geom.R(100, 100, 300, 300), Parent: root})
	got, err := v.RootAncestor(child)
	if err != nil || got != root {
		t.Fatalf("RootAncestor=%v,%v", got, err)
	}
	m, _ := v.CaptionMetrics(root)
	if m.ButtonWidth != 2*DefaultCaption.ButtonWidth || m.CaptionHeight != 2*DefaultCaption.CaptionHeight {
		t.Fatalf("caption at 192 dpi=%+v", m)
	}
}

func TestVirtual_foregroundFollowsMinimize(t *testing.T) {
	v, _, front, pet := testDesktop()
	v.SetForeground(front)
	_ = v.Minimize(front)
	fg, err := v.Foreground()
	if err != nil {
		t.Fatalf("foreground: %v", err)
	}
	if fg != pet {
		t.Fatalf("foreground=%v want frontmost visible %v", fg, pet)
	}
}
