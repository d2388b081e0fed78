package window

import "testing"

func TestInputSnapshotResetsAccumulators(t *testing.T) {
	s := newInputState()
	m := Metrics{DisplaySize: [2]float32{640, 480}, FramebufferScale: [2]float32{2, 2}}

	first := s.snapshot(1.0, m)
	if first.DeltaTime != 1.0/60 {
		t.Errorf("first DeltaTime = %v, want 1/60", first.DeltaTime)
	}
	if first.MousePos != [2]float32{-1, -1} {
		t.Errorf("MousePos = %v, want -1, -1 before any movement", first.MousePos)
	}

	s.cursor(10, 20)
	s.scroll(0, 1)
	s.scroll(0.5, 2)
	s.key(KeyEvent{Key: 65, Down: true, Mods: ModShift})
	s.char('A')
	s.char('b')

	snap := s.snapshot(1.25, m)
	if snap.DeltaTime != 0.25 {
		t.Errorf("DeltaTime = %v, want 0.25", snap.DeltaTime)
	}
	if snap.MousePos != [2]float32{10, 20} {
		t.Errorf("MousePos = %v", snap.MousePos)
	}
	if snap.Wheel != [2]float32{0.5, 3} {
		t.Errorf("Wheel = %v, want [0.5 3]", snap.Wheel)
	}
	if len(snap.Keys) != 1 || snap.Mods != ModShift {
		t.Errorf("Keys = %v, Mods = %v", snap.Keys, snap.Mods)
	}
	if string(snap.Chars) != "Ab" {
		t.Errorf("Chars = %q, want %q", string(snap.Chars), "Ab")
	}
	if snap.FramebufferScale != m.FramebufferScale {
		t.Errorf("FramebufferScale = %v", snap.FramebufferScale)
	}

	next := s.snapshot(1.5, m)
	if next.Wheel != [2]float32{} || len(next.Keys) != 0 || len(next.Chars) != 0 {
		t.Errorf("accumulators not reset: %+v", next)
	}
	if next.MousePos != [2]float32{10, 20} {
		t.Errorf("MousePos not retained: %v", next.MousePos)
	}
}

func TestShortClickIsReported(t *testing.T) {
	s := newInputState()
	s.button(MouseButtonLeft, true)
	s.button(MouseButtonLeft, false)

	if snap := s.snapshot(0, Metrics{}); !snap.MouseDown[MouseButtonLeft] {
		t.Error("press and release in one poll lost the click")
	}
	if snap := s.snapshot(0.1, Metrics{}); snap.MouseDown[MouseButtonLeft] {
		t.Error("released button still down in the next poll")
	}

	s.button(MouseButtonRight, true)
	s.snapshot(0.2, Metrics{})
	if snap := s.snapshot(0.3, Metrics{}); !snap.MouseDown[MouseButtonRight] {
		t.Error("held button not reported down")
	}
	s.button(MouseButton(7), true)
}

func TestCursorLeft(t *testing.T) {
	s := newInputState()
	s.cursor(5, 5)
	s.cursorLeft()
	if snap := s.snapshot(0, Metrics{}); snap.MousePos != [2]float32{-1, -1} {
		t.Errorf("MousePos = %v, want -1, -1", snap.MousePos)
	}
}
