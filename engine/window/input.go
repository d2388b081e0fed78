package window

// MouseButton indexes InputSnapshot.MouseDown.
type MouseButton int

const (
	MouseButtonLeft MouseButton = iota
	MouseButtonRight
	MouseButtonMiddle
	mouseButtonCount
)

// Modifier is a bit set of held modifier keys.
type Modifier uint32

const (
	ModShift Modifier = 1 << iota
	ModControl
	ModAlt
	ModSuper
)

// KeyEvent is one key transition. Key is the GLFW key code.
type KeyEvent struct {
	Key    uint32
	Down   bool
	Repeat bool
	Mods   Modifier
}

// Metrics are the display measurements reported with every snapshot.
type Metrics struct {
	// DisplaySize is the window size in screen coordinates.
	DisplaySize [2]float32
	// FramebufferScale converts screen coordinates to framebuffer pixels.
	FramebufferScale [2]float32
	Focused          bool
}

// InputSnapshot is the input gathered between two PollEvents calls.
type InputSnapshot struct {
	Metrics

	// DeltaTime is the time since the previous snapshot in seconds.
	DeltaTime float32
	// MousePos is the last cursor position in screen coordinates, or -1, -1 when the cursor left the window.
	MousePos [2]float32
	// MouseDown holds the current state of each button. A press and release inside one poll still reports down
	// so short clicks are not lost.
	MouseDown [mouseButtonCount]bool
	// Wheel is the accumulated scroll, x then y. Positive y scrolls up.
	Wheel [2]float32
	// Keys are the key transitions in arrival order.
	Keys []KeyEvent
	// Chars is the text typed, in arrival order.
	Chars []rune
	Mods  Modifier
}

// inputState accumulates platform callbacks into snapshots.
type inputState struct {
	last      float64
	started   bool
	mousePos  [2]float32
	mouseDown [mouseButtonCount]bool
	clicked   [mouseButtonCount]bool
	wheel     [2]float32
	keys      []KeyEvent
	chars     []rune
	mods      Modifier
}

func newInputState() *inputState {
	return &inputState{mousePos: [2]float32{-1, -1}}
}

func (s *inputState) cursor(x, y float64) {
	s.mousePos = [2]float32{float32(x), float32(y)}
}

func (s *inputState) cursorLeft() {
	s.mousePos = [2]float32{-1, -1}
}

func (s *inputState) button(b MouseButton, down bool) {
	if b < 0 || b >= mouseButtonCount {
		return
	}
	s.mouseDown[b] = down
	if down {
		s.clicked[b] = true
	}
}

func (s *inputState) scroll(x, y float64) {
	s.wheel[0] += float32(x)
	s.wheel[1] += float32(y)
}

func (s *inputState) key(e KeyEvent) {
	s.mods = e.Mods
	s.keys = append(s.keys, e)
}

func (s *inputState) char(r rune) {
	s.chars = append(s.chars, r)
}

// snapshot returns the accumulated input and resets the per-poll accumulators.
func (s *inputState) snapshot(now float64, m Metrics) InputSnapshot {
	snap := InputSnapshot{
		Metrics:  m,
		MousePos: s.mousePos,
		Wheel:    s.wheel,
		Keys:     s.keys,
		Chars:    s.chars,
		Mods:     s.mods,
	}
	for i := range s.mouseDown {
		snap.MouseDown[i] = s.mouseDown[i] || s.clicked[i]
	}
	if s.started && now > s.last {
		snap.DeltaTime = float32(now - s.last)
	} else {
		snap.DeltaTime = 1.0 / 60
	}
	s.last = now
	s.started = true

	s.clicked = [mouseButtonCount]bool{}
	s.wheel = [2]float32{}
	s.keys = nil
	s.chars = nil
	return snap
}
