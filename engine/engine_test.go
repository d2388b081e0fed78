package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Carmen-Shannon/oxy-gui/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/binding_cache"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/draw_list"
	"github.com/Carmen-Shannon/oxy-gui/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
)

// fakeWindow runs for a fixed number of polls.
type fakeWindow struct {
	polls, maxPolls int
	width, height   int
	closed          bool
	onResize        func(width, height int)
	onClose         func()
}

func (w *fakeWindow) PollEvents() window.InputSnapshot {
	w.polls++
	if w.polls > w.maxPolls {
		if w.onClose != nil {
			w.onClose()
		}
		w.closed = true
	}
	return window.InputSnapshot{
		Metrics:   window.Metrics{DisplaySize: [2]float32{float32(w.width), float32(w.height)}, FramebufferScale: [2]float32{1, 1}},
		DeltaTime: 1.0 / 60,
	}
}

func (w *fakeWindow) resize(width, height int) {
	w.width, w.height = width, height
	if w.onResize != nil {
		w.onResize(width, height)
	}
}

func (w *fakeWindow) SetResizeCallback(callback func(width, height int)) { w.onResize = callback }
func (w *fakeWindow) SetCloseCallback(callback func())                   { w.onClose = callback }
func (w *fakeWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor         { return nil }
func (w *fakeWindow) IsRunning() bool                                    { return !w.closed }
func (w *fakeWindow) Close() error                                       { w.closed = true; return nil }
func (w *fakeWindow) Width() int                                         { return w.width }
func (w *fakeWindow) Height() int                                        { return w.height }

func newTestEngine(t *testing.T, polls int, gui GUI) (Engine, *fakeWindow, backend.RecordingBackend) {
	t.Helper()
	b := backend.NewRecordingBackend(backend.WithSurface(nil, 100, 100), backend.WithAutoRetire(true))
	r, err := renderer.NewRenderer(renderer.WithBackend(b))
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	t.Cleanup(r.Release)
	w := &fakeWindow{maxPolls: polls, width: 100, height: 100}
	e, err := NewEngine(WithWindow(w), WithRenderer(r), WithGUI(gui), WithProfiling(true))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e, w, b
}

func fontQuad(in window.InputSnapshot, h binding_cache.Handle) *draw_list.DrawData {
	return &draw_list.DrawData{
		DisplaySize:      in.DisplaySize,
		FramebufferScale: in.FramebufferScale,
		Lists: []draw_list.CmdList{{
			Vertices: []draw_list.Vertex{{Pos: [2]float32{0, 0}}, {Pos: [2]float32{10, 0}}, {Pos: [2]float32{10, 10}}},
			Indices:  []uint16{0, 1, 2},
			Commands: []draw_list.DrawCmd{{ElemCount: 3, ClipRect: draw_list.NoClip, TextureID: h}},
		}},
	}
}

func TestRunPumpsFrames(t *testing.T) {
	frames := 0
	gui := GUIFunc(func(in window.InputSnapshot, r renderer.Renderer) (*draw_list.DrawData, error) {
		frames++
		return fontQuad(in, r.FontTextureID()), nil
	})
	e, w, b := newTestEngine(t, 5, gui)

	if err := e.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if frames != 5 {
		t.Errorf("GUI frames = %d, want 5", frames)
	}
	if submitted, _ := b.Generation(); submitted != 5 {
		t.Errorf("submitted frames = %d, want 5", submitted)
	}
	if len(b.Draws()) != 5 {
		t.Errorf("draws = %d, want 5", len(b.Draws()))
	}
	if v := b.Violations(); len(v) != 0 {
		t.Errorf("violations = %v", v)
	}
	if !w.closed {
		t.Error("window still open")
	}
}

func TestNilDrawDataStillPresents(t *testing.T) {
	gui := GUIFunc(func(window.InputSnapshot, renderer.Renderer) (*draw_list.DrawData, error) {
		return nil, nil
	})
	e, _, b := newTestEngine(t, 2, gui)
	if err := e.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	presents := 0
	for _, c := range b.Commands() {
		if c.Op == backend.OpPresent {
			presents++
		}
	}
	if presents != 2 {
		t.Errorf("presents = %d, want 2", presents)
	}
}

func TestResizeMidFrameSkipsFrame(t *testing.T) {
	var w *fakeWindow
	frames := 0
	gui := GUIFunc(func(in window.InputSnapshot, r renderer.Renderer) (*draw_list.DrawData, error) {
		frames++
		if frames == 2 {
			w.resize(80, 60)
		}
		return fontQuad(in, r.FontTextureID()), nil
	})
	e, fw, b := newTestEngine(t, 3, gui)
	w = fw

	if err := e.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if submitted, _ := b.Generation(); submitted != 2 {
		t.Errorf("submitted frames = %d, want 2", submitted)
	}
	if width, height := b.SurfaceSize(); width != 80 || height != 60 {
		t.Errorf("SurfaceSize() = %dx%d, want 80x60", width, height)
	}
	if v := b.Violations(); len(v) != 0 {
		t.Errorf("violations = %v", v)
	}
}

func TestGUIErrorStopsEngine(t *testing.T) {
	errBoom := errors.New("boom")
	gui := GUIFunc(func(window.InputSnapshot, renderer.Renderer) (*draw_list.DrawData, error) {
		return nil, errBoom
	})
	e, _, _ := newTestEngine(t, 10, gui)

	if err := e.Run(); !errors.Is(err, errBoom) {
		t.Fatalf("Run() error = %v, want errBoom", err)
	}
	if e.Renderer().State() != renderer.FrameIdle {
		t.Errorf("renderer state = %s, want idle", e.Renderer().State())
	}
}

func TestUnknownBindingStopsEngine(t *testing.T) {
	gui := GUIFunc(func(in window.InputSnapshot, r renderer.Renderer) (*draw_list.DrawData, error) {
		return fontQuad(in, 12345), nil
	})
	e, _, _ := newTestEngine(t, 10, gui)
	if err := e.Run(); !errors.Is(err, draw_list.ErrUnknownBinding) {
		t.Fatalf("Run() error = %v, want ErrUnknownBinding", err)
	}
}

func TestDisposedBindingPanicStopsEngine(t *testing.T) {
	gui := GUIFunc(func(in window.InputSnapshot, r renderer.Renderer) (*draw_list.DrawData, error) {
		tex, err := r.CreateTexture(4, 4, false)
		if err != nil {
			return nil, fmt.Errorf("create: %w", err)
		}
		tex.Dispose()
		_, _ = r.GetOrCreateBinding(tex)
		return nil, nil
	})
	e, _, _ := newTestEngine(t, 10, gui)

	err := e.Run()
	if !errors.Is(err, binding_cache.ErrTextureDisposed) {
		t.Fatalf("Run() error = %v, want ErrTextureDisposed", err)
	}
	if e.Renderer().State() != renderer.FrameIdle {
		t.Errorf("renderer state = %s, want idle", e.Renderer().State())
	}
}

func TestQuit(t *testing.T) {
	var e Engine
	frames := 0
	gui := GUIFunc(func(window.InputSnapshot, renderer.Renderer) (*draw_list.DrawData, error) {
		frames++
		e.Quit()
		return nil, nil
	})
	e, _, _ = newTestEngine(t, 10, gui)
	if err := e.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if frames != 1 {
		t.Errorf("frames = %d, want 1", frames)
	}
}

func TestMinimisedWindowSkipsFrames(t *testing.T) {
	frames := 0
	gui := GUIFunc(func(window.InputSnapshot, renderer.Renderer) (*draw_list.DrawData, error) {
		frames++
		return nil, nil
	})
	e, w, _ := newTestEngine(t, 3, gui)
	w.width, w.height = 0, 0
	if err := e.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if frames != 0 {
		t.Errorf("frames = %d, want 0", frames)
	}
}
