package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/Carmen-Shannon/oxy-gui/common"
	"github.com/Carmen-Shannon/oxy-gui/engine/profiler"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/draw_list"
	"github.com/Carmen-Shannon/oxy-gui/engine/window"

	// registers backend.TypeWGPU for the default renderer
	_ "github.com/Carmen-Shannon/oxy-gui/engine/renderer/backend/wgpu_backend"
)

// GUI builds one frame of an immediate-mode user interface.
type GUI interface {
	// Frame builds the interface from the frame's input and returns the draw data to render.
	// Textures are created and bound through r. A nil DrawData renders nothing but still presents.
	//
	// Parameters:
	//   - in: the input gathered since the previous frame
	//   - r: the renderer
	//
	// Returns:
	//   - *draw_list.DrawData: the frame's draw data, or nil
	//   - error: a fatal error that stops the engine
	Frame(in window.InputSnapshot, r renderer.Renderer) (*draw_list.DrawData, error)
}

// GUIFunc adapts a function to the GUI interface.
type GUIFunc func(in window.InputSnapshot, r renderer.Renderer) (*draw_list.DrawData, error)

// Frame calls f.
func (f GUIFunc) Frame(in window.InputSnapshot, r renderer.Renderer) (*draw_list.DrawData, error) {
	return f(in, r)
}

// engine implements the Engine interface.
type engine struct {
	window        window.Window
	windowOptions []window.WindowBuilderOption
	ownsWindow    bool

	renderer        renderer.Renderer
	rendererOptions []renderer.RendererBuilderOption
	ownsRenderer    bool

	gui GUI

	quit bool

	profiler         *profiler.Profiler
	profilerOptions  []profiler.ProfilerBuilderOption
	profilingEnabled bool

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
}

// Engine is the main entry point. It pumps one window, one GUI and one renderer on the calling goroutine:
//
//	poll window -> input snapshot -> GUI -> RenderDrawData -> EndFrame -> Present
//
// Run must be called from the goroutine that created the window.
type Engine interface {
	// Window returns the window.
	Window() window.Window

	// Renderer returns the renderer.
	Renderer() renderer.Renderer

	// SetGUI replaces the GUI built each frame.
	SetGUI(gui GUI)

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Run pumps frames until the window closes, Quit is called or a fatal error occurs. The fatal error is
	// logged and returned. A window or renderer the engine created is released before Run returns.
	//
	// Returns:
	//   - error: the fatal error, or nil on a normal shutdown
	Run() error

	// Quit stops Run after the current frame. Safe to call multiple times.
	Quit()
}

// NewEngine creates a new Engine. A window and a wgpu renderer presenting to it are created unless provided
// through WithWindow and WithRenderer.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
//   - error: a window or renderer creation error
func NewEngine(options ...EngineBuilderOption) (Engine, error) {
	e := &engine{}
	for _, opt := range options {
		opt(e)
	}
	e.profiler = profiler.NewProfiler(e.profilerOptions...)

	if e.window == nil {
		w, err := window.NewWindow(e.windowOptions...)
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		e.window = w
		e.ownsWindow = true
	}

	if e.renderer == nil {
		opts := append([]renderer.RendererBuilderOption{
			renderer.WithSurface(e.window.SurfaceDescriptor(), e.window.Width(), e.window.Height()),
		}, e.rendererOptions...)
		r, err := renderer.NewRenderer(opts...)
		if err != nil {
			e.closeWindow()
			return nil, fmt.Errorf("engine: %w", err)
		}
		e.renderer = r
		e.ownsRenderer = true
	}

	e.window.SetResizeCallback(e.renderer.Resize)
	e.window.SetCloseCallback(e.renderer.DiscardFrame)
	return e, nil
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) SetGUI(gui GUI) {
	e.gui = gui
}

func (e *engine) Run() (err error) {
	defer e.shutdown()

	// Programming-contract panics (e.g. binding a disposed texture) stop the loop like any fatal error.
	defer func() {
		if r := recover(); r != nil {
			if e.renderer.State() == renderer.FrameRecording {
				e.renderer.DiscardFrame()
				_ = e.renderer.EndFrame()
			}
			if rerr, ok := r.(error); ok {
				err = fmt.Errorf("render loop panic: %w", rerr)
			} else {
				err = fmt.Errorf("render loop panic: %v", r)
			}
			common.Logger().Error("engine stopped", "error", err)
		}
	}()

	for !e.quit && e.window.IsRunning() {
		frameStart := time.Now()
		in := e.window.PollEvents()
		if !e.window.IsRunning() {
			break
		}
		if err := e.frame(in); err != nil {
			common.Logger().Error("engine stopped", "error", err)
			return err
		}

		// Frame rate limiting
		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(frameStart); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
	return nil
}

// frame runs one frame. A discarded frame is not an error.
func (e *engine) frame(in window.InputSnapshot) error {
	// minimised
	if e.window.Width() == 0 || e.window.Height() == 0 {
		return nil
	}
	r := e.renderer
	if err := r.BeginFrame(); err != nil {
		return err
	}

	var stats draw_list.ReplayStats
	if e.gui != nil {
		dd, err := e.gui.Frame(in, r)
		if err != nil {
			r.DiscardFrame()
			_ = r.EndFrame()
			return fmt.Errorf("gui: %w", err)
		}
		if dd != nil {
			stats, err = r.RenderDrawData(dd)
			if errors.Is(err, renderer.ErrFrameDiscarded) {
				_ = r.EndFrame()
				return nil
			}
			if err != nil {
				return err
			}
		}
	}

	if err := r.EndFrame(); err != nil {
		if errors.Is(err, renderer.ErrFrameDiscarded) {
			return nil
		}
		return err
	}
	r.Present()

	if e.profilingEnabled {
		e.profiler.Tick(profiler.Frame{
			Replay:          stats,
			Cache:           r.CacheStats(),
			PendingReleases: r.Backend().PendingReleases(),
		})
	}
	return nil
}

func (e *engine) shutdown() {
	if e.ownsRenderer {
		e.renderer.Release()
	}
	e.closeWindow()
}

func (e *engine) closeWindow() {
	if !e.ownsWindow {
		return
	}
	if err := e.window.Close(); err != nil {
		common.Logger().Warn("close window", "error", err)
	}
}

// Quit stops the engine after the current frame.
func (e *engine) Quit() {
	e.quit = true
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}
