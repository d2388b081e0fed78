package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-gui/engine/profiler"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gui/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithProfilerOptions configures the profiler.
func WithProfilerOptions(options ...profiler.ProfilerBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.profilerOptions = append(e.profilerOptions, options...)
	}
}

// WithWindow sets a custom configured window for the engine to use rather than allowing the engine
// to create and manage one internally. The caller keeps ownership of the window.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithWindowOptions configures the window the engine creates when none is provided.
//
// Parameters:
//   - options: window builder options such as window.WithTitle
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindowOptions(options ...window.WindowBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.windowOptions = append(e.windowOptions, options...)
	}
}

// WithRenderer sets a renderer for the engine to drive rather than creating one presenting to the window.
// The caller keeps ownership of the renderer.
//
// Parameters:
//   - r: the renderer
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderer(r renderer.Renderer) EngineBuilderOption {
	return func(e *engine) {
		e.renderer = r
	}
}

// WithRendererOptions configures the renderer the engine creates when none is provided. The surface option is
// supplied by the engine.
//
// Parameters:
//   - options: renderer builder options such as renderer.WithClearColor
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRendererOptions(options ...renderer.RendererBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.rendererOptions = append(e.rendererOptions, options...)
	}
}

// WithGUI sets the GUI built each frame.
//
// Parameters:
//   - gui: the GUI
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithGUI(gui GUI) EngineBuilderOption {
	return func(e *engine) {
		e.gui = gui
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderFrameLimit = 0
			return
		}
		e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
	}
}
