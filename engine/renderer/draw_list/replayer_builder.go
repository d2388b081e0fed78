package draw_list

import "github.com/Carmen-Shannon/oxy-gui/engine/renderer/backend"

// ReplayerBuilderOption is a functional option used to configure a Replayer during construction.
type ReplayerBuilderOption func(*replayer)

// WithTarget renders into tex instead of the surface.
//
// Parameters:
//   - tex: a texture created with backend.TextureUsageRenderTarget
//
// Returns:
//   - ReplayerBuilderOption: a function that sets the target
func WithTarget(tex backend.Texture) ReplayerBuilderOption {
	return func(r *replayer) {
		r.target = tex
	}
}

// WithLoadOp selects whether the UI pass clears the target or draws over its contents. Defaults to LoadOpClear.
func WithLoadOp(op backend.LoadOp) ReplayerBuilderOption {
	return func(r *replayer) {
		r.load = op
	}
}

// WithClearColor sets the clear colour. Defaults to opaque black.
func WithClearColor(c [4]float64) ReplayerBuilderOption {
	return func(r *replayer) {
		r.clearColor = c
	}
}
