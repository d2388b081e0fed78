package binding_cache

import "github.com/Carmen-Shannon/oxy-gui/engine/texture"

// bindingRequest collects the per-call options of GetOrCreateBinding.
type bindingRequest struct {
	interpolation texture.Interpolation
	alpha         float32
}

// BindingOption is a functional option applied to a single GetOrCreateBinding call.
type BindingOption func(*bindingRequest)

// WithInterpolation overrides the texture's interpolation mode. It has no effect on palettes.
//
// Parameters:
//   - mode: the sampling interpolation
//
// Returns:
//   - BindingOption: a function that sets the interpolation
func WithInterpolation(mode texture.Interpolation) BindingOption {
	return func(r *bindingRequest) {
		r.interpolation = mode
	}
}

// WithAlpha overrides the texture's alpha multiplier. The value is clamped to [0, 1]; NaN leaves the texture's
// alpha in place.
//
// Parameters:
//   - alpha: the per-set alpha
//
// Returns:
//   - BindingOption: a function that sets the alpha
func WithAlpha(alpha float32) BindingOption {
	return func(r *bindingRequest) {
		if a, ok := texture.ClampAlpha(alpha); ok {
			r.alpha = a
		}
	}
}
