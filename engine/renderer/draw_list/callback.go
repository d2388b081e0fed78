package draw_list

import "github.com/Carmen-Shannon/oxy-gui/engine/texture"

// FrameState is the render state callbacks act on. It is reset at the start of every Replay.
type FrameState struct {
	// Alpha is the global alpha multiplier written to the frame uniforms.
	Alpha float32
	// Interpolation replaces every batch's sampling mode while OverrideInterpolation is set.
	Interpolation         texture.Interpolation
	OverrideInterpolation bool
}

func defaultFrameState() FrameState {
	return FrameState{Alpha: 1}
}

// Callback is a state change embedded in the command stream.
type Callback interface {
	apply(s *FrameState)
}

// CallbackSetAlpha sets the global alpha for the following batches.
type CallbackSetAlpha struct {
	Alpha float32
}

func (c CallbackSetAlpha) apply(s *FrameState) {
	s.Alpha = min(max(c.Alpha, 0), 1)
}

// CallbackSetInterpolation forces an interpolation mode on the following batches.
type CallbackSetInterpolation struct {
	Mode texture.Interpolation
}

func (c CallbackSetInterpolation) apply(s *FrameState) {
	s.Interpolation = c.Mode
	s.OverrideInterpolation = true
}

// CallbackResetState restores the default alpha and each texture's own interpolation.
type CallbackResetState struct{}

func (CallbackResetState) apply(s *FrameState) {
	*s = defaultFrameState()
}

// CallbackCustom runs arbitrary code against the frame state.
type CallbackCustom func(s *FrameState)

func (c CallbackCustom) apply(s *FrameState) {
	if c != nil {
		c(s)
	}
}
