package pipeline

import (
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/shader"
)

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithShader sets the shader module for this pipeline.
//
// Parameters:
//   - s: the shader holding the vertex and fragment entry points
//
// Returns:
//   - PipelineBuilderOption: a function that sets the shader for this pipeline
func WithShader(s shader.Shader) PipelineBuilderOption {
	return func(p *pipeline) {
		p.shader = s
	}
}

// WithBindings sets the binding layout of bind group 0.
//
// Parameters:
//   - bindings: the binding slots, in binding order
//
// Returns:
//   - PipelineBuilderOption: a function that sets the bindings for this pipeline
func WithBindings(bindings ...BindingLayout) PipelineBuilderOption {
	return func(p *pipeline) {
		p.bindings = bindings
	}
}

// WithVertexLayout sets the vertex buffer layout.
//
// Parameters:
//   - layout: the interleaved vertex layout
//
// Returns:
//   - PipelineBuilderOption: a function that sets the vertex layout for this pipeline
func WithVertexLayout(layout VertexLayout) PipelineBuilderOption {
	return func(p *pipeline) {
		p.vertexLayout = &layout
	}
}

// WithBlendEnabled sets whether blending is enabled for this pipeline.
//
// Parameters:
//   - enabled: a boolean indicating whether blending should be enabled
//
// Returns:
//   - PipelineBuilderOption: a function that sets the blend enabled state for this pipeline
func WithBlendEnabled(enabled bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.blendEnabled = enabled
	}
}

// WithTarget sets the colour format the pipeline renders into.
//
// Parameters:
//   - target: the target format
//
// Returns:
//   - PipelineBuilderOption: a function that sets the target for this pipeline
func WithTarget(target TargetFormat) PipelineBuilderOption {
	return func(p *pipeline) {
		p.target = target
	}
}
