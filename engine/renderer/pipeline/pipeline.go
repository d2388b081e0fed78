package pipeline

import (
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/shader"
)

// PipelineType identifies which renderer pass a pipeline belongs to.
type PipelineType int

const (
	// PipelineTypeUI draws draw-list geometry into the surface.
	PipelineTypeUI PipelineType = iota

	// PipelineTypeIndexedGraphics expands indexed tile graphics into an RGBA render target.
	PipelineTypeIndexedGraphics
)

// TargetFormat identifies the colour format a pipeline renders into.
type TargetFormat int

const (
	// TargetSurface renders into the presentation surface's preferred format.
	TargetSurface TargetFormat = iota
	// TargetRGBA8 renders into an RGBA8 texture.
	TargetRGBA8
)

// BindingType is the kind of resource bound at a layout slot.
type BindingType int

const (
	BindingTypeUniform BindingType = iota
	BindingTypeStorage
	BindingTypeTexture
	BindingTypeSampler
)

// BindingLayout describes one slot of bind group 0.
type BindingLayout struct {
	Binding  uint32
	Type     BindingType
	Vertex   bool
	Fragment bool
}

// VertexFormat is the format of one vertex attribute.
type VertexFormat int

const (
	VertexFormatFloat32x2 VertexFormat = iota
	VertexFormatUnorm8x4
)

// VertexAttribute describes one attribute of the vertex buffer.
type VertexAttribute struct {
	Location uint32
	Format   VertexFormat
	Offset   uint64
}

// VertexLayout describes the single interleaved vertex buffer of a pipeline.
type VertexLayout struct {
	Stride     uint64
	Attributes []VertexAttribute
}

// pipeline is the implementation of the Pipeline interface.
// It holds the backend-neutral description plus the backend's compiled pipeline object once registered.
type pipeline struct {
	// pipelineType indicates which pass this pipeline belongs to
	pipelineType PipelineType
	// pipelineKey is the unique identifier for this pipeline, used for caching and lookups
	pipelineKey string

	shader       shader.Shader
	bindings     []BindingLayout
	vertexLayout *VertexLayout
	blendEnabled bool
	target       TargetFormat

	// handle is the backend pipeline object, nil until registered.
	handle any
}

// Pipeline defines the interface for a backend-neutral render pipeline description: the shader module, the
// group 0 binding layout, the vertex layout, blending and the target format. Backends compile it in
// RegisterPipeline and store the result with SetPipeline.
type Pipeline interface {
	// Type returns the type of the pipeline
	//
	// Returns:
	//   - PipelineType: the pass the pipeline belongs to
	Type() PipelineType

	// PipelineKey returns the unique key associated with this pipeline, used for caching and lookups.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Shader returns the shader module holding the vertex and fragment entry points.
	Shader() shader.Shader

	// Bindings returns the binding layout of bind group 0.
	Bindings() []BindingLayout

	// VertexLayout returns the vertex buffer layout, or nil for pipelines that generate vertices in the shader.
	VertexLayout() *VertexLayout

	// BlendEnabled returns whether premultiplied-style alpha blending is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if blending is enabled, false otherwise
	BlendEnabled() bool

	// Target returns the colour format the pipeline renders into.
	Target() TargetFormat

	// Pipeline returns the backend pipeline object.
	// Note: The caller is responsible for type asserting the returned value.
	//
	// Returns:
	//   - any: the backend pipeline object, or nil if not registered
	Pipeline() any

	// SetPipeline stores the backend pipeline object.
	//
	// Parameters:
	//   - handle: the backend pipeline object
	SetPipeline(handle any)
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new Pipeline interface.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - pipelineType: the pass the pipeline belongs to
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance with the specified type and configuration
func NewPipeline(pipelineKey string, pipelineType PipelineType, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey:  pipelineKey,
		pipelineType: pipelineType,
		blendEnabled: true,
		target:       TargetSurface,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) Type() PipelineType {
	return p.pipelineType
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Shader() shader.Shader {
	return p.shader
}

func (p *pipeline) Bindings() []BindingLayout {
	return p.bindings
}

func (p *pipeline) VertexLayout() *VertexLayout {
	return p.vertexLayout
}

func (p *pipeline) BlendEnabled() bool {
	return p.blendEnabled
}

func (p *pipeline) Target() TargetFormat {
	return p.target
}

func (p *pipeline) Pipeline() any {
	return p.handle
}

func (p *pipeline) SetPipeline(handle any) {
	p.handle = handle
}
