package pipeline

import (
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/shader"
)

const (
	// KeyUI is the key of the draw-list pipeline.
	KeyUI = "ui"
	// KeyIndexedGraphics is the key of the indexed tile graphics pipeline.
	KeyIndexedGraphics = "indexed_graphics"
)

// Binding slots of the UI pipeline's group 0.
const (
	UIBindingFrameUniforms uint32 = iota
	UIBindingSetUniforms
	UIBindingTexture
	UIBindingSampler
)

// Binding slots of the indexed graphics pipeline's group 0.
const (
	IndexedBindingParams uint32 = iota
	IndexedBindingGraphics
	IndexedBindingTileMap
	IndexedBindingTileFlags
	IndexedBindingPalette
)

// UIVertexStride is the size of one draw-list vertex: position, uv and a packed RGBA colour.
const UIVertexStride = 20

// NewUIPipeline returns the description of the draw-list pipeline.
func NewUIPipeline() Pipeline {
	return NewPipeline(KeyUI, PipelineTypeUI,
		WithShader(shader.NewShader(KeyUI, shader.UISource)),
		WithBindings(
			BindingLayout{Binding: UIBindingFrameUniforms, Type: BindingTypeUniform, Vertex: true, Fragment: true},
			BindingLayout{Binding: UIBindingSetUniforms, Type: BindingTypeUniform, Vertex: true, Fragment: true},
			BindingLayout{Binding: UIBindingTexture, Type: BindingTypeTexture, Fragment: true},
			BindingLayout{Binding: UIBindingSampler, Type: BindingTypeSampler, Fragment: true},
		),
		WithVertexLayout(VertexLayout{
			Stride: UIVertexStride,
			Attributes: []VertexAttribute{
				{Location: 0, Format: VertexFormatFloat32x2, Offset: 0},
				{Location: 1, Format: VertexFormatFloat32x2, Offset: 8},
				{Location: 2, Format: VertexFormatUnorm8x4, Offset: 16},
			},
		}),
		WithBlendEnabled(true),
		WithTarget(TargetSurface),
	)
}

// NewIndexedGraphicsPipeline returns the description of the indexed tile graphics pipeline.
func NewIndexedGraphicsPipeline() Pipeline {
	return NewPipeline(KeyIndexedGraphics, PipelineTypeIndexedGraphics,
		WithShader(shader.NewShader(KeyIndexedGraphics, shader.IndexedGraphicsSource)),
		WithBindings(
			BindingLayout{Binding: IndexedBindingParams, Type: BindingTypeUniform, Fragment: true},
			BindingLayout{Binding: IndexedBindingGraphics, Type: BindingTypeStorage, Fragment: true},
			BindingLayout{Binding: IndexedBindingTileMap, Type: BindingTypeStorage, Fragment: true},
			BindingLayout{Binding: IndexedBindingTileFlags, Type: BindingTypeStorage, Fragment: true},
			BindingLayout{Binding: IndexedBindingPalette, Type: BindingTypeTexture, Fragment: true},
		),
		WithBlendEnabled(false),
		WithTarget(TargetRGBA8),
	)
}
