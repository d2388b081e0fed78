package wgpu_backend

import (
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuBuffer struct {
	label  string
	size   uint64
	usage  backend.BufferUsage
	buffer *wgpu.Buffer
}

func (b *wgpuBuffer) Label() string              { return b.label }
func (b *wgpuBuffer) Size() uint64               { return b.size }
func (b *wgpuBuffer) Usage() backend.BufferUsage { return b.usage }
func (b *wgpuBuffer) Release() {
	if b.buffer != nil {
		b.buffer.Release()
		b.buffer = nil
	}
}

type wgpuTexture struct {
	label   string
	width   uint32
	height  uint32
	usage   backend.TextureUsage
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

func (t *wgpuTexture) Label() string               { return t.label }
func (t *wgpuTexture) Width() uint32               { return t.width }
func (t *wgpuTexture) Height() uint32              { return t.height }
func (t *wgpuTexture) Usage() backend.TextureUsage { return t.usage }
func (t *wgpuTexture) Release() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.texture != nil {
		t.texture.Release()
		t.texture = nil
	}
}

type wgpuSampler struct {
	sampler *wgpu.Sampler
}

func (s *wgpuSampler) Release() {
	if s.sampler != nil {
		s.sampler.Release()
		s.sampler = nil
	}
}

type wgpuResourceSet struct {
	label     string
	bindGroup *wgpu.BindGroup
}

func (s *wgpuResourceSet) Label() string { return s.label }
func (s *wgpuResourceSet) Release() {
	if s.bindGroup != nil {
		s.bindGroup.Release()
		s.bindGroup = nil
	}
}

// registeredPipeline holds the GPU objects created for a pipeline description.
type registeredPipeline struct {
	render *wgpu.RenderPipeline
	layout *wgpu.BindGroupLayout
}

func bufferUsage(u backend.BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	if u&backend.BufferUsageVertex != 0 {
		out |= wgpu.BufferUsageVertex
	}
	if u&backend.BufferUsageIndex != 0 {
		out |= wgpu.BufferUsageIndex
	}
	if u&backend.BufferUsageUniform != 0 {
		out |= wgpu.BufferUsageUniform
	}
	if u&backend.BufferUsageStorage != 0 {
		out |= wgpu.BufferUsageStorage
	}
	if u&backend.BufferUsageCopySrc != 0 {
		out |= wgpu.BufferUsageCopySrc
	}
	if u&backend.BufferUsageCopyDst != 0 {
		out |= wgpu.BufferUsageCopyDst
	}
	return out
}

func textureUsage(u backend.TextureUsage) wgpu.TextureUsage {
	var out wgpu.TextureUsage
	if u&backend.TextureUsageSampled != 0 {
		out |= wgpu.TextureUsageTextureBinding
	}
	if u&backend.TextureUsageCopyDst != 0 {
		out |= wgpu.TextureUsageCopyDst
	}
	if u&backend.TextureUsageRenderTarget != 0 {
		out |= wgpu.TextureUsageRenderAttachment
	}
	return out
}
