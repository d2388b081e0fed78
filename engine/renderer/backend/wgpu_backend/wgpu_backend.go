// Package wgpu_backend implements backend.Backend on top of WebGPU (wgpu-native through cogentcore/webgpu).
// Importing the package registers it for backend.TypeWGPU.
package wgpu_backend

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-gui/common"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

func init() {
	backend.Register(backend.TypeWGPU, New)
}

type wgpuBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	presentMode   wgpu.PresentMode
	width, height int
	spirv         bool
	limits        backend.Limits

	pipelines map[string]*registeredPipeline
	free      *backend.FreeQueue
	gens      backend.Generations

	// Frame state for the command recording of the current frame
	frameEncoder *wgpu.CommandEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView

	// Pass state, kept so a split pass can resume into the same target
	framePass *wgpu.RenderPassEncoder
	passDesc  backend.PassDescriptor
}

var _ backend.Backend = &wgpuBackendImpl{}

// New creates the WebGPU device, and the presentation surface when cfg.Surface is a *wgpu.SurfaceDescriptor.
// With a nil surface the device renders offscreen only.
//
// Parameters:
//   - cfg: the backend configuration
//
// Returns:
//   - backend.Backend: the wgpu backend
//   - error: an error wrapping backend.ErrDeviceCreation if the adapter or device could not be created
func New(cfg backend.Config) (backend.Backend, error) {
	runtime.LockOSThread()
	b := &wgpuBackendImpl{
		mu:            &sync.Mutex{},
		instance:      wgpu.CreateInstance(nil),
		presentMode:   wgpu.PresentModeFifo,
		surfaceFormat: wgpu.TextureFormatBGRA8Unorm,
		spirv:         cfg.SPIRVShaders,
		pipelines:     make(map[string]*registeredPipeline),
		free:          backend.NewFreeQueue(),
	}
	if cfg.PresentMode == backend.PresentModeUncapped {
		b.presentMode = wgpu.PresentModeImmediate
	}

	switch desc := cfg.Surface.(type) {
	case nil:
	case *wgpu.SurfaceDescriptor:
		b.surface = b.instance.CreateSurface(desc)
		if b.surface == nil {
			return nil, fmt.Errorf("surface: %w", backend.ErrDeviceCreation)
		}
	default:
		return nil, fmt.Errorf("surface source %T: %w", cfg.Surface, backend.ErrDeviceCreation)
	}

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: cfg.ForceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("adapter: %w: %w", backend.ErrDeviceCreation, err)
	}
	b.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "UI Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("device: %w: %w", backend.ErrDeviceCreation, err)
	}
	b.device = d
	b.queue = d.GetQueue()

	supported := d.GetLimits()
	b.limits = backend.Limits{
		MaxBufferSize:         supported.Limits.MaxBufferSize,
		MaxTextureDimension2D: supported.Limits.MaxTextureDimension2D,
	}

	if b.surface != nil {
		b.ConfigureSurface(cfg.Width, cfg.Height)
	}
	return b, nil
}

func (b *wgpuBackendImpl) Type() backend.Type {
	return backend.TypeWGPU
}

func (b *wgpuBackendImpl) Limits() backend.Limits {
	return b.limits
}

// UniformUpdatePolicy is always PolicySplitPass: WebGPU forbids copies while a render pass is open and queue
// writes land before the whole command buffer.
func (b *wgpuBackendImpl) UniformUpdatePolicy() backend.UniformUpdatePolicy {
	return backend.PolicySplitPass
}

func (b *wgpuBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.width, b.height = max(width, 1), max(height, 1)
	if b.surface == nil {
		return
	}

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(b.width),
		Height:      uint32(b.height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
}

func (b *wgpuBackendImpl) SurfaceSize() (int, int) {
	return b.width, b.height
}

func (b *wgpuBackendImpl) RegisterPipeline(p pipeline.Pipeline) error {
	s := p.Shader()
	if s == nil {
		return errors.New("a shader must be set to create a render pipeline")
	}

	module, err := b.createShaderModule(s)
	if err != nil {
		return err
	}
	defer module.Release()

	entries := make([]wgpu.BindGroupLayoutEntry, 0, len(p.Bindings()))
	for _, l := range p.Bindings() {
		entries = append(entries, bindGroupLayoutEntry(l))
	}
	layout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   p.PipelineKey() + " Bind Group Layout",
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("failed to create bind group layout for %s: %w", p.PipelineKey(), err)
	}

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: []*wgpu.BindGroupLayout{layout},
	})
	if err != nil {
		return err
	}
	defer pipelineLayout.Release()

	var vertexBuffers []wgpu.VertexBufferLayout
	if vl := p.VertexLayout(); vl != nil {
		attrs := make([]wgpu.VertexAttribute, 0, len(vl.Attributes))
		for _, a := range vl.Attributes {
			attrs = append(attrs, wgpu.VertexAttribute{
				Format:         vertexFormat(a.Format),
				Offset:         a.Offset,
				ShaderLocation: a.Location,
			})
		}
		vertexBuffers = []wgpu.VertexBufferLayout{{
			ArrayStride: vl.Stride,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes:  attrs,
		}}
	}

	format := b.surfaceFormat
	if p.Target() == pipeline.TargetRGBA8 {
		format = wgpu.TextureFormatRGBA8Unorm
	}
	target := wgpu.ColorTargetState{
		Format:    format,
		WriteMask: wgpu.ColorWriteMaskAll,
	}
	if p.BlendEnabled() {
		target.Blend = &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey() + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: s.EntryPoint(shader.ShaderTypeVertex),
			Buffers:    vertexBuffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: s.EntryPoint(shader.ShaderTypeFragment),
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return err
	}

	if old, ok := b.pipelines[p.PipelineKey()]; ok {
		b.DeferRelease(releaser(func() {
			old.render.Release()
			old.layout.Release()
		}))
	}
	b.pipelines[p.PipelineKey()] = &registeredPipeline{render: created, layout: layout}
	p.SetPipeline(created)
	return nil
}

func (b *wgpuBackendImpl) createShaderModule(s shader.Shader) (*wgpu.ShaderModule, error) {
	if b.spirv {
		code, err := s.SPIRV()
		if err != nil {
			return nil, err
		}
		return b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
			Label:           s.Key(),
			SPIRVDescriptor: &wgpu.ShaderModuleSPIRVDescriptor{Code: code},
		})
	}
	return b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: s.Key(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: s.Source(),
		},
	})
}

func (b *wgpuBackendImpl) CreateBuffer(label string, size uint64, usage backend.BufferUsage) (backend.Buffer, error) {
	size = backend.AlignUp(max(size, backend.CopyAlignment))
	if size > b.limits.MaxBufferSize {
		return nil, fmt.Errorf("buffer %s (%d bytes): %w", label, size, backend.ErrBufferTooLarge)
	}
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: bufferUsage(usage),
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBuffer{label: label, size: size, usage: usage, buffer: buf}, nil
}

func (b *wgpuBackendImpl) CreateBufferInit(label string, data []byte, usage backend.BufferUsage) (backend.Buffer, error) {
	padded := data
	if size := backend.AlignUp(max(uint64(len(data)), backend.CopyAlignment)); size != uint64(len(data)) {
		padded = make([]byte, size)
		copy(padded, data)
	}
	if uint64(len(padded)) > b.limits.MaxBufferSize {
		return nil, fmt.Errorf("buffer %s (%d bytes): %w", label, len(padded), backend.ErrBufferTooLarge)
	}
	buf, err := b.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: padded,
		Usage:    bufferUsage(usage),
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBuffer{label: label, size: uint64(len(padded)), usage: usage, buffer: buf}, nil
}

func (b *wgpuBackendImpl) WriteBuffer(buf backend.Buffer, offset uint64, data []byte) error {
	if b.framePass != nil {
		return fmt.Errorf("write %s: %w", buf.Label(), backend.ErrPassOpen)
	}
	if offset%backend.CopyAlignment != 0 || uint64(len(data))%backend.CopyAlignment != 0 {
		return fmt.Errorf("write %s: %w", buf.Label(), backend.ErrUnaligned)
	}
	wb := buf.(*wgpuBuffer)
	if wb.buffer == nil {
		return fmt.Errorf("write %s: %w", wb.label, backend.ErrReleased)
	}
	b.queue.WriteBuffer(wb.buffer, offset, data)
	return nil
}

func (b *wgpuBackendImpl) CreateTexture(label string, width, height uint32, usage backend.TextureUsage) (backend.Texture, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("texture %s: zero size %dx%d", label, width, height)
	}
	if width > b.limits.MaxTextureDimension2D || height > b.limits.MaxTextureDimension2D {
		return nil, fmt.Errorf("texture %s (%dx%d): %w", label, width, height, backend.ErrTextureTooLarge)
	}
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     label,
		Usage:     textureUsage(usage),
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		Format:        wgpu.TextureFormatRGBA8Unorm,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	return &wgpuTexture{label: label, width: width, height: height, usage: usage, texture: tex, view: view}, nil
}

func (b *wgpuBackendImpl) WriteTexture(tex backend.Texture, data common.TextureStagingData) error {
	if b.framePass != nil {
		return fmt.Errorf("write texture %s: %w", tex.Label(), backend.ErrPassOpen)
	}
	wt := tex.(*wgpuTexture)
	if wt.texture == nil {
		return fmt.Errorf("write texture %s: %w", wt.label, backend.ErrReleased)
	}
	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  wt.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{X: uint32(data.Origin.X), Y: uint32(data.Origin.Y)},
			Aspect:   wgpu.TextureAspectAll,
		},
		data.Pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  data.Width * 4,
			RowsPerImage: data.Height,
		},
		&wgpu.Extent3D{
			Width:              data.Width,
			Height:             data.Height,
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

func (b *wgpuBackendImpl) CreateSampler(desc common.SamplerStagingData) (backend.Sampler, error) {
	samp, err := b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         desc.Label,
		AddressModeU:  addressMode(desc.AddressModeU),
		AddressModeV:  addressMode(desc.AddressModeV),
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     filterMode(desc.MagFilter),
		MinFilter:     filterMode(desc.MinFilter),
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMinClamp:   0.0,
		LodMaxClamp:   32.0,
		MaxAnisotropy: common.Coalesce(desc.MaxAnisotropy, 1),
	})
	if err != nil {
		return nil, err
	}
	return &wgpuSampler{sampler: samp}, nil
}

func (b *wgpuBackendImpl) CreateResourceSet(desc backend.ResourceSetDescriptor) (backend.ResourceSet, error) {
	rp, ok := b.pipelines[desc.Pipeline]
	if !ok {
		return nil, fmt.Errorf("resource set %s: %w: %q", desc.Label, backend.ErrUnknownPipeline, desc.Pipeline)
	}
	entries := make([]wgpu.BindGroupEntry, 0, len(desc.Entries))
	for _, e := range desc.Entries {
		entry := wgpu.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Buffer != nil:
			wb := e.Buffer.(*wgpuBuffer)
			entry.Buffer = wb.buffer
			entry.Offset = 0
			entry.Size = wb.size
		case e.Texture != nil:
			entry.TextureView = e.Texture.(*wgpuTexture).view
		case e.Sampler != nil:
			entry.Sampler = e.Sampler.(*wgpuSampler).sampler
		}
		entries = append(entries, entry)
	}
	bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  rp.layout,
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuResourceSet{label: desc.Label, bindGroup: bg}, nil
}

func (b *wgpuBackendImpl) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.gens.Recording {
		return backend.ErrFrameInProgress
	}
	// A surface texture still held from an unpresented frame must not be acquired twice.
	if b.frameSurface != nil {
		return fmt.Errorf("previous frame surface not yet presented")
	}

	if b.surface != nil {
		surfaceTexture, err := b.surface.GetCurrentTexture()
		if err != nil {
			return err
		}
		view, err := surfaceTexture.CreateView(nil)
		if err != nil {
			surfaceTexture.Release()
			return err
		}
		b.frameSurface = surfaceTexture
		b.frameView = view
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		b.releaseSurfaceTexture()
		return err
	}
	b.frameEncoder = encoder
	b.gens.Recording = true
	return nil
}

func (b *wgpuBackendImpl) BeginPass(desc backend.PassDescriptor) error {
	if b.frameEncoder == nil {
		return fmt.Errorf("begin pass %s: %w", desc.Label, backend.ErrNoFrame)
	}
	if b.framePass != nil {
		return fmt.Errorf("begin pass %s: %w", desc.Label, backend.ErrPassOpen)
	}
	view := b.frameView
	if desc.Target != nil {
		view = desc.Target.(*wgpuTexture).view
	}
	if view == nil {
		return fmt.Errorf("begin pass %s: no surface to render into", desc.Label)
	}

	loadOp := wgpu.LoadOpClear
	if desc.Load == backend.LoadOpLoad {
		loadOp = wgpu.LoadOpLoad
	}
	b.framePass = b.frameEncoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: desc.Label,
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:    view,
				LoadOp:  loadOp,
				StoreOp: wgpu.StoreOpStore,
				ClearValue: wgpu.Color{
					R: desc.ClearColor[0], G: desc.ClearColor[1], B: desc.ClearColor[2], A: desc.ClearColor[3],
				},
			},
		},
	})
	b.passDesc = desc
	return nil
}

func (b *wgpuBackendImpl) SetPipeline(key string) error {
	if b.framePass == nil {
		return fmt.Errorf("set pipeline %s: %w", key, backend.ErrNoPass)
	}
	rp, ok := b.pipelines[key]
	if !ok {
		return fmt.Errorf("%w: %q", backend.ErrUnknownPipeline, key)
	}
	b.framePass.SetPipeline(rp.render)
	return nil
}

func (b *wgpuBackendImpl) SetGeometry(vertex, index backend.Buffer) {
	b.framePass.SetVertexBuffer(0, vertex.(*wgpuBuffer).buffer, 0, wgpu.WholeSize)
	b.framePass.SetIndexBuffer(index.(*wgpuBuffer).buffer, wgpu.IndexFormatUint16, 0, wgpu.WholeSize)
}

func (b *wgpuBackendImpl) SetViewport(x, y, width, height float32) {
	b.framePass.SetViewport(x, y, width, height, 0, 1)
}

func (b *wgpuBackendImpl) SetResourceSet(group uint32, set backend.ResourceSet) {
	b.framePass.SetBindGroup(group, set.(*wgpuResourceSet).bindGroup, nil)
}

func (b *wgpuBackendImpl) SetScissorRect(x, y, width, height uint32) {
	b.framePass.SetScissorRect(x, y, width, height)
}

func (b *wgpuBackendImpl) DrawIndexed(indexCount, firstIndex uint32, baseVertex int32) {
	b.framePass.DrawIndexed(indexCount, 1, firstIndex, baseVertex, 0)
}

func (b *wgpuBackendImpl) Draw(vertexCount uint32) {
	b.framePass.Draw(vertexCount, 1, 0, 0)
}

// UpdateBufferInPass ends the open pass, records a copy from a transient staging buffer and resumes the pass
// with LoadOpLoad. The staging buffer is released once the frame completes.
func (b *wgpuBackendImpl) UpdateBufferInPass(buf backend.Buffer, offset uint64, data []byte) (bool, error) {
	if b.framePass == nil {
		return false, fmt.Errorf("update %s: %w", buf.Label(), backend.ErrNoPass)
	}
	if offset%backend.CopyAlignment != 0 || uint64(len(data))%backend.CopyAlignment != 0 {
		return false, fmt.Errorf("update %s: %w", buf.Label(), backend.ErrUnaligned)
	}
	desc := b.passDesc
	b.EndPass()

	staging, err := b.CreateBufferInit(buf.Label()+" Staging", data, backend.BufferUsageCopySrc)
	if err != nil {
		return false, err
	}
	b.frameEncoder.CopyBufferToBuffer(staging.(*wgpuBuffer).buffer, 0, buf.(*wgpuBuffer).buffer, offset, uint64(len(data)))
	b.DeferRelease(staging)

	desc.Load = backend.LoadOpLoad
	if err := b.BeginPass(desc); err != nil {
		return false, err
	}
	return true, nil
}

func (b *wgpuBackendImpl) EndPass() {
	if b.framePass == nil {
		return
	}
	b.framePass.End()
	b.framePass.Release()
	b.framePass = nil
}

func (b *wgpuBackendImpl) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return backend.ErrNoFrame
	}
	if b.framePass != nil {
		return fmt.Errorf("end frame: %w", backend.ErrPassOpen)
	}

	commandBuffer, err := b.frameEncoder.Finish(nil)
	b.frameEncoder.Release()
	b.frameEncoder = nil
	b.gens.Recording = false
	if err != nil {
		b.releaseSurfaceTexture()
		return err
	}

	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	b.gens.Submitted++
	return nil
}

func (b *wgpuBackendImpl) AbortFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass != nil {
		b.framePass.End()
		b.framePass.Release()
		b.framePass = nil
	}
	if b.frameEncoder != nil {
		b.frameEncoder.Release()
		b.frameEncoder = nil
	}
	b.releaseSurfaceTexture()
	b.gens.Recording = false
}

func (b *wgpuBackendImpl) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	// If no frame surface is held, nothing to present.
	if b.frameSurface == nil {
		return
	}
	b.surface.Present()
	b.releaseSurfaceTexture()
}

func (b *wgpuBackendImpl) releaseSurfaceTexture() {
	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
}

func (b *wgpuBackendImpl) DeferRelease(r backend.Resource) {
	b.free.Enqueue(r, b.gens.Tag())
}

// CollectRetired polls the device without blocking. The completed generation only advances when the queue
// reports no pending work.
func (b *wgpuBackendImpl) CollectRetired() int {
	if b.device.Poll(false, nil) {
		b.gens.Completed = b.gens.Submitted
	}
	n := b.free.Collect(b.gens.Completed)
	if n > 0 {
		common.Logger().Debug("released retired resources", "count", n, "generation", b.gens.Completed)
	}
	return n
}

func (b *wgpuBackendImpl) PendingReleases() int {
	return b.free.Len()
}

func (b *wgpuBackendImpl) WaitIdle() {
	b.device.Poll(true, nil)
	b.gens.Completed = b.gens.Submitted
	b.free.Flush()
}

func (b *wgpuBackendImpl) Release() {
	b.AbortFrame()
	b.WaitIdle()
	for key, rp := range b.pipelines {
		rp.render.Release()
		rp.layout.Release()
		delete(b.pipelines, key)
	}
	if b.queue != nil {
		b.queue.Release()
	}
	if b.device != nil {
		b.device.Release()
	}
	if b.adapter != nil {
		b.adapter.Release()
	}
	if b.surface != nil {
		b.surface.Release()
	}
	if b.instance != nil {
		b.instance.Release()
	}
}

// releaser adapts a func to backend.Resource.
type releaser func()

func (r releaser) Release() { r() }

func bindGroupLayoutEntry(l pipeline.BindingLayout) wgpu.BindGroupLayoutEntry {
	var visibility wgpu.ShaderStage
	if l.Vertex {
		visibility |= wgpu.ShaderStageVertex
	}
	if l.Fragment {
		visibility |= wgpu.ShaderStageFragment
	}
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    l.Binding,
		Visibility: visibility,
	}
	switch l.Type {
	case pipeline.BindingTypeUniform:
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
	case pipeline.BindingTypeStorage:
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
	case pipeline.BindingTypeTexture:
		entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
		entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
	case pipeline.BindingTypeSampler:
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	}
	return entry
}

func vertexFormat(f pipeline.VertexFormat) wgpu.VertexFormat {
	switch f {
	case pipeline.VertexFormatUnorm8x4:
		return wgpu.VertexFormatUnorm8x4
	default:
		return wgpu.VertexFormatFloat32x2
	}
}

func filterMode(f common.FilterMode) wgpu.FilterMode {
	if f == common.FilterModeNearest {
		return wgpu.FilterModeNearest
	}
	return wgpu.FilterModeLinear
}

func addressMode(a common.AddressMode) wgpu.AddressMode {
	switch a {
	case common.AddressModeRepeat:
		return wgpu.AddressModeRepeat
	case common.AddressModeMirrorRepeat:
		return wgpu.AddressModeMirrorRepeat
	default:
		return wgpu.AddressModeClampToEdge
	}
}
