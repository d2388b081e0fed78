package bind_group_provider

import (
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-gui/common"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/backend"
)

// SetUniforms is the CPU mirror of the per-set uniform block of the UI shader.
type SetUniforms struct {
	// UVRect is the sub-rectangle of the bound texture the draw-list uv range 0..1 maps onto.
	UVRect [4]float32
	Alpha  float32
	_      [3]float32
}

// SetUniformsSize is the size of SetUniforms on the GPU.
const SetUniformsSize = 32

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string

	// The following fields are GPU resources referenced by the set. Only the owned buffers are released with the
	// provider; shared buffers, textures and samplers belong to whoever passed them in.

	// resourceSet is the GPU resource set, or nil until Init succeeds.
	resourceSet backend.ResourceSet
	// buffers holds the buffers bound by this provider, keyed by binding index.
	buffers map[int]backend.Buffer
	// owned marks the buffer bindings released together with the provider.
	owned map[int]bool
	// textures holds the textures bound by this provider, keyed by binding index.
	textures map[int]backend.Texture
	// samplers holds the samplers bound by this provider, keyed by binding index.
	samplers map[int]backend.Sampler

	// uvRect is the normalised viewport of the bound texture, the full 0..1 rect unless the set was built for a window.
	uvRect common.Rect
	// alpha is the per-set alpha multiplier.
	alpha float32
	// uniformBinding is the binding Init creates the per-set uniform buffer at, or -1 for none.
	uniformBinding int

	// b is the backend the set was created on, used to defer release.
	b backend.Backend
}

// BindGroupProvider holds one resource set of the UI pipeline and the GPU objects it references.
// Bindings are described with options, then Init creates the set on a backend.
//
// Usage pattern:
//  1. NewBindGroupProvider with buffers, a texture and a sampler per binding slot
//  2. Init(backend, pipelineKey) creates the per-set uniform buffer, if any, and the resource set
//  3. the replayer binds ResourceSet() before drawing
//  4. Release hands the set and its owned buffers to the backend free queue
type BindGroupProvider interface {
	// Release hands the resource set and owned buffers to the backend free queue. Calling it twice is a no-op.
	Release()

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// Init creates the resource set against the binding layout of a registered pipeline.
	//
	// Parameters:
	//   - b: the backend to create the set on
	//   - pipelineKey: the registered pipeline whose layout the set follows
	//
	// Returns:
	//   - error: an error if the uniform buffer cannot be created or the backend rejects the set
	Init(b backend.Backend, pipelineKey string) error

	// ResourceSet returns the created resource set, or nil before Init.
	//
	// Returns:
	//   - backend.ResourceSet: the resource set or nil
	ResourceSet() backend.ResourceSet

	// Buffer returns the buffer for a binding, or nil if not set.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - backend.Buffer: the buffer or nil
	Buffer(binding int) backend.Buffer

	// Texture returns the texture for a binding, or nil if not set.
	Texture(binding int) backend.Texture

	// Sampler returns the sampler for a binding, or nil if not set.
	Sampler(binding int) backend.Sampler

	// UVRect returns the normalised texture viewport the set samples from.
	UVRect() common.Rect

	// Alpha returns the per-set alpha multiplier.
	Alpha() float32

	// Uniforms returns the per-set uniform block for the viewport and alpha.
	Uniforms() SetUniforms
}

// Compile-time check that bindGroupProvider implements BindGroupProvider
var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new BindGroupProvider with the provided options.
//
// Parameters:
//   - label: debug label forwarded to the GPU resource set
//   - options: a variadic list of options to configure the provider
//
// Returns:
//   - BindGroupProvider: a new instance of BindGroupProvider configured with the provided options
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:    label,
		buffers:  make(map[int]backend.Buffer),
		owned:    make(map[int]bool),
		textures: make(map[int]backend.Texture),
		samplers: make(map[int]backend.Sampler),
		uvRect:   common.Rect{MaxX: 1, MaxY: 1},
		alpha:    1,

		uniformBinding: -1,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) ResourceSet() backend.ResourceSet {
	return p.resourceSet
}

func (p *bindGroupProvider) Buffer(binding int) backend.Buffer {
	return p.buffers[binding]
}

func (p *bindGroupProvider) Texture(binding int) backend.Texture {
	return p.textures[binding]
}

func (p *bindGroupProvider) Sampler(binding int) backend.Sampler {
	return p.samplers[binding]
}

func (p *bindGroupProvider) UVRect() common.Rect {
	return p.uvRect
}

func (p *bindGroupProvider) Alpha() float32 {
	return p.alpha
}

func (p *bindGroupProvider) Uniforms() SetUniforms {
	return SetUniforms{
		UVRect: [4]float32{p.uvRect.MinX, p.uvRect.MinY, p.uvRect.MaxX, p.uvRect.MaxY},
		Alpha:  p.alpha,
	}
}

func (p *bindGroupProvider) Init(b backend.Backend, pipelineKey string) error {
	if p.resourceSet != nil {
		return nil
	}
	if p.uniformBinding >= 0 {
		// created initialised so Init is legal while a pass is open
		u := p.Uniforms()
		buf, err := b.CreateBufferInit(p.label+"/uniforms", common.StructToBytes(&u), backend.BufferUsageUniform)
		if err != nil {
			return fmt.Errorf("%s: set uniforms: %w", p.label, err)
		}
		p.buffers[p.uniformBinding] = buf
		p.owned[p.uniformBinding] = true
	}

	desc := backend.ResourceSetDescriptor{Label: p.label, Pipeline: pipelineKey}
	for binding, buf := range p.buffers {
		desc.Entries = append(desc.Entries, backend.ResourceEntry{Binding: uint32(binding), Buffer: buf})
	}
	for binding, tex := range p.textures {
		desc.Entries = append(desc.Entries, backend.ResourceEntry{Binding: uint32(binding), Texture: tex})
	}
	for binding, s := range p.samplers {
		desc.Entries = append(desc.Entries, backend.ResourceEntry{Binding: uint32(binding), Sampler: s})
	}
	sort.Slice(desc.Entries, func(i, j int) bool { return desc.Entries[i].Binding < desc.Entries[j].Binding })

	set, err := b.CreateResourceSet(desc)
	if err != nil {
		return fmt.Errorf("%s: create resource set: %w", p.label, err)
	}
	p.resourceSet = set
	p.b = b
	return nil
}

func (p *bindGroupProvider) Release() {
	if p.b == nil {
		// never initialised, owned buffers were created by the caller and are not referenced by any GPU work yet
		for i, buf := range p.buffers {
			if p.owned[i] && buf != nil {
				buf.Release()
			}
		}
		p.buffers = map[int]backend.Buffer{}
		p.owned = map[int]bool{}
		return
	}
	if p.resourceSet != nil {
		p.b.DeferRelease(p.resourceSet)
		p.resourceSet = nil
	}
	for i, buf := range p.buffers {
		if p.owned[i] && buf != nil {
			p.b.DeferRelease(buf)
		}
		delete(p.buffers, i)
	}
	p.owned = map[int]bool{}
	for i := range p.textures {
		delete(p.textures, i)
	}
	for i := range p.samplers {
		delete(p.samplers, i)
	}
	p.b = nil
}
