// Package backend abstracts the GPU device the UI renderer records into.
// A Backend owns the device, its queue and the presentation surface. Everything above it (binding cache,
// buffer manager, draw-list replayer) talks to the Backend interface only, so the same code drives the
// wgpu device and the headless recording backend used by tests.
package backend

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gui/common"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/pipeline"
)

var (
	// ErrUnsupportedBackend is returned when no factory is registered for the requested Type.
	ErrUnsupportedBackend = errors.New("backend: unsupported backend type")
	// ErrDeviceCreation is returned when the instance, adapter, device or surface cannot be created.
	ErrDeviceCreation = errors.New("backend: device creation failed")
	// ErrNoFrame is returned when a frame-scoped call is made outside BeginFrame/EndFrame.
	ErrNoFrame = errors.New("backend: no frame is recording")
	// ErrFrameInProgress is returned by BeginFrame when the previous frame was never ended or aborted.
	ErrFrameInProgress = errors.New("backend: frame already recording")
	// ErrNoPass is returned when a pass-scoped call is made with no render pass open.
	ErrNoPass = errors.New("backend: no render pass is open")
	// ErrPassOpen is returned when an operation that must happen outside a render pass is made inside one.
	ErrPassOpen = errors.New("backend: render pass is open")
	// ErrInPassUpdateRejected is returned by UpdateBufferInPass when the backend policy is PolicyReject.
	ErrInPassUpdateRejected = errors.New("backend: buffer updates inside a render pass are not supported")
	// ErrUnknownPipeline is returned when SetPipeline names a pipeline that was never registered.
	ErrUnknownPipeline = errors.New("backend: unknown pipeline")
	// ErrBufferTooLarge is returned when a buffer larger than Limits.MaxBufferSize is requested.
	ErrBufferTooLarge = errors.New("backend: buffer exceeds device limit")
	// ErrTextureTooLarge is returned when a texture dimension exceeds Limits.MaxTextureDimension2D.
	ErrTextureTooLarge = errors.New("backend: texture exceeds device limit")
	// ErrUnaligned is returned when a buffer write offset or length is not a multiple of CopyAlignment.
	ErrUnaligned = errors.New("backend: buffer write is not 4-byte aligned")
	// ErrReleased is returned when a released resource is used.
	ErrReleased = errors.New("backend: resource already released")
)

// CopyAlignment is the required alignment of buffer write offsets and sizes, in bytes.
const CopyAlignment = 4

// Type identifies a Backend implementation.
type Type int

const (
	// TypeWGPU selects the WebGPU device backend.
	TypeWGPU Type = iota
	// TypeRecording selects the headless recording backend.
	TypeRecording
)

func (t Type) String() string {
	switch t {
	case TypeWGPU:
		return "wgpu"
	case TypeRecording:
		return "recording"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting.
	PresentModeVSync PresentMode = iota
	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	PresentModeUncapped
)

// UniformUpdatePolicy describes how a backend handles a buffer update requested while a render pass is open.
type UniformUpdatePolicy int

const (
	// PolicyImmediate writes the buffer in command order without leaving the pass.
	PolicyImmediate UniformUpdatePolicy = iota
	// PolicySplitPass ends the open pass, encodes an ordered copy and resumes with LoadOpLoad.
	// All pass state (pipeline, geometry, viewport, scissor, resource sets) must be bound again.
	PolicySplitPass
	// PolicyReject refuses in-pass updates.
	PolicyReject
)

func (p UniformUpdatePolicy) String() string {
	switch p {
	case PolicyImmediate:
		return "immediate"
	case PolicySplitPass:
		return "split-pass"
	case PolicyReject:
		return "reject"
	default:
		return fmt.Sprintf("UniformUpdatePolicy(%d)", int(p))
	}
}

// Limits reports device limits relevant to the UI renderer.
type Limits struct {
	// MaxBufferSize is the largest buffer the device can allocate, in bytes.
	MaxBufferSize uint64
	// MaxTextureDimension2D is the largest width or height of a 2D texture, in texels.
	MaxTextureDimension2D uint32
}

// DefaultLimits mirrors the WebGPU default limits.
func DefaultLimits() Limits {
	return Limits{MaxBufferSize: 256 << 20, MaxTextureDimension2D: 8192}
}

// BufferUsage is a bit set of the ways a buffer is used.
type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageCopySrc
	BufferUsageCopyDst
)

// TextureUsage is a bit set of the ways a texture is used.
type TextureUsage uint32

const (
	TextureUsageSampled TextureUsage = 1 << iota
	TextureUsageCopyDst
	TextureUsageRenderTarget
)

// LoadOp selects what happens to a render target's contents when a pass begins.
type LoadOp int

const (
	// LoadOpClear clears the target to PassDescriptor.ClearColor.
	LoadOpClear LoadOp = iota
	// LoadOpLoad keeps the target's current contents.
	LoadOpLoad
)

// Resource is any GPU object owned by a Backend. Release frees it immediately; callers that may still
// have it referenced by in-flight work go through Backend.DeferRelease instead.
type Resource interface {
	Release()
}

// Buffer is a GPU buffer.
type Buffer interface {
	Resource
	// Label returns the debug label the buffer was created with.
	Label() string
	// Size returns the allocated size in bytes.
	Size() uint64
	// Usage returns the usage flags the buffer was created with.
	Usage() BufferUsage
}

// Texture is a 2D RGBA8 GPU texture.
type Texture interface {
	Resource
	Label() string
	Width() uint32
	Height() uint32
	Usage() TextureUsage
}

// Sampler is a GPU sampler.
type Sampler interface {
	Resource
}

// ResourceSet is a bound group of resources (uniform buffers, a texture and a sampler) selected with
// a single state change. It corresponds to a WebGPU bind group.
type ResourceSet interface {
	Resource
	Label() string
}

// ResourceEntry is one binding of a ResourceSet. Exactly one of Buffer, Texture or Sampler is set.
type ResourceEntry struct {
	Binding uint32
	Buffer  Buffer
	Texture Texture
	Sampler Sampler
}

// ResourceSetDescriptor describes a ResourceSet to create against a registered pipeline's layout.
type ResourceSetDescriptor struct {
	Label string
	// Pipeline is the key of the registered pipeline whose binding layout the set follows.
	Pipeline string
	// Group is the bind group index of the layout, always 0 for the UI pipelines.
	Group   uint32
	Entries []ResourceEntry
}

// PassDescriptor describes a render pass.
type PassDescriptor struct {
	Label string
	// Target is the texture rendered into, or nil for the current surface texture.
	Target     Texture
	Load       LoadOp
	ClearColor [4]float64
}

// Backend is the GPU device abstraction used by the renderer. Backends are not goroutine-safe and must be
// driven from the render loop only.
//
// Frame lifecycle:
//  1. BeginFrame acquires the surface texture and opens a command recording
//  2. any number of passes (BeginPass ... EndPass) are recorded
//  3. EndFrame finishes and submits the recording, or AbortFrame discards it
//  4. Present shows the surface texture
//
// Queue writes (WriteBuffer, WriteTexture) must happen outside an open pass. They take effect before the
// frame's command recording executes, so data written mid-frame must go through UpdateBufferInPass.
type Backend interface {
	// Type returns the backend implementation type.
	Type() Type

	// Limits returns the device limits.
	Limits() Limits

	// UniformUpdatePolicy returns how UpdateBufferInPass behaves on this backend.
	UniformUpdatePolicy() UniformUpdatePolicy

	// ConfigureSurface resizes the presentation surface.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	ConfigureSurface(width, height int)

	// SurfaceSize returns the size the surface is configured with.
	SurfaceSize() (width, height int)

	// RegisterPipeline creates the GPU pipeline for p and stores it under p.Key().
	//
	// Parameters:
	//   - p: the pipeline description
	//
	// Returns:
	//   - error: an error if the shader module, layout or pipeline could not be created
	RegisterPipeline(p pipeline.Pipeline) error

	// CreateBuffer allocates a zero-initialised buffer.
	CreateBuffer(label string, size uint64, usage BufferUsage) (Buffer, error)

	// CreateBufferInit allocates a buffer initialised with data. The size is data rounded up to CopyAlignment.
	CreateBufferInit(label string, data []byte, usage BufferUsage) (Buffer, error)

	// WriteBuffer writes data at offset through the queue. Offset and length must be multiples of CopyAlignment
	// and no pass may be open.
	WriteBuffer(buf Buffer, offset uint64, data []byte) error

	// CreateTexture allocates an RGBA8 texture.
	CreateTexture(label string, width, height uint32, usage TextureUsage) (Texture, error)

	// WriteTexture uploads a region of RGBA8 pixels through the queue. No pass may be open.
	WriteTexture(tex Texture, data common.TextureStagingData) error

	// CreateSampler creates a sampler. Zero fields select clamp-to-edge addressing and linear filtering.
	CreateSampler(desc common.SamplerStagingData) (Sampler, error)

	// CreateResourceSet creates a resource set following a registered pipeline's binding layout.
	CreateResourceSet(desc ResourceSetDescriptor) (ResourceSet, error)

	// BeginFrame opens the frame's command recording.
	BeginFrame() error

	// BeginPass opens a render pass in the current frame.
	BeginPass(desc PassDescriptor) error

	// SetPipeline binds a registered pipeline by key.
	SetPipeline(key string) error

	// SetGeometry binds the vertex buffer and the uint16 index buffer.
	SetGeometry(vertex, index Buffer)

	// SetViewport sets the pass viewport in target pixels.
	SetViewport(x, y, width, height float32)

	// SetResourceSet binds set at bind group index group.
	SetResourceSet(group uint32, set ResourceSet)

	// SetScissorRect restricts rasterisation to the given rectangle in target pixels.
	SetScissorRect(x, y, width, height uint32)

	// DrawIndexed draws indexCount indices starting at firstIndex, offsetting every index by baseVertex.
	DrawIndexed(indexCount, firstIndex uint32, baseVertex int32)

	// Draw draws vertexCount non-indexed vertices.
	Draw(vertexCount uint32)

	// UpdateBufferInPass writes data into buf at offset so that draws recorded after the call observe it and
	// draws recorded before it do not. Behaviour follows UniformUpdatePolicy.
	//
	// Returns:
	//   - bool: true if the pass was ended and resumed, in which case all pass state must be bound again
	//   - error: ErrInPassUpdateRejected under PolicyReject, or a recording error
	UpdateBufferInPass(buf Buffer, offset uint64, data []byte) (bool, error)

	// EndPass closes the open render pass.
	EndPass()

	// EndFrame finishes the command recording and submits it.
	EndFrame() error

	// AbortFrame discards the current command recording without submitting it. It is a no-op with no frame open.
	AbortFrame()

	// Present shows the frame's surface texture.
	Present()

	// DeferRelease releases r once all GPU work that may reference it has completed.
	DeferRelease(r Resource)

	// CollectRetired releases deferred resources whose frames have completed.
	//
	// Returns:
	//   - int: the number of resources released
	CollectRetired() int

	// PendingReleases returns the number of deferred resources not yet released.
	PendingReleases() int

	// WaitIdle blocks until the device has finished all submitted work and releases every deferred resource.
	WaitIdle()

	// Release destroys the device and every resource still pending release.
	Release()
}

// Config carries the settings a Backend is constructed with.
type Config struct {
	// Surface is the platform surface source. For the wgpu backend it is a *wgpu.SurfaceDescriptor; nil
	// creates an offscreen device.
	Surface any
	// Width and Height are the initial surface size in pixels.
	Width, Height int
	PresentMode   PresentMode
	// ForceFallbackAdapter requests a software adapter.
	ForceFallbackAdapter bool
	// SPIRVShaders compiles WGSL to SPIR-V before creating shader modules.
	SPIRVShaders bool
	// Policy, Limits and AutoRetire configure the recording backend.
	Policy     UniformUpdatePolicy
	Limits     *Limits
	AutoRetire bool
}

// Factory constructs a Backend from a Config.
type Factory func(cfg Config) (Backend, error)

var factories = map[Type]Factory{
	TypeRecording: func(cfg Config) (Backend, error) {
		return newRecordingBackend(cfg), nil
	},
}

// Register makes a Backend implementation available to New. Backends with native dependencies register
// themselves from an init function so importing them is opt-in.
//
// Parameters:
//   - t: the backend type
//   - f: the constructor
func Register(t Type, f Factory) {
	factories[t] = f
}

// New constructs a Backend of type t.
//
// Parameters:
//   - t: the backend type
//   - options: functional options configuring the backend
//
// Returns:
//   - Backend: the constructed backend
//   - error: ErrUnsupportedBackend if t was never registered, or the factory's error
func New(t Type, options ...ConfigOption) (Backend, error) {
	f, ok := factories[t]
	if !ok {
		return nil, fmt.Errorf("%s: %w", t, ErrUnsupportedBackend)
	}
	cfg := Config{Width: 1, Height: 1}
	for _, opt := range options {
		opt(&cfg)
	}
	b, err := f(cfg)
	if err != nil {
		return nil, err
	}
	common.Logger().Info("backend created", "type", t.String(), "policy", b.UniformUpdatePolicy().String())
	return b, nil
}

// AlignUp rounds n up to the next multiple of CopyAlignment.
func AlignUp(n uint64) uint64 {
	return (n + CopyAlignment - 1) &^ (CopyAlignment - 1)
}
