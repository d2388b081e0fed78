// Package buffer_manager owns the growable vertex and index buffers the draw-list replayer uploads into, plus the
// fixed-size frame uniform buffer every UI resource set references.
//
// A BufferManager is not goroutine-safe and must only be used from the render loop.
package buffer_manager

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gui/common"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/pipeline"
)

var (
	// ErrCapacityExceeded is returned when a requested capacity is larger than the device's maximum buffer size.
	ErrCapacityExceeded = errors.New("buffer_manager: required capacity exceeds device limit")
)

// Kind identifies one of the growable buffers.
type Kind int

const (
	// KindVertex is the draw-list vertex buffer. Capacity is counted in vertices.
	KindVertex Kind = iota
	// KindIndex is the uint16 index buffer. Capacity is counted in indices.
	KindIndex
)

func (k Kind) String() string {
	switch k {
	case KindVertex:
		return "vertex"
	case KindIndex:
		return "index"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ElementSize returns the size in bytes of one element of the buffer kind.
func (k Kind) ElementSize() uint64 {
	if k == KindIndex {
		return 2
	}
	return pipeline.UIVertexStride
}

func (k Kind) usage() backend.BufferUsage {
	if k == KindIndex {
		return backend.BufferUsageIndex | backend.BufferUsageCopyDst
	}
	return backend.BufferUsageVertex | backend.BufferUsageCopyDst
}

// FrameUniforms is the CPU mirror of the frame uniform block: the projection and the global alpha.
type FrameUniforms struct {
	Projection [16]float32
	Alpha      float32
	_          [3]float32
}

// FrameUniformsSize is the size of FrameUniforms on the GPU.
const FrameUniformsSize = 80

// NewFrameUniforms builds the frame uniforms for a display rectangle.
//
// Parameters:
//   - display: the display rectangle in display units
//   - alpha: the global alpha multiplier
//
// Returns:
//   - FrameUniforms: the uniform block
func NewFrameUniforms(display common.Rect, alpha float32) FrameUniforms {
	u := FrameUniforms{Alpha: alpha}
	common.Ortho(u.Projection[:], display.MinX, display.MaxX, display.MinY, display.MaxY)
	return u
}

// growable is one buffer that is replaced by a larger one when a frame does not fit.
type growable struct {
	kind          Kind
	buf           backend.Buffer
	capacity      int
	reallocations int
}

// bufferManager is the unexported implementation of BufferManager.
type bufferManager struct {
	b backend.Backend

	buffers [2]*growable
	frame   backend.Buffer

	initial [2]int
	growth  float64
}

// BufferManager provides capacity-managed geometry buffers. Buffers only ever grow; a replaced buffer goes through the
// backend free queue since the previous frame may still read from it.
type BufferManager interface {
	// EnsureCapacity makes sure the buffer of the given kind holds at least required elements.
	// A growing buffer is reallocated to max(required, capacity*growth), capped at the device maximum.
	//
	// Parameters:
	//   - kind: the buffer kind
	//   - required: the number of elements the next upload needs
	//
	// Returns:
	//   - bool: true if the buffer was reallocated
	//   - error: ErrCapacityExceeded if required elements do not fit into the largest buffer the device allows
	EnsureCapacity(kind Kind, required int) (bool, error)

	// Write ensures capacity and overwrites the buffer from offset 0. The data is padded to the copy alignment.
	//
	// Parameters:
	//   - kind: the buffer kind
	//   - data: the packed elements
	//
	// Returns:
	//   - error: capacity or backend write errors
	Write(kind Kind, data []byte) error

	// WriteFrameUniforms writes the frame uniform block through the queue. No pass may be open.
	WriteFrameUniforms(u FrameUniforms) error

	// UpdateFrameUniformsInPass writes the frame uniform block while a pass is open, following the backend's
	// UniformUpdatePolicy.
	//
	// Returns:
	//   - bool: true if the backend restarted the pass and state must be bound again
	//   - error: the backend error, wrapping backend.ErrInPassUpdateRejected under PolicyReject
	UpdateFrameUniformsInPass(u FrameUniforms) (bool, error)

	// Buffer returns the current buffer of the given kind. The returned buffer changes after a reallocation.
	Buffer(kind Kind) backend.Buffer

	// FrameUniformBuffer returns the frame uniform buffer. It is never reallocated.
	FrameUniformBuffer() backend.Buffer

	// Capacity returns the capacity of the buffer of the given kind, in elements.
	Capacity(kind Kind) int

	// Reallocations returns how many times the buffer of the given kind was replaced.
	Reallocations(kind Kind) int

	// Release hands every buffer to the backend free queue.
	Release()
}

var _ BufferManager = &bufferManager{}

// NewBufferManager allocates the vertex, index and frame uniform buffers.
//
// Parameters:
//   - b: the backend to allocate on
//   - options: functional options for capacity and growth
//
// Returns:
//   - BufferManager: the manager
//   - error: an error if an initial allocation fails
func NewBufferManager(b backend.Backend, options ...BufferManagerBuilderOption) (BufferManager, error) {
	m := &bufferManager{
		b:       b,
		initial: [2]int{5000, 10000},
		growth:  1.5,
	}
	for _, opt := range options {
		opt(m)
	}

	frame, err := b.CreateBuffer("frame_uniforms", FrameUniformsSize, backend.BufferUsageUniform|backend.BufferUsageCopyDst)
	if err != nil {
		return nil, fmt.Errorf("frame uniforms: %w", err)
	}
	m.frame = frame

	for _, kind := range []Kind{KindVertex, KindIndex} {
		g := &growable{kind: kind}
		if err := m.allocate(g, max(m.initial[kind], 1)); err != nil {
			m.Release()
			return nil, err
		}
		m.buffers[kind] = g
	}
	return m, nil
}

func (m *bufferManager) allocate(g *growable, capacity int) error {
	size := backend.AlignUp(uint64(capacity) * g.kind.ElementSize())
	buf, err := m.b.CreateBuffer(g.kind.String(), size, g.kind.usage())
	if err != nil {
		return fmt.Errorf("%s buffer (%d elements): %w", g.kind, capacity, err)
	}
	if g.buf != nil {
		m.b.DeferRelease(g.buf)
	}
	g.buf = buf
	g.capacity = capacity
	return nil
}

func (m *bufferManager) EnsureCapacity(kind Kind, required int) (bool, error) {
	g := m.buffers[kind]
	if required <= g.capacity {
		return false, nil
	}

	elem := kind.ElementSize()
	limit := int(m.b.Limits().MaxBufferSize / elem)
	if required > limit {
		return false, fmt.Errorf("%s buffer: %d elements of %d bytes (device maximum %d bytes): %w",
			kind, required, elem, m.b.Limits().MaxBufferSize, ErrCapacityExceeded)
	}

	grown := max(required, int(float64(g.capacity)*m.growth))
	grown = min(grown, limit)
	old := g.capacity
	if err := m.allocate(g, grown); err != nil {
		return false, err
	}
	g.reallocations++
	common.Logger().Debug("buffer grown", "kind", kind.String(), "from", old, "to", grown, "required", required)
	return true, nil
}

func (m *bufferManager) Write(kind Kind, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	elem := int(kind.ElementSize())
	if _, err := m.EnsureCapacity(kind, (len(data)+elem-1)/elem); err != nil {
		return err
	}
	if err := m.b.WriteBuffer(m.buffers[kind].buf, 0, pad(data)); err != nil {
		return fmt.Errorf("write %s buffer: %w", kind, err)
	}
	return nil
}

func (m *bufferManager) WriteFrameUniforms(u FrameUniforms) error {
	if err := m.b.WriteBuffer(m.frame, 0, common.StructToBytes(&u)); err != nil {
		return fmt.Errorf("write frame uniforms: %w", err)
	}
	return nil
}

func (m *bufferManager) UpdateFrameUniformsInPass(u FrameUniforms) (bool, error) {
	return m.b.UpdateBufferInPass(m.frame, 0, common.StructToBytes(&u))
}

func (m *bufferManager) Buffer(kind Kind) backend.Buffer {
	return m.buffers[kind].buf
}

func (m *bufferManager) FrameUniformBuffer() backend.Buffer {
	return m.frame
}

func (m *bufferManager) Capacity(kind Kind) int {
	return m.buffers[kind].capacity
}

func (m *bufferManager) Reallocations(kind Kind) int {
	return m.buffers[kind].reallocations
}

func (m *bufferManager) Release() {
	for _, g := range m.buffers {
		if g != nil && g.buf != nil {
			m.b.DeferRelease(g.buf)
			g.buf = nil
			g.capacity = 0
		}
	}
	if m.frame != nil {
		m.b.DeferRelease(m.frame)
		m.frame = nil
	}
}

// pad returns data extended with zeros to the copy alignment.
func pad(data []byte) []byte {
	n := backend.AlignUp(uint64(len(data)))
	if n == uint64(len(data)) {
		return data
	}
	out := make([]byte, n)
	copy(out, data)
	return out
}
