package backend

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gui/common"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/pipeline"
)

// ErrInvalidDraw is recorded as a violation when a draw would read unbound, released or unwritten data.
var ErrInvalidDraw = errors.New("backend: invalid draw")

// Op identifies a recorded command.
type Op int

const (
	OpBeginFrame Op = iota
	OpBeginPass
	OpSetPipeline
	OpSetGeometry
	OpSetViewport
	OpSetResourceSet
	OpSetScissorRect
	OpDrawIndexed
	OpDraw
	OpUpdateBuffer
	OpEndPass
	OpEndFrame
	OpAbortFrame
	OpPresent
	OpWriteBuffer
	OpWriteTexture
)

var opNames = [...]string{
	OpBeginFrame:     "BeginFrame",
	OpBeginPass:      "BeginPass",
	OpSetPipeline:    "SetPipeline",
	OpSetGeometry:    "SetGeometry",
	OpSetViewport:    "SetViewport",
	OpSetResourceSet: "SetResourceSet",
	OpSetScissorRect: "SetScissorRect",
	OpDrawIndexed:    "DrawIndexed",
	OpDraw:           "Draw",
	OpUpdateBuffer:   "UpdateBuffer",
	OpEndPass:        "EndPass",
	OpEndFrame:       "EndFrame",
	OpAbortFrame:     "AbortFrame",
	OpPresent:        "Present",
	OpWriteBuffer:    "WriteBuffer",
	OpWriteTexture:   "WriteTexture",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Command is one entry of the recording backend's command log. Only the fields relevant to Op are set.
type Command struct {
	Op Op
	// Label is the pass label for OpBeginPass and the pipeline key for OpSetPipeline.
	Label  string
	Target Texture
	Load   LoadOp

	Group uint32
	Set   ResourceSet

	Buffer Buffer
	Offset uint64
	Data   []byte

	Texture Texture

	Rect     [4]uint32
	Viewport [4]float32

	IndexCount  uint32
	FirstIndex  uint32
	BaseVertex  int32
	VertexCount uint32

	// Uniforms is a snapshot, taken at draw time, of every uniform buffer bound through group 0, keyed by binding.
	Uniforms map[uint32][]byte
}

// RecordingBackend is a headless Backend that keeps buffer and texture contents in memory and records every
// command instead of executing it. It enforces the same frame and pass rules as a device backend and records
// a violation for every draw that would read unbound, released or unwritten data.
type RecordingBackend interface {
	Backend

	// Commands returns the command log since the last ResetCommands.
	Commands() []Command

	// Draws returns the OpDrawIndexed and OpDraw entries of the command log.
	Draws() []Command

	// ResetCommands clears the command log and the violations.
	ResetCommands()

	// ReadBuffer returns a copy of buf's current contents.
	ReadBuffer(buf Buffer) []byte

	// ReadTexture returns a copy of tex's RGBA8 pixels.
	ReadTexture(tex Texture) []byte

	// Retire marks all submitted frames as completed on the device.
	Retire()

	// Generation returns the number of submitted and completed frames.
	Generation() (submitted, completed uint64)

	// LiveResources returns the number of resources created and not yet released.
	LiveResources() int

	// Violations returns every rule violation recorded since the last ResetCommands.
	Violations() []error
}

type recBuffer struct {
	owner    *recordingBackend
	label    string
	usage    BufferUsage
	data     []byte
	written  uint64
	released bool
}

func (r *recBuffer) Label() string      { return r.label }
func (r *recBuffer) Size() uint64       { return uint64(len(r.data)) }
func (r *recBuffer) Usage() BufferUsage { return r.usage }
func (r *recBuffer) Release() {
	if !r.released {
		r.released = true
		r.owner.live--
	}
}

type recTexture struct {
	owner    *recordingBackend
	label    string
	width    uint32
	height   uint32
	usage    TextureUsage
	pixels   []byte
	released bool
}

func (r *recTexture) Label() string       { return r.label }
func (r *recTexture) Width() uint32       { return r.width }
func (r *recTexture) Height() uint32      { return r.height }
func (r *recTexture) Usage() TextureUsage { return r.usage }
func (r *recTexture) Release() {
	if !r.released {
		r.released = true
		r.owner.live--
	}
}

type recSampler struct {
	owner    *recordingBackend
	desc     common.SamplerStagingData
	released bool
}

func (r *recSampler) Release() {
	if !r.released {
		r.released = true
		r.owner.live--
	}
}

type recResourceSet struct {
	owner    *recordingBackend
	label    string
	entries  []ResourceEntry
	released bool
}

func (r *recResourceSet) Label() string { return r.label }
func (r *recResourceSet) Release() {
	if !r.released {
		r.released = true
		r.owner.live--
	}
}

// recordingBackend is the implementation of the RecordingBackend interface.
type recordingBackend struct {
	limits     Limits
	policy     UniformUpdatePolicy
	autoRetire bool
	width      int
	height     int

	pipelines map[string]pipeline.Pipeline
	free      *FreeQueue
	gens      Generations
	live      int

	commands   []Command
	violations []error

	passOpen bool
	pass     PassDescriptor
	bound    string
	vertex   Buffer
	index    Buffer
	sets     map[uint32]ResourceSet
}

var _ RecordingBackend = &recordingBackend{}

// NewRecordingBackend creates a headless recording backend. WithUniformUpdatePolicy, WithLimits, WithAutoRetire and
// WithSurface (size only) configure it.
//
// Parameters:
//   - options: functional options configuring the backend
//
// Returns:
//   - RecordingBackend: the new backend
func NewRecordingBackend(options ...ConfigOption) RecordingBackend {
	cfg := Config{Width: 1, Height: 1}
	for _, opt := range options {
		opt(&cfg)
	}
	return newRecordingBackend(cfg)
}

func newRecordingBackend(cfg Config) *recordingBackend {
	limits := DefaultLimits()
	if cfg.Limits != nil {
		limits = *cfg.Limits
	}
	return &recordingBackend{
		limits:     limits,
		policy:     cfg.Policy,
		autoRetire: cfg.AutoRetire,
		width:      max(cfg.Width, 1),
		height:     max(cfg.Height, 1),
		pipelines:  make(map[string]pipeline.Pipeline),
		free:       NewFreeQueue(),
		sets:       make(map[uint32]ResourceSet),
	}
}

func (b *recordingBackend) Type() Type {
	return TypeRecording
}

func (b *recordingBackend) Limits() Limits {
	return b.limits
}

func (b *recordingBackend) UniformUpdatePolicy() UniformUpdatePolicy {
	return b.policy
}

func (b *recordingBackend) ConfigureSurface(width, height int) {
	b.width, b.height = max(width, 1), max(height, 1)
}

func (b *recordingBackend) SurfaceSize() (int, int) {
	return b.width, b.height
}

func (b *recordingBackend) RegisterPipeline(p pipeline.Pipeline) error {
	if p.Shader() == nil {
		return fmt.Errorf("pipeline %s: missing shader", p.PipelineKey())
	}
	p.SetPipeline(p.PipelineKey())
	b.pipelines[p.PipelineKey()] = p
	return nil
}

func (b *recordingBackend) CreateBuffer(label string, size uint64, usage BufferUsage) (Buffer, error) {
	if size > b.limits.MaxBufferSize {
		return nil, fmt.Errorf("buffer %s (%d bytes): %w", label, size, ErrBufferTooLarge)
	}
	b.live++
	return &recBuffer{owner: b, label: label, usage: usage, data: make([]byte, AlignUp(max(size, CopyAlignment)))}, nil
}

func (b *recordingBackend) CreateBufferInit(label string, data []byte, usage BufferUsage) (Buffer, error) {
	size := AlignUp(max(uint64(len(data)), CopyAlignment))
	buf, err := b.CreateBuffer(label, size, usage)
	if err != nil {
		return nil, err
	}
	rb := buf.(*recBuffer)
	copy(rb.data, data)
	rb.written = size
	return rb, nil
}

func (b *recordingBackend) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	if b.passOpen {
		return b.violate(fmt.Errorf("write %s: %w", buf.Label(), ErrPassOpen))
	}
	if err := b.writeBuffer(buf, offset, data); err != nil {
		return err
	}
	b.record(Command{Op: OpWriteBuffer, Buffer: buf, Offset: offset, Data: clone(data)})
	return nil
}

func (b *recordingBackend) writeBuffer(buf Buffer, offset uint64, data []byte) error {
	rb := buf.(*recBuffer)
	if rb.released {
		return b.violate(fmt.Errorf("write %s: %w", rb.label, ErrReleased))
	}
	if offset%CopyAlignment != 0 || uint64(len(data))%CopyAlignment != 0 {
		return b.violate(fmt.Errorf("write %s at %d (%d bytes): %w", rb.label, offset, len(data), ErrUnaligned))
	}
	end := offset + uint64(len(data))
	if end > uint64(len(rb.data)) {
		return b.violate(fmt.Errorf("write %s: range %d..%d exceeds size %d", rb.label, offset, end, len(rb.data)))
	}
	copy(rb.data[offset:], data)
	if offset <= rb.written {
		rb.written = max(rb.written, end)
	}
	return nil
}

func (b *recordingBackend) CreateTexture(label string, width, height uint32, usage TextureUsage) (Texture, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("texture %s: zero size %dx%d", label, width, height)
	}
	if width > b.limits.MaxTextureDimension2D || height > b.limits.MaxTextureDimension2D {
		return nil, fmt.Errorf("texture %s (%dx%d): %w", label, width, height, ErrTextureTooLarge)
	}
	b.live++
	return &recTexture{owner: b, label: label, width: width, height: height, usage: usage, pixels: make([]byte, int(width)*int(height)*4)}, nil
}

func (b *recordingBackend) WriteTexture(tex Texture, data common.TextureStagingData) error {
	rt := tex.(*recTexture)
	if b.passOpen {
		return b.violate(fmt.Errorf("write texture %s: %w", rt.label, ErrPassOpen))
	}
	if rt.released {
		return b.violate(fmt.Errorf("write texture %s: %w", rt.label, ErrReleased))
	}
	x, y := uint32(data.Origin.X), uint32(data.Origin.Y)
	if data.Origin.X < 0 || data.Origin.Y < 0 || x+data.Width > rt.width || y+data.Height > rt.height {
		return b.violate(fmt.Errorf("write texture %s: region %dx%d at %v outside %dx%d", rt.label, data.Width, data.Height, data.Origin, rt.width, rt.height))
	}
	if len(data.Pixels) < int(data.Width*data.Height*4) {
		return fmt.Errorf("write texture %s: %d bytes for %dx%d region", rt.label, len(data.Pixels), data.Width, data.Height)
	}
	row := int(data.Width) * 4
	for r := 0; r < int(data.Height); r++ {
		dst := (int(y)+r)*int(rt.width)*4 + int(x)*4
		copy(rt.pixels[dst:dst+row], data.Pixels[r*row:(r+1)*row])
	}
	b.record(Command{Op: OpWriteTexture, Texture: tex, Rect: [4]uint32{x, y, data.Width, data.Height}})
	return nil
}

func (b *recordingBackend) CreateSampler(desc common.SamplerStagingData) (Sampler, error) {
	b.live++
	return &recSampler{owner: b, desc: desc}, nil
}

func (b *recordingBackend) CreateResourceSet(desc ResourceSetDescriptor) (ResourceSet, error) {
	p, ok := b.pipelines[desc.Pipeline]
	if !ok {
		return nil, fmt.Errorf("resource set %s: %w: %q", desc.Label, ErrUnknownPipeline, desc.Pipeline)
	}
	if len(desc.Entries) != len(p.Bindings()) {
		return nil, fmt.Errorf("resource set %s: %d entries for %d bindings", desc.Label, len(desc.Entries), len(p.Bindings()))
	}
	for _, e := range desc.Entries {
		if released(e) {
			return nil, fmt.Errorf("resource set %s binding %d: %w", desc.Label, e.Binding, ErrReleased)
		}
	}
	b.live++
	return &recResourceSet{owner: b, label: desc.Label, entries: append([]ResourceEntry(nil), desc.Entries...)}, nil
}

func (b *recordingBackend) BeginFrame() error {
	if b.gens.Recording {
		return ErrFrameInProgress
	}
	b.gens.Recording = true
	b.record(Command{Op: OpBeginFrame})
	return nil
}

func (b *recordingBackend) BeginPass(desc PassDescriptor) error {
	if !b.gens.Recording {
		return b.violate(fmt.Errorf("begin pass %s: %w", desc.Label, ErrNoFrame))
	}
	if b.passOpen {
		return b.violate(fmt.Errorf("begin pass %s: %w", desc.Label, ErrPassOpen))
	}
	b.passOpen = true
	b.pass = desc
	b.resetPassState()
	b.record(Command{Op: OpBeginPass, Label: desc.Label, Target: desc.Target, Load: desc.Load})
	return nil
}

func (b *recordingBackend) SetPipeline(key string) error {
	if !b.passOpen {
		return b.violate(fmt.Errorf("set pipeline %s: %w", key, ErrNoPass))
	}
	if _, ok := b.pipelines[key]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPipeline, key)
	}
	b.bound = key
	b.record(Command{Op: OpSetPipeline, Label: key})
	return nil
}

func (b *recordingBackend) SetGeometry(vertex, index Buffer) {
	if !b.passOpen {
		b.violate(fmt.Errorf("set geometry: %w", ErrNoPass))
		return
	}
	b.vertex, b.index = vertex, index
	b.record(Command{Op: OpSetGeometry, Buffer: vertex})
}

func (b *recordingBackend) SetViewport(x, y, width, height float32) {
	if !b.passOpen {
		b.violate(fmt.Errorf("set viewport: %w", ErrNoPass))
		return
	}
	b.record(Command{Op: OpSetViewport, Viewport: [4]float32{x, y, width, height}})
}

func (b *recordingBackend) SetResourceSet(group uint32, set ResourceSet) {
	if !b.passOpen {
		b.violate(fmt.Errorf("set resource set %s: %w", set.Label(), ErrNoPass))
		return
	}
	b.sets[group] = set
	b.record(Command{Op: OpSetResourceSet, Group: group, Set: set})
}

func (b *recordingBackend) SetScissorRect(x, y, width, height uint32) {
	if !b.passOpen {
		b.violate(fmt.Errorf("set scissor: %w", ErrNoPass))
		return
	}
	tw, th := b.targetSize()
	if x+width > tw || y+height > th {
		b.violate(fmt.Errorf("scissor %d,%d %dx%d outside target %dx%d", x, y, width, height, tw, th))
	}
	b.record(Command{Op: OpSetScissorRect, Rect: [4]uint32{x, y, width, height}})
}

func (b *recordingBackend) DrawIndexed(indexCount, firstIndex uint32, baseVertex int32) {
	cmd := Command{Op: OpDrawIndexed, IndexCount: indexCount, FirstIndex: firstIndex, BaseVertex: baseVertex}
	if err := b.validateDraw(); err != nil {
		b.violate(err)
	} else if err := b.validateIndexRange(indexCount, firstIndex, baseVertex); err != nil {
		b.violate(err)
	}
	cmd.Uniforms = b.snapshotUniforms()
	b.record(cmd)
}

func (b *recordingBackend) Draw(vertexCount uint32) {
	if err := b.validateDraw(); err != nil {
		b.violate(err)
	}
	b.record(Command{Op: OpDraw, VertexCount: vertexCount, Uniforms: b.snapshotUniforms()})
}

func (b *recordingBackend) UpdateBufferInPass(buf Buffer, offset uint64, data []byte) (bool, error) {
	if !b.passOpen {
		return false, b.violate(fmt.Errorf("update %s: %w", buf.Label(), ErrNoPass))
	}
	switch b.policy {
	case PolicyImmediate:
		if err := b.writeBuffer(buf, offset, data); err != nil {
			return false, err
		}
		b.record(Command{Op: OpUpdateBuffer, Buffer: buf, Offset: offset, Data: clone(data)})
		return false, nil
	case PolicySplitPass:
		desc := b.pass
		b.EndPass()
		if err := b.writeBuffer(buf, offset, data); err != nil {
			return false, err
		}
		b.record(Command{Op: OpUpdateBuffer, Buffer: buf, Offset: offset, Data: clone(data)})
		desc.Load = LoadOpLoad
		if err := b.BeginPass(desc); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, fmt.Errorf("update %s: %w", buf.Label(), ErrInPassUpdateRejected)
	}
}

func (b *recordingBackend) EndPass() {
	if !b.passOpen {
		b.violate(fmt.Errorf("end pass: %w", ErrNoPass))
		return
	}
	b.passOpen = false
	b.resetPassState()
	b.record(Command{Op: OpEndPass})
}

func (b *recordingBackend) EndFrame() error {
	if !b.gens.Recording {
		return ErrNoFrame
	}
	if b.passOpen {
		return b.violate(fmt.Errorf("end frame: %w", ErrPassOpen))
	}
	b.gens.Recording = false
	b.gens.Submitted++
	b.record(Command{Op: OpEndFrame})
	return nil
}

func (b *recordingBackend) AbortFrame() {
	if !b.gens.Recording {
		return
	}
	b.passOpen = false
	b.resetPassState()
	b.gens.Recording = false
	b.record(Command{Op: OpAbortFrame})
}

func (b *recordingBackend) Present() {
	b.record(Command{Op: OpPresent})
	if b.autoRetire {
		b.Retire()
	}
}

func (b *recordingBackend) DeferRelease(r Resource) {
	b.free.Enqueue(r, b.gens.Tag())
}

func (b *recordingBackend) CollectRetired() int {
	return b.free.Collect(b.gens.Completed)
}

func (b *recordingBackend) PendingReleases() int {
	return b.free.Len()
}

func (b *recordingBackend) WaitIdle() {
	b.Retire()
	b.free.Flush()
}

func (b *recordingBackend) Release() {
	b.AbortFrame()
	b.free.Flush()
}

func (b *recordingBackend) Commands() []Command {
	return b.commands
}

func (b *recordingBackend) Draws() []Command {
	var draws []Command
	for _, c := range b.commands {
		if c.Op == OpDrawIndexed || c.Op == OpDraw {
			draws = append(draws, c)
		}
	}
	return draws
}

func (b *recordingBackend) ResetCommands() {
	b.commands = nil
	b.violations = nil
}

func (b *recordingBackend) ReadBuffer(buf Buffer) []byte {
	return clone(buf.(*recBuffer).data)
}

func (b *recordingBackend) ReadTexture(tex Texture) []byte {
	return clone(tex.(*recTexture).pixels)
}

func (b *recordingBackend) Retire() {
	b.gens.Completed = b.gens.Submitted
}

func (b *recordingBackend) Generation() (uint64, uint64) {
	return b.gens.Submitted, b.gens.Completed
}

func (b *recordingBackend) LiveResources() int {
	return b.live
}

func (b *recordingBackend) Violations() []error {
	return b.violations
}

func (b *recordingBackend) record(c Command) {
	b.commands = append(b.commands, c)
}

func (b *recordingBackend) violate(err error) error {
	b.violations = append(b.violations, err)
	return err
}

func (b *recordingBackend) resetPassState() {
	b.bound = ""
	b.vertex, b.index = nil, nil
	clear(b.sets)
}

func (b *recordingBackend) targetSize() (uint32, uint32) {
	if b.pass.Target != nil {
		return b.pass.Target.Width(), b.pass.Target.Height()
	}
	return uint32(b.width), uint32(b.height)
}

func (b *recordingBackend) validateDraw() error {
	n := len(b.commands)
	switch {
	case !b.passOpen:
		return fmt.Errorf("draw %d: %w", n, ErrNoPass)
	case b.bound == "":
		return fmt.Errorf("draw %d: no pipeline bound: %w", n, ErrInvalidDraw)
	}
	p := b.pipelines[b.bound]
	set, ok := b.sets[0]
	if !ok && len(p.Bindings()) > 0 {
		return fmt.Errorf("draw %d: no resource set bound: %w", n, ErrInvalidDraw)
	}
	if ok {
		rs := set.(*recResourceSet)
		if rs.released {
			return fmt.Errorf("draw %d: resource set %s released: %w", n, rs.label, ErrInvalidDraw)
		}
		for _, e := range rs.entries {
			if released(e) {
				return fmt.Errorf("draw %d: resource set %s binding %d released: %w", n, rs.label, e.Binding, ErrInvalidDraw)
			}
		}
	}
	return nil
}

func (b *recordingBackend) validateIndexRange(indexCount, firstIndex uint32, baseVertex int32) error {
	n := len(b.commands)
	if b.vertex == nil || b.index == nil {
		return fmt.Errorf("draw %d: no geometry bound: %w", n, ErrInvalidDraw)
	}
	vb, ib := b.vertex.(*recBuffer), b.index.(*recBuffer)
	if vb.released || ib.released {
		return fmt.Errorf("draw %d: geometry released: %w", n, ErrInvalidDraw)
	}
	end := uint64(firstIndex+indexCount) * 2
	if end > ib.written {
		return fmt.Errorf("draw %d: index range ..%d beyond written %d: %w", n, end, ib.written, ErrInvalidDraw)
	}
	layout := b.pipelines[b.bound].VertexLayout()
	if layout == nil || indexCount == 0 {
		return nil
	}
	var maxIndex uint16
	for i := firstIndex; i < firstIndex+indexCount; i++ {
		maxIndex = max(maxIndex, binary.LittleEndian.Uint16(ib.data[i*2:]))
	}
	vend := (int64(maxIndex) + int64(baseVertex) + 1) * int64(layout.Stride)
	if int64(baseVertex) < 0 || vend > int64(vb.written) {
		return fmt.Errorf("draw %d: vertex range ..%d beyond written %d: %w", n, vend, vb.written, ErrInvalidDraw)
	}
	return nil
}

func (b *recordingBackend) snapshotUniforms() map[uint32][]byte {
	set, ok := b.sets[0]
	if !ok {
		return nil
	}
	out := make(map[uint32][]byte)
	for _, e := range set.(*recResourceSet).entries {
		if e.Buffer != nil && e.Buffer.Usage()&BufferUsageUniform != 0 {
			out[e.Binding] = clone(e.Buffer.(*recBuffer).data)
		}
	}
	return out
}

func released(e ResourceEntry) bool {
	switch {
	case e.Buffer != nil:
		return e.Buffer.(*recBuffer).released
	case e.Texture != nil:
		return e.Texture.(*recTexture).released
	case e.Sampler != nil:
		return e.Sampler.(*recSampler).released
	default:
		return false
	}
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
