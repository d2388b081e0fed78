package renderer

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/Carmen-Shannon/oxy-gui/common"
	"github.com/Carmen-Shannon/oxy-gui/engine/font_atlas"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/binding_cache"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/buffer_manager"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/draw_list"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-gui/engine/texture"
	"golang.org/x/image/font"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipelineCache map[string]pipeline.Pipeline

	backendType    backend.Type
	backend        backend.Backend
	ownsBackend    bool
	backendOptions []backend.ConfigOption

	arena    texture.Arena
	buffers  buffer_manager.BufferManager
	cache    binding_cache.BindingCache
	replayer draw_list.Replayer

	state       FrameState
	invalidated bool
	drawn       bool
	pendingSize *image.Point
	lastStats   draw_list.ReplayStats

	// Pre-creation config collected from builder options
	clearColor        [4]float64
	initialVertex     int
	initialIndex      int
	conversionWorkers int
	fontFace          font.Face

	fontAtlas   font_atlas.Atlas
	fontTexture texture.Texture
	fontHandle  binding_cache.Handle

	extraPipelines []pipeline.Pipeline
	unsubscribe    []func()
}

// Renderer is the UI renderer facade.
//
// It owns the texture arena, the binding cache, the dynamic geometry buffers and the draw-list replayer, and
// drives them through a frame state machine:
//
//	BeginFrame -> [DrawIndexedGraphics ...] -> RenderDrawData -> EndFrame -> Present
//
// Structural texture changes reported by the arena invalidate the affected cache entries. A Resize or
// DiscardFrame during recording invalidates the whole frame; EndFrame then aborts it and returns
// ErrFrameDiscarded.
//
// Renderer is not goroutine-safe apart from the pipeline cache accessors and must be driven from the render loop.
type Renderer interface {
	// Pipeline retrieves the registered Pipeline associated with the given key, or nil.
	Pipeline(key string) pipeline.Pipeline

	// Pipelines returns a copy of the registered pipelines keyed by PipelineKey.
	Pipelines() map[string]pipeline.Pipeline

	// RegisterPipelines registers one or more pipelines with the backend and caches them by PipelineKey.
	// Pipelines whose keys are already registered are skipped to avoid duplicate GPU resource creation.
	//
	// Parameters:
	//   - pipelines: the Pipelines to register
	//
	// Returns:
	//   - error: an error if pipeline creation fails
	RegisterPipelines(pipelines ...pipeline.Pipeline) error

	// CreateTexture allocates a blank owned texture.
	//
	// Parameters:
	//   - width, height: the size in texels
	//   - renderTarget: true if the texture will be rendered into, e.g. by DrawIndexedGraphics
	//
	// Returns:
	//   - texture.Texture: the new texture
	//   - error: texture.ErrInvalidSize or a backend allocation error
	CreateTexture(width, height int, renderTarget bool) (texture.Texture, error)

	// TextureFromBitmap creates a texture mirroring bmp. Bitmap modifications are re-uploaded at the next
	// RenderDrawData and disposing the bitmap disposes the texture and unbinds it.
	//
	// Parameters:
	//   - bmp: the image source
	//
	// Returns:
	//   - texture.Texture: the new texture
	//   - error: a size or allocation error
	TextureFromBitmap(bmp texture.Bitmap) (texture.Texture, error)

	// CreateTextureWindow creates a view of a rectangle of base. The window shares base's GPU memory.
	//
	// Parameters:
	//   - base: the texture to view, may itself be a window
	//   - topLeft: the window origin inside base, in texels
	//   - size: the window size in texels
	//
	// Returns:
	//   - texture.Texture: the window
	//   - error: texture.ErrWindowOutOfBounds or texture.ErrDisposed
	CreateTextureWindow(base texture.Texture, topLeft, size image.Point) (texture.Texture, error)

	// CreatePalette creates a palette texture for DrawIndexedGraphics.
	//
	// Parameters:
	//   - colors: the palette entries
	//   - transparentIndex: the entry forced to zero alpha, or -1
	//
	// Returns:
	//   - texture.Texture: the palette
	//   - error: texture.ErrInvalidSize for an empty palette
	CreatePalette(colors []color.NRGBA, transparentIndex int) (texture.Texture, error)

	// GetOrCreateBinding returns the stable handle drawing tex with the given sampling options. Draw commands
	// reference textures by this handle.
	//
	// Parameters:
	//   - tex: the texture to bind
	//   - options: binding_cache.WithInterpolation, binding_cache.WithAlpha
	//
	// Returns:
	//   - binding_cache.Handle: the handle
	//   - error: a backend resource creation error
	GetOrCreateBinding(tex texture.Texture, options ...binding_cache.BindingOption) (binding_cache.Handle, error)

	// SetInterpolation changes the default interpolation of tex. Existing handles keep their sampler.
	SetInterpolation(tex texture.Texture, mode texture.Interpolation)

	// Unbind drops every binding of tex. Handles of tex become unknown.
	Unbind(tex texture.Texture)

	// ResizeTexture replaces the GPU texture of an owned texture with a blank one of the new size. Bindings of
	// the texture and of its windows are invalidated.
	ResizeTexture(tex texture.Texture, width, height int) error

	// DrawIndexedGraphics expands a tile map into target through the indexed graphics pipeline. It must be
	// called while a frame is recording and before RenderDrawData, so the UI pass samples the written target.
	//
	// Parameters:
	//   - target: an owned render target texture
	//   - graphics: one byte per pixel palette indices, TileWidth*TileHeight bytes per tile
	//   - tileMap: the tile index of every map cell, row-major
	//   - tileFlags: the flags of every map cell, bit 0 flips horizontally and bit 1 vertically
	//   - palette: a palette texture
	//   - desc: tile and map dimensions and the scroll offset
	//
	// Returns:
	//   - error: ErrFrameNotRecording, ErrFrameDiscarded, ErrDrawDataAlreadyRendered, ErrInvalidIndexedGraphics,
	//     texture.ErrNotPalette or a backend error
	DrawIndexedGraphics(target texture.Texture, graphics []byte, tileMap, tileFlags []uint32, palette texture.Texture, desc IndexedGraphicsDesc) error

	// FontTextureID returns the binding of the renderer-owned font atlas texture.
	FontTextureID() binding_cache.Handle

	// FontAtlas returns the glyph placement of the font atlas.
	FontAtlas() font_atlas.Atlas

	// BeginFrame starts recording a frame and releases GPU resources retired by completed frames.
	//
	// Returns:
	//   - error: backend.ErrFrameInProgress if a frame is already recording, or a surface acquisition error
	BeginFrame() error

	// RenderDrawData flushes pending texture uploads and replays dd into the surface. At most one DrawData is
	// rendered per frame. A replay error aborts the frame.
	//
	// Returns:
	//   - draw_list.ReplayStats: the replay counters
	//   - error: ErrFrameNotRecording, ErrFrameDiscarded, ErrDrawDataAlreadyRendered or the replay error
	RenderDrawData(dd *draw_list.DrawData) (draw_list.ReplayStats, error)

	// EndFrame submits the recorded frame. An invalidated frame is aborted instead and EndFrame returns
	// ErrFrameDiscarded; a deferred resize is applied then.
	EndFrame() error

	// Present shows the submitted frame. It does nothing when no frame was submitted.
	Present()

	// Resize reconfigures the surface. While a frame is recording the frame is invalidated and the new size
	// applies once it has been discarded.
	Resize(width, height int)

	// DiscardFrame invalidates the recording frame, e.g. because the window is closing. It does nothing
	// outside a frame.
	DiscardFrame()

	// State returns the frame lifecycle state.
	State() FrameState

	// LastReplayStats returns the counters of the most recent successful RenderDrawData.
	LastReplayStats() draw_list.ReplayStats

	// CacheStats returns the binding cache counters.
	CacheStats() binding_cache.Stats

	// Arena returns the texture arena.
	Arena() texture.Arena

	// Backend returns the GPU backend.
	Backend() backend.Backend

	// Release frees every GPU resource. An injected backend is drained but not released.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer. Without WithBackend the backend is constructed through backend.New; the wgpu
// backend is only available when its package has been imported.
//
// Parameters:
//   - options: functional options configuring the renderer
//
// Returns:
//   - Renderer: the renderer
//   - error: backend.ErrUnsupportedBackend, backend.ErrDeviceCreation or a resource creation error
func NewRenderer(options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:            &sync.Mutex{},
		pipelineCache: make(map[string]pipeline.Pipeline),
		backendType:   backend.TypeWGPU,
		clearColor:    [4]float64{0, 0, 0, 1},
	}

	// Apply options first so backend config is available before the device is requested.
	for _, opt := range options {
		opt(r)
	}

	if r.backend == nil {
		b, err := backend.New(r.backendType, r.backendOptions...)
		if err != nil {
			return nil, fmt.Errorf("renderer: %w", err)
		}
		r.backend = b
		r.ownsBackend = true
	}

	if err := r.init(); err != nil {
		r.Release()
		return nil, err
	}
	return r, nil
}

func (r *renderer) init() error {
	pipelines := append([]pipeline.Pipeline{pipeline.NewUIPipeline(), pipeline.NewIndexedGraphicsPipeline()}, r.extraPipelines...)
	if err := r.RegisterPipelines(pipelines...); err != nil {
		return fmt.Errorf("renderer: %w", err)
	}

	var bufferOptions []buffer_manager.BufferManagerBuilderOption
	if r.initialVertex > 0 {
		bufferOptions = append(bufferOptions, buffer_manager.WithInitialCapacity(buffer_manager.KindVertex, r.initialVertex))
	}
	if r.initialIndex > 0 {
		bufferOptions = append(bufferOptions, buffer_manager.WithInitialCapacity(buffer_manager.KindIndex, r.initialIndex))
	}
	buffers, err := buffer_manager.NewBufferManager(r.backend, bufferOptions...)
	if err != nil {
		return fmt.Errorf("renderer: %w", err)
	}
	r.buffers = buffers
	r.cache = binding_cache.NewBindingCache(r.backend, buffers.FrameUniformBuffer())
	r.replayer = draw_list.NewReplayer(r.backend, buffers, r.cache, draw_list.WithClearColor(r.clearColor))

	r.arena = texture.NewArena(r.backend, texture.WithConversionWorkers(r.conversionWorkers))
	r.unsubscribe = append(r.unsubscribe,
		r.arena.OnStructuralChange(r.cache.Invalidate),
		r.arena.OnDisposed(r.cache.Unbind),
	)

	return r.initFontAtlas()
}

// initFontAtlas rasterises the font face and binds the atlas. The atlas texture is owned by the renderer and
// released with the arena.
func (r *renderer) initFontAtlas() error {
	face := r.fontFace
	if face == nil {
		face = font_atlas.DefaultFace()
	}
	atlas, err := font_atlas.New(face)
	if err != nil {
		return fmt.Errorf("renderer font atlas: %w", err)
	}
	tex, err := r.arena.FromBitmap(texture.NewImageBitmap(atlas.Image()))
	if err != nil {
		return fmt.Errorf("renderer font atlas: %w", err)
	}
	h, err := r.cache.GetOrCreateBinding(tex)
	if err != nil {
		return fmt.Errorf("renderer font atlas: %w", err)
	}
	r.fontAtlas = atlas
	r.fontTexture = tex
	r.fontHandle = h
	return nil
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) Pipelines() map[string]pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]pipeline.Pipeline, len(r.pipelineCache))
	for k, p := range r.pipelineCache {
		out[k] = p
	}
	return out
}

func (r *renderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pipelines {
		key := p.PipelineKey()
		if _, exists := r.pipelineCache[key]; exists {
			continue
		}
		if err := r.backend.RegisterPipeline(p); err != nil {
			return err
		}
		r.pipelineCache[key] = p
	}
	return nil
}

func (r *renderer) CreateTexture(width, height int, renderTarget bool) (texture.Texture, error) {
	return r.arena.Create(width, height, renderTarget)
}

func (r *renderer) TextureFromBitmap(bmp texture.Bitmap) (texture.Texture, error) {
	return r.arena.FromBitmap(bmp)
}

func (r *renderer) CreateTextureWindow(base texture.Texture, topLeft, size image.Point) (texture.Texture, error) {
	return r.arena.CreateWindow(base, topLeft, size)
}

func (r *renderer) CreatePalette(colors []color.NRGBA, transparentIndex int) (texture.Texture, error) {
	return r.arena.CreatePalette(colors, transparentIndex)
}

func (r *renderer) GetOrCreateBinding(tex texture.Texture, options ...binding_cache.BindingOption) (binding_cache.Handle, error) {
	return r.cache.GetOrCreateBinding(tex, options...)
}

func (r *renderer) SetInterpolation(tex texture.Texture, mode texture.Interpolation) {
	tex.SetInterpolation(mode)
}

func (r *renderer) Unbind(tex texture.Texture) {
	r.cache.Unbind(tex)
}

func (r *renderer) ResizeTexture(tex texture.Texture, width, height int) error {
	return r.arena.Resize(tex, width, height)
}

func (r *renderer) DrawIndexedGraphics(target texture.Texture, graphics []byte, tileMap, tileFlags []uint32, palette texture.Texture, desc IndexedGraphicsDesc) error {
	if err := r.checkRecording(); err != nil {
		return err
	}
	if r.drawn {
		return fmt.Errorf("indexed graphics after the ui pass: %w", ErrDrawDataAlreadyRendered)
	}
	if _, err := r.arena.Flush(); err != nil {
		return fmt.Errorf("flush textures: %w", err)
	}
	return r.drawIndexedGraphics(target, graphics, tileMap, tileFlags, palette, desc)
}

func (r *renderer) FontTextureID() binding_cache.Handle {
	return r.fontHandle
}

func (r *renderer) FontAtlas() font_atlas.Atlas {
	return r.fontAtlas
}

func (r *renderer) checkRecording() error {
	switch {
	case r.state != FrameRecording:
		return fmt.Errorf("%s: %w", r.state, ErrFrameNotRecording)
	case r.invalidated:
		return ErrFrameDiscarded
	}
	return nil
}

func (r *renderer) BeginFrame() error {
	if r.state == FrameRecording {
		return fmt.Errorf("renderer: %w", backend.ErrFrameInProgress)
	}
	if n := r.backend.CollectRetired(); n > 0 {
		common.Logger().Debug("released retired resources", "count", n)
	}
	if err := r.backend.BeginFrame(); err != nil {
		return fmt.Errorf("begin frame: %w", err)
	}
	r.state = FrameRecording
	r.invalidated = false
	r.drawn = false
	return nil
}

func (r *renderer) RenderDrawData(dd *draw_list.DrawData) (draw_list.ReplayStats, error) {
	if err := r.checkRecording(); err != nil {
		return draw_list.ReplayStats{}, err
	}
	if r.drawn {
		return draw_list.ReplayStats{}, ErrDrawDataAlreadyRendered
	}
	r.drawn = true

	if _, err := r.arena.Flush(); err != nil {
		r.abort()
		return draw_list.ReplayStats{}, fmt.Errorf("flush textures: %w", err)
	}
	stats, err := r.replayer.Replay(dd)
	if err != nil {
		r.abort()
		return stats, err
	}
	r.lastStats = stats
	return stats, nil
}

// abort discards the recording frame and returns to FrameIdle.
func (r *renderer) abort() {
	r.backend.AbortFrame()
	r.state = FrameIdle
	r.invalidated = false
	r.applyPendingSize()
}

func (r *renderer) EndFrame() error {
	if r.state != FrameRecording {
		return fmt.Errorf("%s: %w", r.state, ErrFrameNotRecording)
	}
	if r.invalidated {
		common.Logger().Warn("frame discarded")
		r.abort()
		return ErrFrameDiscarded
	}
	if err := r.backend.EndFrame(); err != nil {
		r.abort()
		return fmt.Errorf("end frame: %w", err)
	}
	r.state = FrameSubmitted
	return nil
}

func (r *renderer) Present() {
	if r.state != FrameSubmitted {
		return
	}
	r.backend.Present()
	r.state = FrameIdle
}

func (r *renderer) Resize(width, height int) {
	if r.state == FrameRecording {
		r.invalidated = true
		r.pendingSize = &image.Point{X: width, Y: height}
		return
	}
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) applyPendingSize() {
	if r.pendingSize == nil {
		return
	}
	r.backend.ConfigureSurface(r.pendingSize.X, r.pendingSize.Y)
	r.pendingSize = nil
}

func (r *renderer) DiscardFrame() {
	if r.state == FrameRecording {
		r.invalidated = true
	}
}

func (r *renderer) State() FrameState {
	return r.state
}

func (r *renderer) LastReplayStats() draw_list.ReplayStats {
	return r.lastStats
}

func (r *renderer) CacheStats() binding_cache.Stats {
	return r.cache.Stats()
}

func (r *renderer) Arena() texture.Arena {
	return r.arena
}

func (r *renderer) Backend() backend.Backend {
	return r.backend
}

func (r *renderer) Release() {
	if r.backend == nil {
		return
	}
	if r.state == FrameRecording {
		r.backend.AbortFrame()
	}
	r.state = FrameIdle
	for _, unsubscribe := range r.unsubscribe {
		unsubscribe()
	}
	r.unsubscribe = nil
	if r.cache != nil {
		r.cache.ReleaseAll()
	}
	if r.arena != nil {
		r.arena.Release()
	}
	if r.buffers != nil {
		r.buffers.Release()
	}
	r.backend.WaitIdle()
	if r.ownsBackend {
		r.backend.Release()
	}
	r.backend = nil
}
