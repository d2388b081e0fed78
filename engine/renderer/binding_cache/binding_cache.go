// Package binding_cache maps textures to GPU resource sets. The first GetOrCreateBinding for a texture and
// sampling configuration builds a resource set and returns a small integer handle that draw lists carry as their
// texture id; later calls with the same configuration return the same handle.
//
// Entries are keyed on the arena-assigned texture.ID, never on the Go value, so two textures aliasing the same GPU
// texture are distinct entries. The cache does not watch textures itself: the owner calls Invalidate on structural
// changes and Unbind on disposal.
//
// A BindingCache is not goroutine-safe and must only be used from the render loop.
package binding_cache

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gui/common"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-gui/engine/texture"
)

var (
	// ErrTextureDisposed is the panic value wrapped when a disposed texture, or a window of a disposed base, is bound.
	ErrTextureDisposed = errors.New("binding_cache: texture disposed")
)

// Handle is the opaque id a draw list uses to reference a cached resource set. The zero Handle is never assigned.
type Handle uint64

// Key identifies one cached resource set.
type Key struct {
	Texture       texture.ID
	Interpolation texture.Interpolation
	Alpha         float32
}

// Entry is a cached resource set together with the texture and key it was built from.
type Entry struct {
	Handle   Handle
	Key      Key
	Texture  texture.Texture
	Provider bind_group_provider.BindGroupProvider
}

// ResourceSet returns the GPU resource set of the entry.
func (e Entry) ResourceSet() backend.ResourceSet {
	return e.Provider.ResourceSet()
}

// Stats counts cache traffic since the cache was created.
type Stats struct {
	Hits    int
	Misses  int
	Unbinds int
}

// bindingCache is the implementation of the BindingCache interface.
type bindingCache struct {
	b             backend.Backend
	frameUniforms backend.Buffer

	next      Handle
	entries   map[Handle]*Entry
	keys      map[Key]Handle
	byTexture map[texture.ID][]Handle

	samplers map[texture.Interpolation]backend.Sampler

	stats Stats
}

// BindingCache lazily creates and caches UI resource sets per texture and sampling configuration.
type BindingCache interface {
	// GetOrCreateBinding returns the handle of the resource set for tex. Options default to the texture's own
	// interpolation and alpha. Palettes always sample nearest.
	//
	// Binding a disposed texture, or a window whose base is disposed, panics with an error wrapping
	// ErrTextureDisposed.
	//
	// Parameters:
	//   - tex: the texture to bind
	//   - options: per-call sampling options
	//
	// Returns:
	//   - Handle: the handle, equal to the previous one for the same texture and options
	//   - error: a backend error if the resource set could not be created
	GetOrCreateBinding(tex texture.Texture, options ...BindingOption) (Handle, error)

	// Resolve looks up an entry by handle.
	Resolve(h Handle) (Entry, bool)

	// Unbind removes every entry built for tex and hands their resource sets to the free queue. Entries of windows
	// into tex are kept. Unbinding a texture with no entries is a no-op.
	Unbind(tex texture.Texture)

	// Invalidate removes the entries of tex and of every window into tex. It is called when tex's GPU texture was
	// replaced, which leaves the windows' resource sets pointing at the released texture.
	Invalidate(tex texture.Texture)

	// ReleaseAll hands every resource set and the samplers to the free queue, clears the cache and resets the
	// handle counter.
	ReleaseAll()

	// Len returns the number of cached entries.
	Len() int

	// Stats returns the hit, miss and unbind counters.
	Stats() Stats
}

var _ BindingCache = &bindingCache{}

// NewBindingCache creates an empty cache.
//
// Parameters:
//   - b: the backend resource sets are created on. The UI pipeline must be registered.
//   - frameUniforms: the frame uniform buffer every resource set binds
//
// Returns:
//   - BindingCache: the cache
func NewBindingCache(b backend.Backend, frameUniforms backend.Buffer) BindingCache {
	return &bindingCache{
		b:             b,
		frameUniforms: frameUniforms,
		next:          1,
		entries:       make(map[Handle]*Entry),
		keys:          make(map[Key]Handle),
		byTexture:     make(map[texture.ID][]Handle),
		samplers:      make(map[texture.Interpolation]backend.Sampler),
	}
}

func (c *bindingCache) GetOrCreateBinding(tex texture.Texture, options ...BindingOption) (Handle, error) {
	// before the lookup: an existing entry of a window may reference a base released since
	checkLive(tex)
	req := bindingRequest{interpolation: tex.Interpolation(), alpha: tex.Alpha()}
	for _, opt := range options {
		opt(&req)
	}
	if tex.Kind() == texture.KindPalette {
		req.interpolation = texture.InterpolationNearest
	}

	key := Key{Texture: tex.ID(), Interpolation: req.interpolation, Alpha: req.alpha}
	if h, ok := c.keys[key]; ok {
		c.stats.Hits++
		return h, nil
	}
	c.stats.Misses++

	gpu, viewport := resolveTexture(tex)
	sampler, err := c.sampler(req.interpolation)
	if err != nil {
		return 0, err
	}

	h := c.next
	provider := bind_group_provider.NewBindGroupProvider(fmt.Sprintf("set#%d(%s)", h, tex.Label()),
		bind_group_provider.WithBuffer(int(pipeline.UIBindingFrameUniforms), c.frameUniforms),
		bind_group_provider.WithSetUniforms(int(pipeline.UIBindingSetUniforms)),
		bind_group_provider.WithTexture(int(pipeline.UIBindingTexture), gpu),
		bind_group_provider.WithSampler(int(pipeline.UIBindingSampler), sampler),
		bind_group_provider.WithUVRect(viewport),
		bind_group_provider.WithAlpha(req.alpha),
	)
	if err := provider.Init(c.b, pipeline.KeyUI); err != nil {
		provider.Release()
		return 0, fmt.Errorf("bind %s: %w", tex.Label(), err)
	}
	c.next++

	c.entries[h] = &Entry{Handle: h, Key: key, Texture: tex, Provider: provider}
	c.keys[key] = h
	c.byTexture[key.Texture] = append(c.byTexture[key.Texture], h)
	common.Logger().Debug("binding created", "handle", uint64(h), "texture", tex.Label(),
		"interpolation", req.interpolation.String(), "alpha", req.alpha)
	return h, nil
}

// checkLive panics with ErrTextureDisposed if tex, or the base of a window, was disposed.
func checkLive(tex texture.Texture) {
	if tex.IsDisposed() {
		panic(fmt.Errorf("bind %s: %w", tex.Label(), ErrTextureDisposed))
	}
	if tex.Kind() == texture.KindWindow {
		if base := tex.Base(); base.IsDisposed() {
			panic(fmt.Errorf("bind %s: base %s: %w", tex.Label(), base.Label(), ErrTextureDisposed))
		}
	}
}

// resolveTexture picks the GPU texture and the normalised viewport a resource set for tex samples from.
func resolveTexture(tex texture.Texture) (backend.Texture, common.Rect) {
	full := common.Rect{MaxX: 1, MaxY: 1}
	switch tex.Kind() {
	case texture.KindOwned:
		return tex.GPUTexture(), full
	case texture.KindWindow:
		base := tex.Base()
		bw, bh := float32(base.Width()), float32(base.Height())
		off := tex.Offset()
		return base.GPUTexture(), common.Rect{
			MinX: float32(off.X) / bw,
			MinY: float32(off.Y) / bh,
			MaxX: float32(off.X+tex.Width()) / bw,
			MaxY: float32(off.Y+tex.Height()) / bh,
		}
	case texture.KindPalette:
		return tex.GPUTexture(), full
	default:
		panic(fmt.Sprintf("binding_cache: unhandled texture kind %v", tex.Kind()))
	}
}

// sampler returns the cache-owned sampler for an interpolation mode, creating it on first use.
func (c *bindingCache) sampler(mode texture.Interpolation) (backend.Sampler, error) {
	if s, ok := c.samplers[mode]; ok {
		return s, nil
	}
	filter := common.FilterModeLinear
	if mode == texture.InterpolationNearest {
		filter = common.FilterModeNearest
	}
	s, err := c.b.CreateSampler(common.SamplerStagingData{
		Label:        "ui_sampler_" + mode.String(),
		AddressModeU: common.AddressModeClampToEdge,
		AddressModeV: common.AddressModeClampToEdge,
		MagFilter:    filter,
		MinFilter:    filter,
	})
	if err != nil {
		return nil, fmt.Errorf("%s sampler: %w", mode, err)
	}
	c.samplers[mode] = s
	return s, nil
}

func (c *bindingCache) Resolve(h Handle) (Entry, bool) {
	e, ok := c.entries[h]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

func (c *bindingCache) Unbind(tex texture.Texture) {
	c.remove(tex.ID())
}

func (c *bindingCache) Invalidate(tex texture.Texture) {
	id := tex.ID()
	c.remove(id)
	var windows []texture.ID
	for tid, handles := range c.byTexture {
		e := c.entries[handles[0]]
		if e.Texture.Kind() == texture.KindWindow && e.Texture.Base().ID() == id {
			windows = append(windows, tid)
		}
	}
	for _, w := range windows {
		c.remove(w)
	}
}

func (c *bindingCache) remove(id texture.ID) {
	handles, ok := c.byTexture[id]
	if !ok {
		return
	}
	for _, h := range handles {
		e := c.entries[h]
		e.Provider.Release()
		delete(c.keys, e.Key)
		delete(c.entries, h)
		c.stats.Unbinds++
	}
	delete(c.byTexture, id)
	common.Logger().Debug("binding removed", "texture", uint64(id), "entries", len(handles))
}

func (c *bindingCache) ReleaseAll() {
	for _, e := range c.entries {
		e.Provider.Release()
	}
	for _, s := range c.samplers {
		c.b.DeferRelease(s)
	}
	clear(c.entries)
	clear(c.keys)
	clear(c.byTexture)
	clear(c.samplers)
	c.next = 1
}

func (c *bindingCache) Len() int {
	return len(c.entries)
}

func (c *bindingCache) Stats() Stats {
	return c.stats
}
