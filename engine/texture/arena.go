package texture

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-gui/common"
	"github.com/Carmen-Shannon/oxy-gui/engine/change_notifier"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/backend"
)

// ErrNotResizable is returned when Resize is called on a texture that does not own its GPU memory exclusively.
var ErrNotResizable = errors.New("texture: only owned textures can be resized")

// arena is the implementation of the Arena interface.
type arena struct {
	backend backend.Backend
	nextID  ID

	textures map[ID]*texture
	dirty    []*texture
	queued   map[ID]bool

	conversionWorkers int
	pool              worker.DynamicWorkerPool

	onStructural change_notifier.Signal[Texture]
	onDisposed   change_notifier.Signal[Texture]
}

// Arena creates textures, assigns their stable IDs and uploads their staged pixels to the backend.
//
// Structural changes (a new GPU texture replacing the old one after a resize or a palette length change) and
// disposals are announced through OnStructuralChange and OnDisposed so binding caches can drop stale entries.
//
// Arena is not goroutine-safe.
type Arena interface {
	// Create allocates a blank owned texture.
	//
	// Parameters:
	//   - width, height: the size in texels
	//   - renderTarget: true if the texture will be rendered into
	//
	// Returns:
	//   - Texture: the new texture
	//   - error: ErrInvalidSize or a backend allocation error
	Create(width, height int, renderTarget bool) (Texture, error)

	// FromBitmap creates an owned texture mirroring bmp. The texture re-uploads the bitmap at the next Flush
	// after the bitmap's Modified fires, and disposes itself when the bitmap is disposed.
	FromBitmap(bmp Bitmap) (Texture, error)

	// CreateWindow creates a window of size texels at topLeft inside base. A window of a window is flattened
	// to the root base with the offsets summed.
	//
	// Returns:
	//   - Texture: the window
	//   - error: ErrWindowOutOfBounds if the window does not fit inside base, ErrDisposed if base is disposed
	CreateWindow(base Texture, topLeft, size image.Point) (Texture, error)

	// CreatePalette creates a palette texture of len(colors) x 1 texels.
	CreatePalette(colors []color.NRGBA, transparentIndex int) (Texture, error)

	// Resize replaces an owned texture's GPU texture with a blank one of the new size. Staged pixels are dropped.
	Resize(tex Texture, width, height int) error

	// Get looks up a live texture by ID.
	Get(id ID) (Texture, bool)

	// Len returns the number of live textures, windows included.
	Len() int

	// Flush uploads every staged pixel region and dirty bitmap to the backend.
	//
	// Returns:
	//   - int: the number of uploads issued
	//   - error: the first upload error
	Flush() (int, error)

	// OnStructuralChange subscribes to GPU texture replacement and returns the unsubscribe func.
	OnStructuralChange(fn func(Texture)) func()

	// OnDisposed subscribes to texture disposal and returns the unsubscribe func.
	OnDisposed(fn func(Texture)) func()

	// Release disposes every live texture and stops the conversion workers.
	Release()
}

var _ Arena = &arena{}

// NewArena creates an Arena uploading to b.
//
// Parameters:
//   - b: the backend textures are allocated on
//   - options: functional options configuring the arena
//
// Returns:
//   - Arena: the new arena
func NewArena(b backend.Backend, options ...ArenaBuilderOption) Arena {
	a := &arena{
		backend:  b,
		textures: make(map[ID]*texture),
		queued:   make(map[ID]bool),
	}
	for _, opt := range options {
		opt(a)
	}
	if a.conversionWorkers > 1 {
		a.pool = worker.NewDynamicWorkerPool(a.conversionWorkers, 256, 1*time.Second)
	}
	return a
}

func (a *arena) register(t *texture) {
	a.nextID++
	t.id = a.nextID
	if t.label == "" {
		t.label = fmt.Sprintf("%s#%d", t.kind, t.id)
	}
	t.notifier = change_notifier.NewChangeNotifier(t.label, func() { t.onModified.Emit(t) })
	a.textures[t.id] = t
}

func (a *arena) allocate(t *texture) error {
	gpu, err := a.backend.CreateTexture(t.label, uint32(t.width), uint32(t.height), t.usage)
	if err != nil {
		return fmt.Errorf("texture %s: %w", t.label, err)
	}
	t.gpu = gpu
	return nil
}

func (a *arena) Create(width, height int, renderTarget bool) (Texture, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%dx%d: %w", width, height, ErrInvalidSize)
	}
	t := newTexture(a, KindOwned, "", width, height)
	t.usage = backend.TextureUsageSampled | backend.TextureUsageCopyDst
	if renderTarget {
		t.usage |= backend.TextureUsageRenderTarget
	}
	a.register(t)
	if err := a.allocate(t); err != nil {
		delete(a.textures, t.id)
		return nil, err
	}
	return t, nil
}

func (a *arena) FromBitmap(bmp Bitmap) (Texture, error) {
	tex, err := a.Create(bmp.Width(), bmp.Height(), false)
	if err != nil {
		return nil, err
	}
	t := tex.(*texture)
	t.bitmap = bmp
	t.bitmapDirty = true
	a.markDirty(t)
	t.unsubscribe = append(t.unsubscribe,
		bmp.OnModified(func() {
			t.bitmapDirty = true
			a.markDirty(t)
			t.notifier.InvokeChange()
		}),
		bmp.OnDisposed(t.Dispose),
	)
	return t, nil
}

func (a *arena) CreateWindow(base Texture, topLeft, size image.Point) (Texture, error) {
	b, ok := base.(*texture)
	if !ok {
		return nil, fmt.Errorf("window base %T is not an arena texture", base)
	}
	if b.disposed {
		return nil, fmt.Errorf("window base %s: %w", b.label, ErrDisposed)
	}
	rect := image.Rectangle{Min: topLeft, Max: topLeft.Add(size)}
	if size.X <= 0 || size.Y <= 0 || !rect.In(image.Rect(0, 0, b.width, b.height)) {
		return nil, fmt.Errorf("window %v in %s (%dx%d): %w", rect, b.label, b.width, b.height, ErrWindowOutOfBounds)
	}

	root := b
	offset := topLeft
	if b.kind == KindWindow {
		root = b.base
		offset = offset.Add(b.offset)
	}

	t := newTexture(a, KindWindow, "", size.X, size.Y)
	t.base = root
	t.offset = offset
	t.interpolation = b.interpolation
	t.alpha = b.alpha
	a.register(t)
	return t, nil
}

func (a *arena) CreatePalette(colors []color.NRGBA, transparentIndex int) (Texture, error) {
	if len(colors) == 0 {
		return nil, fmt.Errorf("empty palette: %w", ErrInvalidSize)
	}
	t := newTexture(a, KindPalette, "", len(colors), 1)
	t.usage = backend.TextureUsageSampled | backend.TextureUsageCopyDst
	a.register(t)
	if err := a.allocate(t); err != nil {
		delete(a.textures, t.id)
		return nil, err
	}
	if err := t.SetPalette(colors, transparentIndex); err != nil {
		return nil, err
	}
	return t, nil
}

func (a *arena) Resize(tex Texture, width, height int) error {
	t, ok := tex.(*texture)
	if !ok || t.kind != KindOwned {
		return fmt.Errorf("resize %s: %w", tex.Label(), ErrNotResizable)
	}
	if t.disposed {
		return fmt.Errorf("resize %s: %w", t.label, ErrDisposed)
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("resize %s to %dx%d: %w", t.label, width, height, ErrInvalidSize)
	}
	if width == t.width && height == t.height {
		return nil
	}
	t.pending = nil
	return a.replaceGPU(t, width, height)
}

// replaceGPU allocates a new GPU texture for t, defers the release of the old one and announces the
// structural change.
func (a *arena) replaceGPU(t *texture, width, height int) error {
	old := t.gpu
	oldW, oldH := t.width, t.height
	t.width, t.height = width, height
	if err := a.allocate(t); err != nil {
		t.width, t.height = oldW, oldH
		return err
	}
	if old != nil {
		a.backend.DeferRelease(old)
	}
	common.Logger().Debug("texture replaced", "texture", t.label, "width", width, "height", height)
	a.onStructural.Emit(t)
	return nil
}

func (a *arena) Get(id ID) (Texture, bool) {
	t, ok := a.textures[id]
	if !ok {
		return nil, false
	}
	return t, true
}

func (a *arena) Len() int {
	return len(a.textures)
}

func (a *arena) markDirty(t *texture) {
	if a.queued[t.id] {
		return
	}
	a.queued[t.id] = true
	a.dirty = append(a.dirty, t)
}

func (a *arena) Flush() (int, error) {
	uploads := 0
	dirty := a.dirty
	a.dirty = nil
	clear(a.queued)

	for i, t := range dirty {
		if t.disposed {
			continue
		}
		if t.bitmap != nil && t.bitmapDirty {
			if err := a.syncBitmap(t); err != nil {
				a.requeue(dirty[i:])
				return uploads, err
			}
		}
		for len(t.pending) > 0 {
			w := t.pending[0]
			err := a.backend.WriteTexture(t.gpu, common.TextureStagingData{
				Pixels: w.pix,
				Width:  uint32(w.rect.Dx()),
				Height: uint32(w.rect.Dy()),
				Origin: w.rect.Min,
			})
			if err != nil {
				a.requeue(dirty[i:])
				return uploads, fmt.Errorf("upload %s: %w", t.label, err)
			}
			t.pending = t.pending[1:]
			uploads++
		}
		t.pending = nil
	}
	return uploads, nil
}

func (a *arena) requeue(ts []*texture) {
	for _, t := range ts {
		a.markDirty(t)
	}
}

// syncBitmap converts the bitmap to RGBA and stages it as a full-texture write, replacing the GPU texture
// first if the bitmap changed size.
func (a *arena) syncBitmap(t *texture) error {
	bmp := t.bitmap
	w, h := bmp.Width(), bmp.Height()
	if w != t.width || h != t.height {
		if w <= 0 || h <= 0 {
			return fmt.Errorf("bitmap for %s is %dx%d: %w", t.label, w, h, ErrInvalidSize)
		}
		if err := a.replaceGPU(t, w, h); err != nil {
			return err
		}
	}
	pix := make([]byte, w*h*4)
	src := bmp.Lock()
	err := convertParallel(a.pool, pix, src, bmp.Format(), w, h)
	bmp.Unlock()
	if err != nil {
		return fmt.Errorf("bitmap for %s: %w", t.label, err)
	}
	t.bitmapDirty = false
	t.pending = append(t.pending[:0], pendingWrite{rect: image.Rect(0, 0, w, h), pix: pix})
	return nil
}

func (a *arena) disposed(t *texture) {
	delete(a.textures, t.id)
	a.onDisposed.Emit(t)
}

func (a *arena) OnStructuralChange(fn func(Texture)) func() {
	return a.onStructural.Subscribe(fn)
}

func (a *arena) OnDisposed(fn func(Texture)) func() {
	return a.onDisposed.Subscribe(fn)
}

func (a *arena) Release() {
	for _, t := range a.textures {
		if t.kind == KindWindow {
			t.Dispose()
		}
	}
	for _, t := range a.textures {
		t.Dispose()
	}
	if a.pool != nil {
		a.pool.Stop()
		a.pool = nil
	}
}
