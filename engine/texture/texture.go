// Package texture holds the CPU-side texture model of the UI renderer: owned textures, windows into
// another texture, and palettes. Textures are created through an Arena, which assigns each one a stable ID
// and owns the backend they upload to.
//
// Textures are not goroutine-safe and must only be touched from the render loop.
package texture

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/Carmen-Shannon/oxy-gui/engine/change_notifier"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/backend"
)

var (
	// ErrDisposed is returned when a disposed texture is used.
	ErrDisposed = errors.New("texture: disposed")
	// ErrWindowOutOfBounds is returned when a window does not fit inside its base.
	ErrWindowOutOfBounds = errors.New("texture: window exceeds base bounds")
	// ErrNotPalette is returned when a palette operation is used on another kind of texture.
	ErrNotPalette = errors.New("texture: not a palette")
	// ErrInvalidSize is returned for zero or negative texture sizes.
	ErrInvalidSize = errors.New("texture: invalid size")
	// ErrRegionOutOfBounds is returned when a pixel write does not fit inside the texture.
	ErrRegionOutOfBounds = errors.New("texture: region exceeds texture bounds")
)

// ID is the stable identity of a texture, assigned by the Arena. IDs are never reused.
type ID uint64

// Kind is the variant of a Texture.
type Kind int

const (
	// KindOwned textures own their GPU texture.
	KindOwned Kind = iota
	// KindWindow textures view a rectangle of a base texture and own no GPU memory.
	KindWindow
	// KindPalette textures are a single row of colours used by indexed graphics.
	KindPalette
)

func (k Kind) String() string {
	switch k {
	case KindOwned:
		return "owned"
	case KindWindow:
		return "window"
	case KindPalette:
		return "palette"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Interpolation is the sampling filter used when a texture is drawn scaled.
type Interpolation int

const (
	InterpolationLinear Interpolation = iota
	InterpolationNearest
)

func (i Interpolation) String() string {
	if i == InterpolationNearest {
		return "nearest"
	}
	return "linear"
}

// texture is the implementation of the Texture interface for every Kind.
type texture struct {
	arena *arena
	id    ID
	kind  Kind
	label string

	width, height int
	gpu           backend.Texture
	usage         backend.TextureUsage

	// base and offset are set for windows; base is always a root (owned or palette) texture.
	base   *texture
	offset image.Point

	interpolation Interpolation
	alpha         float32
	disposed      bool

	// pending holds staged pixel regions not yet uploaded.
	pending []pendingWrite
	// bitmap is the image source an owned texture mirrors, if any.
	bitmap      Bitmap
	bitmapDirty bool
	unsubscribe []func()

	// palette state
	colors      []color.NRGBA
	transparent int

	notifier   change_notifier.ChangeNotifier
	onModified change_notifier.Signal[Texture]
	onDisposed change_notifier.Signal[Texture]
}

type pendingWrite struct {
	rect image.Rectangle
	pix  []byte
}

// Texture is a GPU-backed image the UI can draw. It is one of three variants, reported by Kind:
//
//   - KindOwned: owns a GPU texture, optionally mirroring a Bitmap
//   - KindWindow: a sub-rectangle of a base texture; never owns GPU memory
//   - KindPalette: a width x 1 RGBA row of colours with an optional transparent index
//
// GPU memory is released only by Dispose, and then deferred until in-flight frames complete.
type Texture interface {
	// ID returns the stable identity assigned by the Arena.
	ID() ID

	// Kind returns the variant of the texture.
	Kind() Kind

	// Label returns the debug label.
	Label() string

	// Width returns the width in texels.
	Width() int

	// Height returns the height in texels.
	Height() int

	// Size returns the size in texels.
	Size() image.Point

	// GPUTexture returns the backend texture sampled when drawing. For a window it is the base's texture.
	GPUTexture() backend.Texture

	// Base returns the texture that owns the GPU memory: the base for a window, the texture itself otherwise.
	Base() Texture

	// Offset returns the top-left texel of a window inside its base, zero for other kinds.
	Offset() image.Point

	// Interpolation returns the default sampling filter used when binding the texture.
	Interpolation() Interpolation

	// SetInterpolation sets the default sampling filter for new bindings. Palettes always sample nearest.
	SetInterpolation(mode Interpolation)

	// Alpha returns the default opacity used when binding the texture.
	Alpha() float32

	// SetAlpha sets the default opacity for new bindings, clamped to [0, 1]. NaN is ignored.
	SetAlpha(alpha float32)

	// IsDisposed reports whether Dispose was called.
	IsDisposed() bool

	// Dispose releases the texture. It is idempotent.
	Dispose()

	// BeginAtomic and EndAtomic bracket a batch of pixel writes so Modified fires once for the batch.
	BeginAtomic()
	EndAtomic()

	// WritePixels stages tightly packed RGBA8 pixels for rect, relative to the texture, for upload at the next flush.
	//
	// Parameters:
	//   - rect: the destination region
	//   - pix: RGBA8 pixel data, 4*rect.Dx()*rect.Dy() bytes
	//
	// Returns:
	//   - error: ErrDisposed, ErrRegionOutOfBounds or a short buffer error
	WritePixels(rect image.Rectangle, pix []byte) error

	// SetPalette replaces the colours of a palette. A length change replaces the GPU texture.
	//
	// Parameters:
	//   - colors: the new colours
	//   - transparentIndex: index whose alpha is forced to 0, or -1 for none
	//
	// Returns:
	//   - error: ErrNotPalette for other kinds, ErrDisposed, or a GPU allocation error
	SetPalette(colors []color.NRGBA, transparentIndex int) error

	// OnModified subscribes to pixel content changes and returns the unsubscribe func.
	OnModified(fn func(Texture)) func()

	// OnDisposed subscribes to disposal and returns the unsubscribe func.
	OnDisposed(fn func(Texture)) func()
}

var _ Texture = &texture{}

func newTexture(a *arena, kind Kind, label string, width, height int) *texture {
	t := &texture{
		arena:       a,
		kind:        kind,
		label:       label,
		width:       width,
		height:      height,
		alpha:       1,
		transparent: -1,
	}
	if kind == KindPalette {
		t.interpolation = InterpolationNearest
	}
	return t
}

func (t *texture) ID() ID {
	return t.id
}

func (t *texture) Kind() Kind {
	return t.kind
}

func (t *texture) Label() string {
	return t.label
}

func (t *texture) Width() int {
	return t.width
}

func (t *texture) Height() int {
	return t.height
}

func (t *texture) Size() image.Point {
	return image.Pt(t.width, t.height)
}

func (t *texture) GPUTexture() backend.Texture {
	if t.kind == KindWindow {
		return t.base.gpu
	}
	return t.gpu
}

func (t *texture) Base() Texture {
	if t.kind == KindWindow {
		return t.base
	}
	return t
}

func (t *texture) Offset() image.Point {
	return t.offset
}

func (t *texture) Interpolation() Interpolation {
	return t.interpolation
}

func (t *texture) SetInterpolation(mode Interpolation) {
	if t.kind == KindPalette {
		return
	}
	t.interpolation = mode
}

func (t *texture) Alpha() float32 {
	return t.alpha
}

func (t *texture) SetAlpha(alpha float32) {
	if a, ok := ClampAlpha(alpha); ok {
		t.alpha = a
	}
}

// ClampAlpha clamps an opacity to [0, 1].
//
// Parameters:
//   - alpha: the opacity
//
// Returns:
//   - float32: the clamped opacity
//   - bool: false if alpha is NaN
func ClampAlpha(alpha float32) (float32, bool) {
	if alpha != alpha {
		return 0, false
	}
	return min(max(alpha, 0), 1), true
}

func (t *texture) IsDisposed() bool {
	return t.disposed
}

func (t *texture) Dispose() {
	if t.disposed {
		return
	}
	t.disposed = true
	for _, unsub := range t.unsubscribe {
		unsub()
	}
	t.unsubscribe = nil
	t.pending = nil
	if t.gpu != nil {
		t.arena.backend.DeferRelease(t.gpu)
		t.gpu = nil
	}
	t.onDisposed.Emit(t)
	t.arena.disposed(t)
	t.onModified.Clear()
	t.onDisposed.Clear()
}

func (t *texture) BeginAtomic() {
	t.notifier.BeginAtomic()
}

func (t *texture) EndAtomic() {
	t.notifier.EndAtomic()
}

func (t *texture) WritePixels(rect image.Rectangle, pix []byte) error {
	if t.disposed {
		return fmt.Errorf("%s: %w", t.label, ErrDisposed)
	}
	if rect.Empty() {
		return nil
	}
	if !rect.In(image.Rect(0, 0, t.width, t.height)) {
		return fmt.Errorf("%s: %v: %w", t.label, rect, ErrRegionOutOfBounds)
	}
	if len(pix) < rect.Dx()*rect.Dy()*4 {
		return fmt.Errorf("%s: %d bytes for %dx%d region", t.label, len(pix), rect.Dx(), rect.Dy())
	}
	if t.kind == KindWindow {
		if t.base.disposed {
			return fmt.Errorf("%s base %s: %w", t.label, t.base.label, ErrDisposed)
		}
		t.base.stage(rect.Add(t.offset), pix)
		t.base.notifier.InvokeChange()
	} else {
		t.stage(rect, pix)
	}
	t.notifier.InvokeChange()
	return nil
}

func (t *texture) stage(rect image.Rectangle, pix []byte) {
	t.pending = append(t.pending, pendingWrite{rect: rect, pix: append([]byte(nil), pix[:rect.Dx()*rect.Dy()*4]...)})
	t.arena.markDirty(t)
}

func (t *texture) SetPalette(colors []color.NRGBA, transparentIndex int) error {
	if t.kind != KindPalette {
		return fmt.Errorf("%s: %w", t.label, ErrNotPalette)
	}
	if t.disposed {
		return fmt.Errorf("%s: %w", t.label, ErrDisposed)
	}
	if len(colors) == 0 {
		return fmt.Errorf("%s: empty palette: %w", t.label, ErrInvalidSize)
	}
	if len(colors) != t.width {
		if err := t.arena.replaceGPU(t, len(colors), 1); err != nil {
			return err
		}
	}
	t.colors = append(t.colors[:0], colors...)
	t.transparent = transparentIndex
	t.pending = t.pending[:0]
	t.stage(image.Rect(0, 0, t.width, 1), paletteRow(t.colors, t.transparent))
	t.notifier.InvokeChange()
	return nil
}

func (t *texture) OnModified(fn func(Texture)) func() {
	return t.onModified.Subscribe(fn)
}

func (t *texture) OnDisposed(fn func(Texture)) func() {
	return t.onDisposed.Subscribe(fn)
}

// paletteRow converts colours to an RGBA8 row, forcing the transparent index to alpha 0.
func paletteRow(colors []color.NRGBA, transparent int) []byte {
	row := make([]byte, len(colors)*4)
	for i, c := range colors {
		a := c.A
		if i == transparent {
			a = 0
		}
		row[i*4+0], row[i*4+1], row[i*4+2], row[i*4+3] = c.R, c.G, c.B, a
	}
	return row
}
