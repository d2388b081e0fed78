package texture

import (
	"fmt"
	"image"

	"github.com/Carmen-Shannon/oxy-gui/engine/change_notifier"
	"github.com/disintegration/imaging"
)

// PixelFormat is the memory layout of a Bitmap's pixels.
type PixelFormat int

const (
	// FormatRGBA8 is 4 bytes per pixel, red first, non-premultiplied alpha.
	FormatRGBA8 PixelFormat = iota
	// FormatBGRA8 is 4 bytes per pixel, blue first, non-premultiplied alpha.
	FormatBGRA8
	// FormatGray8 is 1 byte per pixel of luminance, fully opaque.
	FormatGray8
)

// BytesPerPixel returns the size of one pixel in bytes.
func (f PixelFormat) BytesPerPixel() int {
	if f == FormatGray8 {
		return 1
	}
	return 4
}

func (f PixelFormat) String() string {
	switch f {
	case FormatRGBA8:
		return "RGBA8"
	case FormatBGRA8:
		return "BGRA8"
	case FormatGray8:
		return "Gray8"
	default:
		return fmt.Sprintf("PixelFormat(%d)", int(f))
	}
}

// Bitmap is a CPU-side pixel buffer a texture can mirror. Pixels are row-major with a stride of
// Width()*Format().BytesPerPixel(). The texture re-reads the pixels at the next flush after Modified fires,
// and disposes itself when Disposed fires.
type Bitmap interface {
	Width() int
	Height() int
	Format() PixelFormat

	// Lock returns the pixel buffer. It stays valid until Unlock.
	Lock() []byte
	Unlock()

	OnModified(fn func()) func()
	OnDisposed(fn func()) func()
}

// MemoryBitmap is a Bitmap stored in memory.
type MemoryBitmap struct {
	width, height int
	format        PixelFormat
	pix           []byte
	locked        bool

	notifier   change_notifier.ChangeNotifier
	onModified change_notifier.Signal[struct{}]
	onDisposed change_notifier.Signal[struct{}]
}

var _ Bitmap = &MemoryBitmap{}

// NewMemoryBitmap creates a zeroed bitmap.
//
// Parameters:
//   - width, height: the size in pixels
//   - format: the pixel layout
//
// Returns:
//   - *MemoryBitmap: the new bitmap
func NewMemoryBitmap(width, height int, format PixelFormat) *MemoryBitmap {
	b := &MemoryBitmap{
		width:  width,
		height: height,
		format: format,
		pix:    make([]byte, width*height*format.BytesPerPixel()),
	}
	b.notifier = change_notifier.NewChangeNotifier("bitmap", func() { b.onModified.Emit(struct{}{}) })
	return b
}

// NewImageBitmap creates an RGBA8 bitmap holding a copy of img. Any image.Image is normalised to
// non-premultiplied RGBA.
//
// Parameters:
//   - img: the source image
//
// Returns:
//   - *MemoryBitmap: the new bitmap
func NewImageBitmap(img image.Image) *MemoryBitmap {
	nrgba := imaging.Clone(img)
	b := NewMemoryBitmap(nrgba.Rect.Dx(), nrgba.Rect.Dy(), FormatRGBA8)
	copy(b.pix, nrgba.Pix)
	return b
}

func (b *MemoryBitmap) Width() int {
	return b.width
}

func (b *MemoryBitmap) Height() int {
	return b.height
}

func (b *MemoryBitmap) Format() PixelFormat {
	return b.format
}

func (b *MemoryBitmap) Lock() []byte {
	b.locked = true
	return b.pix
}

func (b *MemoryBitmap) Unlock() {
	b.locked = false
}

func (b *MemoryBitmap) OnModified(fn func()) func() {
	return b.onModified.Subscribe(func(struct{}) { fn() })
}

func (b *MemoryBitmap) OnDisposed(fn func()) func() {
	return b.onDisposed.Subscribe(func(struct{}) { fn() })
}

// Update calls fn with the pixel buffer and fires Modified afterwards.
func (b *MemoryBitmap) Update(fn func(pix []byte)) {
	fn(b.Lock())
	b.Unlock()
	b.notifier.InvokeChange()
}

// SetImage replaces the bitmap with a copy of img, resizing it if needed. The bitmap becomes RGBA8.
func (b *MemoryBitmap) SetImage(img image.Image) {
	nrgba := imaging.Clone(img)
	b.width, b.height, b.format = nrgba.Rect.Dx(), nrgba.Rect.Dy(), FormatRGBA8
	b.pix = append(b.pix[:0], nrgba.Pix...)
	b.notifier.InvokeChange()
}

// Image returns a copy of the bitmap as an RGBA image.
func (b *MemoryBitmap) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.width, b.height))
	convertRows(img.Pix, b.pix, b.format, b.width, 0, b.height)
	return img
}

// BeginAtomic and EndAtomic coalesce the Modified events of several updates into one.
func (b *MemoryBitmap) BeginAtomic() { b.notifier.BeginAtomic() }
func (b *MemoryBitmap) EndAtomic()   { b.notifier.EndAtomic() }

// Dispose fires Disposed and drops every subscriber.
func (b *MemoryBitmap) Dispose() {
	b.onDisposed.Emit(struct{}{})
	b.onModified.Clear()
	b.onDisposed.Clear()
	b.pix = nil
}
