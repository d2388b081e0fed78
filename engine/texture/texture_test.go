package texture

import (
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/backend"
)

func newTestArena(t *testing.T) (Arena, backend.RecordingBackend) {
	t.Helper()
	b := backend.NewRecordingBackend()
	return NewArena(b), b
}

func TestCreateAssignsStableIDs(t *testing.T) {
	a, _ := newTestArena(t)
	t1, err := a.Create(4, 4, false)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	t2, _ := a.Create(4, 4, false)
	if t1.ID() == t2.ID() {
		t.Fatalf("IDs not unique: %d", t1.ID())
	}
	t1.Dispose()
	t3, _ := a.Create(4, 4, false)
	if t3.ID() == t1.ID() {
		t.Errorf("ID %d reused after dispose", t1.ID())
	}
	if _, ok := a.Get(t1.ID()); ok {
		t.Errorf("disposed texture still in arena")
	}
	if _, err := a.Create(0, 4, false); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Create(0, 4) error = %v, want ErrInvalidSize", err)
	}
}

func TestWindowBounds(t *testing.T) {
	a, _ := newTestArena(t)
	base, _ := a.Create(100, 100, false)

	tests := []struct {
		name    string
		topLeft image.Point
		size    image.Point
		wantErr bool
	}{
		{"exact fit", image.Pt(90, 90), image.Pt(10, 10), false},
		{"whole base", image.Pt(0, 0), image.Pt(100, 100), false},
		{"overflow", image.Pt(95, 95), image.Pt(10, 10), true},
		{"negative offset", image.Pt(-1, 0), image.Pt(10, 10), true},
		{"empty", image.Pt(0, 0), image.Pt(0, 10), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := a.CreateWindow(base, tt.topLeft, tt.size)
			if tt.wantErr {
				if !errors.Is(err, ErrWindowOutOfBounds) {
					t.Fatalf("CreateWindow() error = %v, want ErrWindowOutOfBounds", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateWindow() error = %v", err)
			}
			if w.Kind() != KindWindow || w.Base() != base || w.GPUTexture() != base.GPUTexture() {
				t.Errorf("window does not reference base")
			}
		})
	}
}

func TestWindowOfWindowFlattens(t *testing.T) {
	a, _ := newTestArena(t)
	base, _ := a.Create(100, 100, false)
	outer, _ := a.CreateWindow(base, image.Pt(10, 20), image.Pt(50, 50))
	inner, err := a.CreateWindow(outer, image.Pt(5, 5), image.Pt(10, 10))
	if err != nil {
		t.Fatalf("CreateWindow() error = %v", err)
	}
	if inner.Base() != base {
		t.Errorf("Base() is not the root texture")
	}
	if got, want := inner.Offset(), image.Pt(15, 25); got != want {
		t.Errorf("Offset() = %v, want %v", got, want)
	}
	if _, err := a.CreateWindow(outer, image.Pt(45, 0), image.Pt(10, 10)); !errors.Is(err, ErrWindowOutOfBounds) {
		t.Errorf("window overflowing the outer window: error = %v, want ErrWindowOutOfBounds", err)
	}
}

func TestWindowWritesLandInBase(t *testing.T) {
	a, b := newTestArena(t)
	base, _ := a.Create(4, 4, false)
	win, _ := a.CreateWindow(base, image.Pt(2, 1), image.Pt(2, 2))

	px := []byte{9, 9, 9, 9}
	if err := win.WritePixels(image.Rect(1, 1, 2, 2), px); err != nil {
		t.Fatalf("WritePixels() error = %v", err)
	}
	if _, err := a.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	got := b.ReadTexture(base.GPUTexture())
	off := (2*4 + 3) * 4
	if got[off] != 9 {
		t.Errorf("base texel (3,2) = %v, want 9", got[off:off+4])
	}
}

func TestAtomicWritesFireModifiedOnce(t *testing.T) {
	a, _ := newTestArena(t)
	tex, _ := a.Create(2, 2, false)
	fired := 0
	tex.OnModified(func(Texture) { fired++ })

	tex.BeginAtomic()
	for i := 0; i < 4; i++ {
		_ = tex.WritePixels(image.Rect(0, 0, 1, 1), []byte{1, 2, 3, 4})
	}
	tex.EndAtomic()
	if fired != 1 {
		t.Errorf("Modified fired %d times, want 1", fired)
	}

	tex.BeginAtomic()
	tex.EndAtomic()
	if fired != 1 {
		t.Errorf("empty atomic section fired Modified")
	}
}

func TestPaletteTransparentIndexAndResize(t *testing.T) {
	a, b := newTestArena(t)
	structural := 0
	a.OnStructuralChange(func(Texture) { structural++ })

	colors := []color.NRGBA{{255, 0, 0, 255}, {0, 255, 0, 255}, {0, 0, 255, 255}}
	pal, err := a.CreatePalette(colors, 1)
	if err != nil {
		t.Fatalf("CreatePalette() error = %v", err)
	}
	if pal.Interpolation() != InterpolationNearest {
		t.Errorf("palette interpolation = %v, want nearest", pal.Interpolation())
	}
	_, _ = a.Flush()
	px := b.ReadTexture(pal.GPUTexture())
	if px[1*4+3] != 0 || px[0*4+3] != 255 {
		t.Errorf("alpha = %d,%d, want 255,0", px[3], px[7])
	}

	if err := pal.SetPalette(colors[:3], -1); err != nil {
		t.Fatalf("SetPalette() same length error = %v", err)
	}
	if structural != 0 {
		t.Errorf("same-length SetPalette caused a structural change")
	}

	old := pal.GPUTexture()
	if err := pal.SetPalette(append(colors, color.NRGBA{1, 1, 1, 255}), -1); err != nil {
		t.Fatalf("SetPalette() longer error = %v", err)
	}
	if structural != 1 || pal.Width() != 4 || pal.GPUTexture() == old {
		t.Errorf("length change: structural = %d, width = %d", structural, pal.Width())
	}
	if b.PendingReleases() != 1 {
		t.Errorf("PendingReleases() = %d, want 1", b.PendingReleases())
	}

	owned, _ := a.Create(1, 1, false)
	if err := owned.SetPalette(colors, -1); !errors.Is(err, ErrNotPalette) {
		t.Errorf("SetPalette() on owned error = %v, want ErrNotPalette", err)
	}
}

func TestBitmapTextureFollowsBitmap(t *testing.T) {
	a, b := newTestArena(t)
	bmp := NewMemoryBitmap(2, 1, FormatBGRA8)
	tex, err := a.FromBitmap(bmp)
	if err != nil {
		t.Fatalf("FromBitmap() error = %v", err)
	}

	bmp.Update(func(pix []byte) {
		copy(pix, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	})
	if n, err := a.Flush(); err != nil || n != 1 {
		t.Fatalf("Flush() = %d, %v, want 1, nil", n, err)
	}
	want := []byte{3, 2, 1, 4, 7, 6, 5, 8}
	got := b.ReadTexture(tex.GPUTexture())
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("texture = %v, want %v", got, want)
		}
	}

	structural := 0
	a.OnStructuralChange(func(Texture) { structural++ })
	bmp.SetImage(image.NewNRGBA(image.Rect(0, 0, 3, 3)))
	if _, err := a.Flush(); err != nil {
		t.Fatalf("Flush() after resize error = %v", err)
	}
	if structural != 1 || tex.Width() != 3 {
		t.Errorf("bitmap resize: structural = %d, width = %d", structural, tex.Width())
	}

	bmp.Dispose()
	if !tex.IsDisposed() {
		t.Errorf("texture not disposed with its bitmap")
	}
}

func TestResizeOnlyOwned(t *testing.T) {
	a, _ := newTestArena(t)
	base, _ := a.Create(8, 8, false)
	win, _ := a.CreateWindow(base, image.Pt(0, 0), image.Pt(2, 2))
	if err := a.Resize(win, 4, 4); !errors.Is(err, ErrNotResizable) {
		t.Errorf("Resize(window) error = %v, want ErrNotResizable", err)
	}
	if err := a.Resize(base, 16, 4); err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
	if base.Width() != 16 || base.Height() != 4 {
		t.Errorf("size = %v, want 16x4", base.Size())
	}
}

func TestConvertToRGBA(t *testing.T) {
	tests := []struct {
		name   string
		format PixelFormat
		src    []byte
		want   []byte
	}{
		{"rgba", FormatRGBA8, []byte{1, 2, 3, 4}, []byte{1, 2, 3, 4}},
		{"bgra", FormatBGRA8, []byte{1, 2, 3, 4}, []byte{3, 2, 1, 4}},
		{"gray", FormatGray8, []byte{7}, []byte{7, 7, 7, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := make([]byte, 4)
			if err := ConvertToRGBA(dst, tt.src, tt.format, 1, 1); err != nil {
				t.Fatalf("ConvertToRGBA() error = %v", err)
			}
			for i := range tt.want {
				if dst[i] != tt.want[i] {
					t.Fatalf("dst = %v, want %v", dst, tt.want)
				}
			}
		})
	}
	if err := ConvertToRGBA(make([]byte, 4), nil, FormatRGBA8, 1, 1); err == nil {
		t.Error("short source accepted")
	}
}

func TestConvertParallelMatchesSequential(t *testing.T) {
	const w, h = 3, parallelConversionRows + 7
	src := make([]byte, w*h)
	for i := range src {
		src[i] = byte(i)
	}
	want := make([]byte, w*h*4)
	_ = ConvertToRGBA(want, src, FormatGray8, w, h)

	pool := worker.NewDynamicWorkerPool(4, 256, 1*time.Second)
	defer pool.Stop()
	got := make([]byte, w*h*4)
	if err := convertParallel(pool, got, src, FormatGray8, w, h); err != nil {
		t.Fatalf("convertParallel() error = %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = %d, want %d", i, got[i], want[i])
		}
	}
}
