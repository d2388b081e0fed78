package renderer

import (
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/Carmen-Shannon/oxy-gui/common"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/binding_cache"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/draw_list"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-gui/engine/texture"
)

func newTestRenderer(t *testing.T) (Renderer, backend.RecordingBackend) {
	t.Helper()
	b := backend.NewRecordingBackend(backend.WithSurface(nil, 200, 100))
	r, err := NewRenderer(WithBackend(b), WithInitialVertexCapacity(8), WithInitialIndexCapacity(8))
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	t.Cleanup(r.Release)
	return r, b
}

// quad returns draw data with one textured quad per handle, each in its own command.
func quad(handles ...binding_cache.Handle) *draw_list.DrawData {
	list := draw_list.CmdList{}
	for i, h := range handles {
		base := uint16(len(list.Vertices))
		x := float32(i * 10)
		list.Vertices = append(list.Vertices,
			draw_list.Vertex{Pos: [2]float32{x, 0}, Col: 0xffffffff},
			draw_list.Vertex{Pos: [2]float32{x + 10, 0}, UV: [2]float32{1, 0}, Col: 0xffffffff},
			draw_list.Vertex{Pos: [2]float32{x + 10, 10}, UV: [2]float32{1, 1}, Col: 0xffffffff},
			draw_list.Vertex{Pos: [2]float32{x, 10}, UV: [2]float32{0, 1}, Col: 0xffffffff},
		)
		list.Indices = append(list.Indices, base, base+1, base+2, base, base+2, base+3)
		list.Commands = append(list.Commands, draw_list.DrawCmd{
			ElemCount: 6,
			IdxOffset: uint32(i * 6),
			ClipRect:  draw_list.NoClip,
			TextureID: h,
		})
	}
	return &draw_list.DrawData{
		DisplaySize:      [2]float32{200, 100},
		FramebufferScale: [2]float32{1, 1},
		Lists:            []draw_list.CmdList{list},
	}
}

func ops(b backend.RecordingBackend) []backend.Op {
	var out []backend.Op
	for _, c := range b.Commands() {
		out = append(out, c.Op)
	}
	return out
}

func indexOf(ops []backend.Op, op backend.Op) int {
	for i, o := range ops {
		if o == op {
			return i
		}
	}
	return -1
}

func TestNewRenderer(t *testing.T) {
	r, _ := newTestRenderer(t)

	for _, key := range []string{pipeline.KeyUI, pipeline.KeyIndexedGraphics} {
		if r.Pipeline(key) == nil {
			t.Errorf("Pipeline(%q) = nil", key)
		}
	}
	if r.FontTextureID() == 0 {
		t.Error("FontTextureID() = 0")
	}
	if r.FontAtlas() == nil || r.FontAtlas().Len() == 0 {
		t.Error("font atlas is empty")
	}
	if got := r.CacheStats().Misses; got != 1 {
		t.Errorf("CacheStats().Misses = %d, want 1", got)
	}
	if r.State() != FrameIdle {
		t.Errorf("State() = %s, want idle", r.State())
	}
}

func TestFrameLifecycle(t *testing.T) {
	r, b := newTestRenderer(t)

	if _, err := r.RenderDrawData(quad(r.FontTextureID())); !errors.Is(err, ErrFrameNotRecording) {
		t.Fatalf("RenderDrawData() outside a frame error = %v, want ErrFrameNotRecording", err)
	}

	if err := r.BeginFrame(); err != nil {
		t.Fatalf("BeginFrame() error = %v", err)
	}
	if err := r.BeginFrame(); !errors.Is(err, backend.ErrFrameInProgress) {
		t.Errorf("second BeginFrame() error = %v, want ErrFrameInProgress", err)
	}
	stats, err := r.RenderDrawData(quad(r.FontTextureID()))
	if err != nil {
		t.Fatalf("RenderDrawData() error = %v", err)
	}
	if stats.Draws != 1 {
		t.Errorf("stats.Draws = %d, want 1", stats.Draws)
	}
	if _, err := r.RenderDrawData(quad(r.FontTextureID())); !errors.Is(err, ErrDrawDataAlreadyRendered) {
		t.Errorf("second RenderDrawData() error = %v, want ErrDrawDataAlreadyRendered", err)
	}
	if err := r.EndFrame(); err != nil {
		t.Fatalf("EndFrame() error = %v", err)
	}
	if r.State() != FrameSubmitted {
		t.Errorf("State() = %s, want submitted", r.State())
	}
	r.Present()
	if r.State() != FrameIdle {
		t.Errorf("State() = %s, want idle", r.State())
	}
	if r.LastReplayStats() != stats {
		t.Errorf("LastReplayStats() = %+v, want %+v", r.LastReplayStats(), stats)
	}
	if v := b.Violations(); len(v) != 0 {
		t.Errorf("violations = %v", v)
	}
	if submitted, _ := b.Generation(); submitted != 1 {
		t.Errorf("submitted generations = %d, want 1", submitted)
	}
}

func TestResizeDuringFrameDiscards(t *testing.T) {
	r, b := newTestRenderer(t)

	if err := r.BeginFrame(); err != nil {
		t.Fatalf("BeginFrame() error = %v", err)
	}
	if _, err := r.RenderDrawData(quad(r.FontTextureID())); err != nil {
		t.Fatalf("RenderDrawData() error = %v", err)
	}
	r.Resize(320, 240)
	if w, h := b.SurfaceSize(); w != 200 || h != 100 {
		t.Errorf("surface resized mid-frame to %dx%d", w, h)
	}
	if err := r.EndFrame(); !errors.Is(err, ErrFrameDiscarded) {
		t.Fatalf("EndFrame() error = %v, want ErrFrameDiscarded", err)
	}
	if w, h := b.SurfaceSize(); w != 320 || h != 240 {
		t.Errorf("SurfaceSize() = %dx%d, want 320x240", w, h)
	}
	got := ops(b)
	if indexOf(got, backend.OpAbortFrame) < 0 || indexOf(got, backend.OpEndFrame) >= 0 {
		t.Errorf("ops = %v, want an abort and no submit", got)
	}
	if submitted, _ := b.Generation(); submitted != 0 {
		t.Errorf("submitted generations = %d, want 0", submitted)
	}

	// the next frame starts cleanly at the new size
	b.ResetCommands()
	if err := r.BeginFrame(); err != nil {
		t.Fatalf("BeginFrame() error = %v", err)
	}
	dd := quad(r.FontTextureID())
	dd.DisplaySize = [2]float32{320, 240}
	if _, err := r.RenderDrawData(dd); err != nil {
		t.Fatalf("RenderDrawData() error = %v", err)
	}
	if err := r.EndFrame(); err != nil {
		t.Fatalf("EndFrame() error = %v", err)
	}
	if v := b.Violations(); len(v) != 0 {
		t.Errorf("violations = %v", v)
	}
}

func TestResizeOutsideFrameAppliesImmediately(t *testing.T) {
	r, b := newTestRenderer(t)
	r.Resize(64, 48)
	if w, h := b.SurfaceSize(); w != 64 || h != 48 {
		t.Errorf("SurfaceSize() = %dx%d, want 64x48", w, h)
	}
}

func TestDiscardFrame(t *testing.T) {
	r, _ := newTestRenderer(t)

	r.DiscardFrame()
	if err := r.BeginFrame(); err != nil {
		t.Fatalf("BeginFrame() error = %v", err)
	}
	r.DiscardFrame()
	if _, err := r.RenderDrawData(quad(r.FontTextureID())); !errors.Is(err, ErrFrameDiscarded) {
		t.Errorf("RenderDrawData() error = %v, want ErrFrameDiscarded", err)
	}
	if err := r.EndFrame(); !errors.Is(err, ErrFrameDiscarded) {
		t.Errorf("EndFrame() error = %v, want ErrFrameDiscarded", err)
	}
	if r.State() != FrameIdle {
		t.Errorf("State() = %s, want idle", r.State())
	}
}

func TestReplayErrorAbortsFrame(t *testing.T) {
	r, b := newTestRenderer(t)

	if err := r.BeginFrame(); err != nil {
		t.Fatalf("BeginFrame() error = %v", err)
	}
	if _, err := r.RenderDrawData(quad(999)); !errors.Is(err, draw_list.ErrUnknownBinding) {
		t.Fatalf("RenderDrawData() error = %v, want ErrUnknownBinding", err)
	}
	if r.State() != FrameIdle {
		t.Errorf("State() = %s, want idle", r.State())
	}
	if indexOf(ops(b), backend.OpAbortFrame) < 0 {
		t.Error("frame was not aborted")
	}
	if err := r.BeginFrame(); err != nil {
		t.Errorf("BeginFrame() after abort error = %v", err)
	}
}

func TestBitmapModifiedUploadsBeforeDraw(t *testing.T) {
	r, b := newTestRenderer(t)

	bmp := texture.NewMemoryBitmap(4, 4, texture.FormatRGBA8)
	tex, err := r.TextureFromBitmap(bmp)
	if err != nil {
		t.Fatalf("TextureFromBitmap() error = %v", err)
	}
	h, err := r.GetOrCreateBinding(tex)
	if err != nil {
		t.Fatalf("GetOrCreateBinding() error = %v", err)
	}

	modified := 0
	tex.OnModified(func(texture.Texture) { modified++ })
	bmp.Update(func(pix []byte) {
		for i := range pix {
			pix[i] = 0x80
		}
	})
	if modified != 1 {
		t.Errorf("texture Modified fired %d times, want 1", modified)
	}

	if err := r.BeginFrame(); err != nil {
		t.Fatalf("BeginFrame() error = %v", err)
	}
	if _, err := r.RenderDrawData(quad(h)); err != nil {
		t.Fatalf("RenderDrawData() error = %v", err)
	}
	got := ops(b)
	write, pass := -1, indexOf(got, backend.OpBeginPass)
	for i, c := range b.Commands() {
		if c.Op == backend.OpWriteTexture && c.Texture == tex.GPUTexture() {
			write = i
		}
	}
	if write < 0 || write > pass {
		t.Errorf("texture upload at %d, pass begins at %d", write, pass)
	}
	if px := b.ReadTexture(tex.GPUTexture()); px[0] != 0x80 {
		t.Errorf("texel[0] = %#x, want 0x80", px[0])
	}
}

func TestBitmapDisposedUnbinds(t *testing.T) {
	r, _ := newTestRenderer(t)

	bmp := texture.NewMemoryBitmap(4, 4, texture.FormatGray8)
	tex, err := r.TextureFromBitmap(bmp)
	if err != nil {
		t.Fatalf("TextureFromBitmap() error = %v", err)
	}
	h, err := r.GetOrCreateBinding(tex)
	if err != nil {
		t.Fatalf("GetOrCreateBinding() error = %v", err)
	}
	bmp.Dispose()
	if !tex.IsDisposed() {
		t.Fatal("texture not disposed with its bitmap")
	}
	if r.CacheStats().Unbinds != 1 {
		t.Errorf("Unbinds = %d, want 1", r.CacheStats().Unbinds)
	}

	if err := r.BeginFrame(); err != nil {
		t.Fatalf("BeginFrame() error = %v", err)
	}
	if _, err := r.RenderDrawData(quad(h)); !errors.Is(err, draw_list.ErrUnknownBinding) {
		t.Errorf("RenderDrawData() error = %v, want ErrUnknownBinding", err)
	}
}

func TestResizeTextureInvalidatesWindows(t *testing.T) {
	r, b := newTestRenderer(t)

	base, err := r.CreateTexture(64, 64, false)
	if err != nil {
		t.Fatalf("CreateTexture() error = %v", err)
	}
	win, err := r.CreateTextureWindow(base, image.Pt(8, 8), image.Pt(16, 16))
	if err != nil {
		t.Fatalf("CreateTextureWindow() error = %v", err)
	}
	hb, _ := r.GetOrCreateBinding(base)
	hw, _ := r.GetOrCreateBinding(win)

	if err := r.ResizeTexture(base, 128, 128); err != nil {
		t.Fatalf("ResizeTexture() error = %v", err)
	}
	if got := r.CacheStats().Unbinds; got != 2 {
		t.Errorf("Unbinds = %d, want 2", got)
	}

	hb2, _ := r.GetOrCreateBinding(base)
	hw2, _ := r.GetOrCreateBinding(win)
	if hb2 == hb || hw2 == hw {
		t.Errorf("handles after resize = %d, %d; want new handles, had %d, %d", hb2, hw2, hb, hw)
	}

	if err := r.BeginFrame(); err != nil {
		t.Fatalf("BeginFrame() error = %v", err)
	}
	if _, err := r.RenderDrawData(quad(hb2, hw2)); err != nil {
		t.Fatalf("RenderDrawData() error = %v", err)
	}
	if v := b.Violations(); len(v) != 0 {
		t.Errorf("violations = %v", v)
	}
}

func TestSetInterpolation(t *testing.T) {
	r, _ := newTestRenderer(t)

	tex, _ := r.CreateTexture(8, 8, false)
	linear, _ := r.GetOrCreateBinding(tex)
	r.SetInterpolation(tex, texture.InterpolationNearest)
	nearest, _ := r.GetOrCreateBinding(tex)
	if linear == nearest {
		t.Error("interpolation change reused the linear binding")
	}
	if again, _ := r.GetOrCreateBinding(tex, binding_cache.WithInterpolation(texture.InterpolationLinear)); again != linear {
		t.Errorf("explicit linear binding = %d, want %d", again, linear)
	}
	r.Unbind(tex)
	r.Unbind(tex)
	if got := r.CacheStats().Unbinds; got != 2 {
		t.Errorf("Unbinds = %d, want 2", got)
	}
}

func TestDrawIndexedGraphics(t *testing.T) {
	r, b := newTestRenderer(t)

	target, err := r.CreateTexture(16, 16, true)
	if err != nil {
		t.Fatalf("CreateTexture() error = %v", err)
	}
	palette, err := r.CreatePalette([]color.NRGBA{{0, 0, 0, 255}, {255, 0, 0, 255}}, 0)
	if err != nil {
		t.Fatalf("CreatePalette() error = %v", err)
	}
	graphics := make([]byte, 2*8*8)
	for i := 64; i < len(graphics); i++ {
		graphics[i] = 1
	}
	tileMap := []uint32{0, 1, 1, 0}
	tileFlags := []uint32{0, 0, 1, 2}
	desc := IndexedGraphicsDesc{TileWidth: 8, TileHeight: 8, MapWidth: 2, MapHeight: 2, ScrollX: 3}

	if err := r.DrawIndexedGraphics(target, graphics, tileMap, tileFlags, palette, desc); !errors.Is(err, ErrFrameNotRecording) {
		t.Errorf("DrawIndexedGraphics() outside a frame error = %v, want ErrFrameNotRecording", err)
	}

	if err := r.BeginFrame(); err != nil {
		t.Fatalf("BeginFrame() error = %v", err)
	}
	if err := r.DrawIndexedGraphics(target, graphics, tileMap, tileFlags, palette, desc); err != nil {
		t.Fatalf("DrawIndexedGraphics() error = %v", err)
	}

	var pass backend.Command
	for _, c := range b.Commands() {
		if c.Op == backend.OpBeginPass {
			pass = c
		}
	}
	if pass.Target != target.GPUTexture() || pass.Load != backend.LoadOpClear {
		t.Errorf("pass = %+v, want a clearing pass into the target", pass)
	}
	draws := b.Draws()
	if len(draws) != 1 || draws[0].Op != backend.OpDraw || draws[0].VertexCount != 3 {
		t.Fatalf("draws = %+v, want one Draw(3)", draws)
	}
	params := draws[0].Uniforms[pipeline.IndexedBindingParams]
	want := []uint32{8, 8, 2, 2, 3, 0}
	for i, w := range want {
		if got := binary.LittleEndian.Uint32(params[i*4:]); got != w {
			t.Errorf("params[%d] = %d, want %d", i, got, w)
		}
	}

	if err := r.EndFrame(); err != nil {
		t.Fatalf("EndFrame() error = %v", err)
	}
	if v := b.Violations(); len(v) != 0 {
		t.Errorf("violations = %v", v)
	}
	if b.PendingReleases() == 0 {
		t.Error("transient buffers were not deferred")
	}
}

func TestDrawIndexedGraphicsValidation(t *testing.T) {
	r, _ := newTestRenderer(t)

	target, _ := r.CreateTexture(16, 16, true)
	sampled, _ := r.CreateTexture(16, 16, false)
	palette, _ := r.CreatePalette([]color.NRGBA{{255, 255, 255, 255}}, -1)
	graphics := make([]byte, 64)
	desc := IndexedGraphicsDesc{TileWidth: 8, TileHeight: 8, MapWidth: 1, MapHeight: 1}

	if err := r.BeginFrame(); err != nil {
		t.Fatalf("BeginFrame() error = %v", err)
	}

	tests := []struct {
		name      string
		target    texture.Texture
		palette   texture.Texture
		tileMap   []uint32
		tileFlags []uint32
		desc      IndexedGraphicsDesc
		want      error
	}{
		{"not a palette", target, sampled, []uint32{0}, []uint32{0}, desc, texture.ErrNotPalette},
		{"not a render target", sampled, palette, []uint32{0}, []uint32{0}, desc, ErrInvalidIndexedGraphics},
		{"short tile map", target, palette, nil, []uint32{0}, desc, ErrInvalidIndexedGraphics},
		{"tile out of range", target, palette, []uint32{1}, []uint32{0}, desc, ErrInvalidIndexedGraphics},
		{"zero tile size", target, palette, []uint32{0}, []uint32{0}, IndexedGraphicsDesc{MapWidth: 1, MapHeight: 1}, ErrInvalidIndexedGraphics},
		{"map cells beyond uint32", target, palette, nil, nil, IndexedGraphicsDesc{TileWidth: 8, TileHeight: 8, MapWidth: 1 << 16, MapHeight: 1 << 16}, ErrInvalidIndexedGraphics},
		{"tile bytes beyond uint32", target, palette, []uint32{0}, []uint32{0}, IndexedGraphicsDesc{TileWidth: 1 << 16, TileHeight: 1 << 16, MapWidth: 1, MapHeight: 1}, ErrInvalidIndexedGraphics},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.DrawIndexedGraphics(tt.target, graphics, tt.tileMap, tt.tileFlags, tt.palette, tt.desc)
			if !errors.Is(err, tt.want) {
				t.Errorf("DrawIndexedGraphics() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDrawIndexedGraphicsAfterDrawData(t *testing.T) {
	r, b := newTestRenderer(t)

	target, _ := r.CreateTexture(8, 8, true)
	palette, _ := r.CreatePalette([]color.NRGBA{{255, 255, 255, 255}}, -1)
	desc := IndexedGraphicsDesc{TileWidth: 8, TileHeight: 8, MapWidth: 1, MapHeight: 1}

	if err := r.BeginFrame(); err != nil {
		t.Fatalf("BeginFrame() error = %v", err)
	}
	if _, err := r.RenderDrawData(quad(r.FontTextureID())); err != nil {
		t.Fatalf("RenderDrawData() error = %v", err)
	}
	passes := 0
	for _, op := range ops(b) {
		if op == backend.OpBeginPass {
			passes++
		}
	}

	err := r.DrawIndexedGraphics(target, make([]byte, 64), []uint32{0}, []uint32{0}, palette, desc)
	if !errors.Is(err, ErrDrawDataAlreadyRendered) {
		t.Errorf("DrawIndexedGraphics() after RenderDrawData error = %v, want ErrDrawDataAlreadyRendered", err)
	}
	after := 0
	for _, op := range ops(b) {
		if op == backend.OpBeginPass {
			after++
		}
	}
	if after != passes {
		t.Errorf("passes = %d, want %d (nothing recorded)", after, passes)
	}
	if err := r.EndFrame(); err != nil {
		t.Fatalf("EndFrame() error = %v", err)
	}
}

func TestIndexedParamsLayout(t *testing.T) {
	p := indexedParams{}
	if got := len(common.StructToBytes(&p)); got != 32 {
		t.Errorf("indexedParams is %d bytes, want 32", got)
	}
}

func TestReleaseFreesEverything(t *testing.T) {
	b := backend.NewRecordingBackend(backend.WithSurface(nil, 100, 100))
	r, err := NewRenderer(WithBackend(b))
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	tex, _ := r.CreateTexture(8, 8, false)
	if _, err := r.GetOrCreateBinding(tex); err != nil {
		t.Fatalf("GetOrCreateBinding() error = %v", err)
	}
	if err := r.BeginFrame(); err != nil {
		t.Fatalf("BeginFrame() error = %v", err)
	}

	r.Release()
	r.Release()
	if n := b.LiveResources(); n != 0 {
		t.Errorf("LiveResources() = %d after Release, want 0", n)
	}
	if n := b.PendingReleases(); n != 0 {
		t.Errorf("PendingReleases() = %d after Release, want 0", n)
	}
}

func TestUnsupportedBackend(t *testing.T) {
	if _, err := NewRenderer(WithBackendType(backend.Type(42))); !errors.Is(err, backend.ErrUnsupportedBackend) {
		t.Errorf("NewRenderer() error = %v, want ErrUnsupportedBackend", err)
	}
}
