package draw_list

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-gui/common"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/binding_cache"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/buffer_manager"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-gui/engine/texture"
)

type fixture struct {
	b        backend.RecordingBackend
	arena    texture.Arena
	cache    binding_cache.BindingCache
	replayer Replayer
}

func newFixture(t *testing.T, policy backend.UniformUpdatePolicy) fixture {
	t.Helper()
	b := backend.NewRecordingBackend(backend.WithSurface(nil, 100, 100), backend.WithUniformUpdatePolicy(policy))
	if err := b.RegisterPipeline(pipeline.NewUIPipeline()); err != nil {
		t.Fatalf("RegisterPipeline() error = %v", err)
	}
	buffers, err := buffer_manager.NewBufferManager(b, buffer_manager.WithInitialCapacity(buffer_manager.KindVertex, 4))
	if err != nil {
		t.Fatalf("NewBufferManager() error = %v", err)
	}
	cache := binding_cache.NewBindingCache(b, buffers.FrameUniformBuffer())
	return fixture{b: b, arena: texture.NewArena(b), cache: cache, replayer: NewReplayer(b, buffers, cache)}
}

func (f fixture) handle(t *testing.T) binding_cache.Handle {
	t.Helper()
	tex, err := f.arena.Create(8, 8, false)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	h, err := f.cache.GetOrCreateBinding(tex)
	if err != nil {
		t.Fatalf("GetOrCreateBinding() error = %v", err)
	}
	return h
}

func (f fixture) replay(t *testing.T, dd *DrawData) (ReplayStats, error) {
	t.Helper()
	if err := f.b.BeginFrame(); err != nil {
		t.Fatalf("BeginFrame() error = %v", err)
	}
	stats, err := f.replayer.Replay(dd)
	if err != nil {
		f.b.AbortFrame()
		return stats, err
	}
	if err := f.b.EndFrame(); err != nil {
		t.Fatalf("EndFrame() error = %v", err)
	}
	return stats, nil
}

// triangles builds a list with one triangle per command; callbacks take no geometry.
func triangles(cmds ...DrawCmd) CmdList {
	var list CmdList
	for _, c := range cmds {
		if c.Callback == nil {
			base := uint16(len(list.Vertices))
			c.IdxOffset = uint32(len(list.Indices))
			c.ElemCount = 3
			list.Vertices = append(list.Vertices,
				Vertex{Pos: [2]float32{0, 0}, Col: 0xffffffff},
				Vertex{Pos: [2]float32{10, 0}, UV: [2]float32{1, 0}, Col: 0xffffffff},
				Vertex{Pos: [2]float32{0, 10}, UV: [2]float32{0, 1}, Col: 0xffffffff},
			)
			list.Indices = append(list.Indices, base, base+1, base+2)
		}
		list.Commands = append(list.Commands, c)
	}
	return list
}

func drawData(lists ...CmdList) *DrawData {
	return &DrawData{DisplaySize: [2]float32{100, 100}, FramebufferScale: [2]float32{1, 1}, Lists: lists}
}

func countOps(cmds []backend.Command, op backend.Op) int {
	n := 0
	for _, c := range cmds {
		if c.Op == op {
			n++
		}
	}
	return n
}

func frameAlpha(c backend.Command) float32 {
	u := c.Uniforms[pipeline.UIBindingFrameUniforms]
	return math.Float32frombits(binary.LittleEndian.Uint32(u[64:]))
}

func TestVertexLayoutMatchesPipeline(t *testing.T) {
	if got := unsafe.Sizeof(Vertex{}); got != pipeline.UIVertexStride {
		t.Errorf("sizeof(Vertex) = %d, want %d", got, pipeline.UIVertexStride)
	}
}

func TestSetSwitchesOnlyOnTextureChange(t *testing.T) {
	f := newFixture(t, backend.PolicyImmediate)
	a, b := f.handle(t), f.handle(t)

	dd := drawData(triangles(
		DrawCmd{TextureID: a, ClipRect: NoClip},
		DrawCmd{TextureID: a, ClipRect: NoClip},
		DrawCmd{TextureID: b, ClipRect: NoClip},
	))
	stats, err := f.replay(t, dd)
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if stats.SetSwitches != 1 {
		t.Errorf("SetSwitches = %d, want 1", stats.SetSwitches)
	}
	if stats.Draws != 3 {
		t.Errorf("Draws = %d, want 3", stats.Draws)
	}
	if got := countOps(f.b.Commands(), backend.OpSetResourceSet); got != 2 {
		t.Errorf("SetResourceSet commands = %d, want 2", got)
	}
	if v := f.b.Violations(); len(v) != 0 {
		t.Errorf("Violations = %v", v)
	}
}

func TestMultipleListsUseGlobalOffsets(t *testing.T) {
	f := newFixture(t, backend.PolicyImmediate)
	a := f.handle(t)

	dd := drawData(
		triangles(DrawCmd{TextureID: a, ClipRect: NoClip}),
		triangles(DrawCmd{TextureID: a, ClipRect: NoClip}, DrawCmd{TextureID: a, ClipRect: NoClip}),
	)
	if _, err := f.replay(t, dd); err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	draws := f.b.Draws()
	want := []struct {
		first uint32
		base  int32
	}{{0, 0}, {3, 3}, {6, 3}}
	if len(draws) != len(want) {
		t.Fatalf("draws = %d, want %d", len(draws), len(want))
	}
	for i, w := range want {
		if draws[i].FirstIndex != w.first || draws[i].BaseVertex != w.base {
			t.Errorf("draw %d = first %d base %d, want first %d base %d", i, draws[i].FirstIndex, draws[i].BaseVertex, w.first, w.base)
		}
	}
	if v := f.b.Violations(); len(v) != 0 {
		t.Errorf("Violations = %v", v)
	}
}

func TestAlphaCallbackPolicies(t *testing.T) {
	tests := []struct {
		policy   backend.UniformUpdatePolicy
		restarts int
		wantErr  bool
	}{
		{policy: backend.PolicyImmediate},
		{policy: backend.PolicySplitPass, restarts: 1},
		{policy: backend.PolicyReject, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			f := newFixture(t, tt.policy)
			a := f.handle(t)
			dd := drawData(triangles(
				DrawCmd{TextureID: a, ClipRect: NoClip},
				DrawCmd{Callback: CallbackSetAlpha{Alpha: 0.5}},
				DrawCmd{TextureID: a, ClipRect: NoClip},
			))

			stats, err := f.replay(t, dd)
			if tt.wantErr {
				if !errors.Is(err, ErrCallbackRejected) || !errors.Is(err, backend.ErrInPassUpdateRejected) {
					t.Fatalf("Replay() error = %v, want ErrCallbackRejected wrapping ErrInPassUpdateRejected", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Replay() error = %v", err)
			}
			if stats.Restarts != tt.restarts {
				t.Errorf("Restarts = %d, want %d", stats.Restarts, tt.restarts)
			}
			draws := f.b.Draws()
			if len(draws) != 2 {
				t.Fatalf("draws = %d, want 2", len(draws))
			}
			if got := frameAlpha(draws[0]); got != 1 {
				t.Errorf("alpha seen by first draw = %v, want 1", got)
			}
			if got := frameAlpha(draws[1]); got != 0.5 {
				t.Errorf("alpha seen by second draw = %v, want 0.5", got)
			}
			if stats.SetSwitches != 0 {
				t.Errorf("SetSwitches = %d, want 0", stats.SetSwitches)
			}
			if v := f.b.Violations(); len(v) != 0 {
				t.Errorf("Violations = %v", v)
			}
		})
	}
}

func TestSplitPassResumesWithLoad(t *testing.T) {
	f := newFixture(t, backend.PolicySplitPass)
	a := f.handle(t)
	dd := drawData(triangles(
		DrawCmd{TextureID: a, ClipRect: common.Rect{MinX: 10, MinY: 10, MaxX: 20, MaxY: 20}},
		DrawCmd{Callback: CallbackSetAlpha{Alpha: 0.25}},
		DrawCmd{TextureID: a, ClipRect: common.Rect{MinX: 10, MinY: 10, MaxX: 20, MaxY: 20}},
	))
	if _, err := f.replay(t, dd); err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	var passes []backend.Command
	for _, c := range f.b.Commands() {
		if c.Op == backend.OpBeginPass {
			passes = append(passes, c)
		}
	}
	if len(passes) != 2 || passes[0].Load != backend.LoadOpClear || passes[1].Load != backend.LoadOpLoad {
		t.Fatalf("passes = %+v, want clear then load", passes)
	}
	// scissor and resource set are bound again in the resumed pass
	if got := countOps(f.b.Commands(), backend.OpSetScissorRect); got != 2 {
		t.Errorf("SetScissorRect commands = %d, want 2", got)
	}
	if got := countOps(f.b.Commands(), backend.OpSetResourceSet); got != 2 {
		t.Errorf("SetResourceSet commands = %d, want 2", got)
	}
}

func TestClipRects(t *testing.T) {
	tests := []struct {
		name    string
		clip    common.Rect
		scale   float32
		want    [4]uint32
		visible bool
	}{
		{name: "negative disables clipping", clip: NoClip, scale: 1, want: [4]uint32{0, 0, 100, 100}, visible: true},
		{name: "inside", clip: common.Rect{MinX: 10, MinY: 20, MaxX: 30, MaxY: 50}, scale: 1, want: [4]uint32{10, 20, 20, 30}, visible: true},
		{name: "scaled", clip: common.Rect{MinX: 10, MinY: 10, MaxX: 20, MaxY: 20}, scale: 2, want: [4]uint32{20, 20, 20, 20}, visible: true},
		{name: "clamped to target", clip: common.Rect{MinX: 90, MinY: 90, MaxX: 200, MaxY: 200}, scale: 1, want: [4]uint32{90, 90, 10, 10}, visible: true},
		{name: "empty", clip: common.Rect{MinX: 30, MinY: 30, MaxX: 30, MaxY: 40}, scale: 1},
		{name: "outside", clip: common.Rect{MinX: 150, MinY: 0, MaxX: 160, MaxY: 10}, scale: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, visible := clipToScissor(tt.clip, [2]float32{}, tt.scale, tt.scale, 100, 100)
			if visible != tt.visible {
				t.Fatalf("visible = %v, want %v", visible, tt.visible)
			}
			if visible && got != tt.want {
				t.Errorf("scissor = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEmptyClipSkipsDraw(t *testing.T) {
	f := newFixture(t, backend.PolicyImmediate)
	a := f.handle(t)
	dd := drawData(triangles(
		DrawCmd{TextureID: a, ClipRect: common.Rect{MinX: 150, MinY: 150, MaxX: 160, MaxY: 160}},
		DrawCmd{TextureID: a, ClipRect: NoClip},
	))
	stats, err := f.replay(t, dd)
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if stats.Skipped != 1 || stats.Draws != 1 {
		t.Errorf("Skipped, Draws = %d, %d, want 1, 1", stats.Skipped, stats.Draws)
	}
}

func TestInterpolationOverride(t *testing.T) {
	f := newFixture(t, backend.PolicyImmediate)
	a := f.handle(t)
	dd := drawData(triangles(
		DrawCmd{TextureID: a, ClipRect: NoClip},
		DrawCmd{Callback: CallbackSetInterpolation{Mode: texture.InterpolationNearest}},
		DrawCmd{TextureID: a, ClipRect: NoClip},
		DrawCmd{Callback: CallbackResetState{}},
		DrawCmd{TextureID: a, ClipRect: NoClip},
	))
	stats, err := f.replay(t, dd)
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if f.cache.Len() != 2 {
		t.Errorf("cache Len = %d, want 2", f.cache.Len())
	}
	if stats.SetSwitches != 2 {
		t.Errorf("SetSwitches = %d, want 2", stats.SetSwitches)
	}
	if stats.Callbacks != 2 {
		t.Errorf("Callbacks = %d, want 2", stats.Callbacks)
	}
}

func TestCustomCallback(t *testing.T) {
	f := newFixture(t, backend.PolicyImmediate)
	a := f.handle(t)
	var seen float32
	dd := drawData(triangles(
		DrawCmd{Callback: CallbackSetAlpha{Alpha: 0.75}},
		DrawCmd{Callback: CallbackCustom(func(s *FrameState) {
			seen = s.Alpha
			s.Alpha = 0.5
		})},
		DrawCmd{TextureID: a, ClipRect: NoClip},
	))
	if _, err := f.replay(t, dd); err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if seen != 0.75 {
		t.Errorf("custom callback saw alpha %v, want 0.75", seen)
	}
	if got := frameAlpha(f.b.Draws()[0]); got != 0.5 {
		t.Errorf("draw alpha = %v, want 0.5", got)
	}
}

func TestUnknownBinding(t *testing.T) {
	f := newFixture(t, backend.PolicyImmediate)
	dd := drawData(triangles(DrawCmd{TextureID: 42, ClipRect: NoClip}))
	if _, err := f.replay(t, dd); !errors.Is(err, ErrUnknownBinding) {
		t.Fatalf("Replay() error = %v, want ErrUnknownBinding", err)
	}
}

func TestGeometryGrowsAcrossFrames(t *testing.T) {
	f := newFixture(t, backend.PolicyImmediate)
	a := f.handle(t)
	cmds := make([]DrawCmd, 50)
	for i := range cmds {
		cmds[i] = DrawCmd{TextureID: a, ClipRect: NoClip}
	}
	for frame := 0; frame < 2; frame++ {
		if _, err := f.replay(t, drawData(triangles(cmds...))); err != nil {
			t.Fatalf("frame %d: Replay() error = %v", frame, err)
		}
		f.b.Retire()
		f.b.CollectRetired()
	}
	if v := f.b.Violations(); len(v) != 0 {
		t.Errorf("Violations = %v", v)
	}
}
