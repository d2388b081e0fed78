package draw_list

import (
	"errors"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-gui/common"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/binding_cache"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/buffer_manager"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/pipeline"
)

var (
	// ErrUnknownBinding is returned when a batch references a handle the binding cache does not hold.
	ErrUnknownBinding = errors.New("draw_list: unknown texture binding")
	// ErrCallbackRejected is returned when a callback needs an in-pass uniform update the backend refuses.
	ErrCallbackRejected = errors.New("draw_list: callback rejected by backend")
)

// replayer is the implementation of the Replayer interface.
type replayer struct {
	b       backend.Backend
	buffers buffer_manager.BufferManager
	cache   binding_cache.BindingCache

	target     backend.Texture
	load       backend.LoadOp
	clearColor [4]float64

	vertexScratch []byte
	indexScratch  []byte
}

// Replayer records a DrawData into the current backend frame.
//
// Replay must be called between Backend.BeginFrame and Backend.EndFrame with no pass open. It uploads the frame's
// geometry, opens one UI pass and walks the commands in order. On error the pass may still be open; the caller
// aborts the frame.
type Replayer interface {
	// Replay records dd.
	//
	// Parameters:
	//   - dd: the frame's draw data
	//
	// Returns:
	//   - ReplayStats: counters of what was recorded
	//   - error: ErrUnknownBinding, ErrCallbackRejected, capacity or backend errors
	Replay(dd *DrawData) (ReplayStats, error)

	// SetClearColor sets the colour the pass clears to when the load op is LoadOpClear.
	SetClearColor(c [4]float64)
}

var _ Replayer = &replayer{}

// NewReplayer creates a Replayer drawing through the UI pipeline, which must be registered on b.
//
// Parameters:
//   - b: the backend
//   - buffers: the geometry and frame uniform buffers
//   - cache: the binding cache resolving texture handles
//   - options: functional options selecting the target and load op
//
// Returns:
//   - Replayer: the replayer
func NewReplayer(b backend.Backend, buffers buffer_manager.BufferManager, cache binding_cache.BindingCache, options ...ReplayerBuilderOption) Replayer {
	r := &replayer{
		b:          b,
		buffers:    buffers,
		cache:      cache,
		load:       backend.LoadOpClear,
		clearColor: [4]float64{0, 0, 0, 1},
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *replayer) SetClearColor(c [4]float64) {
	r.clearColor = c
}

// passState tracks what is bound in the open pass so redundant state changes are skipped.
type passState struct {
	set     backend.ResourceSet
	scissor [4]uint32
	clipped bool
	// last is the resource set of the previous draw, kept across pass restarts.
	last backend.ResourceSet
}

func (r *replayer) Replay(dd *DrawData) (ReplayStats, error) {
	var stats ReplayStats
	sx, sy := dd.scale()
	fbW, fbH := dd.DisplaySize[0]*sx, dd.DisplaySize[1]*sy
	if fbW <= 0 || fbH <= 0 {
		return stats, nil
	}
	tw, th := r.targetSize()
	fbW, fbH = min(fbW, float32(tw)), min(fbH, float32(th))

	if err := r.upload(dd); err != nil {
		return stats, err
	}
	display := dd.Display()
	state := defaultFrameState()
	if err := r.buffers.WriteFrameUniforms(buffer_manager.NewFrameUniforms(display, state.Alpha)); err != nil {
		return stats, err
	}

	if err := r.b.BeginPass(backend.PassDescriptor{Label: "ui", Target: r.target, Load: r.load, ClearColor: r.clearColor}); err != nil {
		return stats, fmt.Errorf("begin ui pass: %w", err)
	}
	var ps passState
	bind := func() error {
		if err := r.b.SetPipeline(pipeline.KeyUI); err != nil {
			return err
		}
		r.b.SetGeometry(r.buffers.Buffer(buffer_manager.KindVertex), r.buffers.Buffer(buffer_manager.KindIndex))
		r.b.SetViewport(0, 0, fbW, fbH)
		ps.set = nil
		ps.clipped = false
		return nil
	}
	if err := bind(); err != nil {
		return stats, err
	}

	var vtxBase, idxBase uint32
	for li := range dd.Lists {
		list := &dd.Lists[li]
		for ci := range list.Commands {
			cmd := &list.Commands[ci]
			stats.Commands++

			if cmd.Callback != nil {
				stats.Callbacks++
				prev := state
				cmd.Callback.apply(&state)
				if state.Alpha == prev.Alpha {
					continue
				}
				restarted, err := r.buffers.UpdateFrameUniformsInPass(buffer_manager.NewFrameUniforms(display, state.Alpha))
				if err != nil {
					common.Logger().Warn("callback rejected", "list", li, "command", ci, "error", err)
					return stats, fmt.Errorf("list %d command %d: %w: %w", li, ci, ErrCallbackRejected, err)
				}
				if restarted {
					stats.Restarts++
					if err := bind(); err != nil {
						return stats, err
					}
				}
				continue
			}
			if cmd.ElemCount == 0 {
				continue
			}

			entry, ok := r.cache.Resolve(cmd.TextureID)
			if !ok {
				return stats, fmt.Errorf("list %d command %d: handle %d: %w", li, ci, cmd.TextureID, ErrUnknownBinding)
			}
			if state.OverrideInterpolation && entry.Key.Interpolation != state.Interpolation {
				h, err := r.cache.GetOrCreateBinding(entry.Texture,
					binding_cache.WithInterpolation(state.Interpolation), binding_cache.WithAlpha(entry.Key.Alpha))
				if err != nil {
					return stats, err
				}
				entry, _ = r.cache.Resolve(h)
			}

			scissor, visible := clipToScissor(cmd.ClipRect, dd.DisplayPos, sx, sy, fbW, fbH)
			if !visible {
				stats.Skipped++
				continue
			}
			if !ps.clipped || scissor != ps.scissor {
				r.b.SetScissorRect(scissor[0], scissor[1], scissor[2], scissor[3])
				ps.scissor = scissor
				ps.clipped = true
				stats.ScissorChanges++
			}

			set := entry.ResourceSet()
			if set != ps.set {
				r.b.SetResourceSet(0, set)
				ps.set = set
			}
			if ps.last != nil && set != ps.last {
				stats.SetSwitches++
			}
			ps.last = set

			r.b.DrawIndexed(cmd.ElemCount, idxBase+cmd.IdxOffset, int32(vtxBase+cmd.VtxOffset))
			stats.Draws++
		}
		vtxBase += uint32(len(list.Vertices))
		idxBase += uint32(len(list.Indices))
	}

	r.b.EndPass()
	return stats, nil
}

// upload concatenates every list's geometry and overwrites the vertex and index buffers.
func (r *replayer) upload(dd *DrawData) error {
	r.vertexScratch = r.vertexScratch[:0]
	r.indexScratch = r.indexScratch[:0]
	for i := range dd.Lists {
		r.vertexScratch = append(r.vertexScratch, common.SliceToBytes(dd.Lists[i].Vertices)...)
		r.indexScratch = append(r.indexScratch, common.SliceToBytes(dd.Lists[i].Indices)...)
	}
	if err := r.buffers.Write(buffer_manager.KindVertex, r.vertexScratch); err != nil {
		return err
	}
	return r.buffers.Write(buffer_manager.KindIndex, r.indexScratch)
}

func (r *replayer) targetSize() (int, int) {
	if r.target != nil {
		return int(r.target.Width()), int(r.target.Height())
	}
	return r.b.SurfaceSize()
}

// clipToScissor projects a clip rectangle from display units to a framebuffer scissor rectangle.
//
// Returns:
//   - [4]uint32: x, y, width, height in framebuffer pixels
//   - bool: false if nothing of the batch is visible
func clipToScissor(clip common.Rect, origin [2]float32, sx, sy, fbW, fbH float32) ([4]uint32, bool) {
	if clip.MinX < 0 || clip.MinY < 0 || clip.MaxX < 0 || clip.MaxY < 0 {
		return [4]uint32{0, 0, uint32(fbW), uint32(fbH)}, true
	}
	x0 := max((clip.MinX-origin[0])*sx, 0)
	y0 := max((clip.MinY-origin[1])*sy, 0)
	x1 := min((clip.MaxX-origin[0])*sx, fbW)
	y1 := min((clip.MaxY-origin[1])*sy, fbH)
	if x1 <= x0 || y1 <= y0 {
		return [4]uint32{}, false
	}
	ix0, iy0 := uint32(x0), uint32(y0)
	ix1 := min(uint32(math.Ceil(float64(x1))), uint32(fbW))
	iy1 := min(uint32(math.Ceil(float64(y1))), uint32(fbH))
	if ix1 <= ix0 || iy1 <= iy0 {
		return [4]uint32{}, false
	}
	return [4]uint32{ix0, iy0, ix1 - ix0, iy1 - iy0}, true
}
