// Package draw_list defines the per-frame draw command stream an immediate-mode GUI produces and the Replayer that
// turns it into backend draw calls.
package draw_list

import (
	"github.com/Carmen-Shannon/oxy-gui/common"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/binding_cache"
)

// Vertex is one draw-list vertex: position in display units, texture coordinate and a packed RGBA colour
// (R in the lowest byte).
type Vertex struct {
	Pos [2]float32
	UV  [2]float32
	Col uint32
}

// DrawCmd is one batch of a CmdList.
//
// A command with a Callback runs the callback instead of drawing. Any negative ClipRect coordinate disables
// clipping for the batch.
type DrawCmd struct {
	// ElemCount is the number of indices drawn.
	ElemCount uint32
	// IdxOffset is the first index, relative to the list's index buffer.
	IdxOffset uint32
	// VtxOffset is added to every index, relative to the list's vertex buffer.
	VtxOffset uint32
	// ClipRect is the clip rectangle in display units.
	ClipRect common.Rect
	// TextureID is the binding handle of the texture sampled by the batch.
	TextureID binding_cache.Handle
	Callback  Callback
}

// NoClip is a ClipRect that disables clipping.
var NoClip = common.Rect{MinX: -1, MinY: -1, MaxX: -1, MaxY: -1}

// CmdList is the geometry and commands of one window or layer. Indices are relative to the list's own vertices.
type CmdList struct {
	Vertices []Vertex
	Indices  []uint16
	Commands []DrawCmd
}

// DrawData is everything the GUI produced for one frame.
type DrawData struct {
	// DisplayPos is the top-left of the display rectangle in display units.
	DisplayPos [2]float32
	// DisplaySize is the size of the display rectangle in display units.
	DisplaySize [2]float32
	// FramebufferScale converts display units to framebuffer pixels, (1, 1) unless the display is high-DPI.
	FramebufferScale [2]float32
	Lists            []CmdList
}

// TotalVertices returns the vertex count over every list.
func (d *DrawData) TotalVertices() int {
	n := 0
	for i := range d.Lists {
		n += len(d.Lists[i].Vertices)
	}
	return n
}

// TotalIndices returns the index count over every list.
func (d *DrawData) TotalIndices() int {
	n := 0
	for i := range d.Lists {
		n += len(d.Lists[i].Indices)
	}
	return n
}

// Display returns the display rectangle.
func (d *DrawData) Display() common.Rect {
	return common.Rect{
		MinX: d.DisplayPos[0],
		MinY: d.DisplayPos[1],
		MaxX: d.DisplayPos[0] + d.DisplaySize[0],
		MaxY: d.DisplayPos[1] + d.DisplaySize[1],
	}
}

// scale returns FramebufferScale with zero components replaced by 1.
func (d *DrawData) scale() (float32, float32) {
	sx, sy := d.FramebufferScale[0], d.FramebufferScale[1]
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}
	return sx, sy
}

// ReplayStats counts what a Replay issued.
type ReplayStats struct {
	Commands       int
	Draws          int
	Callbacks      int
	SetSwitches    int
	ScissorChanges int
	// Skipped counts batches dropped because their clip rectangle was empty.
	Skipped int
	// Restarts counts passes the backend ended and resumed to order a uniform update.
	Restarts int
}

// Add accumulates o into s.
func (s *ReplayStats) Add(o ReplayStats) {
	s.Commands += o.Commands
	s.Draws += o.Draws
	s.Callbacks += o.Callbacks
	s.SetSwitches += o.SetSwitches
	s.ScissorChanges += o.ScissorChanges
	s.Skipped += o.Skipped
	s.Restarts += o.Restarts
}
