package renderer

import (
	"errors"
	"fmt"
)

var (
	// ErrFrameNotRecording is returned when a frame-scoped call is made outside BeginFrame/EndFrame.
	ErrFrameNotRecording = errors.New("renderer: no frame is recording")
	// ErrFrameDiscarded is returned by EndFrame, and by draws after the fact, when a resize or close invalidated
	// the recording frame. The frame was aborted and nothing was submitted.
	ErrFrameDiscarded = errors.New("renderer: frame discarded")
	// ErrDrawDataAlreadyRendered is returned when a second DrawData is rendered in the same frame.
	ErrDrawDataAlreadyRendered = errors.New("renderer: draw data already rendered this frame")
)

// FrameState is the position of the Renderer in its frame lifecycle.
//
//	FrameIdle -> BeginFrame -> FrameRecording -> EndFrame -> FrameSubmitted -> Present -> FrameIdle
//
// An invalidated frame goes from FrameRecording straight back to FrameIdle at EndFrame.
type FrameState int

const (
	// FrameIdle is the state between frames.
	FrameIdle FrameState = iota
	// FrameRecording is the state between BeginFrame and EndFrame.
	FrameRecording
	// FrameSubmitted is the state between EndFrame and Present.
	FrameSubmitted
)

func (s FrameState) String() string {
	switch s {
	case FrameIdle:
		return "idle"
	case FrameRecording:
		return "recording"
	case FrameSubmitted:
		return "submitted"
	default:
		return fmt.Sprintf("FrameState(%d)", int(s))
	}
}
