package window

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// Window provides platform windowing and per-frame input polling for an immediate-mode GUI.
type Window interface {
	// PollEvents processes pending platform events without blocking and returns the input gathered since the
	// previous call.
	//
	// Returns:
	//   - InputSnapshot: the accumulated input and the current display metrics
	PollEvents() InputSnapshot

	// SetResizeCallback sets the function called when the framebuffer is resized. It runs inside PollEvents.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetCloseCallback sets the function called when the user requests the window to close. It runs inside
	// PollEvents, before IsRunning turns false.
	SetCloseCallback(callback func())

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for creating a WebGPU surface.
	// The descriptor is platform-appropriate (Windows HWND, X11 Xlib, Wayland, macOS Metal, etc.)
	// and is created by the wgpuglfw bridge from the underlying GLFW window.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform-specific surface descriptor, or nil if window is not initialized
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning returns true if the window is still active.
	//
	// Returns:
	//   - bool: true if window is running, false if closed
	IsRunning() bool

	// Close closes the window and releases platform resources.
	//
	// Returns:
	//   - error: error if close operation fails
	Close() error

	// Width returns the current framebuffer width in pixels.
	Width() int

	// Height returns the current framebuffer height in pixels.
	Height() int
}

// engineWindow is the implementation of the Window interface.
// Holds window configuration, GLFW state, and the input accumulator.
type engineWindow struct {
	// title is the window title displayed in the title bar.
	title string

	// maxWidth and maxHeight bound the window size during resize.
	maxWidth  int
	maxHeight int

	// minWidth and minHeight bound the window size during resize.
	minWidth  int
	minHeight int

	// width and height are the current framebuffer size in pixels.
	width  int
	height int

	// closeOnEscape closes the window when Escape is pressed.
	closeOnEscape bool

	// internalWindow holds the platform-specific window data (glfwWindow).
	internalWindow any

	input *inputState

	onResize func(width, height int)
	onClose  func()
}

var _ Window = &engineWindow{}

// NewWindow creates and shows a new Window with the specified options.
// Applies default values first, then each option in order.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the spawned window
//   - error: a platform initialisation error
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		title:     "Default Window Title",
		maxWidth:  1600,
		maxHeight: 1200,
		minWidth:  600,
		minHeight: 200,
		width:     1280,
		height:    720,
		input:     newInputState(),
	}
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *engineWindow) PollEvents() InputSnapshot {
	platformProcessMessages(w)
	return w.input.snapshot(platformTime(), platformMetrics(w))
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetCloseCallback(callback func()) {
	w.onClose = callback
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}

func (w *engineWindow) Width() int {
	return w.width
}

func (w *engineWindow) Height() int {
	return w.height
}
