package window

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/Carmen-Shannon/oxy-gui/common"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// ErrNotInitialized is returned by Close on a window whose platform window was never created.
var ErrNotInitialized = errors.New("window: not initialized")

// glfwWindow holds the GLFW-specific window state.
type glfwWindow struct {
	parent  *engineWindow
	window  *glfw.Window
	running bool
}

// newPlatformWindow creates the GLFW window with input callbacks and stores it as the internal window.
//
// GLFW reference: https://www.glfw.org/docs/latest/window_guide.html
// go-gl/glfw: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw
func newPlatformWindow(w *engineWindow) error {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("failed to initialize GLFW: %w", err)
	}

	// WebGPU provides its own graphics API, so disable OpenGL context creation.
	// Reference: https://www.glfw.org/docs/latest/window_guide.html#window_hints_ctx
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	win, err := glfw.CreateWindow(w.width, w.height, w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("failed to create GLFW window: %w", err)
	}
	win.SetSizeLimits(w.minWidth, w.minHeight, w.maxWidth, w.maxHeight)

	gw := &glfwWindow{
		parent:  w,
		window:  win,
		running: true,
	}
	w.internalWindow = gw

	// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Window.SetKeyCallback
	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if w.closeOnEscape && key == common.KeyEsc && action == glfw.Press {
			win.SetShouldClose(true)
			return
		}
		if key == glfw.KeyUnknown {
			return
		}
		w.input.key(KeyEvent{
			Key:    uint32(key),
			Down:   action != glfw.Release,
			Repeat: action == glfw.Repeat,
			Mods:   modifiers(mods),
		})
	})

	// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Window.SetCharCallback
	win.SetCharCallback(func(_ *glfw.Window, char rune) {
		w.input.char(char)
	})

	// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Window.SetScrollCallback
	win.SetScrollCallback(func(_ *glfw.Window, xoff, yoff float64) {
		w.input.scroll(xoff, yoff)
	})

	// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Window.SetMouseButtonCallback
	win.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		var b MouseButton
		switch button {
		case glfw.MouseButtonLeft:
			b = MouseButtonLeft
		case glfw.MouseButtonRight:
			b = MouseButtonRight
		case glfw.MouseButtonMiddle:
			b = MouseButtonMiddle
		default:
			return
		}
		w.input.button(b, action == glfw.Press)
	})

	// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Window.SetCursorPosCallback
	win.SetCursorPosCallback(func(_ *glfw.Window, xpos, ypos float64) {
		w.input.cursor(xpos, ypos)
	})

	win.SetCursorEnterCallback(func(_ *glfw.Window, entered bool) {
		if !entered {
			w.input.cursorLeft()
		}
	})

	// Use framebuffer size callback for pixel-accurate resize events.
	// On high-DPI displays (e.g., macOS Retina), framebuffer size differs from window size.
	// The renderer requires pixel dimensions for correct surface configuration.
	// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Window.SetFramebufferSizeCallback
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.width = width
		w.height = height
		if w.onResize != nil {
			w.onResize(width, height)
		}
	})

	win.SetCloseCallback(func(_ *glfw.Window) {
		if w.onClose != nil {
			w.onClose()
		}
	})

	// Update stored dimensions to reflect actual framebuffer size (may differ from requested on high-DPI).
	fbWidth, fbHeight := win.GetFramebufferSize()
	w.width = fbWidth
	w.height = fbHeight

	return nil
}

func modifiers(mods glfw.ModifierKey) Modifier {
	var m Modifier
	if mods&glfw.ModShift != 0 {
		m |= ModShift
	}
	if mods&glfw.ModControl != 0 {
		m |= ModControl
	}
	if mods&glfw.ModAlt != 0 {
		m |= ModAlt
	}
	if mods&glfw.ModSuper != 0 {
		m |= ModSuper
	}
	return m
}

// platformGetSurfaceDescriptor creates a platform-appropriate wgpu.SurfaceDescriptor from the GLFW window.
// Uses the wgpuglfw bridge package which has per-platform implementations (Windows, X11, Wayland, macOS).
//
// Reference: https://pkg.go.dev/github.com/cogentcore/webgpu/wgpuglfw#GetSurfaceDescriptor
func platformGetSurfaceDescriptor(w *engineWindow) *wgpu.SurfaceDescriptor {
	if w.internalWindow == nil {
		return nil
	}
	gw := w.internalWindow.(*glfwWindow)
	return wgpuglfw.GetSurfaceDescriptor(gw.window)
}

// platformIsRunningCheck returns whether the GLFW window is still active.
// Returns false if the internal window is nil, the running flag is cleared, or GLFW reports ShouldClose.
//
// Parameters:
//   - w: the engineWindow to check
//
// Returns:
//   - bool: true if the window is still running
func platformIsRunningCheck(w *engineWindow) bool {
	if w.internalWindow == nil {
		return false
	}
	gw := w.internalWindow.(*glfwWindow)
	return gw.running && !gw.window.ShouldClose()
}

// platformCloseWindow destroys the GLFW window and terminates the GLFW library.
//
// Parameters:
//   - w: the engineWindow to close
//
// Returns:
//   - error: ErrNotInitialized if the window was never created
func platformCloseWindow(w *engineWindow) error {
	if w.internalWindow == nil {
		return ErrNotInitialized
	}
	gw := w.internalWindow.(*glfwWindow)
	if !gw.running {
		return nil
	}
	gw.running = false
	gw.window.Destroy()
	glfw.Terminate()
	return nil
}

// platformProcessMessages polls GLFW for pending events without blocking.
//
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#PollEvents
func platformProcessMessages(w *engineWindow) bool {
	if !platformIsRunningCheck(w) {
		return false
	}
	glfw.PollEvents()
	return platformIsRunningCheck(w)
}

func platformTime() float64 {
	return glfw.GetTime()
}

// platformMetrics reads the window size, the framebuffer scale and the focus state.
func platformMetrics(w *engineWindow) Metrics {
	if !platformIsRunningCheck(w) {
		return Metrics{FramebufferScale: [2]float32{1, 1}}
	}
	gw := w.internalWindow.(*glfwWindow)
	ww, wh := gw.window.GetSize()
	m := Metrics{
		DisplaySize:      [2]float32{float32(ww), float32(wh)},
		FramebufferScale: [2]float32{1, 1},
		Focused:          gw.window.GetAttrib(glfw.Focused) == glfw.True,
	}
	if ww > 0 && wh > 0 {
		m.FramebufferScale = [2]float32{float32(w.width) / float32(ww), float32(w.height) / float32(wh)}
	}
	return m
}
