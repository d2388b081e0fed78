package common

// Virtual key codes for cross-platform input handling.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeySpace     = 32  // Spacebar (ASCII)
	KeyA         = 65  // A key (ASCII)
	KeyC         = 67  // C key (ASCII)
	KeyV         = 86  // V key (ASCII)
	KeyX         = 88  // X key (ASCII)
	KeyY         = 89  // Y key (ASCII)
	KeyZ         = 90  // Z key (ASCII)
	KeyEsc       = 256 // Escape key (GLFW)
	KeyEnter     = 257 // Enter key (GLFW)
	KeyTab       = 258 // Tab key (GLFW)
	KeyBackspace = 259 // Backspace key (GLFW)
	KeyDelete    = 261 // Delete key (GLFW)
	KeyRight     = 262 // Right arrow (GLFW)
	KeyLeft      = 263 // Left arrow (GLFW)
	KeyDown      = 264 // Down arrow (GLFW)
	KeyUp        = 265 // Up arrow (GLFW)
	KeyHome      = 268 // Home key (GLFW)
	KeyEnd       = 269 // End key (GLFW)
)

// Modifier keys, tracked separately so the GUI can build shortcut chords.
const (
	KeyLeftShift    = 340 // Left Shift (GLFW)
	KeyLeftControl  = 341 // Left Control (GLFW)
	KeyLeftAlt      = 342 // Left Alt (GLFW)
	KeyRightShift   = 344 // Right Shift (GLFW)
	KeyRightControl = 345 // Right Control (GLFW)
	KeyRightAlt     = 346 // Right Alt (GLFW)
)
