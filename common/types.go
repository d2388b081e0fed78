// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import "image"

// TextureStagingData holds RGBA pixel data for a texture region pending GPU upload.
// Textures stage their CPU-side changes as TextureStagingData until the renderer flushes them
// ahead of the frame's draw calls.
type TextureStagingData struct {
	// Pixels is the tightly packed RGBA8 pixel data for Region, 4 bytes per pixel, row-major.
	Pixels []byte
	// Width is the width of the region in pixels.
	Width uint32
	// Height is the height of the region in pixels.
	Height uint32
	// Origin is the top-left texel the region is written to.
	Origin image.Point
}

// FilterMode selects how texels are filtered when sampled.
type FilterMode int

const (
	// FilterModeUndefined lets the consumer pick its default.
	FilterModeUndefined FilterMode = iota
	// FilterModeNearest selects the nearest texel.
	FilterModeNearest
	// FilterModeLinear blends the neighbouring texels.
	FilterModeLinear
)

// AddressMode selects how texture coordinates outside [0, 1] are resolved.
type AddressMode int

const (
	// AddressModeUndefined lets the consumer pick its default.
	AddressModeUndefined AddressMode = iota
	// AddressModeClampToEdge clamps coordinates to the edge texel.
	AddressModeClampToEdge
	// AddressModeRepeat wraps coordinates.
	AddressModeRepeat
	// AddressModeMirrorRepeat wraps coordinates, mirroring every other repetition.
	AddressModeMirrorRepeat
)

// SamplerStagingData holds the configuration for a sampler pending GPU creation.
// Zero values are replaced by backend defaults (clamp-to-edge, linear).
type SamplerStagingData struct {
	// Label is a debug label forwarded to the GPU object.
	Label string
	// AddressModeU, AddressModeV specify the addressing mode for texture coordinates outside the [0, 1] range.
	AddressModeU, AddressModeV AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter FilterMode
	// MaxAnisotropy specifies the maximum anisotropy level for anisotropic filtering.
	MaxAnisotropy uint16
}

// Rect is an axis-aligned rectangle in floating point units, Min inclusive and Max exclusive.
type Rect struct {
	MinX, MinY float32
	MaxX, MaxY float32
}

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() float32 { return r.MaxX - r.MinX }

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() float32 { return r.MaxY - r.MinY }

// Empty reports whether the rectangle encloses no area.
func (r Rect) Empty() bool { return r.MaxX <= r.MinX || r.MaxY <= r.MinY }
