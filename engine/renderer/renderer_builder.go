package renderer

import (
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/pipeline"
	"golang.org/x/image/font"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithBackendType selects the backend implementation constructed by NewRenderer. Defaults to backend.TypeWGPU.
//
// Parameters:
//   - t: the backend type
//
// Returns:
//   - RendererBuilderOption: a function that applies the backend type option to a renderer
func WithBackendType(t backend.Type) RendererBuilderOption {
	return func(r *renderer) {
		r.backendType = t
	}
}

// WithBackend injects a prebuilt backend, e.g. a backend.RecordingBackend. The renderer drains an injected
// backend on Release but leaves releasing it to the caller.
//
// Parameters:
//   - b: the backend to render with
//
// Returns:
//   - RendererBuilderOption: a function that applies the backend option to a renderer
func WithBackend(b backend.Backend) RendererBuilderOption {
	return func(r *renderer) {
		r.backend = b
	}
}

// WithBackendOptions appends options passed to backend.New.
func WithBackendOptions(options ...backend.ConfigOption) RendererBuilderOption {
	return func(r *renderer) {
		r.backendOptions = append(r.backendOptions, options...)
	}
}

// WithSurface sets the platform surface and its initial size.
//
// Parameters:
//   - surface: the surface source, a *wgpu.SurfaceDescriptor for the wgpu backend
//   - width: the initial surface width in pixels
//   - height: the initial surface height in pixels
//
// Returns:
//   - RendererBuilderOption: a function that applies the surface option to a renderer
func WithSurface(surface any, width, height int) RendererBuilderOption {
	return WithBackendOptions(backend.WithSurface(surface, width, height))
}

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode backend.PresentMode) RendererBuilderOption {
	return WithBackendOptions(backend.WithPresentMode(mode))
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return WithBackendOptions(backend.WithForceFallbackAdapter(force))
}

// WithSPIRVShaders creates shader modules from SPIR-V compiled from the WGSL sources.
func WithSPIRVShaders(enabled bool) RendererBuilderOption {
	return WithBackendOptions(backend.WithSPIRVShaders(enabled))
}

// WithPipeline pre-registers an additional pipeline with the backend during construction.
//
// Parameters:
//   - p: the Pipeline to register
//
// Returns:
//   - RendererBuilderOption: a function that applies the pipeline option to a renderer
func WithPipeline(p pipeline.Pipeline) RendererBuilderOption {
	return func(r *renderer) {
		r.extraPipelines = append(r.extraPipelines, p)
	}
}

// WithClearColor sets the colour the surface is cleared to at the start of the UI pass. Defaults to opaque black.
//
// Parameters:
//   - c: the RGBA clear colour, each channel in [0, 1]
//
// Returns:
//   - RendererBuilderOption: a function that applies the clear colour option to a renderer
func WithClearColor(c [4]float64) RendererBuilderOption {
	return func(r *renderer) {
		r.clearColor = c
	}
}

// WithInitialVertexCapacity sets the initial vertex buffer capacity in vertices.
func WithInitialVertexCapacity(n int) RendererBuilderOption {
	return func(r *renderer) {
		r.initialVertex = n
	}
}

// WithInitialIndexCapacity sets the initial index buffer capacity in indices.
func WithInitialIndexCapacity(n int) RendererBuilderOption {
	return func(r *renderer) {
		r.initialIndex = n
	}
}

// WithFontAtlas sets the face rasterised into the renderer-owned font atlas. Defaults to the 7x13 bitmap face.
//
// Parameters:
//   - face: the font face
//
// Returns:
//   - RendererBuilderOption: a function that applies the font option to a renderer
func WithFontAtlas(face font.Face) RendererBuilderOption {
	return func(r *renderer) {
		r.fontFace = face
	}
}

// WithConversionWorkers sets the number of workers converting large bitmaps to RGBA.
func WithConversionWorkers(n int) RendererBuilderOption {
	return func(r *renderer) {
		r.conversionWorkers = n
	}
}
