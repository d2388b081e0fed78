package backend

// ConfigOption is a functional option applied to a Config during construction via New.
type ConfigOption func(*Config)

// WithSurface sets the platform surface the backend presents to.
//
// Parameters:
//   - surface: the surface source, a *wgpu.SurfaceDescriptor for the wgpu backend
//   - width: the initial surface width in pixels
//   - height: the initial surface height in pixels
//
// Returns:
//   - ConfigOption: a function that applies the surface option to a Config
func WithSurface(surface any, width, height int) ConfigOption {
	return func(c *Config) {
		c.Surface = surface
		c.Width = width
		c.Height = height
	}
}

// WithPresentMode sets the surface present mode.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - ConfigOption: a function that applies the present mode option to a Config
func WithPresentMode(mode PresentMode) ConfigOption {
	return func(c *Config) {
		c.PresentMode = mode
	}
}

// WithForceFallbackAdapter forces a CPU/software fallback adapter instead of hardware acceleration.
// This requires a software Vulkan ICD to be installed on the system (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter
//
// Returns:
//   - ConfigOption: a function that applies the option to a Config
func WithForceFallbackAdapter(force bool) ConfigOption {
	return func(c *Config) {
		c.ForceFallbackAdapter = force
	}
}

// WithSPIRVShaders compiles WGSL sources to SPIR-V before handing them to the device.
//
// Parameters:
//   - enabled: true to create shader modules from SPIR-V
//
// Returns:
//   - ConfigOption: a function that applies the option to a Config
func WithSPIRVShaders(enabled bool) ConfigOption {
	return func(c *Config) {
		c.SPIRVShaders = enabled
	}
}

// WithUniformUpdatePolicy sets the in-pass update policy of the recording backend.
// The wgpu backend ignores it and always splits the pass.
//
// Parameters:
//   - policy: the policy to report and enforce
//
// Returns:
//   - ConfigOption: a function that applies the option to a Config
func WithUniformUpdatePolicy(policy UniformUpdatePolicy) ConfigOption {
	return func(c *Config) {
		c.Policy = policy
	}
}

// WithLimits overrides the device limits reported by the recording backend.
//
// Parameters:
//   - limits: the limits to report and enforce
//
// Returns:
//   - ConfigOption: a function that applies the option to a Config
func WithLimits(limits Limits) ConfigOption {
	return func(c *Config) {
		c.Limits = &limits
	}
}

// WithAutoRetire makes the recording backend treat submitted work as complete when Present is called.
//
// Parameters:
//   - enabled: true to retire on Present
//
// Returns:
//   - ConfigOption: a function that applies the option to a Config
func WithAutoRetire(enabled bool) ConfigOption {
	return func(c *Config) {
		c.AutoRetire = enabled
	}
}
