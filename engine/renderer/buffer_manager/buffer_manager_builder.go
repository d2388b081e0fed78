package buffer_manager

// BufferManagerBuilderOption is a functional option used to configure a BufferManager during construction.
type BufferManagerBuilderOption func(*bufferManager)

// WithInitialCapacity sets the element count a buffer is first allocated with.
//
// Parameters:
//   - kind: the buffer kind
//   - n: the initial capacity in elements
//
// Returns:
//   - BufferManagerBuilderOption: a function that sets the initial capacity
func WithInitialCapacity(kind Kind, n int) BufferManagerBuilderOption {
	return func(m *bufferManager) {
		if n > 0 {
			m.initial[kind] = n
		}
	}
}

// WithGrowthFactor sets the multiplier applied to the capacity when a buffer grows. Factors of 1 or less are ignored.
func WithGrowthFactor(f float64) BufferManagerBuilderOption {
	return func(m *bufferManager) {
		if f > 1 {
			m.growth = f
		}
	}
}
