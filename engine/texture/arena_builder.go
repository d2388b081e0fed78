package texture

// ArenaBuilderOption is a functional option applied to an arena during construction via NewArena.
type ArenaBuilderOption func(*arena)

// WithConversionWorkers sets the number of workers converting large bitmaps to RGBA. Values below 2 convert on
// the calling goroutine.
//
// Parameters:
//   - n: the maximum number of conversion workers
//
// Returns:
//   - ArenaBuilderOption: a function that applies the option to an arena
func WithConversionWorkers(n int) ArenaBuilderOption {
	return func(a *arena) {
		a.conversionWorkers = n
	}
}
