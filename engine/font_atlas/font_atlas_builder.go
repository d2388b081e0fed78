package font_atlas

// AtlasBuilderOption is a functional option used to configure an Atlas during construction.
type AtlasBuilderOption func(*atlas)

// WithRanges replaces the rasterised rune ranges. Each range is inclusive. Defaults to printable ASCII.
//
// Parameters:
//   - ranges: inclusive [first, last] rune pairs
//
// Returns:
//   - AtlasBuilderOption: a function that sets the ranges
func WithRanges(ranges ...[2]rune) AtlasBuilderOption {
	return func(a *atlas) {
		if len(ranges) > 0 {
			a.ranges = ranges
		}
	}
}

// WithPadding sets the empty pixels kept between glyphs. Defaults to 1.
func WithPadding(px int) AtlasBuilderOption {
	return func(a *atlas) {
		if px >= 0 {
			a.padding = px
		}
	}
}

// WithMaxSize sets the largest width and height the atlas may grow to. Defaults to 512.
func WithMaxSize(px int) AtlasBuilderOption {
	return func(a *atlas) {
		if px > 0 {
			a.maxWidth = px
		}
	}
}
