package layout

import "math"

// Options controls spacing and packing. The zero value is not useful; start
// from [DefaultOptions].
type Options struct {
	NodeSpacing    float64 `toml:"node_spacing"`    // gap between leaf siblings
	SubtreeSpacing float64 `toml:"subtree_spacing"` // gap next to a sibling with children
	LevelSpacing   float64 `toml:"level_spacing"`   // minimum vertical gap between levels
	ParentGap      float64 `toml:"parent_gap"`      // clearance below a tall parent and between packed rows
	Grid           float64 `toml:"grid"`            // snap size for both axes; 0 disables snapping
	RowSize        int     `toml:"row_size"`        // children per packed row
	PackThreshold  int     `toml:"pack_threshold"`  // minimum leaf children before packing
	MaxDepth       int     `toml:"max_depth"`       // levels below the root; 0 means unbounded
}

// DefaultOptions returns the editor's standard layout parameters.
func DefaultOptions() Options {
	return Options{
		NodeSpacing:    20,
		SubtreeSpacing: 60,
		LevelSpacing:   120,
		ParentGap:      40,
		Grid:           20,
		RowSize:        3,
		PackThreshold:  4,
		MaxDepth:       64,
	}
}

// normalize fills zero fields that would make the algorithm degenerate.
func (o Options) normalize() Options {
	d := DefaultOptions()
	if o.RowSize <= 0 {
		o.RowSize = d.RowSize
	}
	if o.PackThreshold <= 0 {
		o.PackThreshold = d.PackThreshold
	}
	if o.Grid < 0 {
		o.Grid = 0
	}
	return o
}

// Snap rounds v to the nearest grid multiple. Negative zero is normalized.
func (o Options) Snap(v float64) float64 {
	if o.Grid <= 0 {
		return v
	}
	if r := math.Round(v/o.Grid) * o.Grid; r != 0 {
		return r
	}
	return 0
}
