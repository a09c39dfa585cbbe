package imaging

import "math"

// AspectRatio is a label accepted by providers together with its numeric value
type AspectRatio struct {
	Label string
	Value float64
}

// AspectRatios lists supported ratios. Order decides ties in NearestAspectRatio.
var AspectRatios = []AspectRatio{
	{"1:1", 1.0 / 1.0},
	{"16:9", 16.0 / 9.0},
	{"21:9", 21.0 / 9.0},
	{"3:2", 3.0 / 2.0},
	{"2:3", 2.0 / 3.0},
	{"4:5", 4.0 / 5.0},
	{"5:4", 5.0 / 4.0},
	{"3:4", 3.0 / 4.0},
	{"4:3", 4.0 / 3.0},
	{"9:16", 9.0 / 16.0},
	{"9:21", 9.0 / 21.0},
}

// NearestAspectRatio returns the label whose value is closest to width/height.
// height must be positive.
func NearestAspectRatio(width, height int) string {
	target := float64(width) / float64(height)

	best := AspectRatios[0]
	bestDiff := math.Abs(best.Value - target)
	for _, r := range AspectRatios[1:] {
		if d := math.Abs(r.Value - target); d < bestDiff {
			best, bestDiff = r, d
		}
	}
	return best.Label
}
