// Package imaging converts physical phone sizes into pixel sizes accepted by
// the image generation models.
package imaging

import "math"

// DefaultDPI is the print resolution phone cases are rendered at.
const DefaultDPI = 300

const (
	mmPerInch = 25.4
	pixelStep = 16
)

// MMToPixels converts a length in millimeters to pixels at the given dpi.
// The result is rounded up to a multiple of 16; exact multiples are kept.
func MMToPixels(mm float64, dpi int) int {
	pixels := int(math.Round(mm / mmPerInch * float64(dpi)))
	if pixels%pixelStep == 0 {
		return pixels
	}
	return (pixels/pixelStep + 1) * pixelStep
}
