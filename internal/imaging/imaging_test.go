package imaging

import "testing"

func TestMMToPixels(t *testing.T) {
	tests := []struct {
		name string
		mm   float64
		want int
	}{
		{name: "rounds up to multiple of 16", mm: 140.0, want: 1664},
		{name: "zero", mm: 0, want: 0},
		{name: "exact multiple kept", mm: 16 * 25.4 / 300, want: 16},
		{name: "one inch", mm: 25.4, want: 304},
		{name: "typical width", mm: 71.5, want: 848},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := MMToPixels(tc.mm, DefaultDPI); got != tc.want {
				t.Fatalf("MMToPixels(%v) = %d, want %d", tc.mm, got, tc.want)
			}
		})
	}
}

func TestMMToPixelsMultipleOf16AndMonotonic(t *testing.T) {
	prev := 0
	for mm := 0.0; mm <= 250; mm += 0.05 {
		got := MMToPixels(mm, DefaultDPI)
		if got < 0 || got%16 != 0 {
			t.Fatalf("MMToPixels(%v) = %d, want non-negative multiple of 16", mm, got)
		}
		if got < prev {
			t.Fatalf("MMToPixels(%v) = %d decreased from %d", mm, got, prev)
		}
		prev = got
	}
}

func TestNearestAspectRatio(t *testing.T) {
	tests := []struct {
		width, height int
		want          string
	}{
		{1080, 1920, "9:16"},
		{1920, 1080, "16:9"},
		{512, 512, "1:1"},
		{848, 1664, "9:16"},
		{900, 2100, "9:21"},
		{1000, 1250, "4:5"},
		{3000, 1000, "21:9"},
	}

	for _, tc := range tests {
		if got := NearestAspectRatio(tc.width, tc.height); got != tc.want {
			t.Errorf("NearestAspectRatio(%d, %d) = %q, want %q", tc.width, tc.height, got, tc.want)
		}
	}
}

func TestNearestAspectRatioAlwaysKnownLabel(t *testing.T) {
	labels := make(map[string]bool, len(AspectRatios))
	for _, r := range AspectRatios {
		labels[r.Label] = true
	}
	if len(labels) != 11 {
		t.Fatalf("expected 11 distinct labels, got %d", len(labels))
	}

	for w := 16; w <= 2048; w += 112 {
		for h := 16; h <= 2048; h += 112 {
			if got := NearestAspectRatio(w, h); !labels[got] {
				t.Fatalf("NearestAspectRatio(%d, %d) = %q, not a known label", w, h, got)
			}
		}
		if got := NearestAspectRatio(w, w); got != "1:1" {
			t.Fatalf("NearestAspectRatio(%d, %d) = %q, want 1:1", w, w, got)
		}
	}
}
