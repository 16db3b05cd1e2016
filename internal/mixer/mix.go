package mixer

import "github.com/coreman2200/funtimes-dmxnode/internal/dmx"

// Mix blends two frames (a,b) into dst using alpha (0..1), rounding to the
// nearest value. dst may alias a or b.
func Mix(dst, a, b *dmx.Frame, alpha float64) {
	if alpha <= 0 {
		*dst = *a
		return
	}
	if alpha >= 1 {
		*dst = *b
		return
	}
	af := 1.0 - alpha
	for i := range dst {
		dst[i] = byte(float64(a[i])*af + float64(b[i])*alpha + 0.5)
	}
}

// modeFade blends the previous output into the new one after a mode change.
type modeFade struct {
	active bool
	from   dmx.Frame
}
