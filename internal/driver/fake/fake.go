package fake

import (
	"fmt"
	"io"
	"sync"

	"github.com/coreman2200/funtimes-dmxnode/internal/dmx"
)

// Driver prints a compact summary of each frame (lit channels, peak, first
// three values) and keeps the last one, useful for headless runs and tests.
type Driver struct {
	Out io.Writer // nil keeps it quiet
	// Every prints one line per n frames; 0 or 1 prints all.
	Every int
	Err   error // returned from Write when set

	mu    sync.Mutex
	count int
	last  dmx.Frame
}

func (d *Driver) Write(f dmx.Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count++
	d.last = f
	if d.Err != nil {
		return d.Err
	}
	if d.Out == nil || (d.Every > 1 && d.count%d.Every != 0) {
		return nil
	}
	var lit int
	var peak byte
	for _, v := range f {
		if v > 0 {
			lit++
		}
		if v > peak {
			peak = v
		}
	}
	_, err := fmt.Fprintf(d.Out, "[frame %04d] lit=%d peak=%d first=(%d,%d,%d)\n",
		d.count, lit, peak, f[0], f[1], f[2])
	return err
}

func (d *Driver) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

func (d *Driver) Last() dmx.Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}
