package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/coreman2200/funtimes-dmxnode/internal/app"
	"github.com/coreman2200/funtimes-dmxnode/internal/diagnostics"
	"github.com/coreman2200/funtimes-dmxnode/internal/dmx"
	"github.com/coreman2200/funtimes-dmxnode/internal/driver/fake"
	"github.com/coreman2200/funtimes-dmxnode/internal/fixture"
	"github.com/coreman2200/funtimes-dmxnode/internal/mixer"
	"github.com/coreman2200/funtimes-dmxnode/internal/overlay/solid"
	"github.com/coreman2200/funtimes-dmxnode/internal/overlay/wave"
	"github.com/coreman2200/funtimes-dmxnode/internal/sequence"
)

// Four RGB pars, remote drops out, the node takes over and runs a short
// show: scene fades, a cue list and two overlays.
func main() {
	var (
		fps     = flag.Int("fps", 40, "simulated frames per second")
		every   = flag.Int("every", 20, "print every nth frame")
		seconds = flag.Float64("seconds", 14, "simulated duration")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	lvl := zerolog.InfoLevel
	if *verbose {
		lvl = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).Level(lvl).With().Timestamp().Logger()

	p := fixture.NewPatch()
	must(p.AddProfile(fixture.Profile{ID: "par", Name: "RGB par", Channels: []fixture.ChannelDef{
		{Name: "Dim", Type: dmx.Intensity},
		{Name: "Red", Type: dmx.ColorRed},
		{Name: "Green", Type: dmx.ColorGreen},
		{Name: "Blue", Type: dmx.ColorBlue},
	}}))
	for i := 0; i < 4; i++ {
		must(p.Set(i, fixture.Entry{Name: fmt.Sprintf("Par %d", i+1), Profile: "par", Address: 1 + 4*i, Groups: 1}))
	}
	must(p.SetGroup(0, "all"))

	start := time.Unix(1_700_000_000, 0)
	eng := mixer.New(mixer.Config{
		RemoteTimeout: 2 * time.Second,
		ModeFade:      time.Second,
		MasterSpeed:   1,
		Debounce:      time.Hour,
		MaxWait:       time.Hour,
		Start:         start,
	}, p, mixer.WithLogger(logger))

	drv := &fake.Driver{Out: os.Stdout, Every: *every}
	core := app.NewCore(eng, nil,
		app.WithFPS(*fps),
		app.WithSinks(drv),
		app.WithLogger(logger),
		app.WithNotify(func(d diagnostics.Diagnostic) {
			fmt.Printf("diag %s: %s\n", d.Code, d.Summary)
		}))

	red := solid.New("solid", p, solid.Color{R: 255})
	chase := wave.New("wave", p, wave.Params{})
	chase.ApplyPreset("Chase")

	remote := make([]byte, 16)
	for i := range remote {
		remote[i] = 40
	}
	at := func(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }

	last := eng.Mode()
	c := &app.Conductor{
		Core: core,
		FPS:  *fps,
		Events: []app.Event{
			{At: at(0.1), Do: func(e *mixer.Engine) { e.OnRemoteFrame(remote) }},
			// silence from here; the node goes LocalAuto 2s later
			{At: at(3), Do: func(e *mixer.Engine) {
				e.SetFixtureIntensity(0, 255)
				e.SetGroupChannel(0, 0, 255)
				e.SetGroupChannel(0, 2, 200)
				must(e.SaveScene(0, "green"))
				e.SetGroupChannel(0, 2, 0)
				e.SetGroupChannel(0, 3, 220)
				must(e.SaveScene(1, "blue"))
			}},
			{At: at(3.5), Do: func(e *mixer.Engine) {
				must(e.AddCue(sequence.Cue{Scene: 0, FadeMs: 1000, AutoFollowMs: 2000, Label: "green"}))
				must(e.AddCue(sequence.Cue{Scene: 1, FadeMs: 1000, AutoFollowMs: 2000, Label: "blue"}))
				e.CueGo()
			}},
			{At: at(8), Do: func(e *mixer.Engine) {
				e.CueStop()
				e.SetOverlay(mixer.OverlayWave, chase)
			}},
			{At: at(10), Do: func(e *mixer.Engine) {
				e.SetOverlay(mixer.OverlayWave, nil)
				e.SetOverlay(mixer.OverlayShape, red)
			}},
			{At: at(11), Do: func(e *mixer.Engine) { e.Blackout(true) }},
			{At: at(12), Do: func(e *mixer.Engine) {
				e.Blackout(false)
				e.SetOverlay(mixer.OverlayShape, nil)
				e.OnRemoteFrame(remote)
			}},
		},
		Frame: func(at time.Duration, res mixer.TickResult) {
			if res.Mode != last {
				fmt.Printf("%6.2fs mode %s\n", at.Seconds(), res.Mode)
				last = res.Mode
			}
		},
	}

	n := c.Run(start, at(*seconds))
	fmt.Printf("%d ticks, %d frames written, final %v\n", n, drv.Count(), eng.State().Mode)
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
