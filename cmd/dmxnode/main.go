package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"golang.org/x/sync/errgroup"

	"github.com/coreman2200/funtimes-dmxnode/internal/app"
	"github.com/coreman2200/funtimes-dmxnode/internal/config"
	"github.com/coreman2200/funtimes-dmxnode/internal/driver/fake"
	"github.com/coreman2200/funtimes-dmxnode/internal/fixture"
	"github.com/coreman2200/funtimes-dmxnode/internal/midi"
	"github.com/coreman2200/funtimes-dmxnode/internal/mixer"
	"github.com/coreman2200/funtimes-dmxnode/internal/osc"
	"github.com/coreman2200/funtimes-dmxnode/internal/status"
	"github.com/coreman2200/funtimes-dmxnode/internal/store"
	"github.com/coreman2200/funtimes-dmxnode/internal/ws"
)

func main() {
	// ---- Flags (explicit flags win over config.yaml) ----
	var (
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
		addr       = flag.String("addr", ":8080", "HTTP listen address")
		oscAddr    = flag.String("osc", ":8000", "OSC UDP address (empty disables)")
		midiPort   = flag.String("midi", "", "MIDI input port name substring")
		dataDir    = flag.String("data", "./data", "directory for persisted state")
		fps        = flag.Int("fps", 40, "output frames per second")
		level      = flag.String("level", "info", "log level")
		statusLED  = flag.Bool("status", false, "drive the status LED")
		printEvery = flag.Int("print-every", 0, "print every nth frame to stdout (0 is quiet)")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	// ---- Config ----
	cfg := config.DefaultConfig()
	if c, err := config.Load(*configPath); err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; proceeding with flags")
		cfg.HTTP.Addr, cfg.OSC.Addr, cfg.MIDI.InPort = *addr, *oscAddr, *midiPort
		cfg.Node.DataDir, cfg.Node.FPS, cfg.Logging.Level = *dataDir, *fps, *level
		cfg.Status.Enabled = *statusLED
	} else {
		cfg = *c
		flag.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "addr":
				cfg.HTTP.Addr = *addr
			case "osc":
				cfg.OSC.Addr = *oscAddr
			case "midi":
				cfg.MIDI.InPort = *midiPort
			case "data":
				cfg.Node.DataDir = *dataDir
			case "fps":
				cfg.Node.FPS = *fps
			case "level":
				cfg.Logging.Level = *level
			case "status":
				cfg.Status.Enabled = *statusLED
			}
		})
	}
	if lvl, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Str("level", cfg.Logging.Level).Msg("unknown log level; using info")
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// ---- Patch, store, engine ----
	patch, err := cfg.BuildPatch()
	if err != nil {
		log.Warn().Err(err).Msg("fixture patch invalid; running unpatched")
		patch = fixture.NewPatch()
	}
	st, err := store.Open(cfg.Node.DataDir, log.Logger.With().Str("component", "store").Logger())
	if err != nil {
		log.Warn().Err(err).Str("dir", cfg.Node.DataDir).Msg("state directory unavailable; not persisting")
		st = nil
	}
	mc := cfg.MixerConfig()
	mc.Start = time.Now()
	eng := mixer.New(mc, patch, mixer.WithLogger(log.Logger.With().Str("component", "mixer").Logger()))

	// ---- Sinks ----
	hub := ws.NewHub(eng, ws.WithPatch(patch), ws.WithLogger(log.Logger.With().Str("component", "ws").Logger()))
	sinks := []app.Sink{hub}
	if *printEvery > 0 {
		sinks = append(sinks, &fake.Driver{Out: os.Stdout, Every: *printEvery})
	}
	var led *status.Indicator
	if cfg.Status.Enabled {
		led, err = status.Open(cfg.Status.SPIPort, eng.State,
			status.WithBrightness(cfg.Status.Brightness),
			status.WithLogger(log.Logger.With().Str("component", "status").Logger()))
		if err != nil {
			log.Warn().Err(err).Msg("status light unavailable")
		} else {
			sinks = append(sinks, led)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	core, err := app.InitCore(ctx, eng, st,
		app.WithFPS(cfg.Node.FPS),
		app.WithSinks(sinks...),
		app.WithNotify(hub.Notify),
		app.WithLogger(log.Logger.With().Str("component", "core").Logger()))
	if err != nil {
		log.Fatal().Err(err).Msg("core init failed")
	}

	// ---- HTTP routes ----
	mux := http.NewServeMux()
	hub.Routes(mux)
	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      withCORS(mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ---- Services ----
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if cfg.OSC.Addr != "" {
		srvOSC := osc.NewServer(eng, osc.WithLogger(log.Logger.With().Str("component", "osc").Logger()))
		g.Go(func() error { return srvOSC.ListenAndServe(gctx, cfg.OSC.Addr) })
	}
	if cfg.MIDI.InPort != "" {
		defer gomidi.CloseDriver()
		router := midi.NewRouter(eng, cfg.MIDI.Mappings, midi.WithLogger(log.Logger.With().Str("component", "midi").Logger()))
		g.Go(func() error {
			if err := router.Listen(gctx, cfg.MIDI.InPort); err != nil {
				log.Warn().Err(err).Msg("midi disabled")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("service failed")
	}
	log.Info().Msg("shutting down")

	if err := core.Shutdown(); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	if led != nil {
		_ = led.Close()
	}
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		h.ServeHTTP(w, r)
	})
}
