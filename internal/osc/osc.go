// Package osc exposes operator commands over Open Sound Control.
//
//	/dmx/<addr> f           set one channel, addr 1-512, value 0..1
//	/fixture/<n>/dimmer f   set a fixture's intensity channels
//	/fixture/<n>/color fff  set a fixture's red, green and blue
//	/scene/<slot>           recall a scene with the default fade
//	/master f               master dimmer
//	/blackout i|f           nonzero turns blackout on
//	/cue/go, /cue/back, /undo
package osc

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/hypebeast/go-osc/osc"
	"github.com/rs/zerolog"

	"github.com/coreman2200/funtimes-dmxnode/internal/dmx"
	"github.com/coreman2200/funtimes-dmxnode/internal/mixer"
)

// Controller is the slice of the engine OSC can drive.
type Controller interface {
	SetChannel(a dmx.Address, v byte) bool
	SetFixtureIntensity(fx int, v byte) bool
	SetFixtureColor(fx int, r, g, b byte) bool
	SetMasterDimmer(v uint8) bool
	Blackout(on bool)
	RecallScene(slot int, fade time.Duration) bool
	CueGo() bool
	CueBack() bool
	Undo() bool
}

type Option func(*Server)

func WithLogger(l zerolog.Logger) Option { return func(s *Server) { s.log = l } }

type Server struct {
	ctl Controller
	log zerolog.Logger
}

func NewServer(ctl Controller, opts ...Option) *Server {
	s := &Server{ctl: ctl, log: zerolog.Nop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handle applies one message and reports whether the engine accepted it.
// Malformed messages are dropped.
func (s *Server) Handle(msg *osc.Message) bool {
	parts := strings.Split(strings.Trim(msg.Address, "/"), "/")
	ok := s.route(parts, msg.Arguments)
	if !ok {
		s.log.Debug().Str("addr", msg.Address).Interface("args", msg.Arguments).Msg("osc ignored")
	}
	return ok
}

func (s *Server) route(parts []string, args []interface{}) bool {
	switch {
	case len(parts) == 2 && parts[0] == "dmx":
		n, err := strconv.Atoi(parts[1])
		a, ok := dmx.NewAddress(n)
		v, vok := level(args, 0)
		if err != nil || !ok || !vok {
			return false
		}
		return s.ctl.SetChannel(a, v)

	case len(parts) == 3 && parts[0] == "fixture":
		fx, err := strconv.Atoi(parts[1])
		if err != nil || fx < 0 {
			return false
		}
		switch parts[2] {
		case "dimmer":
			v, ok := level(args, 0)
			return ok && s.ctl.SetFixtureIntensity(fx, v)
		case "color":
			r, rok := level(args, 0)
			g, gok := level(args, 1)
			b, bok := level(args, 2)
			return rok && gok && bok && s.ctl.SetFixtureColor(fx, r, g, b)
		}

	case len(parts) == 2 && parts[0] == "scene":
		slot, err := strconv.Atoi(parts[1])
		return err == nil && s.ctl.RecallScene(slot, mixer.DefaultSceneFade)

	case len(parts) == 1 && parts[0] == "master":
		v, ok := level(args, 0)
		return ok && s.ctl.SetMasterDimmer(v)

	case len(parts) == 1 && parts[0] == "blackout":
		on, ok := number(args, 0)
		if !ok {
			return false
		}
		s.ctl.Blackout(on != 0)
		return true

	case len(parts) == 1 && parts[0] == "undo":
		return s.ctl.Undo()

	case len(parts) == 2 && parts[0] == "cue":
		switch parts[1] {
		case "go":
			return s.ctl.CueGo()
		case "back":
			return s.ctl.CueBack()
		}
	}
	return false
}

func number(args []interface{}, i int) (float64, bool) {
	if i >= len(args) {
		return 0, false
	}
	switch v := args[i].(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// level reads a 0..1 argument as a DMX level, clamping out-of-range input.
func level(args []interface{}, i int) (byte, bool) {
	v, ok := number(args, i)
	if !ok {
		return 0, false
	}
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return byte(v*255 + 0.5), true
}

// ListenAndServe serves UDP on addr until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return err
	}
	d := osc.NewStandardDispatcher()
	if err := d.AddMsgHandler("*", func(msg *osc.Message) { s.Handle(msg) }); err != nil {
		conn.Close()
		return err
	}
	srv := &osc.Server{Addr: addr, Dispatcher: d}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	s.log.Info().Str("addr", conn.LocalAddr().String()).Msg("osc listening")
	err = srv.Serve(conn)
	if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
