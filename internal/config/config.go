package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coreman2200/funtimes-dmxnode/internal/fixture"
	"github.com/coreman2200/funtimes-dmxnode/internal/midi"
	"github.com/coreman2200/funtimes-dmxnode/internal/mixer"
	"github.com/coreman2200/funtimes-dmxnode/internal/store"
)

type Node struct {
	FPS     int    `yaml:"fps"`
	DataDir string `yaml:"data_dir"`
}

type Remote struct {
	TimeoutMs int `yaml:"timeout_ms"`
}

type Mixer struct {
	ModeFadeMs  int     `yaml:"mode_fade_ms"`
	MasterSpeed float64 `yaml:"master_speed"`
}

type Persist struct {
	DebounceMs int `yaml:"debounce_ms"`
	MaxWaitMs  int `yaml:"max_wait_ms"`
}

type HTTP struct {
	Addr string `yaml:"addr"`
}

type OSC struct {
	Addr string `yaml:"addr"` // empty disables the server
}

type MIDI struct {
	InPort   string         `yaml:"in_port"` // substring of the port name; empty disables
	Mappings []midi.Binding `yaml:"mappings,omitempty"`
}

type Status struct {
	Enabled    bool    `yaml:"enabled"`
	SPIPort    string  `yaml:"spi_port"` // e.g. /dev/spidev0.0, "" for the first port
	Brightness float64 `yaml:"brightness"`
}

type Logging struct {
	Level string `yaml:"level"`
}

type Fixtures struct {
	Profiles []fixture.Profile `yaml:"profiles,omitempty"`
	Patch    []fixture.Entry   `yaml:"patch,omitempty"`
	Groups   []string          `yaml:"groups,omitempty"`
}

type Config struct {
	Node     Node     `yaml:"node"`
	Remote   Remote   `yaml:"remote"`
	Mixer    Mixer    `yaml:"mixer"`
	Persist  Persist  `yaml:"persist"`
	HTTP     HTTP     `yaml:"http"`
	OSC      OSC      `yaml:"osc"`
	MIDI     MIDI     `yaml:"midi"`
	Status   Status   `yaml:"status"`
	Logging  Logging  `yaml:"logging"`
	Fixtures Fixtures `yaml:"fixtures"`
}

func DefaultConfig() Config {
	return Config{
		Node:    Node{FPS: 40, DataDir: "./data"},
		Remote:  Remote{TimeoutMs: int(mixer.DefaultRemoteTimeout / time.Millisecond)},
		Mixer:   Mixer{ModeFadeMs: int(mixer.DefaultModeFade / time.Millisecond), MasterSpeed: 1},
		Persist: Persist{DebounceMs: int(store.DefaultDebounce / time.Millisecond), MaxWaitMs: int(store.DefaultMaxWait / time.Millisecond)},
		HTTP:    HTTP{Addr: ":8080"},
		OSC:     OSC{Addr: ":8000"},
		Status:  Status{Brightness: 0.2},
		Logging: Logging{Level: "info"},
	}
}

// Load decodes path over DefaultConfig. Unknown keys are an error.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err == nil {
		return nil, errors.New("decode config: unexpected trailing document")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

func (c *Config) Validate() error {
	if c.Node.FPS <= 0 || c.Node.FPS > 1000 {
		return errors.New("node.fps must be between 1 and 1000")
	}
	if c.Node.DataDir == "" {
		return errors.New("node.data_dir must not be empty")
	}
	if c.Remote.TimeoutMs <= 0 {
		return errors.New("remote.timeout_ms must be > 0")
	}
	if c.Mixer.ModeFadeMs < 0 {
		return errors.New("mixer.mode_fade_ms must be >= 0")
	}
	if c.Persist.DebounceMs <= 0 || c.Persist.MaxWaitMs <= 0 {
		return errors.New("persist windows must be > 0")
	}
	if c.Status.Brightness < 0 || c.Status.Brightness > 1 {
		return errors.New("status.brightness must be between 0 and 1")
	}
	if len(c.Fixtures.Groups) > fixture.MaxGroups {
		return fmt.Errorf("fixtures.groups: at most %d groups", fixture.MaxGroups)
	}
	if len(c.Fixtures.Patch) > fixture.MaxFixtures {
		return fmt.Errorf("fixtures.patch: at most %d fixtures", fixture.MaxFixtures)
	}
	for i, m := range c.MIDI.Mappings {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("midi.mappings[%d]: %w", i, err)
		}
	}
	return nil
}

// MixerConfig converts the timing sections for mixer.New.
func (c *Config) MixerConfig() mixer.Config {
	return mixer.Config{
		RemoteTimeout: ms(c.Remote.TimeoutMs),
		ModeFade:      ms(c.Mixer.ModeFadeMs),
		MasterSpeed:   c.Mixer.MasterSpeed,
		Debounce:      ms(c.Persist.DebounceMs),
		MaxWait:       ms(c.Persist.MaxWaitMs),
	}
}

// BuildPatch registers the profiles, then patches fixtures in order.
func (c *Config) BuildPatch() (*fixture.Patch, error) {
	p := fixture.NewPatch()
	for _, pr := range c.Fixtures.Profiles {
		if err := p.AddProfile(pr); err != nil {
			return nil, fmt.Errorf("profile %q: %w", pr.ID, err)
		}
	}
	for i, e := range c.Fixtures.Patch {
		if err := p.Set(i, e); err != nil {
			return nil, fmt.Errorf("fixture %d (%s): %w", i, e.Name, err)
		}
	}
	for g, name := range c.Fixtures.Groups {
		if err := p.SetGroup(g, name); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
