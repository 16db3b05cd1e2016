package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/funtimes-dmxnode/internal/dmx"
	"github.com/coreman2200/funtimes-dmxnode/internal/midi"
)

const sample = `
node:
  fps: 30
  data_dir: /var/lib/dmxnode
remote:
  timeout_ms: 5000
midi:
  in_port: nanoKONTROL
  mappings:
    - {kind: cc, number: 7, action: master}
    - {kind: note, number: 41, action: cue_go}
fixtures:
  groups: [front, back]
  profiles:
    - id: par
      name: RGB Par
      channels:
        - {name: Dim, type: intensity}
        - {name: R, type: red}
        - {name: G, type: green}
        - {name: B, type: blue}
  patch:
    - {name: Left, profile: par, address: 1, groups: 1}
    - {name: Right, profile: par, address: 5, groups: 3}
`

func write(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadOverDefaults(t *testing.T) {
	c, err := Load(write(t, sample))
	require.NoError(t, err)

	assert.Equal(t, 30, c.Node.FPS)
	assert.Equal(t, "/var/lib/dmxnode", c.Node.DataDir)
	assert.Equal(t, ":8080", c.HTTP.Addr, "untouched sections keep defaults")
	assert.Equal(t, 3000, c.Persist.DebounceMs)
	require.Len(t, c.MIDI.Mappings, 2)
	assert.Equal(t, midi.ActionCueGo, c.MIDI.Mappings[1].Action)

	mc := c.MixerConfig()
	assert.Equal(t, 5*time.Second, mc.RemoteTimeout)
	assert.Equal(t, time.Second, mc.ModeFade)
	assert.Equal(t, 10*time.Second, mc.MaxWait)
}

func TestBuildPatch(t *testing.T) {
	c, err := Load(write(t, sample))
	require.NoError(t, err)
	p, err := c.BuildPatch()
	require.NoError(t, err)

	assert.Equal(t, 4, p.ChannelCount(1))
	assert.Equal(t, dmx.ColorRed, p.ChannelType(1, 1))
	a, ok := p.Address(1, 1)
	require.True(t, ok)
	assert.Equal(t, dmx.Address(6), a)
	assert.Equal(t, []int{0, 1}, p.InGroup(0))
	assert.Equal(t, []int{1}, p.InGroup(1))
	assert.Equal(t, "back", p.GroupName(1))
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":   "node:\n  fsp: 30\n",
		"bad fps":       "node:\n  fps: 0\n",
		"bad binding":   "midi:\n  mappings:\n    - {kind: cc, action: fly}\n",
		"trailing doc":  "node:\n  fps: 30\n---\nnode:\n  fps: 20\n",
		"bad channel":   "fixtures:\n  profiles:\n    - id: x\n      channels:\n        - {name: a, type: lasers}\n",
		"bright":        "status:\n  brightness: 2\n",
		"timeout":       "remote:\n  timeout_ms: -1\n",
		"missing datad": "node:\n  data_dir: \"\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(write(t, body))
			assert.Error(t, err)
		})
	}
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	c, err := Load(write(t, sample))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, Save(path, c))
	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c, back)
}
