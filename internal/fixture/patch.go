// Package fixture resolves patched fixture channels to DMX addresses and
// semantic channel types.
package fixture

import (
	"errors"
	"fmt"
	"sync"

	"github.com/coreman2200/funtimes-dmxnode/internal/dmx"
)

const (
	MaxFixtures    = 24
	MaxChannels    = 24 // per fixture
	MaxGroups      = 8
	MaxProfileName = 32
)

var ErrSlot = errors.New("fixture slot out of range")

// Provider is the read-only channel metadata the mixer consults every tick.
// Implementations must reflect patch changes immediately.
type Provider interface {
	Fixtures() int
	ChannelCount(fx int) int
	ChannelType(fx, ch int) dmx.ChannelType
	Address(fx, ch int) (dmx.Address, bool)
	GroupMask(fx int) uint8
	Limits(fx int) Limits
	InGroup(group int) []int
}

// Limits are the per-fixture pan/tilt invert and range settings.
type Limits struct {
	InvertPan  bool  `yaml:"invert_pan,omitempty"`
	InvertTilt bool  `yaml:"invert_tilt,omitempty"`
	PanMin     uint8 `yaml:"pan_min"`
	PanMax     uint8 `yaml:"pan_max"`
	TiltMin    uint8 `yaml:"tilt_min"`
	TiltMax    uint8 `yaml:"tilt_max"`
}

// FullRange is the identity limit set.
var FullRange = Limits{PanMax: 255, TiltMax: 255}

// Active reports whether applying l changes anything.
func (l Limits) Active() bool {
	return l.InvertPan || l.InvertTilt || l.PanMin > 0 || l.PanMax < 255 || l.TiltMin > 0 || l.TiltMax < 255
}

type ChannelDef struct {
	Name    string          `yaml:"name"`
	Type    dmx.ChannelType `yaml:"type"`
	Default uint8           `yaml:"default,omitempty"`
}

type Profile struct {
	ID       string       `yaml:"id"`
	Name     string       `yaml:"name"`
	Channels []ChannelDef `yaml:"channels"`
}

// Entry is one patched fixture.
type Entry struct {
	Name    string  `yaml:"name"`
	Profile string  `yaml:"profile"`
	Address int     `yaml:"address"` // 1-based start address
	Groups  uint8   `yaml:"groups,omitempty"`
	Limits  *Limits `yaml:"limits,omitempty"`
}

type slot struct {
	Entry
	active  bool
	profile *Profile
}

// Patch is an in-memory Provider. It is safe for concurrent use.
type Patch struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
	slots    [MaxFixtures]slot
	groups   [MaxGroups]string
}

func NewPatch() *Patch {
	return &Patch{profiles: map[string]*Profile{}}
}

// AddProfile registers or replaces a profile and re-resolves the patch.
func (p *Patch) AddProfile(pr Profile) error {
	if pr.ID == "" {
		return errors.New("profile id is empty")
	}
	if len(pr.Channels) > MaxChannels {
		return fmt.Errorf("profile %s: %d channels exceeds %d", pr.ID, len(pr.Channels), MaxChannels)
	}
	cp := pr
	cp.Channels = append([]ChannelDef(nil), pr.Channels...)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles[pr.ID] = &cp
	p.resolve()
	return nil
}

// Profile returns a registered profile by id.
func (p *Patch) Profile(id string) (Profile, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pr, ok := p.profiles[id]
	if !ok {
		return Profile{}, false
	}
	return *pr, true
}

// Add places e in the first free slot.
func (p *Patch) Add(e Entry) (int, error) {
	if err := validateEntry(e); err != nil {
		return -1, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.slots {
		if !p.slots[i].active {
			p.slots[i] = slot{Entry: e, active: true, profile: p.profiles[e.Profile]}
			return i, nil
		}
	}
	return -1, errors.New("patch is full")
}

// Set replaces slot fx.
func (p *Patch) Set(fx int, e Entry) error {
	if fx < 0 || fx >= MaxFixtures {
		return ErrSlot
	}
	if err := validateEntry(e); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slots[fx] = slot{Entry: e, active: true, profile: p.profiles[e.Profile]}
	return nil
}

func (p *Patch) Remove(fx int) error {
	if fx < 0 || fx >= MaxFixtures {
		return ErrSlot
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slots[fx] = slot{}
	return nil
}

// Entry returns the patch entry at fx.
func (p *Patch) Entry(fx int) (Entry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.get(fx)
	if !ok {
		return Entry{}, false
	}
	return s.Entry, true
}

// SetGroup names group bit g; an empty name clears it.
func (p *Patch) SetGroup(g int, name string) error {
	if g < 0 || g >= MaxGroups {
		return fmt.Errorf("group %d out of range", g)
	}
	p.mu.Lock()
	p.groups[g] = name
	p.mu.Unlock()
	return nil
}

func (p *Patch) GroupName(g int) string {
	if g < 0 || g >= MaxGroups {
		return ""
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.groups[g]
}

func validateEntry(e Entry) error {
	if _, ok := dmx.NewAddress(e.Address); !ok {
		return fmt.Errorf("fixture %q: address %d out of range", e.Name, e.Address)
	}
	return nil
}

func (p *Patch) resolve() {
	for i := range p.slots {
		if p.slots[i].active {
			p.slots[i].profile = p.profiles[p.slots[i].Profile]
		}
	}
}

// get returns a resolved active slot. Caller holds p.mu.
func (p *Patch) get(fx int) (*slot, bool) {
	if fx < 0 || fx >= MaxFixtures {
		return nil, false
	}
	s := &p.slots[fx]
	if !s.active {
		return nil, false
	}
	return s, true
}

func (p *Patch) Fixtures() int { return MaxFixtures }

func (p *Patch) ChannelCount(fx int) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.get(fx)
	if !ok || s.profile == nil {
		return 0
	}
	return len(s.profile.Channels)
}

func (p *Patch) ChannelType(fx, ch int) dmx.ChannelType {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.get(fx)
	if !ok || s.profile == nil || ch < 0 || ch >= len(s.profile.Channels) {
		return dmx.Generic
	}
	return s.profile.Channels[ch].Type
}

func (p *Patch) Address(fx, ch int) (dmx.Address, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.get(fx)
	if !ok || s.profile == nil || ch < 0 || ch >= len(s.profile.Channels) {
		return 0, false
	}
	return dmx.NewAddress(s.Address + ch)
}

func (p *Patch) GroupMask(fx int) uint8 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.get(fx)
	if !ok {
		return 0
	}
	return s.Groups
}

func (p *Patch) Limits(fx int) Limits {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.get(fx)
	if !ok || s.Limits == nil {
		return FullRange
	}
	return *s.Limits
}

func (p *Patch) InGroup(group int) []int {
	if group < 0 || group >= MaxGroups {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []int
	for i := range p.slots {
		if p.slots[i].active && p.slots[i].Groups&(1<<group) != 0 {
			out = append(out, i)
		}
	}
	return out
}
