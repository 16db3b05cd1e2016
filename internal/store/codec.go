package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/coreman2200/funtimes-dmxnode/internal/dmx"
	"github.com/coreman2200/funtimes-dmxnode/internal/fixture"
	"github.com/coreman2200/funtimes-dmxnode/internal/scene"
)

// ErrCorrupt is returned when a persisted file is short or malformed.
// The accompanying value is always the documented default.
var ErrCorrupt = errors.New("corrupt state file")

const (
	magicMixerV1 = 0xAD // master | manual
	magicMixerV2 = 0xAE // master | groups | manual

	SnapshotSlots = 3

	SourceRemote = 'A'
	SourceLocal  = 'L'
)

// MixerState is the persisted part of the mixer.
type MixerState struct {
	Master uint8
	Groups [fixture.MaxGroups]uint8
	Manual dmx.Frame
}

// DefaultMixerState is a dark frame with every dimmer at full.
func DefaultMixerState() MixerState {
	s := MixerState{Master: 255}
	for i := range s.Groups {
		s.Groups[i] = 255
	}
	return s
}

func EncodeMixer(s MixerState) []byte {
	var b bytes.Buffer
	b.Grow(2 + len(s.Groups) + dmx.Channels)
	b.WriteByte(magicMixerV2)
	b.WriteByte(s.Master)
	b.Write(s.Groups[:])
	b.Write(s.Manual[:])
	return b.Bytes()
}

// DecodeMixer reads either layout version.
func DecodeMixer(data []byte) (MixerState, error) {
	s := DefaultMixerState()
	r := bytes.NewReader(data)
	var hdr [2]byte
	if _, err := readFull(r, hdr[:]); err != nil {
		return DefaultMixerState(), fmt.Errorf("mixer header: %w", ErrCorrupt)
	}
	switch hdr[0] {
	case magicMixerV2:
		if _, err := readFull(r, s.Groups[:]); err != nil {
			return DefaultMixerState(), fmt.Errorf("mixer groups: %w", ErrCorrupt)
		}
	case magicMixerV1:
	default:
		return DefaultMixerState(), fmt.Errorf("mixer magic 0x%02X: %w", hdr[0], ErrCorrupt)
	}
	if _, err := readFull(r, s.Manual[:]); err != nil {
		return DefaultMixerState(), fmt.Errorf("mixer frame: %w", ErrCorrupt)
	}
	s.Master = hdr[1]
	return s, nil
}

// SnapshotRecord is one physical ring slot.
type SnapshotRecord struct {
	Frame     dmx.Frame
	Timestamp uint32 // unix seconds
	Valid     bool
	Source    byte
}

// SnapshotFile is the ring in physical order plus its cursor.
type SnapshotFile struct {
	Count   uint8
	Head    uint8
	Records [SnapshotSlots]SnapshotRecord
}

func EncodeSnapshots(f SnapshotFile) []byte {
	var b bytes.Buffer
	b.WriteByte(f.Count)
	b.WriteByte(f.Head)
	for _, rec := range f.Records {
		b.Write(rec.Frame[:])
		_ = binary.Write(&b, binary.LittleEndian, rec.Timestamp)
		if rec.Valid {
			b.WriteByte(1)
		} else {
			b.WriteByte(0)
		}
		b.WriteByte(rec.Source)
	}
	return b.Bytes()
}

// DecodeSnapshots clamps the cursor into range and maps unknown source
// bytes to SourceLocal.
func DecodeSnapshots(data []byte) (SnapshotFile, error) {
	var f SnapshotFile
	r := bytes.NewReader(data)
	var hdr [2]byte
	if _, err := readFull(r, hdr[:]); err != nil {
		return SnapshotFile{}, fmt.Errorf("snapshot header: %w", ErrCorrupt)
	}
	f.Count, f.Head = hdr[0], hdr[1]
	if f.Count > SnapshotSlots {
		f.Count = SnapshotSlots
	}
	if f.Head >= SnapshotSlots {
		f.Head = 0
	}
	for i := range f.Records {
		rec := &f.Records[i]
		if _, err := readFull(r, rec.Frame[:]); err != nil {
			return SnapshotFile{}, fmt.Errorf("snapshot %d frame: %w", i, ErrCorrupt)
		}
		if err := binary.Read(r, binary.LittleEndian, &rec.Timestamp); err != nil {
			return SnapshotFile{}, fmt.Errorf("snapshot %d timestamp: %w", i, ErrCorrupt)
		}
		var tail [2]byte
		if _, err := readFull(r, tail[:]); err != nil {
			return SnapshotFile{}, fmt.Errorf("snapshot %d flags: %w", i, ErrCorrupt)
		}
		rec.Valid = tail[0] == 1
		rec.Source = tail[1]
		if rec.Source != SourceRemote && rec.Source != SourceLocal {
			rec.Source = SourceLocal
		}
	}
	return f, nil
}

func EncodeScene(s scene.Scene) []byte {
	out := make([]byte, scene.NameSize+dmx.Channels)
	copy(out[:scene.NameSize-1], scene.ClipName(s.Name))
	copy(out[scene.NameSize:], s.Frame[:])
	return out
}

func DecodeScene(data []byte) (scene.Scene, error) {
	if len(data) < scene.NameSize+dmx.Channels {
		return scene.Scene{}, fmt.Errorf("scene length %d: %w", len(data), ErrCorrupt)
	}
	name := data[:scene.NameSize-1]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	s := scene.Scene{Name: string(name), Valid: true}
	copy(s.Frame[:], data[scene.NameSize:])
	return s, nil
}

func readFull(r *bytes.Reader, p []byte) (int, error) {
	if r.Len() < len(p) {
		return 0, ErrCorrupt
	}
	return r.Read(p)
}
