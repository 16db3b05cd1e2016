// Package store persists mixer, snapshot, scene and cue state under a data
// directory. Writes are atomic (temp file + rename).
package store

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/coreman2200/funtimes-dmxnode/internal/scene"
	"github.com/coreman2200/funtimes-dmxnode/internal/sequence"
)

const (
	mixerFile = "mixer.bin"
	snapsFile = "snaps.bin"
	cuesFile  = "cuelist.yaml"
	scenesDir = "scenes"
)

// Store reads and writes the node's state files.
type Store struct {
	dir string
	log zerolog.Logger
}

// Open creates dir (and its scenes subdirectory) if needed.
func Open(dir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, scenesDir), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir, log: log}, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) path(name string) string { return filepath.Join(s.dir, name) }

func (s *Store) scenePath(slot int) string {
	return filepath.Join(s.dir, scenesDir, fmt.Sprintf("%02d.bin", slot))
}

// LoadMixer returns defaults and a non-nil error when the file is missing
// or corrupt.
func (s *Store) LoadMixer() (MixerState, error) {
	data, err := os.ReadFile(s.path(mixerFile))
	if err != nil {
		return DefaultMixerState(), err
	}
	return DecodeMixer(data)
}

func (s *Store) SaveMixer(m MixerState) error {
	return writeAtomic(s.path(mixerFile), EncodeMixer(m))
}

func (s *Store) LoadSnapshots() (SnapshotFile, error) {
	data, err := os.ReadFile(s.path(snapsFile))
	if err != nil {
		return SnapshotFile{}, err
	}
	return DecodeSnapshots(data)
}

func (s *Store) SaveSnapshots(f SnapshotFile) error {
	return writeAtomic(s.path(snapsFile), EncodeSnapshots(f))
}

// LoadScenes reads every slot file that exists. Bad files are logged and
// skipped.
func (s *Store) LoadScenes() map[int]scene.Scene {
	out := make(map[int]scene.Scene)
	for slot := 0; slot < scene.MaxScenes; slot++ {
		data, err := os.ReadFile(s.scenePath(slot))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			s.log.Warn().Err(err).Int("slot", slot).Msg("scene read failed")
			continue
		}
		sc, err := DecodeScene(data)
		if err != nil {
			s.log.Warn().Err(err).Int("slot", slot).Msg("scene skipped")
			continue
		}
		out[slot] = sc
	}
	return out
}

// SaveScene writes a valid scene or removes the slot file for an empty one.
func (s *Store) SaveScene(slot int, sc scene.Scene) error {
	if slot < 0 || slot >= scene.MaxScenes {
		return scene.ErrSlot
	}
	p := s.scenePath(slot)
	if !sc.Valid {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	return writeAtomic(p, EncodeScene(sc))
}

func (s *Store) LoadCues() (sequence.CueList, error) {
	data, err := os.ReadFile(s.path(cuesFile))
	if err != nil {
		return sequence.CueList{}, err
	}
	var list sequence.CueList
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&list); err != nil {
		return sequence.CueList{}, fmt.Errorf("%s: %v: %w", cuesFile, err, ErrCorrupt)
	}
	return list, nil
}

func (s *Store) SaveCues(list sequence.CueList) error {
	data, err := yaml.Marshal(&list)
	if err != nil {
		return err
	}
	return writeAtomic(s.path(cuesFile), data)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, path)
}
