package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/morozRed/maplink/internal/fileutil"
)

const (
	StateFile      = ".maplink-state.json"
	CurrentVersion = "1"
)

// Output is what the last run wrote to one path.
type Output struct {
	Hash       string `json:"hash"`
	Visibility string `json:"visibility"`
	Size       int    `json:"size"`
}

// State records the outputs of the previous link into an output directory.
type State struct {
	Version   string            `json:"version"`
	Module    string            `json:"module,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
	Outputs   map[string]Output `json:"outputs"`
}

func NewState() *State {
	return &State{
		Version: CurrentVersion,
		Outputs: make(map[string]Output),
	}
}

// Load reads the state file in dir. A missing file yields an empty state.
func Load(dir string) (*State, error) {
	data, err := os.ReadFile(filepath.Join(dir, StateFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewState(), nil
		}
		return nil, err
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", StateFile, err)
	}
	migrateState(&s)
	return &s, nil
}

// Save writes the state file into dir.
func (s *State) Save(dir string) error {
	migrateState(s)
	s.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.WriteIfChanged(filepath.Join(dir, StateFile), append(data, '\n'))
}

func (s *State) SetOutput(path string, out Output) {
	s.Outputs[path] = out
}

func (s *State) GetOutput(path string) (Output, bool) {
	out, ok := s.Outputs[path]
	return out, ok
}

// HasChanged reports whether hash differs from what was recorded for path.
func (s *State) HasChanged(path, hash string) bool {
	out, ok := s.Outputs[path]
	return !ok || out.Hash != hash
}

// StaleOutputs returns recorded paths absent from current, sorted.
func (s *State) StaleOutputs(current map[string]bool) []string {
	stale := make([]string, 0)
	for _, path := range fileutil.SortedKeys(s.Outputs) {
		if !current[path] {
			stale = append(stale, path)
		}
	}
	return stale
}

// Forget drops the record of path.
func (s *State) Forget(path string) {
	delete(s.Outputs, path)
}

func migrateState(s *State) {
	if s.Outputs == nil {
		s.Outputs = make(map[string]Output)
	}
	if s.Version == "" {
		s.Version = CurrentVersion
	}
}
