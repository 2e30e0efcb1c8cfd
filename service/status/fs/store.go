package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"runtime"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/batchtester/service/status"
	"gopkg.in/yaml.v3"
)

// Store keeps the snapshot in a single file. Writes go to a sibling ".<name>"
// file which is then moved over the canonical path so readers never observe a
// partial document.
type Store struct {
	fs       afs.Service
	location string
	tempPath string
	yaml     bool
	mu       sync.Mutex
}

// New creates a file store; documents are YAML when location ends in .yaml or .yml, JSON otherwise
func New(fs afs.Service, location string) *Store {
	if fs == nil {
		fs = afs.New()
	}
	ext := strings.ToLower(path.Ext(location))
	return &Store{
		fs:       fs,
		location: location,
		tempPath: path.Join(path.Dir(location), "."+path.Base(location)),
		yaml:     ext == ".yaml" || ext == ".yml",
	}
}

// Location returns the canonical snapshot path
func (s *Store) Location() string {
	return s.location
}

// Save implements status.Store
func (s *Store) Save(ctx context.Context, snapshot *status.Snapshot) error {
	if snapshot == nil {
		return status.ErrNilSnapshot
	}
	data, err := s.encode(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err = s.fs.Upload(ctx, s.tempPath, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write status file %s: %w", s.tempPath, err)
	}
	if runtime.GOOS == "windows" {
		if exists, _ := s.fs.Exists(ctx, s.location); exists {
			if err = s.fs.Delete(ctx, s.location); err != nil {
				return fmt.Errorf("failed to replace status file %s: %w", s.location, err)
			}
		}
	}
	if err = s.fs.Move(ctx, s.tempPath, s.location); err != nil {
		return fmt.Errorf("failed to move status file into %s: %w", s.location, err)
	}
	return nil
}

// Load implements status.Store
func (s *Store) Load(ctx context.Context) (*status.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exists, err := s.fs.Exists(ctx, s.location)
	if err != nil {
		return nil, fmt.Errorf("failed to check status file: %w", err)
	}
	if !exists {
		return nil, status.ErrNotFound
	}
	data, err := s.fs.DownloadWithURL(ctx, s.location)
	if err != nil {
		return nil, fmt.Errorf("failed to read status file: %w", err)
	}
	snapshot := &status.Snapshot{}
	if s.yaml {
		err = yaml.Unmarshal(data, snapshot)
	} else {
		err = json.Unmarshal(data, snapshot)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode status file %s: %w", s.location, err)
	}
	return snapshot, nil
}

func (s *Store) encode(snapshot *status.Snapshot) ([]byte, error) {
	if s.yaml {
		return yaml.Marshal(snapshot)
	}
	return json.MarshalIndent(snapshot, "", "  ")
}

var _ status.Store = (*Store)(nil)
