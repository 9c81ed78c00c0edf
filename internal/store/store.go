// Package store names and creates the files a receiver persists transfers
// into.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Store hands out destination paths of the form <Dir>/<Prefix>_v<N><Ext>.
type Store struct {
	Dir    string
	Prefix string
	Ext    string

	seq *Sequence
}

// New creates a Store that draws version numbers from seq. A nil seq gets a
// fresh sequence starting at version 1.
func New(dir, prefix, ext string, seq *Sequence) *Store {
	if seq == nil {
		seq = NewSequence(0)
	}
	return &Store{Dir: dir, Prefix: prefix, Ext: ext, seq: seq}
}

// Path returns the destination path for a version without reserving it.
func (s *Store) Path(version uint64) string {
	return filepath.Join(s.Dir, fmt.Sprintf("%s_v%d%s", s.Prefix, version, s.Ext))
}

// Next reserves the next free version and returns its path. Versions whose
// file already exists are skipped so a restarted receiver never overwrites an
// earlier backup.
func (s *Store) Next() (path string, version uint64, err error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create store dir %s: %w", s.Dir, err)
	}

	for {
		version = s.seq.Next()
		path = s.Path(version)

		_, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return path, version, nil
		}
		if err != nil {
			return "", 0, fmt.Errorf("stat %s: %w", path, err)
		}
	}
}
