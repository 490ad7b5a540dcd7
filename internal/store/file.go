package store

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// FileStore keeps processed ids in a flat line-oriented file, one id
// per line. The whole file is loaded at open; adds append and flush.
type FileStore struct {
	file *os.File
	ids  map[string]struct{}
}

// OpenFileStore opens (or creates) the processed-id file and loads
// its contents.
func OpenFileStore(path string) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open state file: %w", err)
	}

	ids := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		id := strings.TrimSpace(scanner.Text())
		if id != "" {
			ids[id] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	return &FileStore{file: f, ids: ids}, nil
}

// Contains reports whether the id was already processed
func (s *FileStore) Contains(id string) (bool, error) {
	_, ok := s.ids[id]
	return ok, nil
}

// Add records an id. The write is flushed to disk before returning so
// a crash after Add cannot lose the entry.
func (s *FileStore) Add(id string) error {
	if _, ok := s.ids[id]; ok {
		return nil
	}

	if _, err := fmt.Fprintln(s.file, id); err != nil {
		return fmt.Errorf("failed to append to state file: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync state file: %w", err)
	}

	s.ids[id] = struct{}{}
	return nil
}

// Close closes the state file
func (s *FileStore) Close() error {
	return s.file.Close()
}
