package relay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Storage persists the undelivered report queue across restarts.
// The queue is always read and replaced as a whole; partial writes
// must never corrupt the stored representation.
type Storage interface {
	Load() ([]Report, error)
	Store(queue []Report) error
}

// FileStorage keeps the queue as a JSON file on local disk. Writes go
// to a temp file in the same directory followed by a rename, so a crash
// mid-write leaves the previous queue intact.
type FileStorage struct {
	path string
}

// NewFileStorage creates the parent directory if needed.
func NewFileStorage(path string) (*FileStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("relay: failed to create queue directory: %w", err)
	}
	return &FileStorage{path: path}, nil
}

func (s *FileStorage) Load() ([]Report, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("relay: failed to read queue file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var queue []Report
	if err := json.Unmarshal(data, &queue); err != nil {
		return nil, fmt.Errorf("relay: queue file is corrupted: %w", err)
	}
	return queue, nil
}

func (s *FileStorage) Store(queue []Report) error {
	if queue == nil {
		queue = []Report{}
	}
	data, err := json.Marshal(queue)
	if err != nil {
		return fmt.Errorf("relay: failed to encode queue: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".queue-*")
	if err != nil {
		return fmt.Errorf("relay: failed to create temp queue file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("relay: failed to write queue: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("relay: failed to close queue file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("relay: failed to replace queue file: %w", err)
	}
	return nil
}
