package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"waste-report-service/internal/model"
)

// FileReportStore persists the collection as one indented JSON array.
// All calls are serialized by a mutex and writes are replaced atomically
// through a temp file and rename.
type FileReportStore struct {
	path string
	mu   sync.Mutex
}

func NewFileReportStore(path string) (*FileReportStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w: %w", model.ErrStorageWrite, err)
	}
	return &FileReportStore{path: path}, nil
}

func (s *FileReportStore) Path() string {
	return s.path
}

func (s *FileReportStore) Load(ctx context.Context) ([]model.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileReportStore) Save(ctx context.Context, reports []model.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(reports)
}

func (s *FileReportStore) Update(ctx context.Context, fn func([]model.Report) ([]model.Report, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reports, err := s.load()
	if err != nil {
		return err
	}

	next, err := fn(reports)
	if err != nil {
		return err
	}

	return s.save(next)
}

func (s *FileReportStore) load() ([]model.Report, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		seed := SeedReports()
		if err := s.save(seed); err != nil {
			return nil, err
		}
		return seed, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", s.path, model.ErrStorageRead, err)
	}

	var reports []model.Report
	if err := json.Unmarshal(data, &reports); err != nil {
		return nil, fmt.Errorf("decode %s: %w: %w", s.path, model.ErrStorageRead, err)
	}
	if reports == nil {
		reports = []model.Report{}
	}
	return reports, nil
}

func (s *FileReportStore) save(reports []model.Report) error {
	if reports == nil {
		reports = []model.Report{}
	}

	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("encode reports: %w: %w", model.ErrStorageWrite, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".reports-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w: %w", model.ErrStorageWrite, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w: %w", tmpName, model.ErrStorageWrite, err)
	}
	// CreateTemp uses 0600 and the rename keeps it.
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w: %w", tmpName, model.ErrStorageWrite, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w: %w", tmpName, model.ErrStorageWrite, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w: %w", s.path, model.ErrStorageWrite, err)
	}
	return nil
}
