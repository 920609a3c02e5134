package calibration

import (
	"sync"

	"go.uber.org/zap"
)

// Store holds the calibration in use and the files it can be reloaded from
type Store struct {
	// Path is read by Apply
	Path string

	// DefaultPath is read by ApplyDefault
	DefaultPath string

	log *zap.Logger

	mu     sync.RWMutex
	cal    Calibration
	source string
}

// NewStore returns a store holding Default()
func NewStore(path, defaultPath string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{Path: path, DefaultPath: defaultPath, log: log, cal: Default(), source: "built-in"}
}

// Get returns the calibration in use
func (s *Store) Get() Calibration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cal
}

// Source is the file the calibration in use was read from, or "built-in"
func (s *Store) Source() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// Apply reads Path.  On failure the calibration in use is kept.
func (s *Store) Apply() error {
	return s.apply(s.Path)
}

// ApplyDefault reads DefaultPath.  On failure the calibration in use is kept.
func (s *Store) ApplyDefault() error {
	return s.apply(s.DefaultPath)
}

// Set replaces the calibration in use
func (s *Store) Set(c Calibration, source string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.cal, s.source = c, source
	s.mu.Unlock()
	return nil
}

func (s *Store) apply(path string) error {
	c, err := Read(path)
	if err != nil {
		s.log.Error("Failed to apply calibration", zap.String("path", path), zap.Error(err))
		return err
	}
	if err := s.Set(c, path); err != nil {
		return err
	}
	s.log.Info("Calibration applied", zap.String("path", path), zap.String("comment", c.Comment))
	return nil
}
