package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/MarcoPoloResearchLab/inkwell/internal/editor"
	"go.uber.org/zap"
)

var errMissingPath = errors.New("settings: file path is required")

type StoreConfig struct {
	Path   string
	Logger *zap.Logger
}

// Store persists editor settings as a single JSON record on disk. The lock
// settings live under the "lock" key; unknown keys are preserved across
// writes.
type Store struct {
	path   string
	logger *zap.Logger

	mu sync.Mutex
}

func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, errMissingPath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: cfg.Path, logger: logger}, nil
}

type settingsRecord struct {
	Lock *editor.LockConfig `json:"lock,omitempty"`
}

// LoadLockConfig reads the persisted lock settings. A missing file or a
// record without lock settings yields the disabled default. A corrupt or
// invalid record yields the default alongside the error.
func (s *Store) LoadLockConfig() (editor.LockConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return editor.DefaultLockConfig(), nil
	}
	if err != nil {
		return editor.DefaultLockConfig(), fmt.Errorf("settings: read %s: %w", s.path, err)
	}

	var record settingsRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return editor.DefaultLockConfig(), fmt.Errorf("settings: parse %s: %w", s.path, err)
	}
	if record.Lock == nil {
		return editor.DefaultLockConfig(), nil
	}
	if err := record.Lock.Validate(); err != nil {
		return editor.DefaultLockConfig(), err
	}
	return *record.Lock, nil
}

// SaveLockConfig validates and writes the lock settings. An invalid
// configuration is rejected without touching the file.
func (s *Store) SaveLockConfig(cfg editor.LockConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := map[string]json.RawMessage{}
	if raw, err := os.ReadFile(s.path); err == nil {
		if err := json.Unmarshal(raw, &record); err != nil {
			s.logger.Warn("overwriting undecodable settings record", zap.String("path", s.path), zap.Error(err))
			record = map[string]json.RawMessage{}
		}
	}

	lockValue, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}
	record["lock"] = lockValue

	encoded, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("settings: create directory: %w", err)
	}
	if err := os.WriteFile(s.path, encoded, 0o600); err != nil {
		return fmt.Errorf("settings: write %s: %w", s.path, err)
	}
	return nil
}
