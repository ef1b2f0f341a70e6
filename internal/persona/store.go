package persona

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/persona/internal/observe"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the persona document name inside the data directory.
const DefaultFile = "chatbot_config.json"

var ErrConfigCorrupt = errors.New("persona config corrupt")

// FileStore persists a Config as a JSON or YAML document, chosen by the
// file extension.
type FileStore struct {
	path string
	obs  *observe.Observer
}

func NewFileStore(path string, obs *observe.Observer) *FileStore {
	if obs == nil {
		obs = observe.Nop()
	}
	return &FileStore{path: path, obs: obs}
}

func (s *FileStore) Path() string { return s.path }

// Load reads the persona. A missing file yields Defaults, which are written
// back. A file that cannot be decoded is reset to Defaults and logged. A
// failed write-back is logged too; only read failures are returned as errors.
func (s *FileStore) Load() (Config, error) {
	data, err := os.ReadFile(s.path) // #nosec G304
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.obs.Log().Info().Str("path", s.path).Msg("persona config missing, writing defaults")
			return s.restore(), nil
		}
		return Config{}, fmt.Errorf("failed to read persona config: %w", err)
	}

	cfg, err := s.decode(data)
	if err != nil {
		s.obs.Log().Warn().Str("path", s.path).Err(err).Msg("persona config reset to defaults")
		return s.restore(), nil
	}

	if cfg.Normalize() {
		s.obs.Log().Warn().Str("path", s.path).Msg("persona config had out-of-range fields, normalized")
	}
	return cfg, nil
}

// Save writes cfg through a temporary file and a rename so readers never see
// a partial document.
func (s *FileStore) Save(cfg Config) error {
	data, err := s.encode(cfg)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create persona dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".persona-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write persona config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync persona config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close persona config: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace persona config: %w", err)
	}

	s.obs.Log().Info().Str("path", s.path).Str("name", cfg.Name).Msg("persona config saved")
	return nil
}

// Reset replaces the stored persona with Defaults.
func (s *FileStore) Reset() (Config, error) {
	return s.reset()
}

// restore writes Defaults back for Load. The defaults are usable even when
// the write fails.
func (s *FileStore) restore() Config {
	cfg, err := s.reset()
	if err != nil {
		s.obs.Log().Warn().Str("path", s.path).Err(err).Msg("failed to write default persona config")
	}
	return cfg
}

func (s *FileStore) reset() (Config, error) {
	cfg := Defaults()
	if err := s.Save(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (s *FileStore) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(s.path))
	return ext == ".yaml" || ext == ".yml"
}

// decode unmarshals onto Defaults so missing keys keep their default values
// and unknown keys are ignored.
func (s *FileStore) decode(data []byte) (Config, error) {
	cfg := Defaults()
	if s.isYAML() {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Defaults(), fmt.Errorf("%w: %v", ErrConfigCorrupt, err)
		}
		return cfg, nil
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Defaults(), fmt.Errorf("%w: %v", ErrConfigCorrupt, err)
	}
	return cfg, nil
}

func (s *FileStore) encode(cfg Config) ([]byte, error) {
	if s.isYAML() {
		return yaml.Marshal(cfg)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
