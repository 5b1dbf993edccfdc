package repo

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/twigerr"
)

// SupportedFormatVersion is the highest core.repositoryformatversion Open
// accepts.
const SupportedFormatVersion = 0

// Config is the TOML document stored at .twig/config.
type Config struct {
	Core CoreConfig `toml:"core"`
	User UserConfig `toml:"user,omitempty"`
}

// CoreConfig holds repository layout settings fixed at init time.
type CoreConfig struct {
	RepositoryFormatVersion int    `toml:"repositoryformatversion"`
	FileMode                bool   `toml:"filemode"`
	Bare                    bool   `toml:"bare"`
	Compression             string `toml:"compression,omitempty"`
	ObjectFormat            string `toml:"objectformat,omitempty"`
}

// UserConfig names the default commit identity.
type UserConfig struct {
	Name  string `toml:"name,omitempty"`
	Email string `toml:"email,omitempty"`
}

// DefaultConfig is what Init writes when the caller supplies nothing.
func DefaultConfig() *Config {
	return &Config{Core: CoreConfig{
		RepositoryFormatVersion: SupportedFormatVersion,
		FileMode:                true,
		Compression:             string(object.CompressionZlib),
		ObjectFormat:            string(object.DefaultFormat),
	}}
}

// Codec returns the object codec the config selects.
func (c *Config) Codec() (object.Codec, error) {
	format, err := object.ParseFormat(c.Core.ObjectFormat)
	if err != nil {
		return object.Codec{}, twigerr.Errorf(twigerr.ErrInvalidArgument, "config: %v", err)
	}
	compression, err := object.ParseCompression(c.Core.Compression)
	if err != nil {
		return object.Codec{}, twigerr.Errorf(twigerr.ErrInvalidArgument, "config: %v", err)
	}
	return object.Codec{Format: format, Compression: compression}, nil
}

// ReadConfig decodes a TOML config file. A missing file yields
// DefaultConfig.
func ReadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, twigerr.Errorf(twigerr.ErrInvalidArgument, "read config %s: %v", path, err)
	}
	return cfg, nil
}

func (r *Repo) configPath() string {
	return r.metaPath("config")
}

// WriteConfig atomically writes .twig/config.
func (r *Repo) WriteConfig(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := writeConfigFile(r.Dir, r.configPath(), cfg); err != nil {
		return err
	}
	r.Config = cfg
	return nil
}

func writeConfigFile(dir, path string, cfg *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-tmp-*")
	if err != nil {
		return twigerr.Errorf(twigerr.ErrIO, "write config: tmpfile: %v", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return twigerr.Errorf(twigerr.ErrIO, "write config: write: %v", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return twigerr.Errorf(twigerr.ErrIO, "write config: close: %v", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return twigerr.Errorf(twigerr.ErrIO, "write config: rename: %v", err)
	}
	return nil
}

// GlobalConfigPaths lists the per-user config files consulted for settings
// the repository config leaves unset, highest precedence first.
func GlobalConfigPaths(home string) []string {
	var paths []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "twig", "config"))
	} else if home != "" {
		paths = append(paths, filepath.Join(home, ".config", "twig", "config"))
	}
	if home != "" {
		paths = append(paths, filepath.Join(home, ".twigconfig"))
	}
	return paths
}
