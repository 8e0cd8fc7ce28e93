// Package toml loads workspace configuration from codeshell.toml files.
package toml

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/fwojciec/codeshell"
)

// FileName is the name of the configuration file.
const FileName = "codeshell.toml"

// Find walks up from startDir to locate codeshell.toml.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load reads the configuration at path. Unknown keys are an error, zero
// limits take their defaults and a relative root is resolved against the
// directory holding the file.
func Load(path string) (codeshell.Config, error) {
	var cfg codeshell.Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return codeshell.Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return codeshell.Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	switch {
	case cfg.Root == "":
		cfg.Root = dir
	case !filepath.IsAbs(cfg.Root):
		cfg.Root = filepath.Join(dir, cfg.Root)
	}
	if cfg.Batch.Journal != "" && !filepath.IsAbs(cfg.Batch.Journal) {
		cfg.Batch.Journal = filepath.Join(cfg.Root, cfg.Batch.Journal)
	}
	return cfg, nil
}

// LoadFrom finds the configuration above startDir and loads it. Without
// one the defaults apply with startDir as the root.
func LoadFrom(startDir string) (codeshell.Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return codeshell.Config{}, err
	}
	if ok {
		return Load(path)
	}
	root, err := filepath.Abs(startDir)
	if err != nil {
		return codeshell.Config{}, err
	}
	cfg := codeshell.DefaultConfig()
	cfg.Root = root
	return cfg, nil
}

// Encode renders cfg as TOML.
func Encode(cfg codeshell.Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.Indent = ""
	if err := enc.Encode(cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
