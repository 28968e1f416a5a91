// Package manifest handles tabby.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the project configuration file.
const FileName = "tabby.toml"

// Manifest represents a tabby.toml project configuration.
type Manifest struct {
	Project Project    `toml:"project"`
	Link    LinkConfig `toml:"link"`
	Log     LogConfig  `toml:"log"`

	// Dir is the directory containing the tabby.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name string `toml:"name"`
}

// LinkConfig configures the link step.
type LinkConfig struct {
	// Entry names the member cleanup starts from, either as a full
	// signature ("Main.main():void") or as Class.member.
	Entry  string `toml:"entry"`
	Output string `toml:"output"`
}

// LogConfig configures logging.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"` // empty for stderr
}

// Load parses a tabby.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// Parse decodes manifest text. Unknown keys are rejected so that typos in
// section or key names do not pass silently.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	if m.Log.Verbosity < -1 {
		return nil, fmt.Errorf("log.verbosity %d is below -1", m.Log.Verbosity)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a tabby.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// OutputPath returns where the linked image for input is written: the
// configured output relative to the manifest directory, or input with its
// extension replaced by ".linked.cbor".
func (m *Manifest) OutputPath(input string) string {
	if m != nil && m.Link.Output != "" {
		return m.resolve(m.Link.Output)
	}
	return DefaultOutput(input)
}

// LogPath returns the configured log file, or nil for stderr.
func (m *Manifest) LogPath() *string {
	if m == nil || m.Log.File == "" {
		return nil
	}
	path := m.resolve(m.Log.File)
	return &path
}

func (m *Manifest) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(m.Dir, path)
}

// DefaultOutput derives the linked image name from the input image name.
func DefaultOutput(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".linked.cbor"
}
