// Package project reads and writes the per-project configuration stored
// under .skillmatrix/ in the project directory.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jingkaihe/skillmatrix/pkg/skills"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// DirName is the per-project configuration directory
	DirName = ".skillmatrix"
	// ConfigFileName is the project configuration file inside DirName
	ConfigFileName = "config.yaml"
	// SkillsDirName holds project-local skill directories inside DirName
	SkillsDirName = "skills"
	// LocalSource is the source name assigned to project-local skills
	LocalSource = "local"
)

// RawSource is an extra source entry as written in the configuration file.
// Entries are validated by the source registry, not here.
type RawSource struct {
	Name string `mapstructure:"name" yaml:"name"`
	URL  string `mapstructure:"url" yaml:"url"`
}

// Config is the logical content of .skillmatrix/config.yaml
type Config struct {
	Source       string            `yaml:"source,omitempty"`
	ExtraSources []RawSource       `yaml:"extraSources,omitempty"`
	Skills       map[string]string `yaml:"skills,omitempty"`

	// Warnings collects entries that could not be decoded at all
	Warnings []string `yaml:"-"`
}

// Dir returns the configuration directory of a project
func Dir(projectDir string) string {
	return filepath.Join(projectDir, DirName)
}

// ConfigPath returns the configuration file path of a project
func ConfigPath(projectDir string) string {
	return filepath.Join(Dir(projectDir), ConfigFileName)
}

// SkillsDir returns the project-local skills root
func SkillsDir(projectDir string) string {
	return filepath.Join(Dir(projectDir), SkillsDirName)
}

// Load reads the project configuration. A missing file yields an empty config.
func Load(projectDir string) (*Config, error) {
	path := ConfigPath(projectDir)
	cfg := &Config{Skills: map[string]string{}}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "failed to stat project config %s", path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read project config %s", path)
	}

	cfg.Source = strings.TrimSpace(v.GetString("source"))
	cfg.ExtraSources, cfg.Warnings = decodeExtraSources(v.Get("extraSources"))
	for id, source := range v.GetStringMapString("skills") {
		cfg.Skills[id] = strings.TrimSpace(source)
	}

	return cfg, nil
}

func decodeExtraSources(raw any) ([]RawSource, []string) {
	if raw == nil {
		return nil, nil
	}

	items, ok := raw.([]any)
	if !ok {
		return nil, []string{"extraSources must be a list, ignoring it"}
	}

	var (
		entries  []RawSource
		warnings []string
	)
	for i, item := range items {
		var entry RawSource
		if err := mapstructure.WeakDecode(item, &entry); err != nil {
			warnings = append(warnings, fmt.Sprintf("extraSources[%d]: %v, ignoring it", i, err))
			continue
		}
		entries = append(entries, entry)
	}
	return entries, warnings
}

// Save writes the configuration, creating the configuration directory if needed
func Save(projectDir string, cfg *Config) error {
	dir := Dir(projectDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create project config directory")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal project config")
	}

	path := ConfigPath(projectDir)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write project config")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "failed to replace project config")
	}
	return nil
}

// SkillSources returns the validated skill -> source assignments.
// Invalid skill IDs are reported as warnings and left out.
func (c *Config) SkillSources() (map[skills.SkillID]string, []string) {
	out := make(map[skills.SkillID]string, len(c.Skills))
	var warnings []string

	keys := make([]string, 0, len(c.Skills))
	for k := range c.Skills {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		id, err := skills.ParseSkillID(k)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skills: %v, ignoring it", err))
			continue
		}
		if c.Skills[k] == "" {
			warnings = append(warnings, fmt.Sprintf("skills: %s has no source, ignoring it", id))
			continue
		}
		out[id] = c.Skills[k]
	}
	return out, warnings
}

// SetSkillSource assigns a source to a skill; an empty source clears the assignment
func (c *Config) SetSkillSource(id skills.SkillID, source string) {
	if c.Skills == nil {
		c.Skills = map[string]string{}
	}
	if source == "" {
		delete(c.Skills, id.String())
		return
	}
	c.Skills[id.String()] = source
}

// AddExtraSource appends an extra source. Names must be unique.
func (c *Config) AddExtraSource(name, url string) error {
	name = strings.TrimSpace(name)
	url = strings.TrimSpace(url)
	if name == "" || url == "" {
		return errors.New("extra source requires both a name and a url")
	}
	for _, s := range c.ExtraSources {
		if s.Name == name {
			return errors.Errorf("extra source %q already exists", name)
		}
	}
	c.ExtraSources = append(c.ExtraSources, RawSource{Name: name, URL: url})
	return nil
}

// RemoveExtraSource removes the named extra source and reports whether it existed
func (c *Config) RemoveExtraSource(name string) bool {
	for i, s := range c.ExtraSources {
		if s.Name == name {
			c.ExtraSources = append(c.ExtraSources[:i], c.ExtraSources[i+1:]...)
			return true
		}
	}
	return false
}
