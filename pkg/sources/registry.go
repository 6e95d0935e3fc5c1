// Package sources resolves the configured skill sources of a project and
// makes their content available on the local filesystem.
package sources

import (
	"fmt"
	"os"
	"strings"

	"github.com/jingkaihe/skillmatrix/pkg/project"
	"github.com/jingkaihe/skillmatrix/pkg/skills"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	// DefaultSource is the built-in marketplace used when nothing else is configured
	DefaultSource = "github:jingkaihe/skills"
	// PrimarySourceName names the primary source in the matrix
	PrimarySourceName = "marketplace"
	// EnvSource overrides the primary source when set and non-empty
	EnvSource = "SKILLMATRIX_SOURCE"
)

var reservedNames = map[string]bool{
	PrimarySourceName:   true,
	project.LocalSource: true,
}

// SourceEntry identifies one configured origin of skills
type SourceEntry struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Origin records where the primary source came from
type Origin string

// Primary source origins, highest precedence first
const (
	OriginEnv     Origin = "env"
	OriginProject Origin = "project"
	OriginUser    Origin = "user"
	OriginDefault Origin = "default"
)

// Resolved is the ordered source configuration of a project
type Resolved struct {
	Primary       SourceEntry
	PrimaryOrigin Origin
	Extras        []SourceEntry
	// Pins maps skills to the source the project assigned them to
	Pins          map[skills.SkillID]string
	Warnings      []string
}

// All returns the primary followed by the extras in configured order
func (r *Resolved) All() []SourceEntry {
	return append([]SourceEntry{r.Primary}, r.Extras...)
}

// Registry resolves sources from the environment and project configuration.
// It never touches the network.
type Registry struct {
	v *viper.Viper
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithViper uses v to look up the "source" key instead of the environment.
// A value that only comes from v's config file ranks below the project config.
func WithViper(v *viper.Viper) RegistryOption {
	return func(r *Registry) {
		r.v = v
	}
}

// NewRegistry creates a registry bound to the SKILLMATRIX_SOURCE environment variable
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	if r.v == nil {
		r.v = viper.New()
		_ = r.v.BindEnv("source", EnvSource)
	}
	return r
}

// ResolveAllSources returns the primary and extra sources of a project along with its pins.
// Precedence for the primary is environment, then project config, then the user
// config file, then the default.
// Invalid entries are dropped with a warning rather than failing resolution.
func (r *Registry) ResolveAllSources(projectDir string) (*Resolved, error) {
	cfg, err := project.Load(projectDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load project configuration")
	}

	res := &Resolved{}
	res.Warnings = append(res.Warnings, cfg.Warnings...)
	pins, warns := cfg.SkillSources()
	res.Pins = pins
	res.Warnings = append(res.Warnings, warns...)

	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get working directory")
	}

	override, user := r.sourceOverride()
	candidates := []struct {
		raw    string
		base   string
		origin Origin
	}{
		{raw: override, base: cwd, origin: OriginEnv},
		{raw: cfg.Source, base: projectDir, origin: OriginProject},
		{raw: user, base: cwd, origin: OriginUser},
		{raw: DefaultSource, origin: OriginDefault},
	}
	for _, c := range candidates {
		if c.raw == "" {
			continue
		}
		loc, err := ParseLocation(c.raw, c.base)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("ignoring %s primary source: %v", c.origin, err))
			continue
		}
		res.Primary = SourceEntry{Name: PrimarySourceName, URL: loc.String()}
		res.PrimaryOrigin = c.origin
		break
	}

	seen := make(map[string]bool)
	for i, raw := range cfg.ExtraSources {
		entry, err := ValidateExtraSource(raw, projectDir)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("extraSources[%d]: %v, ignoring it", i, err))
			continue
		}
		if seen[entry.Name] {
			res.Warnings = append(res.Warnings, fmt.Sprintf("extraSources[%d]: duplicate source name %q, ignoring it", i, entry.Name))
			continue
		}
		seen[entry.Name] = true
		res.Extras = append(res.Extras, entry)
	}

	return res, nil
}

// sourceOverride splits the "source" value into an override (environment, flag or
// explicit Set) and a user config file value
func (r *Registry) sourceOverride() (string, string) {
	value := strings.TrimSpace(r.v.GetString("source"))
	if value == "" {
		return "", ""
	}
	if r.v.InConfig("source") && strings.TrimSpace(os.Getenv(EnvSource)) == "" {
		return "", value
	}
	return value, ""
}

// ValidateExtraSource checks an extra source entry and returns it with a normalized URL.
// Relative local paths are resolved against projectDir.
func ValidateExtraSource(raw project.RawSource, projectDir string) (SourceEntry, error) {
	raw.Name = strings.TrimSpace(raw.Name)
	raw.URL = strings.TrimSpace(raw.URL)
	if raw.Name == "" {
		return SourceEntry{}, errors.New("source name is required")
	}
	if raw.URL == "" {
		return SourceEntry{}, errors.Errorf("source %q has no url", raw.Name)
	}
	if reservedNames[raw.Name] {
		return SourceEntry{}, errors.Errorf("source name %q is reserved", raw.Name)
	}
	loc, err := ParseLocation(raw.URL, projectDir)
	if err != nil {
		return SourceEntry{}, err
	}
	return SourceEntry{Name: raw.Name, URL: loc.String()}, nil
}
