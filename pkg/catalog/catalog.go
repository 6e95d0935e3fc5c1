// Package catalog ties source resolution, fetching, loading and merging together
// to produce the skills matrix of a project.
package catalog

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jingkaihe/skillmatrix/pkg/logger"
	"github.com/jingkaihe/skillmatrix/pkg/matrix"
	"github.com/jingkaihe/skillmatrix/pkg/project"
	"github.com/jingkaihe/skillmatrix/pkg/skills"
	"github.com/jingkaihe/skillmatrix/pkg/sources"
)

// BuildOptions controls a single catalog build
type BuildOptions struct {
	// ForceRefresh re-fetches every remote source
	ForceRefresh bool
	// IncludeLocal merges the project's local skills last
	IncludeLocal bool
}

// SourceStatus reports how one source contributed to the matrix
type SourceStatus struct {
	sources.SourceEntry
	Path   string `json:"path,omitempty"`
	Cached bool   `json:"cached"`
	Skills int    `json:"skills"`
	Error  string `json:"error,omitempty"`
}

// Result is the outcome of a catalog build
type Result struct {
	Matrix   *matrix.Matrix
	Primary  SourceStatus
	Extras   []SourceStatus
	Warnings []string
}

// Builder produces the skills matrix of a project
type Builder struct {
	projectDir string
	registry   *sources.Registry
	fetcher    *sources.Fetcher
}

// BuilderOption configures a Builder
type BuilderOption func(*Builder)

// WithRegistry sets the source registry
func WithRegistry(r *sources.Registry) BuilderOption {
	return func(b *Builder) {
		b.registry = r
	}
}

// WithFetcher sets the source fetcher
func WithFetcher(f *sources.Fetcher) BuilderOption {
	return func(b *Builder) {
		b.fetcher = f
	}
}

// NewBuilder creates a Builder for the project at projectDir
func NewBuilder(projectDir string, opts ...BuilderOption) (*Builder, error) {
	b := &Builder{projectDir: projectDir}
	for _, opt := range opts {
		opt(b)
	}

	if b.registry == nil {
		b.registry = sources.NewRegistry()
	}
	if b.fetcher == nil {
		f, err := sources.NewFetcher()
		if err != nil {
			return nil, err
		}
		b.fetcher = f
	}
	return b, nil
}

type loadedSet struct {
	status SourceStatus
	set    matrix.SkillSet
	warns  []string
	err    error
}

// Build resolves, fetches and merges every configured source.
// A primary source that cannot be fetched fails the build; an extra source
// that cannot be fetched is reported as a warning and left out.
func (b *Builder) Build(ctx context.Context, opts BuildOptions) (*Result, error) {
	resolved, err := b.registry.ResolveAllSources(b.projectDir)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	res.Warnings = append(res.Warnings, resolved.Warnings...)

	primary := b.loadSource(ctx, resolved.Primary, opts)
	if primary.err != nil {
		return nil, errors.Wrapf(primary.err, "failed to load primary source %s", resolved.Primary.URL)
	}
	res.Primary = primary.status
	res.Warnings = append(res.Warnings, primary.warns...)

	extras := make([]loadedSet, len(resolved.Extras))
	g, gctx := errgroup.WithContext(ctx)
	for i, entry := range resolved.Extras {
		g.Go(func() error {
			extras[i] = b.loadSource(gctx, entry, opts)
			return nil
		})
	}
	_ = g.Wait()

	sets := []matrix.SkillSet{primary.set}
	for _, extra := range extras {
		res.Extras = append(res.Extras, extra.status)
		if extra.err != nil {
			logger.G(ctx).WithError(extra.err).WithField("source", extra.status.Name).Warn("skipping source")
			res.Warnings = append(res.Warnings, degradedWarning(extra))
			continue
		}
		res.Warnings = append(res.Warnings, extra.warns...)
		sets = append(sets, extra.set)
	}

	if opts.IncludeLocal {
		local, warns, err := b.loadLocal()
		if err != nil {
			return nil, err
		}
		res.Warnings = append(res.Warnings, warns...)
		if local != nil {
			sets = append(sets, *local)
		}
	}

	res.Warnings = append(res.Warnings, applyPins(sets, resolved.Pins)...)

	m, warns := matrix.BuildMatrix(sets[0], sets[1:]...)
	res.Warnings = append(res.Warnings, warns...)
	res.Matrix = m

	logger.G(ctx).WithField("skills", m.Len()).WithField("sources", len(sets)).Debug("built skills matrix")
	return res, nil
}

// degradedWarning describes an extra source left out of the matrix. Fetch
// failures mean the source is unreachable; anything else means its content is broken.
func degradedWarning(set loadedSet) string {
	if sources.IsFetchError(set.err) {
		return fmt.Sprintf("source %s (%s) unavailable: %v", set.status.Name, set.status.URL, set.err)
	}
	return fmt.Sprintf("source %s (%s) could not be loaded: %v", set.status.Name, set.status.URL, set.err)
}

func (b *Builder) loadSource(ctx context.Context, entry sources.SourceEntry, opts BuildOptions) loadedSet {
	out := loadedSet{status: SourceStatus{SourceEntry: entry}}
	ctx = logger.WithFields(ctx, logrus.Fields{"component": "catalog", "source": entry.Name})

	fetched, err := b.fetcher.FetchFromSource(ctx, entry.URL, sources.FetchOptions{ForceRefresh: opts.ForceRefresh})
	if err != nil {
		out.err = err
		out.status.Error = err.Error()
		return out
	}
	out.status.Path = fetched.Path
	out.status.Cached = fetched.Cached

	loader := skills.NewLoader(skills.WithSourceName(entry.Name), skills.WithSourceURL(entry.URL))
	loaded, warns, err := loader.Load(fetched.Path)
	if err != nil {
		out.err = err
		out.status.Error = err.Error()
		return out
	}

	out.status.Skills = len(loaded)
	out.warns = warns
	logger.G(ctx).WithField("skills", len(loaded)).WithField("cached", fetched.Cached).Debug("loaded source")
	out.set = matrix.SkillSet{SourceName: entry.Name, SourceURL: entry.URL, Skills: loaded}
	return out
}

func (b *Builder) loadLocal() (*matrix.SkillSet, []string, error) {
	dir := project.SkillsDir(b.projectDir)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil, nil
	}

	loader := skills.NewLoader(skills.WithSourceName(project.LocalSource), skills.WithSourceURL(dir))
	loaded, warns, err := loader.Load(dir)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load local skills")
	}
	return &matrix.SkillSet{SourceName: project.LocalSource, SourceURL: dir, Skills: loaded}, warns, nil
}

// applyPins removes pinned skills from every set except the one they are pinned to,
// so the pinned source provides the effective record. A pin to a source that does
// not provide the skill is reported and ignored.
func applyPins(sets []matrix.SkillSet, pins map[skills.SkillID]string) []string {
	var warnings []string

	for _, id := range sortedPinIDs(pins) {
		source := pins[id]
		if !provides(sets, source, id) {
			warnings = append(warnings, fmt.Sprintf("skill %s is pinned to source %s, which does not provide it", id, source))
			continue
		}
		for i := range sets {
			if sets[i].SourceName == source {
				continue
			}
			sets[i].Skills = without(sets[i].Skills, id)
		}
	}
	return warnings
}

func sortedPinIDs(pins map[skills.SkillID]string) []skills.SkillID {
	ids := make([]skills.SkillID, 0, len(pins))
	for id := range pins {
		ids = append(ids, id)
	}
	return skills.SortIDs(ids)
}

func provides(sets []matrix.SkillSet, source string, id skills.SkillID) bool {
	for _, set := range sets {
		if set.SourceName != source {
			continue
		}
		for _, s := range set.Skills {
			if s.ID == id {
				return true
			}
		}
	}
	return false
}

func without(list []*skills.Skill, id skills.SkillID) []*skills.Skill {
	out := make([]*skills.Skill, 0, len(list))
	for _, s := range list {
		if s.ID != id {
			out = append(out, s)
		}
	}
	return out
}
