package skills

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
	"gopkg.in/yaml.v3"
)

const (
	// SkillFileName is the content file every skill directory carries
	SkillFileName = "SKILL.md"
	// MetadataFileName is the optional catalog metadata sidecar
	MetadataFileName = "metadata.yaml"
	// ArchiveDirName is the reserved directory holding archived project-local skills
	ArchiveDirName = "_archived"

	skillsSubdir = "skills"
)

var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	ArchiveDirName: true,
}

// Loader loads skills from a source tree
type Loader struct {
	sourceName string
	sourceURL  string
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithSourceName tags loaded skills with the source name
func WithSourceName(name string) LoaderOption {
	return func(l *Loader) {
		l.sourceName = name
	}
}

// WithSourceURL tags loaded skills with the source URL
func WithSourceURL(url string) LoaderOption {
	return func(l *Loader) {
		l.sourceURL = url
	}
}

// NewLoader creates a new skill loader
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SkillsRoot returns the directory skills are read from: root/skills when it
// exists, root otherwise
func SkillsRoot(root string) string {
	candidate := filepath.Join(root, skillsSubdir)
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		return candidate
	}
	return root
}

// Load scans root for skill directories and returns the skills in path order.
// Skills that fail to parse are skipped and reported in the returned warnings.
func (l *Loader) Load(root string) ([]*Skill, []string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read source directory %s", root)
	}
	if !info.IsDir() {
		return nil, nil, errors.Errorf("source path %s is not a directory", root)
	}

	base := SkillsRoot(root)
	matches, err := doublestar.Glob(os.DirFS(base), "**/"+SkillFileName, doublestar.WithFilesOnly())
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to scan %s for skills", base)
	}
	sort.Strings(matches)

	var (
		loaded   []*Skill
		warnings []string
		seen     = make(map[SkillID]string)
	)
	for _, match := range matches {
		if isSkipped(match) {
			continue
		}

		skillPath := filepath.Join(base, filepath.FromSlash(match))
		skill, err := l.loadSkill(skillPath)
		if err != nil {
			warnings = append(warnings, l.warnf("skipping skill %s: %v", path.Dir(match), err))
			continue
		}

		if first, dup := seen[skill.ID]; dup {
			warnings = append(warnings, l.warnf("skipping skill %s: duplicate id %q already loaded from %s", path.Dir(match), skill.ID, first))
			continue
		}
		seen[skill.ID] = path.Dir(match)
		loaded = append(loaded, skill)
	}

	return loaded, warnings, nil
}

func (l *Loader) warnf(format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	if l.sourceName != "" {
		return fmt.Sprintf("source %s: %s", l.sourceName, msg)
	}
	return msg
}

func isSkipped(match string) bool {
	for _, segment := range strings.Split(path.Dir(match), "/") {
		if skippedDirs[segment] {
			return true
		}
	}
	return false
}

// LoadSkill loads a single skill directory outside of a source scan
func (l *Loader) LoadSkill(dir string) (*Skill, error) {
	return l.loadSkill(filepath.Join(dir, SkillFileName))
}

// loadSkill loads a single skill from its SKILL.md file and optional sidecar
func (l *Loader) loadSkill(skillPath string) (*Skill, error) {
	content, err := os.ReadFile(skillPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read skill file")
	}

	frontmatter, err := parseFrontmatter(content)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(skillPath)
	md := metadataFromMap(frontmatter)
	_, hasCategory := frontmatter["category"]
	hasCatalogMetadata := hasCategory || md.declaresCatalogFields()

	sidecar, err := readSidecar(filepath.Join(dir, MetadataFileName))
	if err != nil {
		return nil, err
	}
	if sidecar != nil {
		md = mergeMetadata(md, *sidecar)
		hasCatalogMetadata = true
	}

	if strings.TrimSpace(md.Description) == "" {
		return nil, errors.New("skill description is required in frontmatter")
	}

	id, err := resolveID(md, dir, !hasCatalogMetadata)
	if err != nil {
		return nil, err
	}

	skill := &Skill{
		ID:            id,
		DisplayName:   strings.TrimSpace(md.DisplayName),
		Description:   strings.TrimSpace(md.Description),
		Tags:          cleanTags(md.Tags),
		Relationships: Relationships{},
		SourceName:    l.sourceName,
		SourceURL:     l.sourceURL,
		ContentPath:   skillPath,
		Directory:     dir,
		Content:       extractBodyContent(string(content)),
	}

	if !hasCatalogMetadata {
		skill.Category = ImportedCategory
		skill.Imported = true
		return skill, nil
	}

	category := strings.TrimSpace(md.Category)
	if strings.EqualFold(category, ImportedCategory) {
		return nil, &ParseError{Input: category, Reason: "category is reserved for skills without catalog metadata"}
	}
	if category == "" {
		category = "uncategorized"
	}
	skill.Category = category

	for kind, raw := range md.relationLists() {
		rels, err := parseRelationList(kind, raw)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s", kind.Key())
		}
		for _, rel := range rels {
			if rel.Target == id {
				continue
			}
			skill.Relationships.Add(kind, rel)
		}
	}

	return skill, nil
}

// resolveID picks the skill ID from id, then name, then the directory name.
// Imported skills fall back to the directory name when their name is not a valid ID.
func resolveID(md Metadata, dir string, imported bool) (SkillID, error) {
	if md.ID != "" {
		return ParseSkillID(md.ID)
	}
	if md.Name != "" {
		id, err := ParseSkillID(md.Name)
		if err == nil || !imported {
			return id, err
		}
	}
	id, err := ParseSkillID(strings.ToLower(filepath.Base(dir)))
	if err != nil {
		return "", errors.Wrap(err, "skill id or name is required in frontmatter")
	}
	return id, nil
}

func parseFrontmatter(content []byte) (map[string]any, error) {
	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)

	var buf bytes.Buffer
	pctx := parser.NewContext()

	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return nil, errors.Wrap(err, "failed to parse markdown")
	}

	metaData, err := meta.TryGet(pctx)
	if err != nil {
		return nil, errors.Wrap(err, "invalid frontmatter")
	}
	if len(metaData) == 0 {
		return nil, errors.New("missing frontmatter")
	}
	return metaData, nil
}

func readSidecar(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to read metadata file")
	}

	var md Metadata
	if err := yaml.Unmarshal(data, &md); err != nil {
		return nil, errors.Wrap(err, "failed to parse metadata file")
	}
	return &md, nil
}

func metadataFromMap(m map[string]any) Metadata {
	str := func(key string) string {
		s, _ := m[key].(string)
		return s
	}
	list := func(key string) []any {
		switch v := m[key].(type) {
		case []any:
			return v
		case string:
			return []any{v}
		}
		return nil
	}

	var tags []string
	for _, t := range list("tags") {
		if s, ok := t.(string); ok {
			tags = append(tags, s)
		}
	}

	return Metadata{
		ID:             str("id"),
		Name:           str("name"),
		DisplayName:    str("displayName"),
		Description:    str("description"),
		Category:       str("category"),
		Tags:           tags,
		ConflictsWith:  list(Conflicts.Key()),
		Requires:       list(Requires.Key()),
		Recommends:     list(Recommends.Key()),
		Alternatives:   list(Alternatives.Key()),
		Discourages:    list(Discourages.Key()),
		CompatibleWith: list(CompatibleWith.Key()),
	}
}

// mergeMetadata overlays the non-empty fields of override onto base
func mergeMetadata(base, override Metadata) Metadata {
	pick := func(b, o string) string {
		if o != "" {
			return o
		}
		return b
	}
	pickList := func(b, o []any) []any {
		if o != nil {
			return o
		}
		return b
	}

	base.ID = pick(base.ID, override.ID)
	base.Name = pick(base.Name, override.Name)
	base.DisplayName = pick(base.DisplayName, override.DisplayName)
	base.Description = pick(base.Description, override.Description)
	base.Category = pick(base.Category, override.Category)
	if override.Tags != nil {
		base.Tags = override.Tags
	}
	base.ConflictsWith = pickList(base.ConflictsWith, override.ConflictsWith)
	base.Requires = pickList(base.Requires, override.Requires)
	base.Recommends = pickList(base.Recommends, override.Recommends)
	base.Alternatives = pickList(base.Alternatives, override.Alternatives)
	base.Discourages = pickList(base.Discourages, override.Discourages)
	base.CompatibleWith = pickList(base.CompatibleWith, override.CompatibleWith)
	return base
}

// declaresCatalogFields reports whether tags or any relationship list is present
func (m Metadata) declaresCatalogFields() bool {
	if len(m.Tags) > 0 {
		return true
	}
	for _, list := range m.relationLists() {
		if len(list.([]any)) > 0 {
			return true
		}
	}
	return false
}

func (m Metadata) relationLists() map[RelationKind]any {
	lists := map[RelationKind]any{}
	add := func(kind RelationKind, v []any) {
		if v != nil {
			lists[kind] = v
		}
	}
	add(Conflicts, m.ConflictsWith)
	add(Requires, m.Requires)
	add(Recommends, m.Recommends)
	add(Alternatives, m.Alternatives)
	add(Discourages, m.Discourages)
	add(CompatibleWith, m.CompatibleWith)
	return lists
}

func cleanTags(tags []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// extractBodyContent removes YAML frontmatter and returns the body
func extractBodyContent(content string) string {
	if !strings.HasPrefix(content, "---") {
		return content
	}

	lines := strings.Split(content, "\n")
	frontmatterEnd := -1

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			frontmatterEnd = i
			break
		}
	}

	if frontmatterEnd == -1 {
		return content
	}

	return strings.TrimLeft(strings.Join(lines[frontmatterEnd+1:], "\n"), "\n")
}
