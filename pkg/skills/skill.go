// Package skills defines skill records and loads them from a source tree.
// Skills are packaged as directories containing a SKILL.md file with
// YAML frontmatter describing the skill, optionally accompanied by a
// metadata.yaml sidecar carrying category, tags and relationships.
package skills

// ImportedCategory is assigned to skills that ship without catalog metadata,
// such as bare third-party repositories containing only SKILL.md files.
const ImportedCategory = "imported"

// Skill represents a loaded skill with its metadata
type Skill struct {
	ID            SkillID       // Canonical, globally unique key
	DisplayName   string        // Optional short alias, may collide across sources
	Description   string        // Brief description
	Category      string        // Catalog category, ImportedCategory for bare skills
	Tags          []string      // Free-form tags
	Relationships Relationships // Declared relationships to other skills
	SourceName    string        // Name of the source the record came from
	SourceURL     string        // URL of that source, empty for project-local skills
	ContentPath   string        // Full path to SKILL.md
	Directory     string        // Full path to the skill directory
	Content       string        // Body of SKILL.md (frontmatter stripped)
	Imported      bool          // True when synthesized without catalog metadata
}

// Metadata is the catalog metadata a skill can declare, either in SKILL.md
// frontmatter or in a metadata.yaml sidecar
type Metadata struct {
	ID             string   `yaml:"id,omitempty"`
	Name           string   `yaml:"name,omitempty"`
	DisplayName    string   `yaml:"displayName,omitempty"`
	Description    string   `yaml:"description,omitempty"`
	Category       string   `yaml:"category,omitempty"`
	Tags           []string `yaml:"tags,omitempty"`
	ConflictsWith  []any    `yaml:"conflictsWith,omitempty"`
	Requires       []any    `yaml:"requires,omitempty"`
	Recommends     []any    `yaml:"recommends,omitempty"`
	Alternatives   []any    `yaml:"alternatives,omitempty"`
	Discourages    []any    `yaml:"discourages,omitempty"`
	CompatibleWith []any    `yaml:"compatibleWith,omitempty"`
}

// Clone returns a copy of the skill safe to mutate
func (s *Skill) Clone() *Skill {
	c := *s
	c.Tags = append([]string(nil), s.Tags...)
	c.Relationships = s.Relationships.Clone()
	return &c
}
