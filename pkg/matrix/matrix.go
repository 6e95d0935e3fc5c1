// Package matrix merges skills from all configured sources into one view
// and validates skill selections against their declared relationships.
package matrix

import (
	"fmt"
	"strings"

	"github.com/jingkaihe/skillmatrix/pkg/skills"
)

// SkillSet is the output of loading one source
type SkillSet struct {
	SourceName string
	SourceURL  string
	Skills     []*skills.Skill
}

// Matrix is the merged view of all skills and their aliases.
// Every alias resolves to a key present in Skills.
type Matrix struct {
	Skills  map[skills.SkillID]*skills.Skill
	Aliases map[string]skills.SkillID
	// Origins lists, in merge order, every source that defined the ID.
	// The last entry is the source of the effective record.
	Origins map[skills.SkillID][]string
}

func newMatrix() *Matrix {
	return &Matrix{
		Skills:  make(map[skills.SkillID]*skills.Skill),
		Aliases: make(map[string]skills.SkillID),
		Origins: make(map[skills.SkillID][]string),
	}
}

// BuildMatrix merges the primary set and the extra sets in the given order.
// Later sets override earlier ones when IDs collide, and later aliases shadow
// earlier ones. Relationship targets given as aliases are rewritten to IDs.
// The returned warnings describe shadowed aliases and unknown references.
func BuildMatrix(primary SkillSet, extras ...SkillSet) (*Matrix, []string) {
	m := newMatrix()
	var warnings []string

	var mergeOrder []*skills.Skill
	for _, set := range append([]SkillSet{primary}, extras...) {
		for _, s := range set.Skills {
			if s == nil {
				continue
			}
			rec := s.Clone()
			rec.SourceName = set.SourceName
			if set.SourceURL != "" {
				rec.SourceURL = set.SourceURL
			}
			m.Skills[rec.ID] = rec
			m.Origins[rec.ID] = append(m.Origins[rec.ID], set.SourceName)
			mergeOrder = append(mergeOrder, rec)
		}
	}

	for _, rec := range mergeOrder {
		if m.Skills[rec.ID] != rec {
			continue // overridden by a later source
		}
		warnings = append(warnings, m.registerAlias(rec)...)
	}

	for _, id := range m.IDs() {
		warnings = append(warnings, m.canonicalizeRelationships(m.Skills[id])...)
	}

	return m, warnings
}

func (m *Matrix) registerAlias(rec *skills.Skill) []string {
	alias := strings.TrimSpace(rec.DisplayName)
	if alias == "" || alias == rec.ID.String() {
		return nil
	}

	if aliasID, err := skills.ParseSkillID(alias); err == nil {
		if _, isID := m.Skills[aliasID]; isID {
			return []string{fmt.Sprintf("alias %q of skill %s matches another skill id, ignoring the alias", alias, rec.ID)}
		}
	}

	var warnings []string
	if prev, ok := m.Aliases[alias]; ok && prev != rec.ID {
		warnings = append(warnings, fmt.Sprintf("alias %q now resolves to %s (source %s), shadowing skill %s",
			alias, rec.ID, rec.SourceName, prev))
	}
	m.Aliases[alias] = rec.ID
	return warnings
}

func (m *Matrix) canonicalizeRelationships(rec *skills.Skill) []string {
	var warnings []string
	canonical := skills.Relationships{}

	for _, kind := range skills.AllRelationKinds() {
		for _, rel := range rec.Relationships.Of(kind) {
			if id, ok := m.Resolve(rel.Target.String()); ok {
				if id == rec.ID {
					continue
				}
				rel.Target = id
			} else {
				warnings = append(warnings, fmt.Sprintf("skill %s: %s references unknown skill %q, it will be skipped during validation",
					rec.ID, kind.Key(), rel.Target))
			}
			canonical.Add(kind, rel)
		}
	}

	rec.Relationships = canonical
	return warnings
}

// Resolve maps a skill ID or alias to a canonical skill ID
func (m *Matrix) Resolve(nameOrID string) (skills.SkillID, bool) {
	nameOrID = strings.TrimSpace(nameOrID)
	if id, err := skills.ParseSkillID(nameOrID); err == nil {
		if _, ok := m.Skills[id]; ok {
			return id, true
		}
	}
	if id, ok := m.Aliases[nameOrID]; ok {
		return id, true
	}
	return "", false
}

// Get returns the effective record of a skill
func (m *Matrix) Get(id skills.SkillID) (*skills.Skill, bool) {
	s, ok := m.Skills[id]
	return s, ok
}

// IDs returns all skill IDs sorted
func (m *Matrix) IDs() []skills.SkillID {
	ids := make([]skills.SkillID, 0, len(m.Skills))
	for id := range m.Skills {
		ids = append(ids, id)
	}
	return skills.SortIDs(ids)
}

// Len returns the number of skills
func (m *Matrix) Len() int { return len(m.Skills) }

// Shadowed reports whether a later source overrode an earlier definition of id
func (m *Matrix) Shadowed(id skills.SkillID) bool {
	return len(m.Origins[id]) > 1
}

// FromSource returns the sorted IDs whose effective record came from the named source
func (m *Matrix) FromSource(name string) []skills.SkillID {
	var ids []skills.SkillID
	for _, id := range m.IDs() {
		if m.Skills[id].SourceName == name {
			ids = append(ids, id)
		}
	}
	return ids
}
