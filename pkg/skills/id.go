package skills

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const maxSkillIDLength = 128

var skillIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// SkillID is the canonical, globally unique key of a skill.
// Values are only produced by ParseSkillID, never by casting raw input.
type SkillID string

// String returns the ID as a plain string
func (id SkillID) String() string { return string(id) }

// ParseError reports a value rejected at a data-entry boundary
// (config file, frontmatter, CLI argument).
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid value %q: %s", e.Input, e.Reason)
}

// ParseSkillID validates raw input and returns it as a SkillID.
// Surrounding whitespace is ignored; everything else must already be canonical.
func ParseSkillID(raw string) (SkillID, error) {
	s := strings.TrimSpace(raw)
	switch {
	case s == "":
		return "", &ParseError{Input: raw, Reason: "skill id cannot be empty"}
	case len(s) > maxSkillIDLength:
		return "", &ParseError{Input: raw, Reason: fmt.Sprintf("skill id exceeds %d characters", maxSkillIDLength)}
	case !skillIDPattern.MatchString(s):
		return "", &ParseError{Input: raw, Reason: "skill id must be lowercase alphanumerics, '.', '_' or '-', starting with a letter or digit"}
	}
	return SkillID(s), nil
}

// ParseSkillIDs parses every entry, stopping at the first invalid one
func ParseSkillIDs(raw []string) ([]SkillID, error) {
	ids := make([]SkillID, 0, len(raw))
	for _, r := range raw {
		id, err := ParseSkillID(r)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SortIDs sorts ids in place lexically and returns them
func SortIDs(ids []SkillID) []SkillID {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
