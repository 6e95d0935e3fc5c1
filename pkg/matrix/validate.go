package matrix

import (
	"fmt"
	"strings"

	"github.com/jingkaihe/skillmatrix/pkg/skills"
)

// IssueKind classifies a validation finding
type IssueKind string

// Validation finding kinds
const (
	IssueUnknownSkill          IssueKind = "unknown-skill"
	IssueConflict              IssueKind = "conflict"
	IssueMissingRequirement    IssueKind = "missing-requirement"
	IssueMissingRecommendation IssueKind = "missing-recommendation"
	IssueDiscouraged           IssueKind = "discouraged"
)

// Issue is a single validation error or warning
type Issue struct {
	Kind    IssueKind
	Skills  []skills.SkillID
	Message string
}

func (i Issue) String() string { return i.Message }

// ValidationResult is the outcome of validating one selection.
// Valid is true iff Errors is empty; warnings never affect it.
type ValidationResult struct {
	Valid    bool
	Errors   []Issue
	Warnings []Issue
}

// ValidateSelection checks a selection against the relationships declared in
// the matrix. Checks are direct: requirements of requirements are not followed.
// Relationship targets unknown to the matrix are skipped.
func ValidateSelection(selected []skills.SkillID, m *Matrix) ValidationResult {
	var result ValidationResult

	chosen := make(map[skills.SkillID]bool)
	var known []*skills.Skill
	for _, id := range selected {
		if chosen[id] {
			continue
		}
		chosen[id] = true

		s, ok := m.Get(id)
		if !ok {
			result.Errors = append(result.Errors, Issue{
				Kind:    IssueUnknownSkill,
				Skills:  []skills.SkillID{id},
				Message: fmt.Sprintf("unknown skill %q", id),
			})
			continue
		}
		known = append(known, s)
	}

	for i, a := range known {
		for _, b := range known[i+1:] {
			if reason, ok := mutual(m, a, b, skills.Conflicts); ok {
				result.Errors = append(result.Errors, Issue{
					Kind:    IssueConflict,
					Skills:  []skills.SkillID{a.ID, b.ID},
					Message: withReason(fmt.Sprintf("%s conflicts with %s", a.ID, b.ID), reason),
				})
			}
			if reason, ok := mutual(m, a, b, skills.Discourages); ok {
				result.Warnings = append(result.Warnings, Issue{
					Kind:    IssueDiscouraged,
					Skills:  []skills.SkillID{a.ID, b.ID},
					Message: withReason(fmt.Sprintf("%s and %s are discouraged together", a.ID, b.ID), reason),
				})
			}
		}
	}

	for _, a := range known {
		for _, rel := range a.Relationships.Of(skills.Requires) {
			target, ok := m.Resolve(rel.Target.String())
			if !ok || chosen[target] {
				continue
			}
			result.Errors = append(result.Errors, Issue{
				Kind:    IssueMissingRequirement,
				Skills:  []skills.SkillID{a.ID, target},
				Message: withReason(fmt.Sprintf("%s requires %s, which is not selected", a.ID, target), rel.Reason),
			})
		}

		for _, rel := range a.Relationships.Of(skills.Recommends) {
			target, ok := m.Resolve(rel.Target.String())
			if !ok || chosen[target] {
				continue
			}
			result.Warnings = append(result.Warnings, Issue{
				Kind:    IssueMissingRecommendation,
				Skills:  []skills.SkillID{a.ID, target},
				Message: withReason(fmt.Sprintf("%s recommends %s", a.ID, target), rel.Reason),
			})
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// mutual reports whether either skill declares kind towards the other,
// returning the first non-empty reason
func mutual(m *Matrix, a, b *skills.Skill, kind skills.RelationKind) (string, bool) {
	relA, okA := declares(m, a, b.ID, kind)
	relB, okB := declares(m, b, a.ID, kind)
	switch {
	case okA && relA.Reason != "":
		return relA.Reason, true
	case okB && relB.Reason != "":
		return relB.Reason, true
	}
	return "", okA || okB
}

func declares(m *Matrix, from *skills.Skill, to skills.SkillID, kind skills.RelationKind) (skills.Relation, bool) {
	for _, rel := range from.Relationships.Of(kind) {
		if target, ok := m.Resolve(rel.Target.String()); ok && target == to {
			return rel, true
		}
	}
	return skills.Relation{}, false
}

func withReason(msg, reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return msg
	}
	return msg + ": " + reason
}
