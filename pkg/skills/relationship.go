package skills

import (
	"fmt"
	"strings"
)

// RelationKind is one of the fixed relationship kinds a skill can declare
type RelationKind int

// Relationship kinds, in the order validators iterate them
const (
	Conflicts RelationKind = iota
	Requires
	Recommends
	Alternatives
	Discourages
	CompatibleWith
)

var relationKinds = []RelationKind{Conflicts, Requires, Recommends, Alternatives, Discourages, CompatibleWith}

// frontmatter / metadata.yaml keys
var relationKeys = map[RelationKind]string{
	Conflicts:      "conflictsWith",
	Requires:       "requires",
	Recommends:     "recommends",
	Alternatives:   "alternatives",
	Discourages:    "discourages",
	CompatibleWith: "compatibleWith",
}

// AllRelationKinds returns every relationship kind
func AllRelationKinds() []RelationKind {
	out := make([]RelationKind, len(relationKinds))
	copy(out, relationKinds)
	return out
}

// Key returns the metadata key used to declare this kind
func (k RelationKind) Key() string {
	if key, ok := relationKeys[k]; ok {
		return key
	}
	return fmt.Sprintf("RelationKind(%d)", int(k))
}

func (k RelationKind) String() string { return k.Key() }

// Relation is a single directed relationship entry
type Relation struct {
	Target SkillID `yaml:"id"`
	Reason string  `yaml:"reason,omitempty"`
}

// Relationships groups relation entries by kind
type Relationships map[RelationKind][]Relation

// Of returns the entries of the given kind
func (r Relationships) Of(kind RelationKind) []Relation {
	if r == nil {
		return nil
	}
	return r[kind]
}

// Targets returns the target IDs of the given kind
func (r Relationships) Targets(kind RelationKind) []SkillID {
	rels := r.Of(kind)
	ids := make([]SkillID, 0, len(rels))
	for _, rel := range rels {
		ids = append(ids, rel.Target)
	}
	return ids
}

// Find returns the entry of the given kind pointing at id
func (r Relationships) Find(kind RelationKind, id SkillID) (Relation, bool) {
	for _, rel := range r.Of(kind) {
		if rel.Target == id {
			return rel, true
		}
	}
	return Relation{}, false
}

// Has reports whether an entry of the given kind points at id
func (r Relationships) Has(kind RelationKind, id SkillID) bool {
	_, ok := r.Find(kind, id)
	return ok
}

// Add appends an entry unless the same target is already present for the kind
func (r Relationships) Add(kind RelationKind, rel Relation) {
	if r.Has(kind, rel.Target) {
		return
	}
	r[kind] = append(r[kind], rel)
}

// Empty reports whether no relationship of any kind is declared
func (r Relationships) Empty() bool {
	for _, rels := range r {
		if len(rels) > 0 {
			return false
		}
	}
	return true
}

// Clone returns a deep copy
func (r Relationships) Clone() Relationships {
	out := make(Relationships, len(r))
	for kind, rels := range r {
		out[kind] = append([]Relation(nil), rels...)
	}
	return out
}

// parseRelationList converts a decoded metadata value into relation entries.
// Entries may be plain IDs or mappings with "id" (or "skill") and optional "reason".
func parseRelationList(kind RelationKind, value any) ([]Relation, error) {
	if value == nil {
		return nil, nil
	}

	var items []any
	switch v := value.(type) {
	case []any:
		items = v
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	case string:
		items = []any{v}
	default:
		return nil, &ParseError{Input: fmt.Sprint(value), Reason: kind.Key() + " must be a list"}
	}

	var rels []Relation
	for _, item := range items {
		var rawID, reason string
		switch v := item.(type) {
		case string:
			rawID = v
		case map[string]any:
			rawID, reason = relationFields(func(key string) any { return v[key] })
		case map[any]any:
			rawID, reason = relationFields(func(key string) any { return v[key] })
		default:
			return nil, &ParseError{Input: fmt.Sprint(item), Reason: "unsupported " + kind.Key() + " entry"}
		}

		id, err := ParseSkillID(rawID)
		if err != nil {
			return nil, err
		}
		rels = append(rels, Relation{Target: id, Reason: reason})
	}
	return rels, nil
}

func relationFields(get func(string) any) (string, string) {
	id, _ := get("id").(string)
	if id == "" {
		id, _ = get("skill").(string)
	}
	reason, _ := get("reason").(string)
	return id, strings.TrimSpace(reason)
}
