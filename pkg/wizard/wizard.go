// Package wizard models the skill selection flow as an immutable state.
// Every transition returns a new State and records what changed, so front
// ends can offer back and undo without bookkeeping of their own.
package wizard

import (
	"github.com/jingkaihe/skillmatrix/pkg/archive"
	"github.com/jingkaihe/skillmatrix/pkg/skills"
)

// Step is a stage of the selection flow
type Step int

// Selection flow stages in order
const (
	StepSelectSkills Step = iota
	StepAssignSources
	StepReview
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepSelectSkills:
		return "select-skills"
	case StepAssignSources:
		return "assign-sources"
	case StepReview:
		return "review"
	case StepDone:
		return "done"
	}
	return "unknown"
}

// Action names a recorded transition
type Action string

// Recorded transitions
const (
	ActionSelect   Action = "select"
	ActionDeselect Action = "deselect"
	ActionSource   Action = "source"
	ActionNext     Action = "next"
	ActionBack     Action = "back"
)

// HistoryEntry records one transition
type HistoryEntry struct {
	Action  Action
	Step    Step
	SkillID skills.SkillID
	From    string
	To      string
}

// State is a snapshot of the selection flow. Treat it as a value: transitions
// never modify the receiver.
type State struct {
	Step     Step
	Selected []skills.SkillID
	Sources  map[skills.SkillID]string
	History  []HistoryEntry
}

// NewState starts a flow from an existing selection and source assignment
func NewState(selected []skills.SkillID, sourceAssignments map[skills.SkillID]string) State {
	s := State{
		Step:    StepSelectSkills,
		Sources: make(map[skills.SkillID]string, len(sourceAssignments)),
	}
	seen := make(map[skills.SkillID]bool)
	for _, id := range selected {
		if !seen[id] {
			seen[id] = true
			s.Selected = append(s.Selected, id)
		}
	}
	for id, src := range sourceAssignments {
		if src != "" {
			s.Sources[id] = src
		}
	}
	return s
}

func (s State) clone() State {
	out := State{
		Step:     s.Step,
		Selected: append([]skills.SkillID(nil), s.Selected...),
		Sources:  make(map[skills.SkillID]string, len(s.Sources)),
		History:  append([]HistoryEntry(nil), s.History...),
	}
	for id, src := range s.Sources {
		out.Sources[id] = src
	}
	return out
}

// IsSelected reports whether id is part of the selection
func (s State) IsSelected(id skills.SkillID) bool {
	for _, sel := range s.Selected {
		if sel == id {
			return true
		}
	}
	return false
}

// ToggleSkill adds id to the selection or removes it if already selected
func (s State) ToggleSkill(id skills.SkillID) State {
	next := s.clone()
	entry := HistoryEntry{Step: s.Step, SkillID: id}

	if s.IsSelected(id) {
		entry.Action = ActionDeselect
		next.Selected = next.Selected[:0]
		for _, sel := range s.Selected {
			if sel != id {
				next.Selected = append(next.Selected, sel)
			}
		}
	} else {
		entry.Action = ActionSelect
		next.Selected = append(next.Selected, id)
	}

	next.History = append(next.History, entry)
	return next
}

// SetSource assigns a source to a skill; an empty source clears the assignment.
// Setting the current value leaves the state unchanged.
func (s State) SetSource(id skills.SkillID, source string) State {
	if s.Sources[id] == source {
		return s
	}

	next := s.clone()
	if source == "" {
		delete(next.Sources, id)
	} else {
		next.Sources[id] = source
	}
	next.History = append(next.History, HistoryEntry{
		Action:  ActionSource,
		Step:    s.Step,
		SkillID: id,
		From:    s.Sources[id],
		To:      source,
	})
	return next
}

// Next advances to the following step; StepDone is terminal
func (s State) Next() State {
	if s.Step == StepDone {
		return s
	}
	next := s.clone()
	next.Step = s.Step + 1
	next.History = append(next.History, HistoryEntry{Action: ActionNext, Step: next.Step})
	return next
}

// Back returns to the previous step; StepSelectSkills is the first
func (s State) Back() State {
	if s.Step == StepSelectSkills {
		return s
	}
	next := s.clone()
	next.Step = s.Step - 1
	next.History = append(next.History, HistoryEntry{Action: ActionBack, Step: next.Step})
	return next
}

// SourceChanges lists the source assignments that differ from initial
func (s State) SourceChanges(initial map[skills.SkillID]string) []archive.SourceChange {
	return archive.DetectSourceChanges(initial, s.Sources)
}
