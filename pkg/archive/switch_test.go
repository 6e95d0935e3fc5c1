package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillmatrix/pkg/project"
	"github.com/jingkaihe/skillmatrix/pkg/skills"
)

func TestDetectSourceChanges(t *testing.T) {
	prev := map[skills.SkillID]string{
		"web-framework-react": project.LocalSource,
		"api-hono":            "marketplace",
		"web-state-zustand":   "team",
	}
	next := map[skills.SkillID]string{
		"web-framework-react": "marketplace",
		"api-hono":            project.LocalSource,
		"web-state-zustand":   "team",
		"web-testing-vitest":  "team",
	}

	changes := DetectSourceChanges(prev, next)
	assert.Equal(t, []SourceChange{
		{SkillID: "api-hono", From: "marketplace", To: project.LocalSource},
		{SkillID: "web-framework-react", From: project.LocalSource, To: "marketplace"},
		{SkillID: "web-testing-vitest", From: "", To: "team"},
	}, changes)

	assert.True(t, changes[0].EntersLocal())
	assert.False(t, changes[0].LeavesLocal())
	assert.True(t, changes[1].LeavesLocal())
	assert.False(t, changes[2].EntersLocal() || changes[2].LeavesLocal())

	assert.Empty(t, DetectSourceChanges(prev, prev))
}

func TestApplySourceChangesMixedBatch(t *testing.T) {
	ctx := context.Background()
	m := NewManager(t.TempDir())

	writeLocalSkill(t, m.LocalPath("web-framework-react"), map[string]string{"SKILL.md": "local react"})
	writeLocalSkill(t, m.ArchivePath("api-hono"), map[string]string{"SKILL.md": "archived hono"})

	result, err := ApplySourceChanges(ctx, m, []SourceChange{
		{SkillID: "web-framework-react", From: project.LocalSource, To: "marketplace"},
		{SkillID: "api-hono", From: "marketplace", To: project.LocalSource},
		{SkillID: "web-testing-vitest", From: "marketplace", To: "team"},
	})
	require.NoError(t, err)

	assert.Equal(t, []skills.SkillID{"web-framework-react"}, result.Archived)
	assert.Equal(t, []skills.SkillID{"api-hono"}, result.Restored)
	assert.Equal(t, []skills.SkillID{"web-testing-vitest"}, result.Unchanged)

	assert.True(t, m.HasArchivedSkill("web-framework-react"))
	assert.False(t, m.HasLocalSkill("web-framework-react"))
	assert.True(t, m.HasLocalSkill("api-hono"))
	assert.False(t, m.HasArchivedSkill("api-hono"))
}

func TestApplySourceChangesAttemptsEveryChange(t *testing.T) {
	ctx := context.Background()
	m := NewManager(t.TempDir())

	// both copies exist, so archiving fails
	writeLocalSkill(t, m.LocalPath("broken"), map[string]string{"SKILL.md": "local"})
	writeLocalSkill(t, m.ArchivePath("broken"), map[string]string{"SKILL.md": "archived"})
	writeLocalSkill(t, m.LocalPath("fine"), map[string]string{"SKILL.md": "fine"})

	result, err := ApplySourceChanges(ctx, m, []SourceChange{
		{SkillID: "broken", From: project.LocalSource, To: "marketplace"},
		{SkillID: "fine", From: project.LocalSource, To: "marketplace"},
	})
	require.Error(t, err)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 1)
	assert.ErrorIs(t, merr.Errors[0], ErrArchiveExists)

	assert.Equal(t, []skills.SkillID{"fine"}, result.Archived)
	assert.True(t, m.HasArchivedSkill("fine"))
}

func TestApplySourceChangesWithoutCopies(t *testing.T) {
	ctx := context.Background()
	m := NewManager(t.TempDir())

	result, err := ApplySourceChanges(ctx, m, []SourceChange{
		{SkillID: "gone", From: project.LocalSource, To: "marketplace"},
		{SkillID: "new-local", From: "marketplace", To: project.LocalSource},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Archived)
	assert.Empty(t, result.Restored)
	assert.Equal(t, []skills.SkillID{"gone", "new-local"}, result.Unchanged)

	_, statErr := os.Stat(filepath.Join(m.SkillsDir(), "new-local"))
	assert.True(t, os.IsNotExist(statErr))
}
