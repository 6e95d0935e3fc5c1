package archive

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillmatrix/pkg/project"
	"github.com/jingkaihe/skillmatrix/pkg/skills"
)

func writeLocalSkill(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func snapshot(t *testing.T, dir string) map[string]string {
	t.Helper()
	files := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			files[rel+"/"] = ""
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[rel] = string(data)
		return nil
	})
	require.NoError(t, err)
	return files
}

var customizedSkill = map[string]string{
	"SKILL.md":             "---\nname: react\ndescription: local react conventions\ncategory: web\n---\n\n# React\n",
	"metadata.yaml":        "tags: [custom]\n",
	"examples/hooks.md":    "use hooks\n",
	"examples/nested/x.md": "\x00binary-ish\xff",
}

func TestArchiveRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	projectDir := t.TempDir()
	m := NewManager(projectDir)
	id := skills.SkillID("web-framework-react")

	local := m.LocalPath(id)
	assert.Equal(t, filepath.Join(project.SkillsDir(projectDir), "web-framework-react"), local)
	writeLocalSkill(t, local, customizedSkill)
	before := snapshot(t, local)

	require.NoError(t, m.ArchiveLocalSkill(ctx, id))
	assert.NoDirExists(t, local)
	assert.True(t, m.HasArchivedSkill(id))
	assert.Equal(t, before, snapshot(t, m.ArchivePath(id)))

	restored, err := m.RestoreArchivedSkill(ctx, id)
	require.NoError(t, err)
	assert.True(t, restored)
	assert.False(t, m.HasArchivedSkill(id))
	assert.Equal(t, before, snapshot(t, local))
}

func TestArchiveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewManager(t.TempDir())
	id := skills.SkillID("web-framework-react")

	writeLocalSkill(t, m.LocalPath(id), customizedSkill)
	require.NoError(t, m.ArchiveLocalSkill(ctx, id))
	archived := snapshot(t, m.ArchivePath(id))

	require.NoError(t, m.ArchiveLocalSkill(ctx, id))
	assert.Equal(t, archived, snapshot(t, m.ArchivePath(id)))
}

func TestArchiveWithoutLocalCopy(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.ArchiveLocalSkill(context.Background(), "missing"))
	assert.NoDirExists(t, m.ArchiveDir())
}

func TestArchiveRefusesToOverwrite(t *testing.T) {
	ctx := context.Background()
	m := NewManager(t.TempDir())
	id := skills.SkillID("api-hono")

	writeLocalSkill(t, m.ArchivePath(id), map[string]string{"SKILL.md": "archived"})
	writeLocalSkill(t, m.LocalPath(id), map[string]string{"SKILL.md": "local"})

	err := m.ArchiveLocalSkill(ctx, id)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrArchiveExists))
	assert.Equal(t, map[string]string{"./": "", "SKILL.md": "archived"}, snapshot(t, m.ArchivePath(id)))
	assert.Equal(t, map[string]string{"./": "", "SKILL.md": "local"}, snapshot(t, m.LocalPath(id)))
}

func TestRestoreWithoutArchive(t *testing.T) {
	ctx := context.Background()
	m := NewManager(t.TempDir())
	id := skills.SkillID("api-hono")

	writeLocalSkill(t, m.LocalPath(id), map[string]string{"SKILL.md": "local"})
	before := snapshot(t, m.LocalPath(id))

	restored, err := m.RestoreArchivedSkill(ctx, id)
	require.NoError(t, err)
	assert.False(t, restored)
	assert.Equal(t, before, snapshot(t, m.LocalPath(id)))
}

func TestRestoreRefusesToOverwrite(t *testing.T) {
	ctx := context.Background()
	m := NewManager(t.TempDir())
	id := skills.SkillID("api-hono")

	writeLocalSkill(t, m.ArchivePath(id), map[string]string{"SKILL.md": "archived"})
	writeLocalSkill(t, m.LocalPath(id), map[string]string{"SKILL.md": "local"})

	restored, err := m.RestoreArchivedSkill(ctx, id)
	require.Error(t, err)
	assert.False(t, restored)
	assert.True(t, errors.Is(err, ErrLocalExists))
	assert.True(t, m.HasArchivedSkill(id))
}

func TestListArchived(t *testing.T) {
	m := NewManager(t.TempDir())

	ids, err := m.ListArchived()
	require.NoError(t, err)
	assert.Empty(t, ids)

	writeLocalSkill(t, m.ArchivePath("b-skill"), map[string]string{"SKILL.md": "b"})
	writeLocalSkill(t, m.ArchivePath("a-skill"), map[string]string{"SKILL.md": "a"})
	writeLocalSkill(t, m.ArchiveDir(), map[string]string{"README.txt": "not a skill"})
	require.NoError(t, os.MkdirAll(filepath.Join(m.ArchiveDir(), "Not Valid"), 0o755))

	ids, err = m.ListArchived()
	require.NoError(t, err)
	assert.Equal(t, []skills.SkillID{"a-skill", "b-skill"}, ids)
}

func TestConcurrentArchiveAndRestore(t *testing.T) {
	ctx := context.Background()
	m := NewManager(t.TempDir())
	id := skills.SkillID("web-framework-react")
	writeLocalSkill(t, m.LocalPath(id), customizedSkill)
	before := snapshot(t, m.LocalPath(id))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = m.ArchiveLocalSkill(ctx, id)
		}()
		go func() {
			defer wg.Done()
			_, _ = m.RestoreArchivedSkill(ctx, id)
		}()
	}
	wg.Wait()

	// exactly one of the two states holds, with content intact
	if m.HasLocalSkill(id) {
		assert.False(t, m.HasArchivedSkill(id))
		assert.Equal(t, before, snapshot(t, m.LocalPath(id)))
	} else {
		require.True(t, m.HasArchivedSkill(id))
		assert.Equal(t, before, snapshot(t, m.ArchivePath(id)))
	}
	assert.Empty(t, m.locks.locks)
}

func TestCopyDirPreservesContent(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src")
	dst := filepath.Join(t.TempDir(), "dst")
	writeLocalSkill(t, src, customizedSkill)

	require.NoError(t, copyDir(src, dst))
	assert.Equal(t, snapshot(t, src), snapshot(t, dst))
}
