package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillmatrix/pkg/archive"
	"github.com/jingkaihe/skillmatrix/pkg/catalog"
	"github.com/jingkaihe/skillmatrix/pkg/matrix"
	"github.com/jingkaihe/skillmatrix/pkg/presenter"
	"github.com/jingkaihe/skillmatrix/pkg/project"
	"github.com/jingkaihe/skillmatrix/pkg/skills"
	"github.com/jingkaihe/skillmatrix/pkg/version"
)

func captureOutput(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	prev := presenter.SetDefault(presenter.NewWithOptions(&out, &errOut, presenter.ColorNever))
	t.Cleanup(func() { presenter.SetDefault(prev) })
	return &out, &errOut
}

func writeSkill(t *testing.T, dir, doc string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, skills.SkillFileName), []byte(doc), 0o644))
}

// setupProject creates a project whose primary source is a local directory
func setupProject(t *testing.T) string {
	t.Helper()
	t.Setenv("SKILLMATRIX_SOURCE", "")

	sourceDir := t.TempDir()
	writeSkill(t, filepath.Join(sourceDir, "web-framework-react"),
		"---\nname: web-framework-react\ndisplayName: react\ndescription: React\ncategory: web\nconflictsWith:\n  - id: web-framework-vue\n    reason: one framework per project\n---\n")
	writeSkill(t, filepath.Join(sourceDir, "web-framework-vue"),
		"---\nname: web-framework-vue\ndisplayName: vue\ndescription: Vue\ncategory: web\n---\n")
	writeSkill(t, filepath.Join(sourceDir, "web-state-zustand"),
		"---\nname: web-state-zustand\ndisplayName: zustand\ndescription: Zustand\ncategory: state\nrequires: [react]\n---\n")

	projectDir := t.TempDir()
	require.NoError(t, project.Save(projectDir, &project.Config{Source: sourceDir}))

	viper.Set("project", projectDir)
	viper.Set("cache_dir", t.TempDir())
	t.Cleanup(func() {
		viper.Set("project", ".")
		viper.Set("cache_dir", "")
	})
	return projectDir
}

func testMatrix(t *testing.T) *matrix.Matrix {
	t.Helper()
	setupProject(t)
	projectDir, err := getProjectDir()
	require.NoError(t, err)
	builder, err := newBuilder(projectDir)
	require.NoError(t, err)
	res, err := builder.Build(context.Background(), catalog.BuildOptions{IncludeLocal: true})
	require.NoError(t, err)
	return res.Matrix
}

func TestFilterSkills(t *testing.T) {
	m := testMatrix(t)

	tests := []struct {
		pattern  string
		expected []string
	}{
		{"", []string{"web-framework-react", "web-framework-vue", "web-state-zustand"}},
		{"web-framework-*", []string{"web-framework-react", "web-framework-vue"}},
		{"zustand", []string{"web-state-zustand"}},
		{"state", []string{"web-state-zustand"}},
		{"{react,vue}", []string{"web-framework-react", "web-framework-vue"}},
		{"nothing*", nil},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			views, err := filterSkills(m, tt.pattern)
			require.NoError(t, err)
			var ids []string
			for _, v := range views {
				ids = append(ids, v.ID)
			}
			assert.Equal(t, tt.expected, ids)
		})
	}

	_, err := filterSkills(m, "[")
	assert.Error(t, err)
}

func TestSkillView(t *testing.T) {
	m := testMatrix(t)

	views, err := filterSkills(m, "web-framework-react")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "react", views[0].Alias)
	assert.Equal(t, map[string][]string{"conflictsWith": {"web-framework-vue"}}, views[0].Relationships)
}

func TestValidateSelection(t *testing.T) {
	m := testMatrix(t)

	selected, result := validateSelection(m, []string{"zustand"})
	assert.Equal(t, []skills.SkillID{"web-state-zustand"}, selected)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, matrix.IssueMissingRequirement, result.Errors[0].Kind)

	_, result = validateSelection(m, []string{"zustand", "react"})
	assert.True(t, result.Valid)

	_, result = validateSelection(m, []string{"vue", "web-framework-react"})
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "web-framework-vue conflicts with web-framework-react: one framework per project", result.Errors[0].Message)

	_, result = validateSelection(m, []string{"react", "angular"})
	assert.False(t, result.Valid)
	assert.Equal(t, matrix.IssueUnknownSkill, result.Errors[0].Kind)
}

func TestValidationView(t *testing.T) {
	m := testMatrix(t)
	selected, result := validateSelection(m, []string{"zustand"})

	data, err := json.Marshal(newValidationView(selected, result))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"valid": false,
		"selected": ["web-state-zustand"],
		"errors": [{"kind": "missing-requirement", "skills": ["web-state-zustand", "web-framework-react"], "message": "web-state-zustand requires web-framework-react, which is not selected"}],
		"warnings": []
	}`, string(data))
}

func TestPrintValidationQuiet(t *testing.T) {
	captureOutput(t)
	m := testMatrix(t)
	selected, result := validateSelection(m, []string{"react", "vue"})

	var buf bytes.Buffer
	printValidation(&buf, selected, result)
	assert.Contains(t, buf.String(), "error: web-framework-react conflicts with web-framework-vue")
	assert.Contains(t, buf.String(), "selection is invalid: 1 errors")

	presenter.SetQuiet(true)
	buf.Reset()
	printValidation(&buf, selected, result)
	assert.Equal(t, "error: web-framework-react conflicts with web-framework-vue: one framework per project\n", buf.String())
}

func TestRefreshSources(t *testing.T) {
	out, _ := captureOutput(t)
	setupProject(t)

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	require.NoError(t, refreshSourcesCmd(cmd))
	assert.Contains(t, out.String(), "marketplace: 3 skills, 3 in the matrix")
	assert.Contains(t, out.String(), "Matrix has 3 skills")
}

func TestSwitchSkillArchivesAndRestores(t *testing.T) {
	out, _ := captureOutput(t)
	projectDir := setupProject(t)
	ctx := context.Background()
	manager := archive.NewManager(projectDir)

	writeSkill(t, manager.LocalPath("web-framework-react"), "---\nname: web-framework-react\ndescription: our react\ncategory: web\n---\n")
	before, err := os.ReadFile(filepath.Join(manager.LocalPath("web-framework-react"), skills.SkillFileName))
	require.NoError(t, err)

	require.NoError(t, switchSkillCmd(ctx, projectDir, "web-framework-react", project.LocalSource))
	cfg, err := project.Load(projectDir)
	require.NoError(t, err)
	assert.Equal(t, project.LocalSource, cfg.Skills["web-framework-react"])

	require.NoError(t, switchSkillCmd(ctx, projectDir, "web-framework-react", "marketplace"))
	assert.False(t, manager.HasLocalSkill("web-framework-react"))
	assert.True(t, manager.HasArchivedSkill("web-framework-react"))
	assert.Contains(t, out.String(), "Archived local copy of web-framework-react")

	require.NoError(t, switchSkillCmd(ctx, projectDir, "web-framework-react", project.LocalSource))
	assert.True(t, manager.HasLocalSkill("web-framework-react"))
	assert.False(t, manager.HasArchivedSkill("web-framework-react"))
	after, err := os.ReadFile(filepath.Join(manager.LocalPath("web-framework-react"), skills.SkillFileName))
	require.NoError(t, err)
	assert.Equal(t, before, after)

	require.NoError(t, switchSkillCmd(ctx, projectDir, "web-framework-react", ""))
	cfg, err = project.Load(projectDir)
	require.NoError(t, err)
	assert.NotContains(t, cfg.Skills, "web-framework-react")
}

func TestSwitchSkillUndoesMoveWhenSaveFails(t *testing.T) {
	captureOutput(t)
	projectDir := setupProject(t)
	ctx := context.Background()
	manager := archive.NewManager(projectDir)

	writeSkill(t, manager.LocalPath("web-framework-react"), "---\nname: web-framework-react\ndescription: our react\ncategory: web\n---\n")
	require.NoError(t, switchSkillCmd(ctx, projectDir, "web-framework-react", project.LocalSource))

	saveProjectConfig = func(string, *project.Config) error { return errors.New("disk full") }
	t.Cleanup(func() { saveProjectConfig = project.Save })

	err := switchSkillCmd(ctx, projectDir, "web-framework-react", "marketplace")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	assert.True(t, manager.HasLocalSkill("web-framework-react"))
	assert.False(t, manager.HasArchivedSkill("web-framework-react"))
	cfg, err := project.Load(projectDir)
	require.NoError(t, err)
	assert.Equal(t, project.LocalSource, cfg.Skills["web-framework-react"])
}

func TestSwitchSkillWarnsAboutLocalCopy(t *testing.T) {
	_, errOut := captureOutput(t)
	projectDir := setupProject(t)
	ctx := context.Background()
	manager := archive.NewManager(projectDir)

	require.NoError(t, switchSkillCmd(ctx, projectDir, "web-framework-vue", project.LocalSource))
	assert.Contains(t, errOut.String(), "no local copy of web-framework-vue exists yet")

	writeSkill(t, manager.LocalPath("web-framework-react"), "---\nname: web-framework-react\n---\n")
	require.NoError(t, switchSkillCmd(ctx, projectDir, "web-framework-react", project.LocalSource))
	assert.Contains(t, errOut.String(), "local copy of web-framework-react cannot be loaded")
}

func TestArchiveAndRestoreSkills(t *testing.T) {
	out, errOut := captureOutput(t)
	projectDir := setupProject(t)
	ctx := context.Background()
	manager := archive.NewManager(projectDir)

	writeSkill(t, manager.LocalPath("web-framework-react"), "---\nname: web-framework-react\ndescription: ours\n---\n")
	writeSkill(t, manager.LocalPath("web-framework-vue"), "---\nname: web-framework-vue\ndescription: ours\n---\n")

	ids := []skills.SkillID{"web-framework-react", "web-framework-vue", "api-hono"}
	require.NoError(t, archiveSkillsCmd(ctx, manager, ids))
	assert.True(t, manager.HasArchivedSkill("web-framework-react"))
	assert.True(t, manager.HasArchivedSkill("web-framework-vue"))
	assert.Contains(t, out.String(), "No local copy of api-hono to archive")

	writeSkill(t, manager.LocalPath("web-framework-vue"), "---\nname: web-framework-vue\ndescription: newer\n---\n")
	err := restoreSkillsCmd(ctx, manager, ids)
	require.Error(t, err)
	assert.ErrorIs(t, err, archive.ErrLocalExists)
	assert.False(t, manager.HasArchivedSkill("web-framework-react"))
	assert.True(t, manager.HasArchivedSkill("web-framework-vue"))

	require.NoError(t, restoreSkillsCmd(ctx, manager, []skills.SkillID{"api-hono"}))
	assert.Contains(t, errOut.String(), "No archived copy of api-hono")
}

func TestSwitchSkillRejectsUnknownSource(t *testing.T) {
	captureOutput(t)
	projectDir := setupProject(t)

	err := switchSkillCmd(context.Background(), projectDir, "web-framework-react", "nowhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown source "nowhere"`)

	err = switchSkillCmd(context.Background(), projectDir, "Not An ID", "marketplace")
	assert.Error(t, err)
}

func TestSourcesAddRemove(t *testing.T) {
	_, errOut := captureOutput(t)
	projectDir := setupProject(t)
	extraDir := t.TempDir()

	require.NoError(t, addSourceCmd("team", extraDir))
	assert.Error(t, addSourceCmd("team", extraDir))
	require.NoError(t, addSourceCmd("mirror", extraDir))
	assert.Contains(t, errOut.String(), "source team already points at "+extraDir)
	require.NoError(t, removeSourceCmd("mirror"))
	assert.Error(t, addSourceCmd("marketplace", extraDir))
	assert.Error(t, addSourceCmd("bad", "ftp://example.com/skills"))

	cfg, err := project.Load(projectDir)
	require.NoError(t, err)
	cfg.SetSkillSource("web-framework-react", "team")
	require.NoError(t, project.Save(projectDir, cfg))

	require.NoError(t, removeSourceCmd("team"))
	assert.Error(t, removeSourceCmd("team"))

	cfg, err = project.Load(projectDir)
	require.NoError(t, err)
	assert.Empty(t, cfg.ExtraSources)
	assert.NotContains(t, cfg.Skills, "web-framework-react")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version", "--json"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())

	var info version.Info
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Equal(t, version.Version, info.Version)
}
