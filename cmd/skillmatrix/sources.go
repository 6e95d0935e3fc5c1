package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillmatrix/pkg/catalog"
	"github.com/jingkaihe/skillmatrix/pkg/presenter"
	"github.com/jingkaihe/skillmatrix/pkg/project"
	"github.com/jingkaihe/skillmatrix/pkg/skills"
	"github.com/jingkaihe/skillmatrix/pkg/sources"
)

type SourcesListConfig struct {
	JSON bool
}

func NewSourcesListConfig() *SourcesListConfig {
	return &SourcesListConfig{JSON: false}
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage skill sources",
	Long:  `List, add, remove and refresh the sources skills are loaded from.`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured sources",
	Long: `List the primary source and the extra sources of the project in merge order.
Later sources override earlier ones when they define the same skill.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return listSourcesCmd(getSourcesListConfigFromFlags(cmd))
	},
}

var sourcesAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Add an extra source",
	Long: `Add an extra source to the project configuration. The url can be a github:owner/repo
shorthand (optionally with @ref), a git URL or a local directory.

Examples:
  skillmatrix sources add team github:acme/skills
  skillmatrix sources add team https://git.example.com/acme/skills.git#v1
  skillmatrix sources add scratch ../my-skills`,
	Args: cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		return addSourceCmd(args[0], args[1])
	},
}

var sourcesRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove an extra source",
	Long:  `Remove an extra source and any skill assignments pointing at it.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return removeSourceCmd(args[0])
	},
}

var sourcesRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-fetch every remote source",
	Long:  `Re-fetch every remote source, replacing cached copies. A source that fails to refresh keeps its previous cached copy.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return refreshSourcesCmd(cmd)
	},
}

func init() {
	listDefaults := NewSourcesListConfig()
	sourcesListCmd.Flags().Bool("json", listDefaults.JSON, "Output as JSON")

	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(sourcesAddCmd)
	sourcesCmd.AddCommand(sourcesRemoveCmd)
	sourcesCmd.AddCommand(sourcesRefreshCmd)
	rootCmd.AddCommand(sourcesCmd)
}

func getSourcesListConfigFromFlags(cmd *cobra.Command) *SourcesListConfig {
	config := NewSourcesListConfig()
	if asJSON, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = asJSON
	}
	return config
}

type sourceView struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Origin string `json:"origin,omitempty"`
	Cached bool   `json:"cached"`
	Local  bool   `json:"local"`
}

func listSourcesCmd(config *SourcesListConfig) error {
	projectDir, err := getProjectDir()
	if err != nil {
		return err
	}

	resolved, err := newRegistry().ResolveAllSources(projectDir)
	if err != nil {
		return err
	}
	fetcher, err := newFetcher()
	if err != nil {
		return err
	}

	var views []sourceView
	for i, entry := range resolved.All() {
		view := sourceView{Name: entry.Name, URL: entry.URL}
		if i == 0 {
			view.Origin = string(resolved.PrimaryOrigin)
		}
		if loc, err := sources.ParseLocation(entry.URL, projectDir); err == nil {
			view.Local = loc.Local
			if !loc.Local {
				_, statErr := os.Stat(fetcher.CachePath(loc))
				view.Cached = statErr == nil
			}
		}
		views = append(views, view)
	}

	presenter.Warnings(resolved.Warnings)

	if config.JSON {
		return presenter.JSON(views)
	}

	rows := make([][]string, 0, len(views))
	for _, v := range views {
		state := "not cached"
		switch {
		case v.Local:
			state = "local"
		case v.Cached:
			state = "cached"
		}
		origin := v.Origin
		if origin == "" {
			origin = "project"
		}
		rows = append(rows, []string{v.Name, v.URL, origin, state})
	}
	presenter.Table([]string{"name", "url", "origin", "cache"}, rows)
	presenter.Info(fmt.Sprintf("Cache directory: %s", fetcher.CacheDir()))
	return nil
}

func addSourceCmd(name, url string) error {
	projectDir, err := getProjectDir()
	if err != nil {
		return err
	}

	entry, err := sources.ValidateExtraSource(project.RawSource{Name: name, URL: url}, projectDir)
	if err != nil {
		return errors.Wrap(err, "invalid source")
	}

	cfg, err := project.Load(projectDir)
	if err != nil {
		return err
	}
	if err := cfg.AddExtraSource(entry.Name, url); err != nil {
		return err
	}
	for _, existing := range cfg.ExtraSources {
		if existing.Name != entry.Name && sources.NormalizeURL(existing.URL) == entry.URL {
			presenter.Warning(fmt.Sprintf("source %s already points at %s", existing.Name, entry.URL))
		}
	}
	if err := project.Save(projectDir, cfg); err != nil {
		return err
	}

	presenter.Success(fmt.Sprintf("Added source %s (%s)", entry.Name, entry.URL))
	return nil
}

func removeSourceCmd(name string) error {
	projectDir, err := getProjectDir()
	if err != nil {
		return err
	}

	cfg, err := project.Load(projectDir)
	if err != nil {
		return err
	}
	if !cfg.RemoveExtraSource(name) {
		return errors.Errorf("source %q is not configured", name)
	}

	assignments, _ := cfg.SkillSources()
	for _, id := range sortedAssignmentIDs(assignments) {
		if assignments[id] == name {
			cfg.SetSkillSource(id, "")
			presenter.Warning(fmt.Sprintf("skill %s was assigned to %s, it now follows the merged matrix", id, name))
		}
	}

	if err := project.Save(projectDir, cfg); err != nil {
		return err
	}

	presenter.Success(fmt.Sprintf("Removed source %s", name))
	return nil
}

func sortedAssignmentIDs(assignments map[skills.SkillID]string) []skills.SkillID {
	ids := make([]skills.SkillID, 0, len(assignments))
	for id := range assignments {
		ids = append(ids, id)
	}
	return skills.SortIDs(ids)
}

func refreshSourcesCmd(cmd *cobra.Command) error {
	projectDir, err := getProjectDir()
	if err != nil {
		return err
	}
	builder, err := newBuilder(projectDir)
	if err != nil {
		return err
	}

	res, err := builder.Build(cmd.Context(), catalog.BuildOptions{ForceRefresh: true})
	if err != nil {
		return err
	}

	presenter.Section("Sources")
	for _, status := range append([]catalog.SourceStatus{res.Primary}, res.Extras...) {
		if status.Error != "" {
			presenter.Warning(fmt.Sprintf("%s: %s", status.Name, status.Error))
			continue
		}
		effective := len(res.Matrix.FromSource(status.Name))
		presenter.Success(fmt.Sprintf("%s: %d skills, %d in the matrix", status.Name, status.Skills, effective))
	}
	presenter.Separator()
	presenter.Info(fmt.Sprintf("Matrix has %d skills", res.Matrix.Len()))
	return nil
}
