package main

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillmatrix/pkg/catalog"
	"github.com/jingkaihe/skillmatrix/pkg/matrix"
	"github.com/jingkaihe/skillmatrix/pkg/presenter"
	"github.com/jingkaihe/skillmatrix/pkg/skills"
)

type ListConfig struct {
	Filter  string
	Refresh bool
	JSON    bool
	NoLocal bool
}

func NewListConfig() *ListConfig {
	return &ListConfig{}
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the merged skills matrix",
	Long: `List every skill in the merged matrix along with the source it comes from.

Examples:
  skillmatrix list
  skillmatrix list --filter 'web-*'
  skillmatrix list --refresh --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return listSkillsCmd(cmd, getListConfigFromFlags(cmd))
	},
}

func init() {
	defaults := NewListConfig()
	listCmd.Flags().StringP("filter", "f", defaults.Filter, "Glob matched against skill IDs, aliases and categories")
	listCmd.Flags().Bool("refresh", defaults.Refresh, "Re-fetch remote sources before listing")
	listCmd.Flags().Bool("json", defaults.JSON, "Output as JSON")
	listCmd.Flags().Bool("no-local", defaults.NoLocal, "Leave out project-local skills")
	rootCmd.AddCommand(listCmd)
}

func getListConfigFromFlags(cmd *cobra.Command) *ListConfig {
	config := NewListConfig()
	if filter, err := cmd.Flags().GetString("filter"); err == nil {
		config.Filter = filter
	}
	if refresh, err := cmd.Flags().GetBool("refresh"); err == nil {
		config.Refresh = refresh
	}
	if asJSON, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = asJSON
	}
	if noLocal, err := cmd.Flags().GetBool("no-local"); err == nil {
		config.NoLocal = noLocal
	}
	return config
}

type skillView struct {
	ID            string              `json:"id"`
	Alias         string              `json:"alias,omitempty"`
	Description   string              `json:"description"`
	Category      string              `json:"category"`
	Tags          []string            `json:"tags,omitempty"`
	Source        string              `json:"source"`
	Shadows       []string            `json:"shadows,omitempty"`
	Imported      bool                `json:"imported,omitempty"`
	Relationships map[string][]string `json:"relationships,omitempty"`
}

func listSkillsCmd(cmd *cobra.Command, config *ListConfig) error {
	projectDir, err := getProjectDir()
	if err != nil {
		return err
	}
	builder, err := newBuilder(projectDir)
	if err != nil {
		return err
	}

	res, err := builder.Build(cmd.Context(), catalog.BuildOptions{
		ForceRefresh: config.Refresh,
		IncludeLocal: !config.NoLocal,
	})
	if err != nil {
		return err
	}
	presenter.Warnings(res.Warnings)

	views, err := filterSkills(res.Matrix, config.Filter)
	if err != nil {
		return err
	}

	if config.JSON {
		return presenter.JSON(views)
	}

	if len(views) == 0 {
		presenter.Info("No skills found")
		return nil
	}

	rows := make([][]string, 0, len(views))
	for _, v := range views {
		source := v.Source
		if len(v.Shadows) > 0 {
			source += " (overrides " + strings.Join(v.Shadows, ", ") + ")"
		}
		rows = append(rows, []string{v.ID, v.Alias, v.Category, source, v.Description})
	}
	presenter.Table([]string{"id", "alias", "category", "source", "description"}, rows)
	return nil
}

// filterSkills returns the matrix entries whose ID, alias or category match pattern
func filterSkills(m *matrix.Matrix, pattern string) ([]skillView, error) {
	var g glob.Glob
	if pattern != "" {
		compiled, err := glob.Compile(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid filter %q", pattern)
		}
		g = compiled
	}

	var views []skillView
	for _, id := range m.IDs() {
		s := m.Skills[id]
		alias := ""
		if target, ok := m.Aliases[s.DisplayName]; ok && target == id {
			alias = s.DisplayName
		}

		if g != nil && !g.Match(id.String()) && (alias == "" || !g.Match(alias)) && !g.Match(s.Category) {
			continue
		}
		views = append(views, newSkillView(m, s, alias))
	}
	return views, nil
}

func newSkillView(m *matrix.Matrix, s *skills.Skill, alias string) skillView {
	view := skillView{
		ID:          s.ID.String(),
		Alias:       alias,
		Description: s.Description,
		Category:    s.Category,
		Tags:        s.Tags,
		Source:      s.SourceName,
		Imported:    s.Imported,
	}

	if m.Shadowed(s.ID) {
		origins := m.Origins[s.ID]
		view.Shadows = append([]string(nil), origins[:len(origins)-1]...)
	}
	if s.Relationships.Empty() {
		return view
	}

	for _, kind := range skills.AllRelationKinds() {
		targets := s.Relationships.Targets(kind)
		if len(targets) == 0 {
			continue
		}
		if view.Relationships == nil {
			view.Relationships = make(map[string][]string)
		}
		for _, target := range targets {
			view.Relationships[kind.Key()] = append(view.Relationships[kind.Key()], target.String())
		}
	}
	return view
}
