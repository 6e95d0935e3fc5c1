package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillmatrix/pkg/catalog"
	"github.com/jingkaihe/skillmatrix/pkg/matrix"
	"github.com/jingkaihe/skillmatrix/pkg/presenter"
	"github.com/jingkaihe/skillmatrix/pkg/skills"
)

type ValidateConfig struct {
	JSON bool
}

func NewValidateConfig() *ValidateConfig {
	return &ValidateConfig{JSON: false}
}

var validateCmd = &cobra.Command{
	Use:   "validate <skill>...",
	Short: "Validate a skill selection",
	Long: `Check a selection of skills against the conflicts, requirements and
recommendations declared in the merged matrix. Skills can be given by ID or alias.
Exits with status 1 when the selection has errors; recommendations only warn.

Examples:
  skillmatrix validate web-framework-react web-state-zustand
  skillmatrix validate react zustand --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateSkillsCmd(cmd, args, getValidateConfigFromFlags(cmd))
	},
}

func init() {
	defaults := NewValidateConfig()
	validateCmd.Flags().Bool("json", defaults.JSON, "Output as JSON")
	rootCmd.AddCommand(validateCmd)
}

func getValidateConfigFromFlags(cmd *cobra.Command) *ValidateConfig {
	config := NewValidateConfig()
	if asJSON, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = asJSON
	}
	return config
}

type issueView struct {
	Kind    string   `json:"kind"`
	Skills  []string `json:"skills"`
	Message string   `json:"message"`
}

type validationView struct {
	Valid    bool        `json:"valid"`
	Selected []string    `json:"selected"`
	Errors   []issueView `json:"errors"`
	Warnings []issueView `json:"warnings"`
}

func validateSkillsCmd(cmd *cobra.Command, args []string, config *ValidateConfig) error {
	projectDir, err := getProjectDir()
	if err != nil {
		return err
	}
	builder, err := newBuilder(projectDir)
	if err != nil {
		return err
	}

	res, err := builder.Build(cmd.Context(), catalog.BuildOptions{IncludeLocal: true})
	if err != nil {
		return err
	}
	presenter.Warnings(res.Warnings)

	selected, result := validateSelection(res.Matrix, args)

	if config.JSON {
		if err := presenter.JSON(newValidationView(selected, result)); err != nil {
			return err
		}
	} else {
		printValidation(cmd.OutOrStdout(), selected, result)
	}

	if !result.Valid {
		return errSilent
	}
	return nil
}

// validateSelection resolves names to skill IDs and validates them.
// Names that resolve to nothing are reported as unknown skills.
func validateSelection(m *matrix.Matrix, names []string) ([]skills.SkillID, matrix.ValidationResult) {
	var (
		selected []skills.SkillID
		unknown  []matrix.Issue
	)
	for _, name := range names {
		id, ok := m.Resolve(name)
		if !ok {
			unknown = append(unknown, matrix.Issue{
				Kind:    matrix.IssueUnknownSkill,
				Message: fmt.Sprintf("unknown skill %q", name),
			})
			continue
		}
		selected = append(selected, id)
	}

	result := matrix.ValidateSelection(selected, m)
	result.Errors = append(unknown, result.Errors...)
	result.Valid = len(result.Errors) == 0
	return selected, result
}

func newValidationView(selected []skills.SkillID, result matrix.ValidationResult) validationView {
	toViews := func(issues []matrix.Issue) []issueView {
		views := make([]issueView, 0, len(issues))
		for _, issue := range issues {
			ids := make([]string, 0, len(issue.Skills))
			for _, id := range issue.Skills {
				ids = append(ids, id.String())
			}
			views = append(views, issueView{Kind: string(issue.Kind), Skills: ids, Message: issue.Message})
		}
		return views
	}

	view := validationView{
		Valid:    result.Valid,
		Selected: make([]string, 0, len(selected)),
		Errors:   toViews(result.Errors),
		Warnings: toViews(result.Warnings),
	}
	for _, id := range selected {
		view.Selected = append(view.Selected, id.String())
	}
	return view
}

// printValidation writes the issues of result; quiet mode keeps only the errors
func printValidation(w io.Writer, selected []skills.SkillID, result matrix.ValidationResult) {
	for _, issue := range result.Errors {
		fmt.Fprintf(w, "error: %s\n", issue)
	}
	if presenter.IsQuiet() {
		return
	}
	for _, issue := range result.Warnings {
		fmt.Fprintf(w, "warning: %s\n", issue)
	}
	if result.Valid {
		fmt.Fprintf(w, "%d skills selected, selection is valid\n", len(selected))
		return
	}
	fmt.Fprintf(w, "selection is invalid: %d errors, %d warnings\n", len(result.Errors), len(result.Warnings))
}
