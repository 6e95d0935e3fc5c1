package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillmatrix/pkg/archive"
	"github.com/jingkaihe/skillmatrix/pkg/presenter"
	"github.com/jingkaihe/skillmatrix/pkg/project"
	"github.com/jingkaihe/skillmatrix/pkg/skills"
	"github.com/jingkaihe/skillmatrix/pkg/sources"
	"github.com/jingkaihe/skillmatrix/pkg/wizard"
)

// saveProjectConfig persists the pin after local copies have been moved
var saveProjectConfig = project.Save

type SwitchConfig struct {
	Clear bool
}

func NewSwitchConfig() *SwitchConfig {
	return &SwitchConfig{Clear: false}
}

var switchCmd = &cobra.Command{
	Use:   "switch <skill> [source]",
	Short: "Change the source a skill is taken from",
	Long: `Pin a skill to a source. Switching away from "local" archives the project's
local copy of the skill; switching back to "local" restores it unchanged.

Examples:
  skillmatrix switch web-framework-react team
  skillmatrix switch web-framework-react local
  skillmatrix switch web-framework-react --clear`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		config := getSwitchConfigFromFlags(cmd)

		target := ""
		switch {
		case config.Clear && len(args) == 2:
			return errors.New("--clear does not take a source")
		case !config.Clear && len(args) != 2:
			return errors.New("a source is required unless --clear is given")
		case len(args) == 2:
			target = args[1]
		}

		projectDir, err := getProjectDir()
		if err != nil {
			return err
		}
		return switchSkillCmd(cmd.Context(), projectDir, args[0], target)
	},
}

func init() {
	defaults := NewSwitchConfig()
	switchCmd.Flags().Bool("clear", defaults.Clear, "Remove the pin so the skill follows the merged matrix")
	rootCmd.AddCommand(switchCmd)
}

func getSwitchConfigFromFlags(cmd *cobra.Command) *SwitchConfig {
	config := NewSwitchConfig()
	if clearPin, err := cmd.Flags().GetBool("clear"); err == nil {
		config.Clear = clearPin
	}
	return config
}

func switchSkillCmd(ctx context.Context, projectDir, rawID, target string) error {
	id, err := skills.ParseSkillID(rawID)
	if err != nil {
		return err
	}

	resolved, err := newRegistry().ResolveAllSources(projectDir)
	if err != nil {
		return err
	}
	if target != "" && !knownSource(resolved, target) {
		return errors.Errorf("unknown source %q", target)
	}

	cfg, err := project.Load(projectDir)
	if err != nil {
		return err
	}
	initial := resolved.Pins
	presenter.Warnings(resolved.Warnings)

	state := wizard.NewState(nil, initial).SetSource(id, target)
	changes := state.SourceChanges(initial)
	if len(changes) == 0 {
		presenter.Info(fmt.Sprintf("%s already uses %s", id, describeSource(target)))
		return nil
	}

	manager := archive.NewManager(projectDir)
	result, err := archive.ApplySourceChanges(ctx, manager, changes)
	if err != nil {
		return errors.Wrap(err, "failed to move local skill")
	}

	cfg.SetSkillSource(id, target)
	if err := saveProjectConfig(projectDir, cfg); err != nil {
		if _, revertErr := archive.ApplySourceChanges(ctx, manager, reverseMoves(result)); revertErr != nil {
			return errors.Wrapf(err, "failed to save project configuration and to move local skills back: %v", revertErr)
		}
		return err
	}

	for _, archived := range result.Archived {
		presenter.Info(fmt.Sprintf("Archived local copy of %s to %s", archived, manager.ArchivePath(archived)))
	}
	for _, restored := range result.Restored {
		presenter.Info(fmt.Sprintf("Restored local copy of %s", restored))
	}
	if target == project.LocalSource {
		warnLocalCopy(manager, id)
	}

	presenter.Success(fmt.Sprintf("%s now uses %s", id, describeSource(target)))
	return nil
}

// warnLocalCopy reports a local copy that is missing or cannot be loaded
func warnLocalCopy(manager *archive.Manager, id skills.SkillID) {
	if !manager.HasLocalSkill(id) {
		presenter.Warning(fmt.Sprintf("no local copy of %s exists yet, create it under %s", id, manager.LocalPath(id)))
		return
	}
	local, err := skills.NewLoader(skills.WithSourceName(project.LocalSource)).LoadSkill(manager.LocalPath(id))
	if err != nil {
		presenter.Warning(fmt.Sprintf("local copy of %s cannot be loaded: %v", id, err))
		return
	}
	if local.ID != id {
		presenter.Warning(fmt.Sprintf("local copy of %s declares id %s", id, local.ID))
	}
}

// reverseMoves returns the changes that undo the moves recorded in result
func reverseMoves(result *archive.ApplyResult) []archive.SourceChange {
	var out []archive.SourceChange
	for _, id := range result.Archived {
		out = append(out, archive.SourceChange{SkillID: id, To: project.LocalSource})
	}
	for _, id := range result.Restored {
		out = append(out, archive.SourceChange{SkillID: id, From: project.LocalSource})
	}
	return out
}

func knownSource(resolved *sources.Resolved, name string) bool {
	if name == project.LocalSource {
		return true
	}
	for _, entry := range resolved.All() {
		if entry.Name == name {
			return true
		}
	}
	return false
}

func describeSource(name string) string {
	if name == "" {
		return "the merged matrix"
	}
	return "source " + name
}
