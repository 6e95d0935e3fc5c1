package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillmatrix/pkg/archive"
	"github.com/jingkaihe/skillmatrix/pkg/presenter"
	"github.com/jingkaihe/skillmatrix/pkg/skills"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Manage archived local skills",
	Long:  `List, archive and restore project-local skills without changing their source assignment.`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived skills",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		manager, err := newArchiveManager()
		if err != nil {
			return err
		}

		ids, err := manager.ListArchived()
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			presenter.Info("No archived skills")
			return nil
		}

		rows := make([][]string, 0, len(ids))
		for _, id := range ids {
			state := "archived"
			if manager.HasLocalSkill(id) {
				state = "archived, local copy also present"
			}
			rows = append(rows, []string{id.String(), state, manager.ArchivePath(id)})
		}
		presenter.Table([]string{"id", "state", "path"}, rows)
		return nil
	},
}

var archiveAddCmd = &cobra.Command{
	Use:   "add <skill>...",
	Short: "Archive local skills",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := skills.ParseSkillIDs(args)
		if err != nil {
			return err
		}
		manager, err := newArchiveManager()
		if err != nil {
			return err
		}
		return archiveSkillsCmd(cmd.Context(), manager, ids)
	},
}

var archiveRestoreCmd = &cobra.Command{
	Use:   "restore <skill>...",
	Short: "Restore archived skills",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := skills.ParseSkillIDs(args)
		if err != nil {
			return err
		}
		manager, err := newArchiveManager()
		if err != nil {
			return err
		}
		return restoreSkillsCmd(cmd.Context(), manager, ids)
	},
}

func archiveSkillsCmd(ctx context.Context, manager *archive.Manager, ids []skills.SkillID) error {
	for _, id := range ids {
		if !manager.HasLocalSkill(id) {
			presenter.Info(fmt.Sprintf("No local copy of %s to archive", id))
			continue
		}
		if err := manager.ArchiveLocalSkill(ctx, id); err != nil {
			if errors.Is(err, archive.ErrArchiveExists) {
				return errors.Wrapf(err, "restore or remove the existing archive of %s first", id)
			}
			return err
		}
		presenter.Success(fmt.Sprintf("Archived %s", id))
	}
	return nil
}

func restoreSkillsCmd(ctx context.Context, manager *archive.Manager, ids []skills.SkillID) error {
	for _, id := range ids {
		if !manager.HasArchivedSkill(id) {
			presenter.Warning(fmt.Sprintf("No archived copy of %s", id))
			continue
		}
		if _, err := manager.RestoreArchivedSkill(ctx, id); err != nil {
			if errors.Is(err, archive.ErrLocalExists) {
				return errors.Wrapf(err, "archive or remove the local copy of %s first", id)
			}
			return err
		}
		presenter.Success(fmt.Sprintf("Restored %s", id))
	}
	return nil
}

func init() {
	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveAddCmd)
	archiveCmd.AddCommand(archiveRestoreCmd)
	rootCmd.AddCommand(archiveCmd)
}

func newArchiveManager() (*archive.Manager, error) {
	projectDir, err := getProjectDir()
	if err != nil {
		return nil, err
	}
	return archive.NewManager(projectDir), nil
}
