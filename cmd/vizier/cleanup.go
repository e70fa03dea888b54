package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vizier-dev/vizier/internal/git"
	"github.com/vizier-dev/vizier/internal/namer"
	"github.com/vizier-dev/vizier/internal/worktree"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove vizier worktrees and branches",
	Long: `Remove every worktree and branch vizier created in this repository,
including the root workspace. The tree document and journal are kept, so a
later run replans from the persisted state.

Use this after an interrupted run, or once the result branch has been
merged and the workspaces are no longer needed.`,
	RunE: runCleanupCmd,
}

func runCleanupCmd(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	repoRoot, err := findGitRoot(cwd)
	if err != nil {
		return err
	}

	state := stateDir(repoRoot)
	spaces := worktree.NewManager(git.NewRunner(repoRoot),
		filepath.Join(state, "worktrees"), namer.New(filepath.Join(state, "names.txt")))

	removed, err := spaces.DestroyAll()
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d workspace(s).\n", removed)
	return nil
}
