package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vizier",
	Short: "Recursive task orchestration engine",
	Long: `Vizier takes one task, recursively decomposes it into a tree of steps,
and drives each atomic step through attempt, verification and merge inside
an isolated git worktree.

Progress lives in .vizier/tree.json in your repository, so an interrupted
run resumes exactly where it stopped. Completed work lands on the
vizier/root branch; merging it into your own branch is up to you.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// checkAgentCLI verifies the configured agent binary is reachable.
func checkAgentCLI(bin string) error {
	if _, err := exec.LookPath(bin); err != nil {
		return fmt.Errorf("agent CLI %q not found in PATH\n\n"+
			"Vizier drives agents through the Claude Code CLI.\n"+
			"Install it with:\n"+
			"  npm install -g @anthropic-ai/claude-code", bin)
	}
	return nil
}

// findGitRoot walks up from dir looking for a .git entry.
func findGitRoot(dir string) (string, error) {
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not inside a git repository")
		}
		dir = parent
	}
}

// stateDir returns the vizier state directory for a repository.
func stateDir(repoRoot string) string {
	return filepath.Join(repoRoot, ".vizier")
}
