package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/vizier-dev/vizier/internal/config"
	"github.com/vizier-dev/vizier/internal/journal"
	"github.com/vizier-dev/vizier/internal/store"
	"github.com/vizier-dev/vizier/internal/tui"
)

var statusWatch bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the task tree and blocked-step lessons",
	Long: `Display the persisted task tree: every step with its status, plus the
lessons recorded for steps that exhausted their attempts.

With --watch, keep the view open and re-render whenever a running
engine saves progress.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "Re-render live as the tree changes")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	repoRoot, err := findGitRoot(cwd)
	if err != nil {
		return err
	}
	st := store.New(filepath.Join(stateDir(repoRoot), "tree.json"))

	if statusWatch {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		watch, err := tui.NewWatch(st, cfg.TUI.RefreshRate)
		if err != nil {
			return err
		}
		return watch.Run()
	}

	tree, err := st.Load()
	if errors.Is(err, store.ErrNotFound) {
		fmt.Println("No task tree. Run 'vizier run <task>' to start.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Print(tui.RenderTree(tree, ">"))

	lessons, err := loadLessons(repoRoot)
	if err != nil {
		return err
	}
	if len(lessons) > 0 {
		fmt.Println("\nLessons:")
		ids := make([]int, 0, len(lessons))
		for id := range lessons {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			fmt.Printf("  step %d: %s\n", id, lessons[id])
		}
	}
	return nil
}

func loadLessons(repoRoot string) (map[int]string, error) {
	path := journal.Path(repoRoot)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	jnl, err := journal.Open(path)
	if err != nil {
		return nil, err
	}
	defer jnl.Close()
	return jnl.Lessons()
}
