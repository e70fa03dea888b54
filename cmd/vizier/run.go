package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vizier-dev/vizier/internal/api"
	"github.com/vizier-dev/vizier/internal/config"
	"github.com/vizier-dev/vizier/internal/gateway"
	"github.com/vizier-dev/vizier/internal/git"
	"github.com/vizier-dev/vizier/internal/journal"
	"github.com/vizier-dev/vizier/internal/namer"
	"github.com/vizier-dev/vizier/internal/orchestrator"
	"github.com/vizier-dev/vizier/internal/prompt"
	"github.com/vizier-dev/vizier/internal/store"
	"github.com/vizier-dev/vizier/internal/tmux"
	"github.com/vizier-dev/vizier/internal/worktree"
)

var (
	runStepID         int
	runReset          bool
	runDryRun         bool
	runTiersFile      string
	runKeepWorkspaces bool
	runAttempts       int
)

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Run a task to completion",
	Long: `Run a task through the decomposition engine.

The task is planned into a tree of steps. Atomic steps execute in isolated
git worktrees, each attempt is verified against the step's completion
criteria, and accepted work merges upward until the whole tree is done.

Progress persists across invocations: re-running the same task resumes it,
and already-done steps are skipped. A different task is rejected while an
incomplete tree exists, unless --reset archives and replaces it.

Examples:
  vizier run "add rate limiting to the API"
  vizier run --step 7 "add rate limiting to the API"   # one subtree only
  vizier run --reset "start something else instead"
  vizier run --dry-run "rehearse the plumbing"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

func init() {
	runCmd.Flags().IntVar(&runStepID, "step", 0, "Run only the subtree rooted at this step id")
	runCmd.Flags().BoolVar(&runReset, "reset", false, "Archive and replace a mismatched incomplete tree")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Exercise the engine with stub agents and no git mutations")
	runCmd.Flags().StringVar(&runTiersFile, "tiers", "", "YAML escalation ladder (overrides config)")
	runCmd.Flags().BoolVar(&runKeepWorkspaces, "keep-workspaces", false, "Leave merged workspaces on disk for inspection")
	runCmd.Flags().IntVar(&runAttempts, "attempts", 0, "Attempt budget per tier (overrides config)")
}

func runTask(cmd *cobra.Command, args []string) error {
	task := strings.Join(args, " ")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if runKeepWorkspaces {
		cfg.Run.KeepWorkspaces = true
	}
	if runAttempts > 0 {
		cfg.Run.AttemptsPerTier = runAttempts
	}
	ladderFile := cfg.Run.LadderFile
	if runTiersFile != "" {
		ladderFile = runTiersFile
	}
	ladder, err := config.LoadLadder(ladderFile)
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	var (
		repoRoot string
		runner   git.Runner
		gw       gateway.Gateway
		jnl      *journal.Journal
	)
	if runDryRun {
		// Dry runs rehearse the full state machine against throwaway state:
		// stub agents, no git mutations, nothing persisted in the repo.
		repoRoot, err = os.MkdirTemp("", "vizier-dryrun-*")
		if err != nil {
			return fmt.Errorf("create dry-run directory: %w", err)
		}
		defer os.RemoveAll(repoRoot)
		runner = git.NewNoopRunner(repoRoot)
		gw = &gateway.StubGateway{}
	} else {
		repoRoot, err = findGitRoot(cwd)
		if err != nil {
			return err
		}
		if err := checkAgentCLI(cfg.Agent.Bin); err != nil {
			return err
		}
		runner = git.NewRunner(repoRoot)
		gw, err = buildGateway(cfg, stateDir(repoRoot))
		if err != nil {
			return err
		}
		jnl, err = journal.Open(journal.Path(repoRoot))
		if err != nil {
			return err
		}
		defer jnl.Close()
	}

	baseBranch, err := runner.CurrentBranch(repoRoot)
	if err != nil {
		return err
	}

	state := stateDir(repoRoot)
	spaces := worktree.NewManager(runner, filepath.Join(state, "worktrees"), namer.New(filepath.Join(state, "names.txt")))

	var notifier tmux.Notifier = tmux.NoopNotifier{}
	if !runDryRun && tmux.Available() {
		notifier = tmux.NewPaneNotifier()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := orchestrator.New(orchestrator.Options{
		Store:           store.New(filepath.Join(state, "tree.json")),
		Gateway:         gw,
		Spaces:          spaces,
		Journal:         jnl,
		Prompts:         prompt.NewWriter(filepath.Join(state, "renders")),
		Notifier:        notifier,
		BaseBranch:      baseBranch,
		Ladder:          ladder,
		AttemptsPerTier: cfg.Run.AttemptsPerTier,
		KeepWorkspaces:  cfg.Run.KeepWorkspaces,
		Out:             os.Stdout,
	})

	result, err := engine.Run(ctx, orchestrator.Request{Task: task, Reset: runReset, StepID: runStepID})
	if err != nil {
		return err
	}

	switch {
	case result.AlreadyComplete:
		fmt.Println("Task is already complete; nothing to do.")
	case result.Completed:
		fmt.Printf("Task complete. The result is on branch %s — merge it into %s when ready.\n",
			worktree.BranchFor(0), baseBranch)
	case result.BlockedStepID != 0:
		return fmt.Errorf("blocked at step %d: %s\nInspect with 'vizier status'; adjust and re-run to continue",
			result.BlockedStepID, result.Lesson)
	default:
		fmt.Println("Requested step finished; the tree is not complete yet. Re-run without --step to continue.")
	}
	return nil
}

// buildGateway assembles the agent gateway per configuration: the worker is
// always the CLI; planner and verifier optionally run over the Messages API.
func buildGateway(cfg *config.Config, state string) (gateway.Gateway, error) {
	cli := gateway.NewCLIGateway(cfg.Agent.Bin, cfg.Agent.PlannerModel, cfg.Agent.VerifierModel,
		filepath.Join(state, "logs"))
	if !cfg.Agent.UseAPI {
		return cli, nil
	}

	client, err := api.NewClient(api.ClientConfig{
		Model:         cfg.Agent.PlannerModel,
		APIKey:        cfg.Agent.APIKey,
		UseAWSBedrock: cfg.Agent.UseAWSBedrock,
		AWSRegion:     cfg.Agent.AWSRegion,
		AWSProfile:    cfg.Agent.AWSProfile,
	})
	if err != nil {
		return nil, err
	}
	backend := api.NewBackend(client)
	return &gateway.Composite{Planner: backend, Worker: cli, Verifier: backend}, nil
}
