// Package orchestrator ties the store, scheduler, isolation manager and agent
// gateway into the step state machine: ensure a step is planned, run the
// atomic attempt loop or recurse into children in dependency order, merge
// completed work upward, and persist every transition.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/vizier-dev/vizier/internal/gateway"
	"github.com/vizier-dev/vizier/internal/graph"
	"github.com/vizier-dev/vizier/internal/journal"
	"github.com/vizier-dev/vizier/internal/prompt"
	"github.com/vizier-dev/vizier/internal/store"
	"github.com/vizier-dev/vizier/internal/tmux"
	"github.com/vizier-dev/vizier/internal/worktree"
	"github.com/vizier-dev/vizier/pkg/models"
)

// rootWorkspaceKey is the isolation manager key for the root step's
// workspace, so the root branch is vizier/root regardless of the root's id.
const rootWorkspaceKey = 0

// plannerRetries is how many times a failed planner invocation is retried
// before the run aborts. The planner has no escalation ladder of its own.
const plannerRetries = 2

// Options configures an orchestrator.
type Options struct {
	Store   *store.Store
	Gateway gateway.Gateway
	Spaces  *worktree.Manager
	// Journal is optional; a nil journal disables attempt recording.
	Journal *journal.Journal
	// Prompts renders tree projections for agent calls.
	Prompts *prompt.Writer
	// Notifier is optional; nil falls back to the no-op notifier.
	Notifier tmux.Notifier
	// BaseBranch is the branch the root workspace forks from.
	BaseBranch string
	// Ladder is the worker escalation ladder, cheapest tier first.
	Ladder []models.Tier
	// AttemptsPerTier is the attempt budget at each rung.
	AttemptsPerTier int
	// KeepWorkspaces leaves merged workspaces on disk.
	KeepWorkspaces bool
	// Out receives progress lines; nil discards them.
	Out io.Writer
}

// Orchestrator drives one task tree to completion.
type Orchestrator struct {
	store    *store.Store
	gw       gateway.Gateway
	spaces   *worktree.Manager
	journal  *journal.Journal
	prompts  *prompt.Writer
	notifier tmux.Notifier
	base     string
	ladder   []models.Tier
	attempts int
	keep     bool
	out      io.Writer

	tree *models.Tree
}

// New creates an orchestrator. Ladder and attempt budget fall back to
// defaults when unset.
func New(opts Options) *Orchestrator {
	ladder := opts.Ladder
	if len(ladder) == 0 {
		ladder = models.DefaultLadder()
	}
	attempts := opts.AttemptsPerTier
	if attempts <= 0 {
		attempts = 2
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = tmux.NoopNotifier{}
	}
	prompts := opts.Prompts
	if prompts == nil {
		prompts = prompt.NewWriter("")
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	return &Orchestrator{
		store:    opts.Store,
		gw:       opts.Gateway,
		spaces:   opts.Spaces,
		journal:  opts.Journal,
		prompts:  prompts,
		notifier: notifier,
		base:     opts.BaseBranch,
		ladder:   ladder,
		attempts: attempts,
		keep:     opts.KeepWorkspaces,
		out:      out,
	}
}

// Request describes one run of the engine.
type Request struct {
	// Task is the task description.
	Task string
	// Reset archives and replaces a mismatched incomplete tree instead of
	// rejecting the run.
	Reset bool
	// StepID, when non-zero, runs only the subtree rooted at that step.
	StepID int
}

// Result reports how a run ended without an error.
type Result struct {
	// AlreadyComplete means the tree was fully done before the run started.
	AlreadyComplete bool
	// Completed means the tree reached fully done during this run.
	Completed bool
	// BlockedStepID identifies the step whose exhaustion stopped the run,
	// with its terminal lesson.
	BlockedStepID int
	Lesson        string
}

// Run executes the engine against the persisted tree for the request's task,
// applying the fingerprint replacement rules first. Only configuration faults
// and unrecoverable I/O escape as errors; everything else lands in the tree.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	tree, err := o.store.Resolve(req.Task, req.Reset)
	if err != nil {
		return nil, err
	}
	o.tree = tree

	if tree.Complete() {
		return &Result{AlreadyComplete: true}, nil
	}

	rootWS, err := o.spaces.Ensure(rootWorkspaceKey, o.base)
	if err != nil {
		return nil, err
	}

	target := tree.Root
	parentWS := rootWS
	if req.StepID != 0 && req.StepID != tree.Root.ID {
		target = tree.Find(req.StepID)
		if target == nil {
			return nil, fmt.Errorf("step %d not found in tree", req.StepID)
		}
		parentWS, err = o.ensureAncestorWorkspaces(target, rootWS)
		if err != nil {
			return nil, err
		}
	}

	if err := o.runStep(ctx, target, parentWS); err != nil {
		return nil, err
	}

	res := &Result{Completed: o.tree.Complete()}
	if blocked := o.firstBlocked(); blocked != nil {
		res.BlockedStepID = blocked.ID
		res.Lesson = blocked.BlockedReason
	}
	return res, nil
}

// ensureAncestorWorkspaces walks root -> step ensuring each ancestor's
// workspace exists, and returns the workspace of the step's parent. Selecting
// a step inside an unplanned subtree is an error.
func (o *Orchestrator) ensureAncestorWorkspaces(target *models.Step, rootWS *worktree.Workspace) (*worktree.Workspace, error) {
	path := o.tree.PathTo(target.ID)
	if path == nil {
		return nil, fmt.Errorf("step %d not found in tree", target.ID)
	}

	parentWS := rootWS
	// Skip the root (already ensured) and the target itself.
	for _, st := range path[1 : len(path)-1] {
		ws, err := o.spaces.Ensure(st.ID, parentWS.Branch)
		if err != nil {
			return nil, err
		}
		parentWS = ws
	}
	return parentWS, nil
}

// firstBlocked returns the blocked step that caused the stall: the first
// blocked step, in pre-order, with no blocked descendant of its own. Ancestors
// blocked by a child are symptoms, not causes.
func (o *Orchestrator) firstBlocked() *models.Step {
	var cause *models.Step
	o.tree.Root.Walk(func(st *models.Step) bool {
		if st.Status != models.StatusBlocked {
			return true
		}
		childBlocked := false
		for _, c := range st.Children {
			c.Walk(func(d *models.Step) bool {
				if d.Status == models.StatusBlocked {
					childBlocked = true
					return false
				}
				return true
			})
			if childBlocked {
				break
			}
		}
		if !childBlocked {
			cause = st
			return false
		}
		return true
	})
	return cause
}

// runStep drives one step to a terminal status. Steps already done or blocked
// are left untouched; re-running a done tree invokes no agents.
func (o *Orchestrator) runStep(ctx context.Context, step *models.Step, parentWS *worktree.Workspace) error {
	if step.Status.Terminal() {
		return nil
	}
	if err := o.ensurePlanned(ctx, step); err != nil {
		return err
	}

	var ws *worktree.Workspace
	if step == o.tree.Root {
		// Run already ensured the root workspace; merging the root upward is
		// the user's call, so it has no parent workspace.
		ws, parentWS = parentWS, nil
	} else {
		var err error
		ws, err = o.spaces.Ensure(step.ID, parentWS.Branch)
		if err != nil {
			return err
		}
	}

	if step.Atomic {
		return o.runAtomic(ctx, step, ws, parentWS)
	}
	return o.runDecomposed(ctx, step, ws, parentWS)
}

// ensurePlanned asks the planner to decide the step's shape if it is still
// pending, and persists the decision before any execution. A crash after
// planning must not lose the decomposition.
func (o *Orchestrator) ensurePlanned(ctx context.Context, step *models.Step) error {
	if step.Status != models.StatusPending {
		return nil
	}

	rendered := o.prompts.Render(o.tree, step.ID)
	var decision *gateway.PlanDecision
	var err error
	for try := 0; try <= plannerRetries; try++ {
		decision, err = o.gw.Plan(ctx, gateway.PlanRequest{Step: step, Context: rendered})
		if err == nil {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("planning step %d: %w", step.ID, err)
	}

	if decision.Atomic {
		step.ApplySpec(decision.Refined)
		step.Atomic = true
		o.logf(step, "planned: atomic")
	} else {
		ids := make([]int, len(decision.Children))
		for i := range decision.Children {
			ids[i] = o.tree.AllocateID()
		}
		children := make([]*models.Step, len(decision.Children))
		for i, spec := range decision.Children {
			deps := make([]int, 0, len(spec.DependsOn))
			for _, pos := range spec.DependsOn {
				deps = append(deps, ids[pos])
			}
			children[i] = &models.Step{
				ID:        ids[i],
				Text:      spec.Text,
				Details:   spec.Details,
				DoneWhen:  spec.DoneWhen,
				DependsOn: deps,
				Status:    models.StatusPending,
			}
		}
		step.Children = children
		step.Atomic = false
		o.logf(step, "planned: %d children", len(children))
	}
	step.Status = models.StatusPlanned
	return o.store.Save(o.tree)
}

// runDecomposed executes the step's children in scheduler order, one at a
// time, failing fast on the first blocked child, and merges the step's
// workspace into its parent once every child is done.
func (o *Orchestrator) runDecomposed(ctx context.Context, step *models.Step, ws, parentWS *worktree.Workspace) error {
	step.Status = models.StatusInProgress
	if err := o.store.Save(o.tree); err != nil {
		return err
	}

	sched, err := graph.NewScheduler(step.Children)
	if err != nil {
		// Cyclic or invalid dependencies are a configuration fault, fatal.
		return fmt.Errorf("children of step %d: %w", step.ID, err)
	}

	isDone := func(id int) bool {
		for _, c := range step.Children {
			if c.ID == id {
				return c.Status == models.StatusDone
			}
		}
		return false
	}

	for {
		next := sched.NextReady(isDone)
		if next == nil {
			break
		}
		if err := o.runStep(ctx, next, ws); err != nil {
			return err
		}
		if next.Status == models.StatusBlocked {
			// A later sibling must not start: the parent cannot complete.
			step.Status = models.StatusBlocked
			step.BlockedReason = fmt.Sprintf("child step %d blocked: %s", next.ID, next.BlockedReason)
			o.logf(step, "blocked by child %d", next.ID)
			return o.store.Save(o.tree)
		}
	}

	for _, c := range step.Children {
		if c.Status != models.StatusDone {
			step.Status = models.StatusBlocked
			step.BlockedReason = fmt.Sprintf("child step %d did not complete", c.ID)
			return o.store.Save(o.tree)
		}
	}

	if parentWS != nil {
		if err := o.spaces.MergeInto(parentWS, ws); err != nil {
			var conflict *worktree.MergeConflictError
			if errors.As(err, &conflict) {
				step.Status = models.StatusBlocked
				step.BlockedReason = conflict.Error()
				o.logf(step, "merge conflict: %v", conflict)
				return o.store.Save(o.tree)
			}
			return err
		}
	}

	step.Status = models.StatusDone
	o.logf(step, "done")
	if err := o.store.Save(o.tree); err != nil {
		return err
	}
	o.cleanup(ws)
	return nil
}

// runAtomic runs the attempt loop: work at escalating tiers, commit, verify,
// undo and retry on rejection, merge on acceptance. Every transition persists
// so a crash resumes where it left off.
func (o *Orchestrator) runAtomic(ctx context.Context, step *models.Step, ws, parentWS *worktree.Workspace) error {
	resumed := step.Status == models.StatusInProgress
	step.Status = models.StatusInProgress
	if err := o.store.Save(o.tree); err != nil {
		return err
	}
	if resumed {
		// An in-progress step found on resume is unresolved; retry from a
		// clean slate.
		if err := o.spaces.UndoToBase(ws); err != nil {
			return err
		}
	}

	o.notifier.StepStarted(step.ID, step.Text, ws.Path)
	defer o.notifier.StepFinished(step.ID)

	feedback := o.loadFeedback(step.ID)
	var lastReason string

	for ; step.TierIndex < len(o.ladder); step.TierIndex++ {
		tier := o.ladder[step.TierIndex]
		for step.AttemptCount < o.attempts {
			step.AttemptCount++
			if err := o.store.Save(o.tree); err != nil {
				return err
			}
			o.logf(step, "attempt %d at tier %s", step.AttemptCount, tier.Name)

			accepted, reason, err := o.attempt(ctx, step, ws, parentWS, tier, feedback)
			if err != nil {
				return err
			}
			if accepted {
				step.Status = models.StatusDone
				o.logf(step, "done")
				if err := o.store.Save(o.tree); err != nil {
					return err
				}
				o.cleanup(ws)
				return nil
			}

			lastReason = reason
			if reason != "" {
				feedback = append(feedback, reason)
			}
			if err := o.spaces.UndoToBase(ws); err != nil {
				return err
			}
		}
		step.AttemptCount = 0
	}

	// Ladder exhausted: the workspace is already rolled back; pass through
	// pending before settling on blocked with the terminal lesson.
	step.Status = models.StatusPending
	if err := o.store.Save(o.tree); err != nil {
		return err
	}
	step.Status = models.StatusBlocked
	step.BlockedReason = lastReason
	if step.BlockedReason == "" {
		step.BlockedReason = "all tiers and attempts exhausted"
	}
	o.recordLesson(step.ID, step.BlockedReason)
	o.logf(step, "blocked: %s", step.BlockedReason)
	return o.store.Save(o.tree)
}

// attempt makes one work+verify+merge pass. It returns accepted=true on a
// merged result, or a human-readable reason when the attempt failed in an
// expected way. Errors are reserved for unrecoverable conditions.
func (o *Orchestrator) attempt(ctx context.Context, step *models.Step, ws, parentWS *worktree.Workspace, tier models.Tier, feedback []string) (accepted bool, reason string, err error) {
	rendered := o.prompts.Render(o.tree, step.ID)

	work, err := o.gw.Work(ctx, gateway.WorkRequest{
		Step:     step,
		Dir:      ws.Path,
		Tier:     tier,
		Context:  rendered,
		Feedback: feedback,
	})
	if err != nil {
		var invErr *gateway.InvocationError
		if errors.As(err, &invErr) {
			o.record(step, tier, journal.OutcomeInvocationError, invErr.Error())
			o.logf(step, "worker invocation failed: %v", invErr)
			return false, "", nil
		}
		return false, "", err
	}
	if work.Failed() {
		reason = fmt.Sprintf("worker exited with status %d", work.ExitStatus)
		o.record(step, tier, journal.OutcomeWorkFailed, reason)
		o.logf(step, "%s", reason)
		return false, reason, nil
	}

	if err := o.spaces.CommitIfNeeded(ws, fmt.Sprintf("step %d: %s", step.ID, step.Text)); err != nil {
		return false, "", err
	}
	_, diff, err := o.spaces.Changes(ws)
	if err != nil {
		return false, "", err
	}

	verdict, err := o.gw.Verify(ctx, gateway.VerifyRequest{
		Step:    step,
		Dir:     ws.Path,
		Diff:    diff,
		Context: rendered,
	})
	if err != nil {
		var invErr *gateway.InvocationError
		if errors.As(err, &invErr) {
			o.record(step, tier, journal.OutcomeInvocationError, invErr.Error())
			o.logf(step, "verifier invocation failed: %v", invErr)
			return false, "", nil
		}
		return false, "", err
	}
	if !verdict.Accepted {
		o.record(step, tier, journal.OutcomeRejected, verdict.Feedback)
		o.logf(step, "rejected: %s", verdict.Feedback)
		return false, verdict.Feedback, nil
	}

	if parentWS != nil {
		if err := o.spaces.MergeInto(parentWS, ws); err != nil {
			var conflict *worktree.MergeConflictError
			if errors.As(err, &conflict) {
				// A conflict is a step failure like any other rejection.
				o.record(step, tier, journal.OutcomeRejected, conflict.Error())
				o.logf(step, "merge conflict: %v", conflict)
				return false, conflict.Error(), nil
			}
			return false, "", err
		}
	}

	o.record(step, tier, journal.OutcomeAccepted, "")
	return true, "", nil
}

func (o *Orchestrator) record(step *models.Step, tier models.Tier, outcome journal.Outcome, feedback string) {
	if o.journal == nil {
		return
	}
	_ = o.journal.Record(journal.Attempt{
		StepID:   step.ID,
		Tier:     tier.Name,
		Attempt:  step.AttemptCount,
		Outcome:  outcome,
		Feedback: feedback,
	})
}

func (o *Orchestrator) loadFeedback(stepID int) []string {
	if o.journal == nil {
		return nil
	}
	fb, err := o.journal.Feedback(stepID)
	if err != nil {
		return nil
	}
	return fb
}

func (o *Orchestrator) recordLesson(stepID int, lesson string) {
	if o.journal == nil {
		return
	}
	_ = o.journal.SetLesson(stepID, lesson)
}

// cleanup destroys a merged workspace unless retention is configured.
// Failures are logged, never fatal. The root workspace holds the final result
// and is always kept.
func (o *Orchestrator) cleanup(ws *worktree.Workspace) {
	if o.keep || ws.StepID == rootWorkspaceKey {
		return
	}
	if err := o.spaces.Destroy(ws); err != nil {
		fmt.Fprintf(o.out, "warning: cleanup of %s failed: %v\n", ws.Branch, err)
	}
}
