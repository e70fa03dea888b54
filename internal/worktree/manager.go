// Package worktree manages per-step isolation: each step executes on its own
// branch inside its own git worktree, and finished work merges up into the
// parent step's branch. The task tree document never records workspace state;
// branches and worktrees are re-discovered from git on every run, which is
// what makes resume after a crash safe.
package worktree

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vizier-dev/vizier/internal/git"
	"github.com/vizier-dev/vizier/internal/namer"
)

// BranchPrefix namespaces every branch vizier creates.
const BranchPrefix = "vizier/"

// Workspace is a step's isolated execution environment: a dedicated branch
// checked out in a dedicated worktree directory.
type Workspace struct {
	// StepID is the owning step, or 0 for the root workspace.
	StepID int
	// Branch is the step's dedicated branch (vizier/<id>).
	Branch string
	// Path is the worktree directory the agents run in.
	Path string
	// BaseBranch is the parent branch this workspace forked from.
	BaseBranch string
}

// MergeConflictError reports a merge that could not complete cleanly. The
// merge is aborted before this is returned, so the parent worktree is left
// unchanged. It is an ordinary step failure, not corruption.
type MergeConflictError struct {
	Branch string
	Files  []string
}

func (e *MergeConflictError) Error() string {
	if len(e.Files) == 0 {
		return fmt.Sprintf("merge of %s conflicted", e.Branch)
	}
	return fmt.Sprintf("merge of %s conflicted in: %s", e.Branch, strings.Join(e.Files, ", "))
}

// Manager creates, reuses and destroys step workspaces.
type Manager struct {
	runner git.Runner
	// dir is where worktree directories are created.
	dir   string
	namer *namer.Namer
}

// NewManager returns a manager that places worktrees under dir and names them
// with phrases from the given namer.
func NewManager(runner git.Runner, dir string, n *namer.Namer) *Manager {
	return &Manager{runner: runner, dir: dir, namer: n}
}

// BranchFor returns the branch name for a step id. Step id 0 is the root.
func BranchFor(stepID int) string {
	if stepID == 0 {
		return BranchPrefix + "root"
	}
	return fmt.Sprintf("%s%d", BranchPrefix, stepID)
}

// Ensure returns the workspace for a step, creating branch and worktree if
// they do not exist yet. When the branch already exists, its worktree is
// reattached (or recreated if the directory was removed), so calling Ensure
// again after a crash lands in the same place.
func (m *Manager) Ensure(stepID int, baseBranch string) (*Workspace, error) {
	branch := BranchFor(stepID)

	exists, err := m.runner.BranchExists(branch)
	if err != nil {
		return nil, err
	}

	worktrees, err := m.runner.Worktrees()
	if err != nil {
		return nil, err
	}
	if path, ok := worktrees[branch]; ok {
		return &Workspace{StepID: stepID, Branch: branch, Path: path, BaseBranch: baseBranch}, nil
	}

	phrase, err := m.namer.Generate()
	if err != nil {
		return nil, fmt.Errorf("name workspace: %w", err)
	}
	path := filepath.Join(m.dir, phrase)

	if exists {
		if err := m.runner.WorktreePrune(); err != nil {
			return nil, err
		}
		if err := m.runner.WorktreeAdd(path, branch); err != nil {
			return nil, fmt.Errorf("reattach worktree for %s: %w", branch, err)
		}
	} else {
		if err := m.runner.WorktreeAddNewBranch(path, branch, baseBranch); err != nil {
			return nil, fmt.Errorf("create worktree for %s: %w", branch, err)
		}
	}
	return &Workspace{StepID: stepID, Branch: branch, Path: path, BaseBranch: baseBranch}, nil
}

// CommitIfNeeded commits any uncommitted changes in the workspace. Agents may
// or may not commit their own work; either way the branch ends up clean.
func (m *Manager) CommitIfNeeded(ws *Workspace, message string) error {
	dirty, err := m.runner.HasChanges(ws.Path)
	if err != nil {
		return err
	}
	if !dirty {
		return nil
	}
	return m.runner.CommitAll(ws.Path, message)
}

// UndoToBase discards everything the workspace accumulated since it diverged
// from its base branch: uncommitted changes and commits alike.
func (m *Manager) UndoToBase(ws *Workspace) error {
	base, err := m.runner.MergeBase(ws.Path, ws.Branch, ws.BaseBranch)
	if err != nil {
		return fmt.Errorf("find base of %s: %w", ws.Branch, err)
	}
	if err := m.runner.ResetHard(ws.Path, base); err != nil {
		return fmt.Errorf("undo %s: %w", ws.Branch, err)
	}
	return nil
}

// MergeInto merges the child workspace's branch into the parent workspace,
// always creating a merge commit. On conflict the merge is aborted and a
// MergeConflictError identifies the files involved.
func (m *Manager) MergeInto(parent, child *Workspace) error {
	if err := m.runner.MergeNoFF(parent.Path, child.Branch); err != nil {
		files, _ := m.runner.ConflictedFiles(parent.Path)
		if abortErr := m.runner.MergeAbort(parent.Path); abortErr != nil {
			return fmt.Errorf("merge of %s conflicted and abort failed: %w", child.Branch, abortErr)
		}
		return &MergeConflictError{Branch: child.Branch, Files: files}
	}
	return nil
}

// Changes summarizes what the workspace produced: the commits and diff since
// it diverged from its base branch.
func (m *Manager) Changes(ws *Workspace) (commits []string, diff string, err error) {
	base, err := m.runner.MergeBase(ws.Path, ws.Branch, ws.BaseBranch)
	if err != nil {
		return nil, "", err
	}
	commits, err = m.runner.CommitsSince(ws.Path, base)
	if err != nil {
		return nil, "", err
	}
	diff, err = m.runner.DiffSince(ws.Path, base)
	if err != nil {
		return nil, "", err
	}
	return commits, diff, nil
}

// Destroy removes the workspace's worktree and branch. Failures are returned
// but callers typically treat cleanup as best-effort.
func (m *Manager) Destroy(ws *Workspace) error {
	var firstErr error
	if err := m.runner.WorktreeRemove(ws.Path); err != nil {
		firstErr = err
	}
	if err := m.runner.DeleteBranch(ws.Branch); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := m.runner.WorktreePrune(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// DestroyAll removes every vizier-owned worktree and branch. Used by the
// cleanup command.
func (m *Manager) DestroyAll() (int, error) {
	worktrees, err := m.runner.Worktrees()
	if err != nil {
		return 0, err
	}
	removed := 0
	for branch, path := range worktrees {
		if !strings.HasPrefix(branch, BranchPrefix) {
			continue
		}
		if err := m.runner.WorktreeRemove(path); err != nil {
			return removed, err
		}
		if err := m.runner.DeleteBranch(branch); err != nil {
			return removed, err
		}
		removed++
	}
	if err := m.runner.WorktreePrune(); err != nil {
		return removed, err
	}
	return removed, nil
}
