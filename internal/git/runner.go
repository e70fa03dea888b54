package git

import (
	"fmt"
	"os/exec"
	"strings"
)

// ExecRunner implements Runner by shelling out to git. repoPath anchors
// repository-scoped commands (worktree management, branch queries); methods
// taking a dir run inside that worktree.
type ExecRunner struct {
	repoPath string
}

// NewRunner creates a git runner for the repository at the given path.
func NewRunner(repoPath string) *ExecRunner {
	return &ExecRunner{repoPath: repoPath}
}

func (r *ExecRunner) run(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, string(out))
	}
	return strings.TrimSpace(string(out)), nil
}

func (r *ExecRunner) runSilent(dir string, args ...string) error {
	_, err := r.run(dir, args...)
	return err
}

// CurrentBranch returns the name of the current branch in dir.
func (r *ExecRunner) CurrentBranch(dir string) (string, error) {
	out, err := r.run(dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	if out == "HEAD" {
		return "", fmt.Errorf("detached HEAD in %s; run from a named branch", dir)
	}
	return out, nil
}

// BranchExists returns true if the local branch exists.
func (r *ExecRunner) BranchExists(name string) (bool, error) {
	cmd := exec.Command("git", "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	cmd.Dir = r.repoPath
	err := cmd.Run()
	if err != nil {
		// Exit code 1 means the branch doesn't exist, not a failure.
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return false, nil
		}
		return false, fmt.Errorf("check branch exists: %w", err)
	}
	return true, nil
}

// DeleteBranch deletes the specified branch.
func (r *ExecRunner) DeleteBranch(name string) error {
	return r.runSilent(r.repoPath, "branch", "-D", name)
}

// WorktreeAdd creates a worktree at path for an existing branch.
func (r *ExecRunner) WorktreeAdd(path, branch string) error {
	return r.runSilent(r.repoPath, "worktree", "add", path, branch)
}

// WorktreeAddNewBranch creates a worktree with a new branch forked from base.
func (r *ExecRunner) WorktreeAddNewBranch(path, branch, base string) error {
	return r.runSilent(r.repoPath, "worktree", "add", "-b", branch, path, base)
}

// Worktrees returns a mapping of local branch name to worktree path, parsed
// from git worktree list --porcelain. Detached worktrees are skipped.
func (r *ExecRunner) Worktrees() (map[string]string, error) {
	out, err := r.run(r.repoPath, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}

	result := make(map[string]string)
	var path, branch string
	flush := func() {
		if path != "" && strings.HasPrefix(branch, "refs/heads/") {
			result[strings.TrimPrefix(branch, "refs/heads/")] = path
		}
		path, branch = "", ""
	}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "worktree "):
			flush()
			path = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "branch "):
			branch = strings.TrimPrefix(line, "branch ")
		}
	}
	flush()
	return result, nil
}

// WorktreeRemove removes the worktree at the given path.
func (r *ExecRunner) WorktreeRemove(path string) error {
	return r.runSilent(r.repoPath, "worktree", "remove", "--force", path)
}

// WorktreePrune removes stale worktree entries.
func (r *ExecRunner) WorktreePrune() error {
	return r.runSilent(r.repoPath, "worktree", "prune")
}

// HasChanges returns true if the worktree at dir has uncommitted changes.
func (r *ExecRunner) HasChanges(dir string) (bool, error) {
	out, err := r.run(dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return len(out) > 0, nil
}

// CommitAll stages everything and commits with the given message.
func (r *ExecRunner) CommitAll(dir, message string) error {
	if err := r.runSilent(dir, "add", "-A"); err != nil {
		return err
	}
	return r.runSilent(dir, "commit", "-m", message)
}

// ResetHard discards all changes in dir back to ref.
func (r *ExecRunner) ResetHard(dir, ref string) error {
	return r.runSilent(dir, "reset", "--hard", ref)
}

// MergeBase returns the common ancestor of two refs.
func (r *ExecRunner) MergeBase(dir, ref1, ref2 string) (string, error) {
	return r.run(dir, "merge-base", ref1, ref2)
}

// DiffSince returns the unified diff between base and HEAD.
func (r *ExecRunner) DiffSince(dir, base string) (string, error) {
	return r.run(dir, "diff", base+"..HEAD")
}

// CommitsSince returns commit SHAs (oldest first) after base up to HEAD.
func (r *ExecRunner) CommitsSince(dir, base string) ([]string, error) {
	out, err := r.run(dir, "rev-list", "--reverse", base+"..HEAD")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// MergeNoFF merges branch into the branch checked out in dir.
func (r *ExecRunner) MergeNoFF(dir, branch string) error {
	return r.runSilent(dir, "merge", "--no-ff", "--no-edit", branch)
}

// MergeAbort aborts an in-progress merge.
func (r *ExecRunner) MergeAbort(dir string) error {
	return r.runSilent(dir, "merge", "--abort")
}

// ConflictedFiles returns files with unmerged changes in dir.
func (r *ExecRunner) ConflictedFiles(dir string) ([]string, error) {
	out, err := r.run(dir, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, nil
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// Verify ExecRunner implements Runner at compile time.
var _ Runner = (*ExecRunner)(nil)
