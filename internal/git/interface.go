// Package git provides an interface for the git operations vizier needs.
package git

// BranchOperations defines the interface for git branch queries.
type BranchOperations interface {
	// CurrentBranch returns the name of the current branch. It fails on a
	// detached HEAD, since branch-based isolation needs a named base.
	CurrentBranch(dir string) (string, error)
	// BranchExists returns true if the local branch exists.
	BranchExists(name string) (bool, error)
	// DeleteBranch deletes the specified branch (force delete).
	DeleteBranch(name string) error
}

// WorktreeOperations defines the interface for git worktree operations.
type WorktreeOperations interface {
	// WorktreeAdd creates a worktree at path for an existing branch.
	WorktreeAdd(path, branch string) error
	// WorktreeAddNewBranch creates a worktree at path with a new branch
	// forked from base (git worktree add -b).
	WorktreeAddNewBranch(path, branch, base string) error
	// Worktrees returns a mapping of local branch name to worktree path.
	Worktrees() (map[string]string, error)
	// WorktreeRemove removes the worktree at the given path (force).
	WorktreeRemove(path string) error
	// WorktreePrune removes stale worktree entries.
	WorktreePrune() error
}

// ChangeOperations defines the interface for commit, diff and reset
// operations inside a worktree.
type ChangeOperations interface {
	// HasChanges returns true if the worktree has uncommitted changes.
	HasChanges(dir string) (bool, error)
	// CommitAll stages everything and commits with the given message.
	CommitAll(dir, message string) error
	// ResetHard discards all changes back to ref.
	ResetHard(dir, ref string) error
	// MergeBase returns the common ancestor of two refs.
	MergeBase(dir, ref1, ref2 string) (string, error)
	// DiffSince returns the unified diff between base and HEAD.
	DiffSince(dir, base string) (string, error)
	// CommitsSince returns commit SHAs (oldest first) after base up to HEAD.
	CommitsSince(dir, base string) ([]string, error)
}

// MergeOperations defines the interface for merging one branch into another.
type MergeOperations interface {
	// MergeNoFF merges branch into the branch checked out in dir, always
	// creating a merge commit.
	MergeNoFF(dir, branch string) error
	// MergeAbort aborts an in-progress merge.
	MergeAbort(dir string) error
	// ConflictedFiles returns files with unmerged changes in dir.
	ConflictedFiles(dir string) ([]string, error)
}

// Runner is the complete git surface used by the isolation manager.
type Runner interface {
	BranchOperations
	WorktreeOperations
	ChangeOperations
	MergeOperations
}
