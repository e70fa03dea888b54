package git

// NoopRunner is a no-effect Runner for dry runs and smoke tests. It reports a
// fixed branch, pretends every worktree already exists at root, and performs
// no repository mutations.
type NoopRunner struct {
	// Root is returned as the path for every worktree.
	Root string
}

// NewNoopRunner creates a runner that never touches git state.
func NewNoopRunner(root string) *NoopRunner {
	return &NoopRunner{Root: root}
}

func (n *NoopRunner) CurrentBranch(dir string) (string, error) { return "dryrun", nil }

func (n *NoopRunner) BranchExists(name string) (bool, error) { return false, nil }

func (n *NoopRunner) DeleteBranch(name string) error { return nil }

func (n *NoopRunner) WorktreeAdd(path, branch string) error { return nil }

func (n *NoopRunner) WorktreeAddNewBranch(path, branch, base string) error { return nil }

func (n *NoopRunner) Worktrees() (map[string]string, error) { return map[string]string{}, nil }

func (n *NoopRunner) WorktreeRemove(path string) error { return nil }

func (n *NoopRunner) WorktreePrune() error { return nil }

func (n *NoopRunner) HasChanges(dir string) (bool, error) { return false, nil }

func (n *NoopRunner) CommitAll(dir, message string) error { return nil }

func (n *NoopRunner) ResetHard(dir, ref string) error { return nil }

func (n *NoopRunner) MergeBase(dir, ref1, ref2 string) (string, error) { return "DRYRUN", nil }

func (n *NoopRunner) DiffSince(dir, base string) (string, error) { return "", nil }

func (n *NoopRunner) CommitsSince(dir, base string) ([]string, error) { return nil, nil }

func (n *NoopRunner) MergeNoFF(dir, branch string) error { return nil }

func (n *NoopRunner) MergeAbort(dir string) error { return nil }

func (n *NoopRunner) ConflictedFiles(dir string) ([]string, error) { return nil, nil }

// Verify NoopRunner implements Runner at compile time.
var _ Runner = (*NoopRunner)(nil)
