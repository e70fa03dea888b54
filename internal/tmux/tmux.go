// Package tmux opens a tmux pane per in-flight step so a human can watch the
// workspace while an agent works in it. The pane layer is decorative: every
// notification is best-effort, and the orchestrator behaves identically with
// the no-op notifier.
package tmux

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Notifier receives step lifecycle events for display purposes.
type Notifier interface {
	// StepStarted opens a display surface for the step's workspace.
	StepStarted(stepID int, label, dir string)
	// StepFinished closes the step's display surface.
	StepFinished(stepID int)
}

// NoopNotifier ignores every event. Used in tests, dry runs, and whenever
// vizier runs outside tmux.
type NoopNotifier struct{}

func (NoopNotifier) StepStarted(stepID int, label, dir string) {}
func (NoopNotifier) StepFinished(stepID int)                   {}

// PaneNotifier opens one pane per step inside the current tmux window.
type PaneNotifier struct {
	mu    sync.Mutex
	panes map[int]string
}

// NewPaneNotifier returns a pane notifier. Available reports whether the
// process is running inside tmux; callers fall back to NoopNotifier when not.
func NewPaneNotifier() *PaneNotifier {
	return &PaneNotifier{panes: make(map[int]string)}
}

// Available returns true when running inside a tmux session.
func Available() bool {
	return os.Getenv("TMUX") != ""
}

// StepStarted splits a pane in the step's workspace directory and titles it.
func (n *PaneNotifier) StepStarted(stepID int, label, dir string) {
	out, err := exec.Command("tmux",
		"split-window", "-d", "-P", "-F", "#{pane_id}", "-c", dir).Output()
	if err != nil {
		return
	}
	paneID := strings.TrimSpace(string(out))
	if paneID == "" {
		return
	}

	n.mu.Lock()
	n.panes[stepID] = paneID
	n.mu.Unlock()

	title := fmt.Sprintf("step %d: %s", stepID, label)
	_ = exec.Command("tmux", "select-pane", "-t", paneID, "-T", title).Run()
}

// StepFinished kills the step's pane if one is open.
func (n *PaneNotifier) StepFinished(stepID int) {
	n.mu.Lock()
	paneID, ok := n.panes[stepID]
	delete(n.panes, stepID)
	n.mu.Unlock()
	if !ok {
		return
	}
	_ = exec.Command("tmux", "kill-pane", "-t", paneID).Run()
}

var (
	_ Notifier = (*PaneNotifier)(nil)
	_ Notifier = NoopNotifier{}
)
