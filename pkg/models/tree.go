package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Tree is the whole persisted task document: one root step plus identity and
// revision metadata. The store owns persistence; all mutations flow through
// the orchestrator and are saved after every state transition.
type Tree struct {
	// Title is the first line of the originating task description.
	Title string `json:"title"`
	// Context is the full task text, used to seed planner prompts.
	Context string `json:"context,omitempty"`
	// Fingerprint identifies the task input this tree was planned for.
	Fingerprint string `json:"fingerprint"`
	// Revision increases monotonically on every save.
	Revision int `json:"revision"`
	// NextID is the allocator for step IDs; IDs are never reused.
	NextID int `json:"next_id"`
	// Root is the single root step.
	Root *Step `json:"root"`
}

// NewTree initializes a fresh tree for the given task text. The root step is
// pending and unplanned.
func NewTree(task string) *Tree {
	title := task
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "task"
	}
	if len(title) > 512 {
		title = title[:512]
	}
	return &Tree{
		Title:       title,
		Context:     task,
		Fingerprint: Fingerprint(task),
		NextID:      2,
		Root: &Step{
			ID:     1,
			Text:   title,
			Status: StatusPending,
		},
	}
}

// Fingerprint returns the stable identifier for a task input.
func Fingerprint(task string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(task)))
	return hex.EncodeToString(sum[:])
}

// AllocateID returns a fresh step ID and advances the allocator.
func (t *Tree) AllocateID() int {
	id := t.NextID
	t.NextID++
	return id
}

// Find returns the step with the given ID or nil.
func (t *Tree) Find(id int) *Step {
	if t.Root == nil {
		return nil
	}
	return t.Root.Find(id)
}

// Parent returns the parent of the step with the given ID, or nil for the
// root (and for unknown IDs).
func (t *Tree) Parent(id int) *Step {
	if t.Root == nil || t.Root.ID == id {
		return nil
	}
	var parent *Step
	t.Root.Walk(func(s *Step) bool {
		for _, c := range s.Children {
			if c.ID == id {
				parent = s
				return false
			}
		}
		return true
	})
	return parent
}

// PathTo returns the chain of steps from the root to the step with the given
// ID, inclusive. Returns nil if the ID is not in the tree. This is the
// "active path" used to gate details/done_when visibility at render time.
func (t *Tree) PathTo(id int) []*Step {
	if t.Root == nil {
		return nil
	}
	var path []*Step
	var descend func(s *Step) bool
	descend = func(s *Step) bool {
		path = append(path, s)
		if s.ID == id {
			return true
		}
		for _, c := range s.Children {
			if descend(c) {
				return true
			}
		}
		path = path[:len(path)-1]
		return false
	}
	if !descend(t.Root) {
		return nil
	}
	return path
}

// Complete returns true when every step in the tree is done.
func (t *Tree) Complete() bool {
	if t.Root == nil {
		return true
	}
	return t.Root.Complete()
}
