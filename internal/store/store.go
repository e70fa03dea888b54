// Package store owns persistence of the task tree document. It is the single
// source of truth: every status or structure mutation anywhere in the system
// is saved through this package.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vizier-dev/vizier/internal/graph"
	"github.com/vizier-dev/vizier/pkg/models"
)

// ErrNotFound indicates no tree document exists at the store's path.
var ErrNotFound = errors.New("task tree not found")

// CorruptTreeError indicates the tree violates its invariants. Raised before
// persisting bad state; aborts the run.
type CorruptTreeError struct {
	Reason string
}

func (e *CorruptTreeError) Error() string {
	return "corrupt task tree: " + e.Reason
}

// MismatchError indicates the persisted tree belongs to a different task and
// is not complete. Proceeding would silently discard in-progress work, so the
// run is rejected unless an explicit reset is requested.
type MismatchError struct {
	Path string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("existing tree at %s belongs to a different task and is incomplete; re-run with --reset to archive and replace it", e.Path)
}

// Store reads and writes the tree document at a fixed path. Access is
// single-writer: the orchestrator serializes all mutations through one Store.
type Store struct {
	path       string
	historyDir string
}

// New returns a store for the document at path. Archives are written next to
// it under a history directory.
func New(path string) *Store {
	return &Store{
		path:       path,
		historyDir: filepath.Join(filepath.Dir(path), "history"),
	}
}

// Path returns the document path.
func (s *Store) Path() string {
	return s.path
}

// Load reads and validates the tree document. Returns ErrNotFound when the
// document does not exist and CorruptTreeError when it fails validation.
func (s *Store) Load() (*models.Tree, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read tree: %w", err)
	}
	tree := &models.Tree{}
	if err := json.Unmarshal(data, tree); err != nil {
		return nil, &CorruptTreeError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if err := Validate(tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// Save validates the tree, bumps its revision and writes it atomically
// (write-temp-then-rename), so a crash never leaves a partial document.
func (s *Store) Save(tree *models.Tree) error {
	if err := Validate(tree); err != nil {
		return err
	}
	tree.Revision++

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create tree directory: %w", err)
	}
	data, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tree: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".tree-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write tree: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace tree: %w", err)
	}
	return nil
}

// Archive copies the current document into the history directory, keyed by
// timestamp. Returns the archive path.
func (s *Store) Archive(reason string) (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("read tree for archive: %w", err)
	}
	if err := os.MkdirAll(s.historyDir, 0755); err != nil {
		return "", fmt.Errorf("create history directory: %w", err)
	}
	name := fmt.Sprintf("tree-%s.json", time.Now().Format("20060102-150405"))
	dest := filepath.Join(s.historyDir, name)
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return "", fmt.Errorf("write archive: %w", err)
	}
	return dest, nil
}

// Resolve loads the tree for the given task text, applying the replacement
// rules: a missing document initializes a fresh tree; a matching fingerprint
// resumes the stored tree; a differing fingerprint archives and replaces the
// stored tree when it is fully done (or when reset is forced), and returns
// MismatchError when the stored tree is incomplete and reset was not
// requested.
func (s *Store) Resolve(task string, reset bool) (*models.Tree, error) {
	tree, err := s.Load()
	if errors.Is(err, ErrNotFound) {
		fresh := models.NewTree(task)
		if err := s.Save(fresh); err != nil {
			return nil, err
		}
		return fresh, nil
	}
	if err != nil {
		return nil, err
	}

	if tree.Fingerprint == models.Fingerprint(task) && !reset {
		return tree, nil
	}
	if !reset && !tree.Complete() {
		return nil, &MismatchError{Path: s.path}
	}

	if _, err := s.Archive("replaced"); err != nil {
		return nil, fmt.Errorf("archive old tree: %w", err)
	}
	fresh := models.NewTree(task)
	if err := s.Save(fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// Validate checks every invariant of the tree document: a root exists, step
// IDs are unique and below the allocator, statuses are known, dependencies
// stay within the sibling group and form no cycles, and a done step has only
// done descendants.
func Validate(tree *models.Tree) error {
	if tree == nil || tree.Root == nil {
		return &CorruptTreeError{Reason: "missing root step"}
	}
	if tree.Title == "" {
		return &CorruptTreeError{Reason: "missing title"}
	}

	seen := make(map[int]bool)
	var fault *CorruptTreeError
	tree.Root.Walk(func(st *models.Step) bool {
		if seen[st.ID] {
			fault = &CorruptTreeError{Reason: fmt.Sprintf("duplicate step id %d", st.ID)}
			return false
		}
		seen[st.ID] = true
		if st.ID >= tree.NextID {
			fault = &CorruptTreeError{Reason: fmt.Sprintf("step id %d not below allocator %d", st.ID, tree.NextID)}
			return false
		}
		if !st.Status.Valid() {
			fault = &CorruptTreeError{Reason: fmt.Sprintf("step %d has unknown status %q", st.ID, st.Status)}
			return false
		}
		if st.Status == models.StatusDone && !st.Complete() {
			fault = &CorruptTreeError{Reason: fmt.Sprintf("step %d is done but has unfinished descendants", st.ID)}
			return false
		}
		if len(st.Children) > 0 {
			if _, err := graph.NewScheduler(st.Children); err != nil {
				fault = &CorruptTreeError{Reason: fmt.Sprintf("children of step %d: %v", st.ID, err)}
				return false
			}
		}
		return true
	})
	if fault != nil {
		return fault
	}
	if len(tree.Root.DependsOn) > 0 {
		return &CorruptTreeError{Reason: "root step cannot have dependencies"}
	}
	return nil
}
