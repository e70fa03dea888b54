package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/vizier-dev/vizier/pkg/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "tree.json"))
}

func TestLoadMissing(t *testing.T) {
	s := testStore(t)
	_, err := s.Load()
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := testStore(t)
	tree := models.NewTree("build the thing\nwith details")

	if err := s.Save(tree); err != nil {
		t.Fatalf("save: %v", err)
	}
	if tree.Revision != 1 {
		t.Errorf("expected revision 1 after first save, got %d", tree.Revision)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Title != "build the thing" {
		t.Errorf("title mismatch: %q", loaded.Title)
	}
	if loaded.Fingerprint != tree.Fingerprint {
		t.Error("fingerprint mismatch")
	}
	if loaded.Root.ID != 1 || loaded.Root.Status != models.StatusPending {
		t.Errorf("unexpected root: %+v", loaded.Root)
	}
}

func TestSaveRejectsInvalidTree(t *testing.T) {
	s := testStore(t)
	tree := models.NewTree("task")
	tree.Root.Status = "bogus"

	err := s.Save(tree)
	var corrupt *CorruptTreeError
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected CorruptTreeError, got %v", err)
	}
	if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
		t.Error("invalid tree must not be persisted")
	}
}

func TestLoadCorruptJSON(t *testing.T) {
	s := testStore(t)
	if err := os.WriteFile(s.Path(), []byte("{not json"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := s.Load()
	var corrupt *CorruptTreeError
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected CorruptTreeError, got %v", err)
	}
}

func TestResolveFreshTree(t *testing.T) {
	s := testStore(t)
	tree, err := s.Resolve("new task", false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if tree.Fingerprint != models.Fingerprint("new task") {
		t.Error("fresh tree has wrong fingerprint")
	}
	if _, err := os.Stat(s.Path()); err != nil {
		t.Error("fresh tree should be persisted")
	}
}

func TestResolveMatchingFingerprintResumes(t *testing.T) {
	s := testStore(t)
	first, err := s.Resolve("same task", false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	first.Root.Status = models.StatusPlanned
	first.Root.Atomic = true
	if err := s.Save(first); err != nil {
		t.Fatalf("save: %v", err)
	}

	second, err := s.Resolve("same task", false)
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if second.Root.Status != models.StatusPlanned {
		t.Error("resume lost persisted progress")
	}
}

func TestResolveMismatchIncompleteRejected(t *testing.T) {
	s := testStore(t)
	if _, err := s.Resolve("task one", false); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	before, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	_, err = s.Resolve("different task", false)
	var mismatch *MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected MismatchError, got %v", err)
	}

	after, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(before) != string(after) {
		t.Error("rejected resolve must leave the document untouched")
	}
}

func TestResolveMismatchCompleteArchivesAndReplaces(t *testing.T) {
	s := testStore(t)
	tree, err := s.Resolve("task one", false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	tree.Root.Status = models.StatusDone
	tree.Root.Atomic = true
	if err := s.Save(tree); err != nil {
		t.Fatalf("save: %v", err)
	}
	old, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	fresh, err := s.Resolve("task two", false)
	if err != nil {
		t.Fatalf("resolve replacement: %v", err)
	}
	if fresh.Fingerprint != models.Fingerprint("task two") {
		t.Error("replacement tree has wrong fingerprint")
	}

	archives, err := os.ReadDir(filepath.Join(filepath.Dir(s.Path()), "history"))
	if err != nil || len(archives) != 1 {
		t.Fatalf("expected 1 archive, got %v (err %v)", archives, err)
	}
	archived, err := os.ReadFile(filepath.Join(filepath.Dir(s.Path()), "history", archives[0].Name()))
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	if string(archived) != string(old) {
		t.Error("archive must be byte-identical to the replaced document")
	}
}

func TestResolveResetReplacesIncomplete(t *testing.T) {
	s := testStore(t)
	if _, err := s.Resolve("task one", false); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	fresh, err := s.Resolve("task two", true)
	if err != nil {
		t.Fatalf("resolve with reset: %v", err)
	}
	if fresh.Fingerprint != models.Fingerprint("task two") {
		t.Error("reset did not replace the tree")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *models.Tree {
		t := models.NewTree("task")
		t.NextID = 4
		t.Root.Status = models.StatusPlanned
		t.Root.Children = []*models.Step{
			{ID: 2, Text: "a", Status: models.StatusPending},
			{ID: 3, Text: "b", Status: models.StatusPending, DependsOn: []int{2}},
		}
		return t
	}

	tests := []struct {
		name   string
		mutate func(*models.Tree)
		ok     bool
	}{
		{"valid tree", func(*models.Tree) {}, true},
		{"duplicate id", func(t *models.Tree) { t.Root.Children[1].ID = 2 }, false},
		{"id above allocator", func(t *models.Tree) { t.Root.Children[1].ID = 9 }, false},
		{"unknown status", func(t *models.Tree) { t.Root.Children[0].Status = "odd" }, false},
		{"done with unfinished child", func(t *models.Tree) { t.Root.Status = models.StatusDone }, false},
		{"dependency cycle", func(t *models.Tree) {
			t.Root.Children[0].DependsOn = []int{3}
		}, false},
		{"root with dependencies", func(t *models.Tree) { t.Root.DependsOn = []int{2} }, false},
		{"missing root", func(t *models.Tree) { t.Root = nil }, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tree := valid()
			tc.mutate(tree)
			err := Validate(tree)
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok {
				var corrupt *CorruptTreeError
				if !errors.As(err, &corrupt) {
					t.Errorf("expected CorruptTreeError, got %v", err)
				}
			}
		})
	}
}
