// Package prompt renders the task tree into the projection agents see. The
// document always stores everything; what a given agent sees is computed from
// the active path — the chain from root to the step currently executing.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vizier-dev/vizier/pkg/models"
)

// Status glyphs for the checklist rendering.
const (
	glyphDone       = "✓"
	glyphInProgress = ">"
	glyphPending    = " "
	glyphBlocked    = "✗"
)

func glyph(status models.StepStatus) string {
	switch status {
	case models.StatusDone:
		return glyphDone
	case models.StatusInProgress:
		return glyphInProgress
	case models.StatusBlocked:
		return glyphBlocked
	default:
		return glyphPending
	}
}

// Render produces the checklist projection of the tree for the step with the
// given id. Step text is always visible; details appear only along the active
// path; done_when appears for the executing step and its active-path
// ancestors.
func Render(tree *models.Tree, activeID int) string {
	onPath := make(map[int]bool)
	for _, st := range tree.PathTo(activeID) {
		onPath[st.ID] = true
	}

	var b strings.Builder
	b.WriteString("# Task\n")
	b.WriteString(tree.Title)
	b.WriteString("\n\n# Steps\n")
	renderStep(&b, tree.Root, 0, activeID, onPath)
	return b.String()
}

func renderStep(b *strings.Builder, st *models.Step, depth, activeID int, onPath map[int]bool) {
	indent := strings.Repeat("  ", depth)
	marker := ""
	if st.ID == activeID {
		marker = "  <- current step"
	}
	fmt.Fprintf(b, "%s[%s] %d. %s%s\n", indent, glyph(st.Status), st.ID, st.Text, marker)

	if onPath[st.ID] {
		if st.Details != "" {
			for _, line := range strings.Split(strings.TrimSpace(st.Details), "\n") {
				fmt.Fprintf(b, "%s    %s\n", indent, line)
			}
		}
		for _, criterion := range st.DoneWhen {
			fmt.Fprintf(b, "%s    done when: %s\n", indent, criterion)
		}
	}
	if len(st.DependsOn) > 0 {
		deps := make([]string, len(st.DependsOn))
		for i, d := range st.DependsOn {
			deps[i] = fmt.Sprintf("%d", d)
		}
		fmt.Fprintf(b, "%s    after: %s\n", indent, strings.Join(deps, ", "))
	}

	for _, c := range st.Children {
		renderStep(b, c, depth+1, activeID, onPath)
	}
}

// Writer renders projections and keeps a copy on disk for inspection.
type Writer struct {
	dir string
}

// NewWriter creates a writer that saves renders under dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Render produces the projection for a step and saves it under the renders
// directory. The save is best-effort; rendering never fails.
func (w *Writer) Render(tree *models.Tree, activeID int) string {
	out := Render(tree, activeID)
	if w.dir != "" {
		if err := os.MkdirAll(w.dir, 0755); err == nil {
			name := fmt.Sprintf("step-%d-%s.md", activeID, time.Now().Format("20060102-150405"))
			_ = os.WriteFile(filepath.Join(w.dir, name), []byte(out), 0644)
		}
	}
	return out
}
