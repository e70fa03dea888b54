// Package graph schedules sibling steps in dependency order.
package graph

import (
	"fmt"
	"sort"

	"github.com/vizier-dev/vizier/pkg/models"
)

// CycleError indicates a circular dependency within a sibling group. It is a
// configuration fault: fatal, never retried.
type CycleError struct {
	// IDs lists the steps participating in (or downstream of) the cycle.
	IDs []int
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular dependency among steps %v", e.IDs)
}

// InvalidDependencyError indicates a depends_on reference to a non-sibling
// or to the step itself.
type InvalidDependencyError struct {
	StepID int
	DepID  int
}

func (e *InvalidDependencyError) Error() string {
	if e.StepID == e.DepID {
		return fmt.Sprintf("step %d depends on itself", e.StepID)
	}
	return fmt.Sprintf("step %d depends on %d, which is not a sibling", e.StepID, e.DepID)
}

// Scheduler orders one sibling group. Dependencies may only reference steps
// within the group; execution is sequential, so at most one step is ready at
// a time.
type Scheduler struct {
	steps []*models.Step
	byID  map[int]*models.Step
}

// NewScheduler validates the sibling group and returns a scheduler for it.
// Returns InvalidDependencyError for out-of-group or self references and
// CycleError when the depends_on graph is cyclic.
func NewScheduler(siblings []*models.Step) (*Scheduler, error) {
	byID := make(map[int]*models.Step, len(siblings))
	for _, s := range siblings {
		byID[s.ID] = s
	}
	for _, s := range siblings {
		for _, dep := range s.DependsOn {
			if dep == s.ID {
				return nil, &InvalidDependencyError{StepID: s.ID, DepID: dep}
			}
			if _, ok := byID[dep]; !ok {
				return nil, &InvalidDependencyError{StepID: s.ID, DepID: dep}
			}
		}
	}
	sched := &Scheduler{steps: siblings, byID: byID}
	if ids := sched.cycle(); len(ids) > 0 {
		return nil, &CycleError{IDs: ids}
	}
	return sched, nil
}

// cycle runs a depth-first search with coloring and returns the IDs still
// gray when a back edge is found, or nil when acyclic.
func (s *Scheduler) cycle() []int {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	colors := make(map[int]int, len(s.steps))

	var visit func(id int) bool
	visit = func(id int) bool {
		colors[id] = gray
		for _, dep := range s.byID[id].DependsOn {
			switch colors[dep] {
			case gray:
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		colors[id] = black
		return false
	}

	for _, st := range s.steps {
		if colors[st.ID] == white && visit(st.ID) {
			var ids []int
			for id, c := range colors {
				if c == gray {
					ids = append(ids, id)
				}
			}
			sort.Ints(ids)
			return ids
		}
	}
	return nil
}

// Order returns the full group in a total order consistent with depends_on,
// ties broken by declaration order (stable topological sort).
func (s *Scheduler) Order() []*models.Step {
	done := make(map[int]bool, len(s.steps))
	var order []*models.Step
	for len(order) < len(s.steps) {
		for _, st := range s.steps {
			if done[st.ID] {
				continue
			}
			ready := true
			for _, dep := range st.DependsOn {
				if !done[dep] {
					ready = false
					break
				}
			}
			if ready {
				done[st.ID] = true
				order = append(order, st)
			}
		}
	}
	return order
}

// NextReady returns the first step, in declaration order, that is not yet
// terminal and whose dependencies have all reached done. Returns nil when the
// group is exhausted or blocked waiting on a non-done dependency.
func (s *Scheduler) NextReady(isDone func(id int) bool) *models.Step {
	for _, st := range s.steps {
		if st.Status.Terminal() {
			continue
		}
		ready := true
		for _, dep := range st.DependsOn {
			if !isDone(dep) {
				ready = false
				break
			}
		}
		if ready {
			return st
		}
	}
	return nil
}

// Exhausted returns true when every step in the group is terminal.
func (s *Scheduler) Exhausted() bool {
	for _, st := range s.steps {
		if !st.Status.Terminal() {
			return false
		}
	}
	return true
}
