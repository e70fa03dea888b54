package models

// StepStatus represents the current state of a step in the task tree.
type StepStatus string

const (
	// StatusPending indicates the step has not been planned yet.
	StatusPending StepStatus = "pending"
	// StatusPlanned indicates the planner has decided the step's shape.
	StatusPlanned StepStatus = "planned"
	// StatusInProgress indicates the step is being worked on.
	StatusInProgress StepStatus = "in_progress"
	// StatusDone indicates the step and all its descendants completed.
	StatusDone StepStatus = "done"
	// StatusBlocked indicates the step exhausted all retries and cannot proceed.
	StatusBlocked StepStatus = "blocked"
)

// Valid returns true if the status is a known value.
func (s StepStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPlanned, StatusInProgress, StatusDone, StatusBlocked:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is an end state.
func (s StepStatus) Terminal() bool {
	return s == StatusDone || s == StatusBlocked
}

// Step is one node of the task tree.
type Step struct {
	// ID is unique across the whole tree, assigned at creation, never reused.
	ID int `json:"id"`
	// Text is the short imperative description of the step.
	Text string `json:"text"`
	// Details is the long-form elaboration, rendered only along the active path.
	Details string `json:"details,omitempty"`
	// DoneWhen lists the machine-checkable completion criteria.
	DoneWhen []string `json:"done_when,omitempty"`
	// Status is the current orchestration state of the step.
	Status StepStatus `json:"status"`
	// Atomic records the planner's decision: directly executable, no children.
	// Meaningful only once Status has left pending.
	Atomic bool `json:"atomic,omitempty"`
	// DependsOn lists sibling step IDs that must be done before this step starts.
	DependsOn []int `json:"depends_on,omitempty"`
	// Children are the sub-steps this step decomposes into.
	Children []*Step `json:"children,omitempty"`
	// AttemptCount is the number of work attempts made at the current tier.
	AttemptCount int `json:"attempt_count,omitempty"`
	// TierIndex is the position in the escalation ladder for the next attempt.
	TierIndex int `json:"tier_index,omitempty"`
	// BlockedReason explains a blocked status; empty otherwise.
	BlockedReason string `json:"blocked_reason,omitempty"`
}

// StepSpec is the planner-facing shape for a new or refined step.
// The planner never sets runtime fields (status, children, retry bookkeeping).
type StepSpec struct {
	Text      string   `json:"text"`
	Details   string   `json:"details,omitempty"`
	DoneWhen  []string `json:"done_when,omitempty"`
	DependsOn []int    `json:"depends_on,omitempty"`
}

// ApplySpec overwrites the planner-owned fields of the step. Text is always
// replaced; the other fields only when the spec provides them.
func (s *Step) ApplySpec(spec StepSpec) {
	s.Text = spec.Text
	if spec.Details != "" {
		s.Details = spec.Details
	}
	if spec.DoneWhen != nil {
		s.DoneWhen = append([]string(nil), spec.DoneWhen...)
	}
	if spec.DependsOn != nil {
		s.DependsOn = append([]int(nil), spec.DependsOn...)
	}
}

// Walk visits the step and every descendant in pre-order. Traversal stops
// early if fn returns false.
func (s *Step) Walk(fn func(*Step) bool) bool {
	if !fn(s) {
		return false
	}
	for _, c := range s.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// Find returns the descendant step (or the step itself) with the given ID,
// or nil if not present in this subtree.
func (s *Step) Find(id int) *Step {
	var found *Step
	s.Walk(func(st *Step) bool {
		if st.ID == id {
			found = st
			return false
		}
		return true
	})
	return found
}

// Complete returns true when the step and every descendant are done.
func (s *Step) Complete() bool {
	complete := true
	s.Walk(func(st *Step) bool {
		if st.Status != StatusDone {
			complete = false
			return false
		}
		return true
	})
	return complete
}
