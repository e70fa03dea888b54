package models

import (
	"reflect"
	"testing"
)

func TestStepStatusValid(t *testing.T) {
	for _, s := range []StepStatus{StatusPending, StatusPlanned, StatusInProgress, StatusDone, StatusBlocked} {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if StepStatus("doing").Valid() {
		t.Error("unknown status should be invalid")
	}
}

func TestStepStatusTerminal(t *testing.T) {
	tests := []struct {
		status StepStatus
		want   bool
	}{
		{StatusPending, false},
		{StatusPlanned, false},
		{StatusInProgress, false},
		{StatusDone, true},
		{StatusBlocked, true},
	}
	for _, tc := range tests {
		if got := tc.status.Terminal(); got != tc.want {
			t.Errorf("Terminal(%q) = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestApplySpec(t *testing.T) {
	step := &Step{
		ID:       2,
		Text:     "old text",
		Details:  "old details",
		DoneWhen: []string{"old criterion"},
	}

	step.ApplySpec(StepSpec{Text: "new text"})
	if step.Text != "new text" {
		t.Errorf("text not replaced: %q", step.Text)
	}
	if step.Details != "old details" || step.DoneWhen[0] != "old criterion" {
		t.Error("empty spec fields must not clobber existing values")
	}

	step.ApplySpec(StepSpec{Text: "newer", Details: "more", DoneWhen: []string{"a", "b"}})
	if step.Details != "more" || !reflect.DeepEqual(step.DoneWhen, []string{"a", "b"}) {
		t.Errorf("spec fields not applied: %+v", step)
	}
}

func TestWalkPreOrderAndEarlyStop(t *testing.T) {
	root := &Step{ID: 1, Children: []*Step{
		{ID: 2, Children: []*Step{{ID: 4}}},
		{ID: 3},
	}}

	var order []int
	root.Walk(func(s *Step) bool {
		order = append(order, s.ID)
		return true
	})
	if !reflect.DeepEqual(order, []int{1, 2, 4, 3}) {
		t.Errorf("pre-order walk = %v", order)
	}

	var visited []int
	root.Walk(func(s *Step) bool {
		visited = append(visited, s.ID)
		return s.ID != 2
	})
	if !reflect.DeepEqual(visited, []int{1, 2}) {
		t.Errorf("early stop walk = %v", visited)
	}
}

func TestFind(t *testing.T) {
	root := &Step{ID: 1, Children: []*Step{{ID: 2, Children: []*Step{{ID: 4}}}}}
	if got := root.Find(4); got == nil || got.ID != 4 {
		t.Errorf("Find(4) = %v", got)
	}
	if got := root.Find(99); got != nil {
		t.Errorf("Find(99) = %v, want nil", got)
	}
}

func TestComplete(t *testing.T) {
	root := &Step{ID: 1, Status: StatusDone, Children: []*Step{
		{ID: 2, Status: StatusDone},
		{ID: 3, Status: StatusDone, Children: []*Step{{ID: 4, Status: StatusDone}}},
	}}
	if !root.Complete() {
		t.Error("fully done subtree should be complete")
	}

	root.Children[1].Children[0].Status = StatusPending
	if root.Complete() {
		t.Error("subtree with a pending descendant is not complete")
	}
}
