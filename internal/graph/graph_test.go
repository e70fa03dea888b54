package graph

import (
	"errors"
	"reflect"
	"testing"

	"github.com/vizier-dev/vizier/pkg/models"
)

func siblings(specs ...*models.Step) []*models.Step {
	return specs
}

func step(id int, deps ...int) *models.Step {
	return &models.Step{ID: id, Text: "step", Status: models.StatusPending, DependsOn: deps}
}

func ids(steps []*models.Step) []int {
	out := make([]int, len(steps))
	for i, s := range steps {
		out[i] = s.ID
	}
	return out
}

func TestOrderStableTopological(t *testing.T) {
	tests := []struct {
		name  string
		group []*models.Step
		want  []int
	}{
		{
			name:  "no dependencies keeps declaration order",
			group: siblings(step(2), step(3), step(4)),
			want:  []int{2, 3, 4},
		},
		{
			name:  "dependency reorders",
			group: siblings(step(2, 3), step(3), step(4)),
			want:  []int{3, 4, 2},
		},
		{
			name:  "chain",
			group: siblings(step(4, 3), step(3, 2), step(2)),
			want:  []int{2, 3, 4},
		},
		{
			name:  "diamond keeps declaration order among ready",
			group: siblings(step(2), step(3, 2), step(4, 2), step(5, 3, 4)),
			want:  []int{2, 3, 4, 5},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sched, err := NewScheduler(tc.group)
			if err != nil {
				t.Fatalf("NewScheduler failed: %v", err)
			}
			got := ids(sched.Order())
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("order = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestOrderNeverBeforeDependencies(t *testing.T) {
	sched, err := NewScheduler(siblings(step(5, 2, 3), step(2), step(3, 2), step(4)))
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}

	seen := map[int]bool{}
	for _, st := range sched.Order() {
		for _, dep := range st.DependsOn {
			if !seen[dep] {
				t.Errorf("step %d scheduled before dependency %d", st.ID, dep)
			}
		}
		seen[st.ID] = true
	}
}

func TestCycleDetection(t *testing.T) {
	_, err := NewScheduler(siblings(step(2, 4), step(3, 2), step(4, 3)))
	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if len(cycle.IDs) == 0 {
		t.Error("cycle error should identify participating ids")
	}
}

func TestInvalidDependencies(t *testing.T) {
	tests := []struct {
		name  string
		group []*models.Step
	}{
		{"self dependency", siblings(step(2, 2))},
		{"non-sibling dependency", siblings(step(2, 99), step(3))},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewScheduler(tc.group)
			var invalid *InvalidDependencyError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidDependencyError, got %v", err)
			}
		})
	}
}

func TestNextReadyHonorsDependencies(t *testing.T) {
	a, b := step(2), step(3, 2)
	sched, err := NewScheduler(siblings(a, b))
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}

	done := map[int]bool{}
	isDone := func(id int) bool { return done[id] }

	if next := sched.NextReady(isDone); next == nil || next.ID != 2 {
		t.Fatalf("expected step 2 ready first, got %v", next)
	}

	// Step 3 is not ready until 2 is done.
	a.Status = models.StatusInProgress
	if next := sched.NextReady(isDone); next == nil || next.ID != 2 {
		t.Fatalf("expected step 2 still current, got %v", next)
	}

	a.Status = models.StatusDone
	done[2] = true
	if next := sched.NextReady(isDone); next == nil || next.ID != 3 {
		t.Fatalf("expected step 3 ready after 2, got %v", next)
	}

	b.Status = models.StatusDone
	done[3] = true
	if next := sched.NextReady(isDone); next != nil {
		t.Fatalf("expected exhausted group, got step %d", next.ID)
	}
	if !sched.Exhausted() {
		t.Error("expected Exhausted true")
	}
}

func TestNextReadySkipsBlockedStep(t *testing.T) {
	a, b := step(2), step(3, 2)
	a.Status = models.StatusBlocked
	sched, err := NewScheduler(siblings(a, b))
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}

	// Step 3 waits on 2, which will never be done; the group is stuck.
	if next := sched.NextReady(func(int) bool { return false }); next != nil {
		t.Fatalf("expected no ready step, got %d", next.ID)
	}
	if sched.Exhausted() {
		t.Error("group with a waiting step is not exhausted")
	}
}
