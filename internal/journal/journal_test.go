package journal

import (
	"path/filepath"
	"testing"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndQueryAttempts(t *testing.T) {
	j := openTestJournal(t)

	attempts := []Attempt{
		{StepID: 3, Tier: "scout", Attempt: 1, Outcome: OutcomeWorkFailed},
		{StepID: 3, Tier: "scout", Attempt: 2, Outcome: OutcomeRejected, Feedback: "tests missing"},
		{StepID: 3, Tier: "builder", Attempt: 1, Outcome: OutcomeAccepted},
		{StepID: 9, Tier: "scout", Attempt: 1, Outcome: OutcomeAccepted},
	}
	for _, a := range attempts {
		if err := j.Record(a); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got, err := j.Attempts(3)
	if err != nil {
		t.Fatalf("query attempts: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 attempts for step 3, got %d", len(got))
	}
	if got[0].Outcome != OutcomeWorkFailed || got[2].Outcome != OutcomeAccepted {
		t.Errorf("attempts out of order: %+v", got)
	}
	if got[1].Feedback != "tests missing" {
		t.Errorf("feedback not persisted: %+v", got[1])
	}
}

func TestFeedbackOnlyFromRejections(t *testing.T) {
	j := openTestJournal(t)

	j.Record(Attempt{StepID: 2, Tier: "scout", Attempt: 1, Outcome: OutcomeWorkFailed, Feedback: "exit 1"})
	j.Record(Attempt{StepID: 2, Tier: "scout", Attempt: 2, Outcome: OutcomeRejected, Feedback: "handle empty input"})
	j.Record(Attempt{StepID: 2, Tier: "scout", Attempt: 3, Outcome: OutcomeRejected, Feedback: "add error path test"})

	fb, err := j.Feedback(2)
	if err != nil {
		t.Fatalf("feedback: %v", err)
	}
	if len(fb) != 2 {
		t.Fatalf("expected 2 feedback entries, got %v", fb)
	}
	if fb[0] != "handle empty input" || fb[1] != "add error path test" {
		t.Errorf("unexpected feedback order: %v", fb)
	}
}

func TestLessonUpsert(t *testing.T) {
	j := openTestJournal(t)

	if err := j.SetLesson(5, "first lesson"); err != nil {
		t.Fatalf("set lesson: %v", err)
	}
	if err := j.SetLesson(5, "refined lesson"); err != nil {
		t.Fatalf("update lesson: %v", err)
	}

	lesson, err := j.Lesson(5)
	if err != nil {
		t.Fatalf("get lesson: %v", err)
	}
	if lesson != "refined lesson" {
		t.Errorf("expected updated lesson, got %q", lesson)
	}

	all, err := j.Lessons()
	if err != nil {
		t.Fatalf("lessons: %v", err)
	}
	if len(all) != 1 || all[5] != "refined lesson" {
		t.Errorf("unexpected lessons map: %v", all)
	}
}

func TestLessonMissing(t *testing.T) {
	j := openTestJournal(t)
	lesson, err := j.Lesson(99)
	if err != nil {
		t.Fatalf("get lesson: %v", err)
	}
	if lesson != "" {
		t.Errorf("expected empty lesson, got %q", lesson)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	j.Record(Attempt{StepID: 1, Tier: "scout", Attempt: 1, Outcome: OutcomeAccepted})
	j.Close()

	j2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j2.Close()

	got, err := j2.Attempts(1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected persisted attempt, got %d", len(got))
	}
}
