package gateway

import (
	"encoding/json"
	"testing"

	"github.com/vizier-dev/vizier/pkg/models"
)

func TestExtractResultPrefersStructuredOutput(t *testing.T) {
	data := []byte(`[
		{"type":"system","message":"starting"},
		{"type":"assistant","message":"thinking"},
		{"type":"result","result":"ignore me","structured_output":{"accepted":true,"feedback":""}}
	]`)

	payload := extractResult(data)
	if payload == nil {
		t.Fatal("expected payload")
	}
	var verdict VerifyResult
	if err := json.Unmarshal(payload, &verdict); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if !verdict.Accepted {
		t.Error("expected accepted verdict from structured_output")
	}
}

func TestExtractResultJSONLFallback(t *testing.T) {
	data := []byte(`{"type":"system","message":"starting"}
{"type":"result","result":"{\"accepted\":false,\"feedback\":\"tests missing\"}"}
`)

	payload := extractResult(data)
	if payload == nil {
		t.Fatal("expected payload")
	}
	var verdict VerifyResult
	if err := json.Unmarshal(payload, &verdict); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if verdict.Accepted {
		t.Error("expected rejected verdict")
	}
	if verdict.Feedback != "tests missing" {
		t.Errorf("unexpected feedback %q", verdict.Feedback)
	}
}

func TestExtractResultUsesLastResultEvent(t *testing.T) {
	data := []byte(`[
		{"type":"result","structured_output":{"accepted":false}},
		{"type":"result","structured_output":{"accepted":true}}
	]`)

	var verdict VerifyResult
	if err := json.Unmarshal(extractResult(data), &verdict); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if !verdict.Accepted {
		t.Error("expected last result event to win")
	}
}

func TestExtractResultProseWrappedJSON(t *testing.T) {
	data := []byte(`[{"type":"result","result":"Here you go:\n{\"atomic\": true, \"done_when\": [\"it builds\"]}\nDone."}]`)

	payload := extractResult(data)
	if payload == nil {
		t.Fatal("expected payload extracted from prose")
	}
	var plan planPayload
	if err := json.Unmarshal(payload, &plan); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if !plan.Atomic {
		t.Error("expected atomic plan")
	}
}

func TestExtractResultGarbage(t *testing.T) {
	for _, tc := range []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"not json", "total garbage"},
		{"no result event", `[{"type":"assistant","message":"hi"}]`},
		{"result without payload", `[{"type":"result","result":"plain prose, no json"}]`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if payload := extractResult([]byte(tc.data)); payload != nil {
				t.Errorf("expected nil payload, got %s", payload)
			}
		})
	}
}

func TestDecodePlanValidation(t *testing.T) {
	step := &models.Step{ID: 2, Text: "add parser", Status: models.StatusPending}

	tests := []struct {
		name    string
		plan    planPayload
		wantErr bool
	}{
		{
			name: "atomic with criteria",
			plan: planPayload{Atomic: true, DoneWhen: []string{"compiles"}},
		},
		{
			name:    "atomic without criteria anywhere",
			plan:    planPayload{Atomic: true},
			wantErr: true,
		},
		{
			name: "decomposed",
			plan: planPayload{Children: []models.StepSpec{
				{Text: "first", DoneWhen: []string{"a"}},
				{Text: "second", DoneWhen: []string{"b"}, DependsOn: []int{0}},
			}},
		},
		{
			name:    "single child",
			plan:    planPayload{Children: []models.StepSpec{{Text: "only"}}},
			wantErr: true,
		},
		{
			name: "self dependency",
			plan: planPayload{Children: []models.StepSpec{
				{Text: "first", DependsOn: []int{0}},
				{Text: "second"},
			}},
			wantErr: true,
		},
		{
			name: "out of range dependency",
			plan: planPayload{Children: []models.StepSpec{
				{Text: "first"},
				{Text: "second", DependsOn: []int{5}},
			}},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodePlan(tc.plan, step)
			if tc.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
