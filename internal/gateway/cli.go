package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/vizier-dev/vizier/pkg/models"
)

// CLIGateway invokes the agent CLI as a subprocess for all three roles.
// Planner and verifier run with a structured-output schema; the worker runs
// inside the step's workspace and signals failure through its exit status.
type CLIGateway struct {
	// Bin is the agent CLI binary, normally "claude".
	Bin string
	// PlannerModel and VerifierModel select the model for the read-only roles.
	PlannerModel  string
	VerifierModel string
	// LogDir, when set, receives the raw output of every invocation keyed by
	// a per-invocation run id.
	LogDir string
}

// NewCLIGateway returns a gateway that shells out to the given binary.
func NewCLIGateway(bin, plannerModel, verifierModel, logDir string) *CLIGateway {
	return &CLIGateway{
		Bin:           bin,
		PlannerModel:  plannerModel,
		VerifierModel: verifierModel,
		LogDir:        logDir,
	}
}

// planPayload is the schema-validated shape of a planner reply.
type planPayload struct {
	Atomic   bool              `json:"atomic"`
	Text     string            `json:"text,omitempty"`
	Details  string            `json:"details,omitempty"`
	DoneWhen []string          `json:"done_when,omitempty"`
	Children []models.StepSpec `json:"children,omitempty"`
}

// Plan asks the planner whether the step is atomic or decomposes.
func (g *CLIGateway) Plan(ctx context.Context, req PlanRequest) (*PlanDecision, error) {
	prompt := BuildPlanPrompt(req)
	payload, err := g.invokeStructured(ctx, RolePlanner, g.PlannerModel, PlanSchema, prompt)
	if err != nil {
		return nil, err
	}
	return DecodePlanPayload(payload, req.Step)
}

// DecodePlanPayload unmarshals and validates a planner payload. Shared by
// every planner backend; any violation is an InvocationError, never a
// half-trusted decision.
func DecodePlanPayload(payload json.RawMessage, step *models.Step) (*PlanDecision, error) {
	var plan planPayload
	if err := json.Unmarshal(payload, &plan); err != nil {
		return nil, &InvocationError{Role: RolePlanner, Reason: "payload does not match schema", Err: err}
	}
	decision, err := decodePlan(plan, step)
	if err != nil {
		return nil, &InvocationError{Role: RolePlanner, Reason: err.Error()}
	}
	return decision, nil
}

// DecodeVerifyPayload unmarshals a verifier payload.
func DecodeVerifyPayload(payload json.RawMessage) (*VerifyResult, error) {
	var verdict VerifyResult
	if err := json.Unmarshal(payload, &verdict); err != nil {
		return nil, &InvocationError{Role: RoleVerifier, Reason: "payload does not match schema", Err: err}
	}
	return &verdict, nil
}

// decodePlan validates a planner payload against the decision rules: an
// atomic step needs at least one completion criterion, a decomposition needs
// at least two children whose dependencies point at earlier positions.
func decodePlan(plan planPayload, step *models.Step) (*PlanDecision, error) {
	if plan.Atomic {
		refined := models.StepSpec{
			Text:     plan.Text,
			Details:  plan.Details,
			DoneWhen: plan.DoneWhen,
		}
		if refined.Text == "" {
			refined.Text = step.Text
		}
		if len(refined.DoneWhen) == 0 && len(step.DoneWhen) == 0 {
			return nil, errors.New("atomic step has no completion criteria")
		}
		return &PlanDecision{Atomic: true, Refined: refined}, nil
	}

	if len(plan.Children) < 2 {
		return nil, fmt.Errorf("decomposition needs at least 2 children, got %d", len(plan.Children))
	}
	for i, child := range plan.Children {
		if strings.TrimSpace(child.Text) == "" {
			return nil, fmt.Errorf("child %d has empty text", i)
		}
		for _, dep := range child.DependsOn {
			if dep < 0 || dep >= len(plan.Children) || dep == i {
				return nil, fmt.Errorf("child %d has invalid dependency position %d", i, dep)
			}
		}
	}
	return &PlanDecision{Children: plan.Children}, nil
}

// Work runs one worker attempt inside the workspace. The worker edits files
// directly; its exit status is the outcome. Only invocation-level failures
// (cannot start, timeout) return an error.
func (g *CLIGateway) Work(ctx context.Context, req WorkRequest) (*WorkResult, error) {
	if req.Tier.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Tier.Timeout)
		defer cancel()
	}

	prompt := buildWorkPrompt(req)
	args := []string{
		"--print",
		"--output-format", "json",
		"--allowedTools", "Read,Write,Edit,Bash,Glob,Grep",
	}
	if req.Tier.Model != "" {
		args = append(args, "--model", req.Tier.Model)
	}
	args = append(args, "-p", prompt)

	cmd := exec.CommandContext(ctx, g.Bin, args...)
	cmd.Dir = req.Dir
	out, err := cmd.CombinedOutput()
	g.logOutput(RoleWorker, out)

	if err != nil {
		if ctx.Err() != nil {
			return nil, &InvocationError{Role: RoleWorker, Reason: "timed out", Err: ctx.Err()}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &WorkResult{ExitStatus: exitErr.ExitCode(), Output: string(out)}, nil
		}
		return nil, &InvocationError{Role: RoleWorker, Reason: "failed to run", Err: err}
	}
	return &WorkResult{ExitStatus: 0, Output: string(out)}, nil
}

// Verify asks the verifier whether the attempt satisfies done_when.
func (g *CLIGateway) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	prompt := BuildVerifyPrompt(req)
	payload, err := g.invokeStructured(ctx, RoleVerifier, g.VerifierModel, VerifySchema, prompt)
	if err != nil {
		return nil, err
	}
	return DecodeVerifyPayload(payload)
}

// invokeStructured runs the CLI with a structured-output schema and extracts
// the final result payload. Any process or payload failure is an
// InvocationError for the given role.
func (g *CLIGateway) invokeStructured(ctx context.Context, role Role, model, schema, prompt string) (json.RawMessage, error) {
	args := []string{
		"--print",
		"--output-format", "json",
		"--json-schema", schema,
	}
	if model != "" {
		args = append(args, "--model", model)
	}
	args = append(args, "-p", prompt)

	cmd := exec.CommandContext(ctx, g.Bin, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	g.logOutput(role, out)

	if err != nil {
		if ctx.Err() != nil {
			return nil, &InvocationError{Role: role, Reason: "timed out", Err: ctx.Err()}
		}
		return nil, &InvocationError{Role: role, Reason: "process failed: " + strings.TrimSpace(stderr.String()), Err: err}
	}

	payload := extractResult(out)
	if payload == nil {
		return nil, &InvocationError{Role: role, Reason: "no structured result in output"}
	}
	return payload, nil
}

// logOutput keeps raw agent output for post-mortem inspection. Best-effort.
func (g *CLIGateway) logOutput(role Role, out []byte) {
	if g.LogDir == "" || len(out) == 0 {
		return
	}
	if err := os.MkdirAll(g.LogDir, 0755); err != nil {
		return
	}
	name := fmt.Sprintf("%s-%s.json", role, uuid.NewString())
	_ = os.WriteFile(filepath.Join(g.LogDir, name), out, 0644)
}

func BuildPlanPrompt(req PlanRequest) string {
	var b strings.Builder
	b.WriteString("You are the planner for a task orchestrator.\n\n")
	b.WriteString(req.Context)
	b.WriteString("\n\nDecide whether the current step is atomic (one focused work session) ")
	b.WriteString("or must be decomposed into 2 or more child steps. ")
	b.WriteString("If atomic, you may refine text, details and done_when. ")
	b.WriteString("If decomposed, give each child text, done_when, and depends_on as ")
	b.WriteString("0-based positions of earlier siblings it requires. ")
	b.WriteString("Reply only with JSON matching the provided schema.")
	return b.String()
}

func buildWorkPrompt(req WorkRequest) string {
	var b strings.Builder
	b.WriteString(req.Context)
	b.WriteString("\n\nComplete the current step by editing files in this directory. ")
	b.WriteString("Exit non-zero if you cannot complete it.")
	if len(req.Feedback) > 0 {
		b.WriteString("\n\nFeedback from previous rejected attempts:\n")
		for _, f := range req.Feedback {
			b.WriteString("- ")
			b.WriteString(f)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func BuildVerifyPrompt(req VerifyRequest) string {
	var b strings.Builder
	b.WriteString("You are the verifier for a task orchestrator.\n\n")
	b.WriteString(req.Context)
	b.WriteString("\n\nJudge whether the changes below satisfy every done_when criterion ")
	b.WriteString("of the current step. Reply only with JSON matching the provided schema; ")
	b.WriteString("on rejection, feedback must say concretely what to fix.\n\n")
	b.WriteString("Changes:\n")
	b.WriteString(req.Diff)
	return b.String()
}

// Verify CLIGateway implements Gateway at compile time.
var _ Gateway = (*CLIGateway)(nil)
