// Package gateway defines the uniform contract for invoking the planner,
// worker and verifier agents as external processes. Every call returns either
// a well-formed structured result or a typed InvocationError — never silently
// partial data.
package gateway

import (
	"context"
	"fmt"

	"github.com/vizier-dev/vizier/pkg/models"
)

// Role identifies which agent a gateway call addresses.
type Role string

const (
	RolePlanner  Role = "planner"
	RoleWorker   Role = "worker"
	RoleVerifier Role = "verifier"
)

// InvocationError indicates an agent process crashed, timed out, or produced
// malformed or schema-invalid output. It is never a negative verdict: a worker
// failing its task or a verifier rejecting work are ordinary results, not
// invocation errors.
type InvocationError struct {
	Role   Role
	Reason string
	Err    error
}

func (e *InvocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s invocation failed: %s: %v", e.Role, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s invocation failed: %s", e.Role, e.Reason)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// PlanRequest carries what the planner sees: the step to decide and the
// active-path rendering of its ancestry.
type PlanRequest struct {
	Step *models.Step
	// Context is the rendered tree projection for this step.
	Context string
}

// PlanDecision is the planner's verdict on a step: either atomic (with a
// possibly refined spec for the step itself) or decomposed into child specs.
// Child DependsOn values are positions within Children (0-based); fresh step
// ids are assigned by the caller.
type PlanDecision struct {
	Atomic   bool
	Refined  models.StepSpec
	Children []models.StepSpec
}

// WorkRequest carries one worker attempt: the step, the workspace directory
// the worker must edit in, the tier to run at, and feedback accumulated from
// earlier rejected attempts.
type WorkRequest struct {
	Step     *models.Step
	Dir      string
	Tier     models.Tier
	Context  string
	Feedback []string
}

// WorkResult reports a worker attempt. A non-zero ExitStatus is an expected
// outcome signaling attempt failure, not an error.
type WorkResult struct {
	ExitStatus int
	Output     string
}

// Failed returns true when the attempt did not complete successfully.
func (r *WorkResult) Failed() bool { return r.ExitStatus != 0 }

// VerifyRequest carries a verification: the step, the workspace it executed
// in, and a summary of the changes the attempt produced.
type VerifyRequest struct {
	Step    *models.Step
	Dir     string
	Diff    string
	Context string
}

// VerifyResult is the verifier's judgment of whether done_when is satisfied.
// Feedback on rejection is fed into the next attempt's instructions.
type VerifyResult struct {
	Accepted bool   `json:"accepted"`
	Feedback string `json:"feedback,omitempty"`
}

// Planner decides whether a step is atomic or decomposes into children.
type Planner interface {
	Plan(ctx context.Context, req PlanRequest) (*PlanDecision, error)
}

// Worker attempts a step's goal inside its workspace at a given tier.
type Worker interface {
	Work(ctx context.Context, req WorkRequest) (*WorkResult, error)
}

// Verifier judges whether a completed attempt satisfies the step's criteria.
type Verifier interface {
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error)
}

// Gateway bundles the three roles as the orchestrator consumes them.
type Gateway interface {
	Planner
	Worker
	Verifier
}
