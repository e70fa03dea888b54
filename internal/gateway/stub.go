package gateway

import (
	"context"

	"github.com/vizier-dev/vizier/pkg/models"
)

// StubGateway is an in-process gateway for dry runs and tests: every step
// plans atomic, every attempt succeeds, every verification accepts. Counters
// record how often each role fired.
type StubGateway struct {
	PlanCalls   int
	WorkCalls   int
	VerifyCalls int
}

func (s *StubGateway) Plan(ctx context.Context, req PlanRequest) (*PlanDecision, error) {
	s.PlanCalls++
	refined := models.StepSpec{Text: req.Step.Text, DoneWhen: req.Step.DoneWhen}
	if len(refined.DoneWhen) == 0 {
		refined.DoneWhen = []string{"step goal achieved"}
	}
	return &PlanDecision{Atomic: true, Refined: refined}, nil
}

func (s *StubGateway) Work(ctx context.Context, req WorkRequest) (*WorkResult, error) {
	s.WorkCalls++
	return &WorkResult{ExitStatus: 0}, nil
}

func (s *StubGateway) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	s.VerifyCalls++
	return &VerifyResult{Accepted: true}, nil
}

var _ Gateway = (*StubGateway)(nil)
