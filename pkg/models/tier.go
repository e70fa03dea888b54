package models

import "time"

// Tier is one rung of the worker escalation ladder: a capability/cost level
// tried for a configured number of attempts before escalating to the next.
type Tier struct {
	// Name identifies the tier in logs and the journal.
	Name string `json:"name" yaml:"name"`
	// Model is the agent model invoked at this tier.
	Model string `json:"model" yaml:"model"`
	// Timeout bounds a single worker invocation at this tier.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultLadder is the escalation ladder used when no configuration overrides
// it: cheapest capability first.
func DefaultLadder() []Tier {
	return []Tier{
		{Name: "scout", Model: "haiku", Timeout: 10 * time.Minute},
		{Name: "builder", Model: "sonnet", Timeout: 30 * time.Minute},
		{Name: "architect", Model: "opus", Timeout: 60 * time.Minute},
	}
}
