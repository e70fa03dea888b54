package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/vizier-dev/vizier/internal/gateway"
)

// Backend implements the planner and verifier roles with direct Messages API
// calls instead of spawning the agent CLI. It deliberately does not implement
// the worker role.
type Backend struct {
	client *Client
}

// NewBackend creates a planner/verifier backend on top of the given client.
func NewBackend(client *Client) *Backend {
	return &Backend{client: client}
}

// Plan asks the model for a plan decision and validates it against the same
// rules as the CLI gateway.
func (b *Backend) Plan(ctx context.Context, req gateway.PlanRequest) (*gateway.PlanDecision, error) {
	payload, err := b.complete(ctx, gateway.RolePlanner, gateway.PlanSchema, gateway.BuildPlanPrompt(req))
	if err != nil {
		return nil, err
	}
	return gateway.DecodePlanPayload(payload, req.Step)
}

// Verify asks the model for an accept/reject verdict.
func (b *Backend) Verify(ctx context.Context, req gateway.VerifyRequest) (*gateway.VerifyResult, error) {
	payload, err := b.complete(ctx, gateway.RoleVerifier, gateway.VerifySchema, gateway.BuildVerifyPrompt(req))
	if err != nil {
		return nil, err
	}
	return gateway.DecodeVerifyPayload(payload)
}

// complete makes one Messages API call and extracts the JSON payload from the
// reply text. The schema rides in the system prompt; the reply is still
// validated before being trusted.
func (b *Backend) complete(ctx context.Context, role gateway.Role, schema, prompt string) (json.RawMessage, error) {
	system := fmt.Sprintf("Reply with a single JSON object matching this schema and nothing else:\n%s", schema)

	resp, err := b.client.inner.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     b.client.Model(),
		MaxTokens: 8192,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, &gateway.InvocationError{Role: role, Reason: "API call failed", Err: err}
	}
	b.client.Tracker().Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var text string
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += variant.Text
		}
	}
	payload := gateway.ExtractJSONObject(text)
	if payload == nil {
		return nil, &gateway.InvocationError{Role: role, Reason: "no JSON object in reply"}
	}
	return payload, nil
}

var (
	_ gateway.Planner  = (*Backend)(nil)
	_ gateway.Verifier = (*Backend)(nil)
)
