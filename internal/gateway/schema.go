package gateway

// Structured-output schemas handed to the agent CLI. Compact single-line JSON
// keeps the command line readable in process listings.

// PlanSchema constrains the planner's reply: either an atomic confirmation
// with an optional refined spec, or at least two child specs with explicit
// sibling dependencies given as 0-based positions.
const PlanSchema = `{"type":"object","properties":{"atomic":{"type":"boolean"},"text":{"type":"string"},"details":{"type":"string"},"done_when":{"type":"array","items":{"type":"string"},"minItems":1},"children":{"type":"array","minItems":2,"items":{"type":"object","properties":{"text":{"type":"string"},"details":{"type":"string"},"done_when":{"type":"array","items":{"type":"string"},"minItems":1},"depends_on":{"type":"array","items":{"type":"integer"}}},"required":["text","done_when"]}}},"required":["atomic"]}`

// VerifySchema constrains the verifier's reply to an accept/reject verdict
// plus feedback for the next attempt.
const VerifySchema = `{"type":"object","properties":{"accepted":{"type":"boolean"},"feedback":{"type":"string"}},"required":["accepted"]}`
