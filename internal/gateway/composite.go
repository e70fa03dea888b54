package gateway

// Composite assembles a Gateway from independently chosen role
// implementations, so the planner and verifier can run over the Messages API
// while the worker stays an external process.
type Composite struct {
	Planner
	Worker
	Verifier
}

var _ Gateway = (*Composite)(nil)
