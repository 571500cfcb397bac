// Package pipeline is the Research Pipeline (§4.F): an 11-step sequence
// that turns a project's description and search parameters into a
// persisted delivery log, fanning out to the LLM and search abstractions
// along the way.
package pipeline

import "context"

// Stage is a single typed processing unit, a direct generalization of the
// teacher's flow.Node[I, O] to this domain: same Run(ctx, input) (output,
// error) shape, but without flow.Flow's any-erased chaining — Pipeline.Run
// is the typed runner that wires each stage's concrete output into the
// next stage's concrete input, since those types differ step to step.
type Stage[I any, O any] interface {
	Run(ctx context.Context, input I) (O, error)
}

// StageFunc adapts a plain function to Stage, mirroring the teacher's
// flow.Processor.
type StageFunc[I any, O any] func(ctx context.Context, input I) (O, error)

func (f StageFunc[I, O]) Run(ctx context.Context, input I) (O, error) {
	return f(ctx, input)
}
