package core

import "context"

// Documents builds the tree for scope and returns its flattened documents.
func (e *Engine) Documents(ctx context.Context, scope string) ([]ScopedDocument, error) {
	forest, err := e.BuildTree(ctx, scope)
	if err != nil {
		return nil, err
	}
	return Flatten(forest), nil
}

// Search validates p, then returns the scope's documents matching it. An
// invalid p fails before the tree is built.
func (e *Engine) Search(ctx context.Context, scope string, p Predicate) (docs []ScopedDocument, err error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	ctx, done := observe(ctx, e.opts.tracer, e.opts.metrics, "engine.search")
	defer func() { done(err) }()
	all, err := e.Documents(ctx, scope)
	if err != nil {
		return nil, err
	}
	return Filter(all, p)
}

// Stats summarises the scope's documents. Total equals the sum of the root
// document counts of the same build.
func (e *Engine) Stats(ctx context.Context, scope string) (summary StatsSummary, err error) {
	ctx, done := observe(ctx, e.opts.tracer, e.opts.metrics, "engine.stats")
	defer func() { done(err) }()
	docs, err := e.Documents(ctx, scope)
	if err != nil {
		return StatsSummary{}, err
	}
	return Summarize(docs), nil
}
