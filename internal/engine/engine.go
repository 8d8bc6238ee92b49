package engine

import "context"

// Completer produces a single completion for a prompt. Both services talk to
// hosted models through this interface so tests can substitute fakes.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)

	// Model names the model behind the completer, reported to API clients.
	Model() string
}

// Embedder turns texts into vectors, one per input and in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Local is implemented by engines that serve models from this machine and
// may need them pulled before use.
type Local interface {
	IsRunning(ctx context.Context) bool
	HasModel(ctx context.Context, name string) bool
	PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error
}
