package llm

import (
	"context"
	"sync"
)

// Lazy returns a Generator that calls build on first use. A failed build is
// retried on the next call; a successful one is kept.
func Lazy(build func(ctx context.Context) (Generator, error)) Generator {
	return &lazyGenerator{build: build}
}

type lazyGenerator struct {
	mu    sync.Mutex
	build func(ctx context.Context) (Generator, error)
	gen   Generator
}

func (l *lazyGenerator) Generate(ctx context.Context, prompt string) (Response, error) {
	gen, err := l.get(ctx)
	if err != nil {
		return Response{}, err
	}
	return gen.Generate(ctx, prompt)
}

func (l *lazyGenerator) get(ctx context.Context) (Generator, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen != nil {
		return l.gen, nil
	}
	gen, err := l.build(ctx)
	if err != nil {
		return nil, err
	}
	l.gen = gen
	return gen, nil
}
