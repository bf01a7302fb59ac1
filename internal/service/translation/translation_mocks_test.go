package translation

import (
	"context"
	"sync"
)

// fakeGenerator records prompts and replies from a function
type fakeGenerator struct {
	mu       sync.Mutex
	prompts  []string
	Generate func(ctx context.Context, prompt string) (string, error)
}

func (f *fakeGenerator) generator() Generator {
	return GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		f.mu.Lock()
		f.prompts = append(f.prompts, prompt)
		f.mu.Unlock()
		if f.Generate != nil {
			return f.Generate(ctx, prompt)
		}
		return "", nil
	})
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *fakeGenerator) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

func replying(reply string) func(context.Context, string) (string, error) {
	return func(context.Context, string) (string, error) { return reply, nil }
}
