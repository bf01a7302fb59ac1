package translation

import "context"

// Generator sends one instruction to a text-generation model and returns its reply.
// Implementations report failures as *errors.AppError with CodeConfiguration,
// CodeTransport, CodeMalformed or CodeEmptyResult.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
