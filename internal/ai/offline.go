package ai

import (
	"context"
	"errors"
)

// ErrOffline is returned by Offline for every request.
var ErrOffline = errors.New("ai generation disabled")

// Offline is a Client used when no API key is configured. Every generated
// prop resolves to the error placeholder while static content still works.
type Offline struct{}

var _ Client = Offline{}

func (Offline) Complete(context.Context, string, string) (string, error) {
	return "", ErrOffline
}

// Func adapts a function into a Client.
type Func func(ctx context.Context, system, prompt string) (string, error)

var _ Client = Func(nil)

func (f Func) Complete(ctx context.Context, system, prompt string) (string, error) {
	return f(ctx, system, prompt)
}
