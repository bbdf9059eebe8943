// Package provider defines the reasoning-process contract and its CLI
// implementation.
package provider

import (
	"context"
	"errors"
)

// Provider is the narrow interface the engine consumes. The reasoning
// process is a black box: prompt in, text out, bounded by a timeout.
type Provider interface {
	// Generate runs one reasoning turn. Implementations must treat any
	// non-empty response as success and return an error otherwise.
	Generate(ctx context.Context, prompt string) (string, error)
}

// Prober is implemented by providers that can report availability.
type Prober interface {
	// Probe checks the backing process and returns a version string.
	Probe(ctx context.Context) (string, error)
}

// ErrEmptyResponse is returned when the reasoning process produced no
// output. It consumes a retry attempt like a timeout does.
var ErrEmptyResponse = errors.New("empty response from reasoning process")
