package selector

import (
	"context"
	"math/rand/v2"
)

type contextKey string

const randomKey contextKey = "selector_random"

// Random is the subset of *rand.Rand the selector draws from.
type Random interface {
	Float64() float64
	IntN(n int) int
}

// WithRandom attaches a random source to the context. Tests pass a seeded
// *rand.Rand to make selection reproducible.
func WithRandom(ctx context.Context, r Random) context.Context {
	return context.WithValue(ctx, randomKey, r)
}

// RandomFrom extracts the random source from the context, falling back to
// the goroutine-safe global source.
func RandomFrom(ctx context.Context) Random {
	if r, ok := ctx.Value(randomKey).(Random); ok && r != nil {
		return r
	}
	return globalRandom{}
}

// NewSeeded returns a deterministic source for the given seed.
func NewSeeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

type globalRandom struct{}

func (globalRandom) Float64() float64 { return rand.Float64() }
func (globalRandom) IntN(n int) int   { return rand.IntN(n) }
