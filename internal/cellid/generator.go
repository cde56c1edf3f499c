package cellid

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

const (
	// DefaultLength is the number of characters kept from a UUID for a short id.
	// The first 8 characters of a canonical UUID are all hex digits.
	DefaultLength = 8

	// DefaultMaxAttempts bounds how many short ids are tried before falling
	// back to a full UUID.
	DefaultMaxAttempts = 16

	// MinLength and MaxLength bound the configurable short id length.
	MinLength = 4
	MaxLength = 36
)

// ErrExhausted is returned when neither short nor full-length candidates
// could be reserved in the set.
var ErrExhausted = errors.New("no unused cell id could be generated")

// Generator produces random cell ids and reserves them in a Set.
type Generator struct {
	length      int
	maxAttempts int
	rand        io.Reader
}

// Option configures a Generator.
type Option func(*Generator)

// WithLength sets the short id length.
func WithLength(n int) Option {
	return func(g *Generator) { g.length = n }
}

// WithMaxAttempts sets how many short ids are tried before the fallback.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) { g.maxAttempts = n }
}

// WithRandom sets the entropy source. Used by tests to force collisions.
func WithRandom(r io.Reader) Option {
	return func(g *Generator) { g.rand = r }
}

// NewGenerator creates a Generator. Invalid options return an error.
func NewGenerator(opts ...Option) (*Generator, error) {
	g := &Generator{
		length:      DefaultLength,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.length < MinLength || g.length > MaxLength {
		return nil, fmt.Errorf("id length must be between %d and %d (got %d)", MinLength, MaxLength, g.length)
	}
	if g.maxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be >= 1 (got %d)", g.maxAttempts)
	}

	return g, nil
}

// Next returns a new id that was absent from seen and is now recorded in it.
//
// Up to maxAttempts short candidates are tried. If every one is taken, a
// full-length UUID is tried once before giving up with ErrExhausted.
func (g *Generator) Next(ctx context.Context, seen Set) (string, error) {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		candidate, err := g.candidate()
		if err != nil {
			return "", err
		}
		candidate = candidate[:g.length]

		added, err := seen.Add(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to reserve cell id: %w", err)
		}
		if added {
			return candidate, nil
		}
	}

	fallback, err := g.candidate()
	if err != nil {
		return "", err
	}
	added, err := seen.Add(ctx, fallback)
	if err != nil {
		return "", fmt.Errorf("failed to reserve cell id: %w", err)
	}
	if !added {
		return "", fmt.Errorf("%w after %d attempts", ErrExhausted, g.maxAttempts+1)
	}

	return fallback, nil
}

func (g *Generator) candidate() (string, error) {
	var (
		u   uuid.UUID
		err error
	)
	if g.rand != nil {
		u, err = uuid.NewRandomFromReader(g.rand)
	} else {
		u, err = uuid.NewRandom()
	}
	if err != nil {
		return "", fmt.Errorf("failed to generate uuid: %w", err)
	}
	return u.String(), nil
}
