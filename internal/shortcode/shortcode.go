// Package shortcode generates random, URL-safe short codes.
package shortcode

import (
	"errors"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultLength is the short code length used when none is configured.
const DefaultLength = 10

// ErrInvalidLength is returned when the generator is configured with a non-positive length.
var ErrInvalidLength = errors.New("short code length must be positive")

// Generator produces fixed-length nanoid codes over the URL-safe alphabet
// (A-Z, a-z, 0-9, '_' and '-'). Codes are not guaranteed to be unique;
// uniqueness is enforced by the durable store.
type Generator struct {
	length int
}

// NewGenerator returns a Generator producing codes of the given length.
func NewGenerator(length int) (*Generator, error) {
	const op = "shortcode.NewGenerator"

	if length < 1 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidLength)
	}

	return &Generator{length: length}, nil
}

// Length returns the length of the generated codes.
func (g *Generator) Length() int {
	return g.length
}

// Generate returns a new random short code.
func (g *Generator) Generate() (string, error) {
	const op = "shortcode.Generator.Generate"

	code, err := gonanoid.New(g.length)
	if err != nil {
		return "", fmt.Errorf("%s: failed to generate short code: %w", op, err)
	}

	return code, nil
}
