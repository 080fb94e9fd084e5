// Package username builds random usernames from a list of first names.
//
// Each username is the lowercased name followed by one random digit and eight
// random characters drawn from Alphabet. The random stream is injectable so
// output is reproducible under a fixed seed.
package username

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"strings"
)

const (
	Letters  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	Digits   = "0123456789"
	Symbols  = "!()@$^&*[]"
	Alphabet = Letters + Digits + Symbols

	// SuffixLen is the number of alphabet characters after the digit.
	SuffixLen = 8
)

// Generator produces usernames. It is not safe for concurrent use.
type Generator struct {
	rng *rand.Rand
}

// New creates a Generator reading from src.
func New(src rand.Source) *Generator {
	return &Generator{rng: rand.New(src)}
}

// NewWithSeed creates a deterministic Generator.
func NewWithSeed(seed uint64) *Generator {
	return New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewSeeded creates a Generator seeded from the operating system's entropy source.
func NewSeeded() (*Generator, error) {
	var b [16]byte
	if _, err := crand.Read(b[:]); err != nil {
		return nil, fmt.Errorf("reading entropy: %w", err)
	}
	return New(rand.NewPCG(
		binary.LittleEndian.Uint64(b[:8]),
		binary.LittleEndian.Uint64(b[8:]),
	)), nil
}

// Generate returns name lowercased plus one digit and SuffixLen alphabet characters.
func (g *Generator) Generate(name string) string {
	var sb strings.Builder
	lower := strings.ToLower(name)
	sb.Grow(len(lower) + 1 + SuffixLen)

	sb.WriteString(lower)
	sb.WriteByte(Digits[g.rng.IntN(len(Digits))])
	for i := 0; i < SuffixLen; i++ {
		sb.WriteByte(Alphabet[g.rng.IntN(len(Alphabet))])
	}
	return sb.String()
}

// GenerateAll returns one username per name, in order.
func (g *Generator) GenerateAll(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, g.Generate(name))
	}
	return out
}
