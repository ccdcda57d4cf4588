// Package idgen generates identifiers and human-facing reference numbers.
package idgen

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Reference number prefixes.
const (
	QuotePrefix  = "Q"
	PolicyPrefix = "P"
	ClaimPrefix  = "C"
)

// MustGenerateSortableID returns a ULID: time-ordered, collision-resistant,
// safe to use as an event or aggregate identifier.
func MustGenerateSortableID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	ms := ulid.Timestamp(time.Now())
	id, err := ulid.New(ms, entropy)
	if err != nil {
		panic(err)
	}
	return id.String()
}

// SequenceGenerator issues sequential, prefixed reference numbers like
// "Q-000042". It satisfies the domain packages' NumberGenerator contract.
// Production deployments back the sequence with a durable counter; this
// in-memory form serves demos and tests.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	next   int64
}

// NewSequenceGenerator starts a generator at the given sequence value.
func NewSequenceGenerator(prefix string, start int64) *SequenceGenerator {
	return &SequenceGenerator{prefix: prefix, next: start}
}

// Next issues the next reference number.
func (g *SequenceGenerator) Next() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.next
	g.next++
	return fmt.Sprintf("%s-%06d", g.prefix, n), nil
}
