package annotation

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator supplies the identifiers written into rendered output.
// Implementations used across documents must be safe for concurrent use.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator issues random version 4 UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.NewString() }

// SequenceGenerator issues "<prefix><n>" with n counting from 1.
type SequenceGenerator struct {
	Prefix string
	n      atomic.Int64
}

func NewSequence(prefix string) *SequenceGenerator {
	return &SequenceGenerator{Prefix: prefix}
}

func (g *SequenceGenerator) NewID() string {
	return fmt.Sprintf("%s%d", g.Prefix, g.n.Add(1))
}
