package id

import (
	"strconv"
	"sync/atomic"
	"time"
)

// Generator produces unique string identifiers, typically used as default
// dispatch keys for batches whose jobs carry none.
type Generator interface {
	Next() string
}

// TypeIDGenerator generates TypeIDs with a fixed prefix.
type TypeIDGenerator struct {
	Prefix Prefix
}

// Next returns a new TypeID string.
func (g TypeIDGenerator) Next() string {
	p := g.Prefix
	if p == "" {
		p = PrefixKey
	}
	return New(p).String()
}

// SequenceGenerator yields "<prefix><unix-millis>-<seq>" values. The
// sequence makes ids generated within the same millisecond distinct; the
// clock is injectable for deterministic tests.
type SequenceGenerator struct {
	Prefix string
	Now    func() time.Time

	seq atomic.Uint64
}

// Next returns the next identifier.
func (g *SequenceGenerator) Next() string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	n := g.seq.Add(1)
	return g.Prefix + strconv.FormatInt(now().UnixMilli(), 10) + "-" + strconv.FormatUint(n, 10)
}
