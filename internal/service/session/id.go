package session

import (
	"fmt"
	"sync/atomic"
)

type IDGenerator struct {
	counter atomic.Uint64
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

func (g *IDGenerator) Next(channel string, kind Kind) string {
	n := g.counter.Add(1)
	return fmt.Sprintf("%s-%s-%d", channel, kind, n)
}
