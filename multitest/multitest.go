/*
Package multitest provides helpers for testing code built on this
module: deterministic addresses, committee builders, a context carrying
a block time and an event emitter that records what was emitted.
*/
package multitest

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/iov-one/multident"
	"github.com/iov-one/multident/x/multicontroller"
)

// SequenceAddress returns a deterministic address for the given index.
// Subsequent calls with the same index return the same address.
func SequenceAddress(i uint64) multident.Address {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, i)
	return multident.NewAddress(raw)
}

// Committee returns n members with the given weights. When fewer
// weights than members are given the last weight is repeated, when none
// is given every member has weight 1.
func Committee(n int, weights ...uint64) []multicontroller.Member {
	members := make([]multicontroller.Member, n)
	for i := range members {
		w := uint64(1)
		switch {
		case i < len(weights):
			w = weights[i]
		case len(weights) > 0:
			w = weights[len(weights)-1]
		}
		members[i] = multicontroller.Member{
			Address: SequenceAddress(uint64(i + 1)),
			Weight:  w,
		}
	}
	return members
}

// DefaultTime is the block time used by Context.
var DefaultTime = multident.AsUnixMillis(time.Date(2021, 4, 1, 12, 0, 0, 0, time.UTC))

// Context returns a context carrying DefaultTime as the block time.
func Context() multident.Context {
	return multident.WithBlockTime(context.Background(), DefaultTime)
}

// ContextAt returns a context carrying the given block time.
func ContextAt(t multident.UnixMillis) multident.Context {
	return multident.WithBlockTime(context.Background(), t)
}

// Emitter records every emitted event for later inspection.
type Emitter struct {
	Events []multident.Event
}

var _ multident.Emitter = (*Emitter)(nil)

func (e *Emitter) Emit(ev multident.Event) {
	e.Events = append(e.Events, ev)
}

// OfType returns the recorded events of the given type.
func (e *Emitter) OfType(typ string) []multident.Event {
	var out []multident.Event
	for _, ev := range e.Events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// Reset drops all recorded events.
func (e *Emitter) Reset() {
	e.Events = nil
}
