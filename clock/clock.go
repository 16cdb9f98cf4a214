// Package clock provides the logical clock value carried by log entries.
//
// A Clock is a Lamport timestamp scoped to an author: ID names the writer
// (usually its public key) and Time is a counter that only moves forward.
// Entries carry the clock as an opaque value; ordering and merging are the
// caller's concern and are offered here as helpers.
package clock

import "strings"

// Clock is a Lamport timestamp.
type Clock struct {
	ID   string `cbor:"id"`
	Time uint64 `cbor:"time"`
}

// New returns a clock for id at time zero.
func New(id string) Clock {
	return Clock{ID: id}
}

// At returns a clock for id at the given time.
func At(id string, time uint64) Clock {
	return Clock{ID: id, Time: time}
}

// Defined reports whether c names a writer.
func (c Clock) Defined() bool {
	return c.ID != ""
}

// Tick returns the clock advanced by one.
func (c Clock) Tick() Clock {
	return Clock{ID: c.ID, Time: c.Time + 1}
}

// Merge returns c with its time raised to at least other's time. The ID
// of c is kept.
func (c Clock) Merge(other Clock) Clock {
	if other.Time > c.Time {
		return Clock{ID: c.ID, Time: other.Time}
	}
	return c
}

// Compare orders clocks by time, breaking ties by ID. It returns a
// negative number when a sorts before b, zero when equal and a positive
// number otherwise.
func Compare(a, b Clock) int {
	switch {
	case a.Time < b.Time:
		return -1
	case a.Time > b.Time:
		return 1
	}
	return strings.Compare(a.ID, b.ID)
}
