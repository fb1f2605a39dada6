// Package gc defines how the port layer reports roots to the collector.
//
// The collector is conservative: it treats every word inside a reported
// range as a potential pointer. Ranges are therefore described only by a
// base address and a length in words.
package gc

import (
	"sync"
	"unsafe"
)

// RootKind tags what a reported range holds.
type RootKind uint8

const (
	RootHandle RootKind = iota // a thread's kernel handle
	RootArg                    // a thread's start argument
	RootStack                  // a thread's stack memory
)

// String returns the string representation of the kind
func (k RootKind) String() string {
	switch k {
	case RootHandle:
		return "handle"
	case RootArg:
		return "arg"
	case RootStack:
		return "stack"
	default:
		return "unknown"
	}
}

// Range is a run of words to be scanned as roots.
type Range struct {
	Kind   RootKind
	Base   unsafe.Pointer
	Words  uintptr
	Thread string
}

// Reporter receives root ranges during a scan.
type Reporter interface {
	ReportRoots(r Range)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(r Range)

func (f ReporterFunc) ReportRoots(r Range) { f(r) }

// Recorder is a Reporter that keeps every range it is given.
type Recorder struct {
	mu     sync.Mutex
	ranges []Range
}

func (r *Recorder) ReportRoots(rng Range) {
	r.mu.Lock()
	r.ranges = append(r.ranges, rng)
	r.mu.Unlock()
}

// Ranges returns a copy of the recorded ranges.
func (r *Recorder) Ranges() []Range {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Range, len(r.ranges))
	copy(out, r.ranges)
	return out
}

// Count returns how many ranges of kind were recorded.
func (r *Recorder) Count(kind RootKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rng := range r.ranges {
		if rng.Kind == kind {
			n++
		}
	}
	return n
}

// Words returns the total number of words recorded.
func (r *Recorder) Words() uintptr {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n uintptr
	for _, rng := range r.ranges {
		n += rng.Words
	}
	return n
}

// Reset drops all recorded ranges.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.ranges = nil
	r.mu.Unlock()
}
