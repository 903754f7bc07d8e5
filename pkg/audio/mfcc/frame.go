package mfcc

import "iter"

// Frame is a fixed-length window over a parent sample slice.
// Samples aliases the parent and is only valid while the parent is.
type Frame struct {
	Index   int
	Offset  int
	Samples []float64
}

// FrameCount returns floor((n-window)/hop)+1 for n >= window, else 0.
// Invalid parameters (non-positive sizes or hop > window) yield 0.
func FrameCount(n, window, hop int) int {
	if window <= 0 || hop <= 0 || hop > window || n < window {
		return 0
	}
	return (n-window)/hop + 1
}

// Frames returns the frames of samples in order. Trailing samples that do
// not fill a whole window are dropped. The sequence may be ranged over any
// number of times and always yields the same boundaries.
func Frames(samples []float64, window, hop int) iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		count := FrameCount(len(samples), window, hop)
		for i := range count {
			off := i * hop
			end := off + window
			if !yield(Frame{Index: i, Offset: off, Samples: samples[off:end:end]}) {
				return
			}
		}
	}
}
