package pop3

import "strconv"

// Window is an inclusive range of 1-based message numbers.
type Window struct {
	Min int
	Max int
}

// ComputeWindow selects the page of rng messages that ends start messages
// before the newest one. rng below 1 counts as 1 and a negative start as 0.
// A start at or beyond total selects the newest page again. The result is
// empty when total is 0.
func ComputeWindow(total, start, rng int) Window {
	if rng <= 0 {
		rng = 1
	}
	if start < 0 {
		start = 0
	}

	last := total - start
	if last < 1 {
		last = total
	}
	first := last - rng + 1
	if first < 1 {
		first = 1
	}
	return Window{Min: first, Max: last}
}

// Empty reports whether the window selects nothing.
func (w Window) Empty() bool { return w.Max < w.Min }

// Single reports whether the window is one message.
func (w Window) Single() bool { return w.Min == w.Max }

// Indices lists the message numbers in ascending order.
func (w Window) Indices() []int {
	if w.Empty() {
		return nil
	}
	out := make([]int, 0, w.Max-w.Min+1)
	for i := w.Min; i <= w.Max; i++ {
		out = append(out, i)
	}
	return out
}

// String returns "n" for a single message and "min:max" otherwise.
func (w Window) String() string {
	if w.Single() {
		return strconv.Itoa(w.Min)
	}
	return strconv.Itoa(w.Min) + ":" + strconv.Itoa(w.Max)
}
