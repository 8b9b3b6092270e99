package sequencer

// sort orders the store in place, highest priority first: occupied slots
// ahead of free ones, then velocity, pitch, step and channel descending.
// Equal slots keep no particular order. e.mu must be held.
func (e *Engine) sort() {
	s := e.slots
	n := len(s)

	// min-heap, so repeatedly moving the root to the end leaves the
	// slice in descending order
	for i := n/2 - 1; i >= 0; i-- {
		siftDown(s, i, n)
	}
	for end := n - 1; end > 0; end-- {
		s[0], s[end] = s[end], s[0]
		siftDown(s, 0, end)
	}
}

func siftDown(s []slot, root, n int) {
	for {
		child := 2*root + 1
		if child >= n {
			return
		}
		if child+1 < n && compareSlots(&s[child+1], &s[child]) < 0 {
			child++
		}
		if compareSlots(&s[root], &s[child]) <= 0 {
			return
		}
		s[root], s[child] = s[child], s[root]
		root = child
	}
}

// compareSlots returns 1 if a ranks above b, -1 if below, 0 if equal
func compareSlots(a, b *slot) int {
	if a.used != b.used {
		if a.used {
			return 1
		}
		return -1
	}
	if c := cmp8(a.note.Velocity, b.note.Velocity); c != 0 {
		return c
	}
	if c := cmp8(a.note.Pitch, b.note.Pitch); c != 0 {
		return c
	}
	if c := cmp8(a.note.Step, b.note.Step); c != 0 {
		return c
	}
	return cmp8(a.note.Channel, b.note.Channel)
}

func cmp8(a, b uint8) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	}
	return 0
}
