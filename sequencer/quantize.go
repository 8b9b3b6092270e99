package sequencer

// QuantizedPosition returns the step a note played now should be recorded
// on: the current step during its first half, the next step after that.
// Quantizing is skipped while shuffle is active since the nearest step is
// ambiguous under swing.
func (e *Engine) QuantizedPosition() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.quantizedPosition()
}

func (e *Engine) quantizedPosition() int {
	if e.shuffle > 0 {
		return e.position
	}

	now := e.now()
	boundary := e.nextBeat - e.sixteenth/2

	// a tie stays on the current step
	if int32(now-boundary) <= 0 {
		return e.position
	}
	if e.position+1 >= e.steps {
		return 0
	}
	return e.position + 1
}
