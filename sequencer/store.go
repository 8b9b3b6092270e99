package sequencer

import "go-sixteenstep/debug"

// SetSteps sets the loop length, clamped to [1, MaxSteps]. Notes at or past
// the new length are cleared so they cannot linger unreachable.
func (e *Engine) SetSteps(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.steps = clamp(n, 1, MaxSteps)
	cleared := 0
	for i := range e.slots {
		if e.slots[i].used && int(e.slots[i].note.Step) >= e.steps {
			e.slots[i].clear()
			cleared++
		}
	}
	if cleared > 0 {
		e.sort()
		debug.Log("engine", "steps=%d cleared %d notes", e.steps, cleared)
	}
}

// InsertLive records a note played live at the quantized current step.
// Re-sending a note-on that is already stored on that step and channel
// removes it instead; note-offs never remove anything. A recorded note mutes the next trigger so it is not echoed
// twice. Ignored while stopped.
func (e *Engine) InsertLive(channel, pitch, velocity uint8) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}
	step := e.quantizedPosition()
	if step < 0 {
		step = 0
	}
	n := newNote(step, channel, pitch, velocity)

	for i := range e.slots {
		s := &e.slots[i]
		if n.Velocity > 0 && s.used && s.note.Step == n.Step && s.note.Channel == n.Channel &&
			s.note.Pitch == n.Pitch && s.note.Velocity > 0 {
			s.clear()
			e.sort()
			return
		}
	}

	if i := e.freeSlot(); i >= 0 {
		e.slots[i].set(n)
		e.muteNext = true
	} else {
		debug.LogEvery(16, "engine", "store full (%d), dropped live %v", len(e.slots), n)
	}
	e.sort()
}

// InsertAt stores a note at an explicit step, overwriting the first note
// already on that step and channel. Steps outside the loop are ignored.
func (e *Engine) InsertAt(step int, channel, pitch, velocity uint8) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if step < 0 || step >= e.steps {
		debug.Log("engine", "insert at step %d outside 0..%d ignored", step, e.steps-1)
		return
	}
	n := newNote(step, channel, pitch, velocity)

	idx := e.find(n.Step, n.Channel)
	if idx < 0 {
		idx = e.freeSlot()
	}
	if idx < 0 {
		debug.LogEvery(16, "engine", "store full (%d), dropped %v", len(e.slots), n)
		return
	}
	e.slots[idx].set(n)
	e.sort()
}

// RemoveAt clears the first note on step and channel
func (e *Engine) RemoveAt(step int, channel uint8) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if step < 0 || step >= MaxSteps {
		return
	}
	if i := e.find(uint8(step), channel&0x0F); i >= 0 {
		e.slots[i].clear()
		e.sort()
	}
}

// RemoveChannel clears every note on channel
func (e *Engine) RemoveChannel(channel uint8) {
	e.mu.Lock()
	defer e.mu.Unlock()

	channel &= 0x0F
	cleared := false
	for i := range e.slots {
		if e.slots[i].used && e.slots[i].note.Channel == channel {
			e.slots[i].clear()
			cleared = true
		}
	}
	if cleared {
		e.sort()
	}
}

// QueryNote returns the first sounding note (velocity > 0) on step and
// channel. ok is false when there is none; stored note-offs are not
// reported.
func (e *Engine) QueryNote(step int, channel uint8) (Note, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if step < 0 || step >= MaxSteps {
		return EmptyNote, false
	}
	channel &= 0x0F
	for i := range e.slots {
		s := &e.slots[i]
		if s.used && int(s.note.Step) == step && s.note.Channel == channel && s.note.Velocity > 0 {
			return s.note, true
		}
	}
	return EmptyNote, false
}

// Len returns the number of stored notes
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for i := range e.slots {
		if e.slots[i].used {
			n++
		}
	}
	return n
}

// Cap returns the store capacity
func (e *Engine) Cap() int {
	return len(e.slots)
}

// Notes returns a copy of the stored notes in priority order
func (e *Engine) Notes() []Note {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []Note
	for i := range e.slots {
		if e.slots[i].used {
			out = append(out, e.slots[i].note)
		}
	}
	return out
}

// reset empties the whole store; e.mu must be held
func (e *Engine) reset() {
	for i := range e.slots {
		e.slots[i].clear()
	}
}

func (e *Engine) find(step, channel uint8) int {
	for i := range e.slots {
		s := &e.slots[i]
		if s.used && s.note.Step == step && s.note.Channel == channel {
			return i
		}
	}
	return -1
}

func (e *Engine) freeSlot() int {
	for i := range e.slots {
		if !e.slots[i].used {
			return i
		}
	}
	return -1
}

func newNote(step int, channel, pitch, velocity uint8) Note {
	return Note{
		Channel:  channel & 0x0F,
		Pitch:    clamp7(pitch),
		Velocity: clamp7(velocity),
		Step:     uint8(step),
	}
}
