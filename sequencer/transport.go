package sequencer

import "go-sixteenstep/debug"

// Start runs the sequence from the top. The first step fires one
// sixteenth (plus shuffle) from now.
func (e *Engine) Start() {
	e.mu.Lock()
	now := e.now()
	e.position = beforeFirstStep
	e.running = true
	e.nextClock = now + e.clockPeriod
	e.nextBeat = now + e.sixteenth + e.shuffle
	tempo, steps := e.tempo, e.steps
	e.mu.Unlock()

	debug.Log("engine", "start tempo=%d steps=%d", tempo, steps)
}

// Stop halts playback, keeping the position
func (e *Engine) Stop() {
	e.mu.Lock()
	e.running = false
	pos := e.position
	e.mu.Unlock()

	debug.Log("engine", "stop at %d", pos)
}

// Pause toggles between running and stopped at the current position.
// Resuming reschedules from now so a long pause does not cause a burst of
// catch-up steps. It reports whether the engine is now running.
func (e *Engine) Pause() bool {
	e.mu.Lock()
	e.running = !e.running
	resumed := e.running
	pos := e.position
	if resumed {
		now := e.now()
		e.nextClock = now + e.clockPeriod
		e.nextBeat = e.beatAfter(now, pos)
	}
	e.mu.Unlock()

	debug.Log("engine", "pause running=%v pos=%d", resumed, pos)
	return resumed
}

// Poll must be called continuously from the host loop. It emits a MIDI
// clock tick when one is due and advances a step when the next beat time
// has been reached. It never blocks beyond the engine lock.
func (e *Engine) Poll() {
	e.stepMu.Lock()
	defer e.stepMu.Unlock()

	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	now := e.now()

	tick := false
	if reached(now, e.nextClock) {
		e.nextClock += e.clockPeriod
		tick = e.sendClock
	}
	sink := e.sink

	if !reached(now, e.nextBeat) {
		e.mu.Unlock()
		if tick && sink != nil {
			sink.EmitMIDI(0, CmdClock, 0, 0)
		}
		return
	}

	ev := e.advance()
	// swing: even steps are lengthened, odd steps shortened
	e.nextBeat = e.beatAfter(now, e.position)
	e.mu.Unlock()

	if tick && sink != nil {
		sink.EmitMIDI(0, CmdClock, 0, 0)
	}
	e.dispatch(ev)
}

// ExternalStep advances one step immediately, for an externally clocked
// transport. Ignored while stopped.
func (e *Engine) ExternalStep() {
	e.stepMu.Lock()
	defer e.stepMu.Unlock()

	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	ev := e.advance()
	e.mu.Unlock()

	e.dispatch(ev)
}

func (e *Engine) beatAfter(now uint32, pos int) uint32 {
	if pos < 0 || pos%2 == 0 {
		return now + e.sixteenth + e.shuffle
	}
	return now + e.sixteenth - e.shuffle
}

// SetTempo sets beats per minute, clamped to [MinTempo, MaxTempo]
func (e *Engine) SetTempo(bpm int) {
	e.mu.Lock()
	e.setTempo(bpm)
	tempo, shuffle := e.tempo, e.shuffle
	e.mu.Unlock()

	debug.Log("engine", "tempo=%d shuffle=%dms", tempo, shuffle)
}

func (e *Engine) setTempo(bpm int) {
	e.tempo = clamp(bpm, MinTempo, MaxTempo)
	e.sixteenth = 60000 / uint32(e.tempo) / 4
	e.clockPeriod = 60000 / uint32(e.tempo) / 24

	// shuffle must stay below the new sixteenth
	if limit := e.maxShuffle(); e.shuffle > limit {
		e.shuffle = limit
	}
}

// IncreaseTempo raises the tempo by 5 BPM
func (e *Engine) IncreaseTempo() {
	e.mu.Lock()
	e.setTempo(e.tempo + tempoStep)
	e.mu.Unlock()
}

// DecreaseTempo lowers the tempo by 5 BPM
func (e *Engine) DecreaseTempo() {
	e.mu.Lock()
	e.setTempo(e.tempo - tempoStep)
	e.mu.Unlock()
}

func (e *Engine) shuffleDivision() uint32 {
	return e.sixteenth / shuffleSteps
}

func (e *Engine) maxShuffle() uint32 {
	return e.sixteenth - e.shuffleDivision()
}

// IncreaseShuffle adds one swing division
func (e *Engine) IncreaseShuffle() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shuffle += e.shuffleDivision()
	if limit := e.maxShuffle(); e.shuffle > limit {
		e.shuffle = limit
	}
}

// DecreaseShuffle removes one swing division, stopping at zero
func (e *Engine) DecreaseShuffle() {
	e.mu.Lock()
	defer e.mu.Unlock()
	div := e.shuffleDivision()
	if e.shuffle < div {
		e.shuffle = 0
		return
	}
	e.shuffle -= div
}

// SetShuffle sets the swing amount in divisions, clamped to [0, 15]
func (e *Engine) SetShuffle(divisions int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shuffle = uint32(clamp(divisions, 0, shuffleSteps-1)) * e.shuffleDivision()
}

func (e *Engine) Tempo() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tempo
}

func (e *Engine) Steps() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.steps
}

// Position returns the last played step, or -1 before the first step
func (e *Engine) Position() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Sixteenth returns the step length in milliseconds
func (e *Engine) Sixteenth() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sixteenth
}

// ClockPeriod returns the MIDI clock interval in milliseconds
func (e *Engine) ClockPeriod() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clockPeriod
}

// Shuffle returns the swing offset in milliseconds
func (e *Engine) Shuffle() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shuffle
}

func (e *Engine) ShuffleDivision() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shuffleDivision()
}

func (e *Engine) NextBeat() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nextBeat
}

func (e *Engine) NextClock() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nextClock
}
