package sequencer

import (
	"fmt"
	"io"
)

// stepEvent carries one advance out of the lock to the callbacks
type stepEvent struct {
	current  int
	previous int
	sink     MIDISink
	onStep   StepHandler
	notes    []Note
}

// advance moves to the next step and collects its notes into the scratch
// buffer. e.mu and e.stepMu must be held.
func (e *Engine) advance() stepEvent {
	prev := e.position
	e.position++
	if e.position >= e.steps {
		e.position = 0
	}

	ev := stepEvent{
		current:  e.position,
		previous: prev,
		sink:     e.sink,
		onStep:   e.onStep,
	}

	if e.muteNext {
		e.muteNext = false
		return ev
	}
	if e.sink == nil {
		return ev
	}

	buf := e.scratch[:0]
	for i := range e.slots {
		s := &e.slots[i]
		if s.used && int(s.note.Step) == e.position {
			buf = append(buf, s.note)
		}
	}
	e.scratch = buf
	ev.notes = buf
	return ev
}

// dispatch runs the callbacks for one advance; e.stepMu must be held
func (e *Engine) dispatch(ev stepEvent) {
	if ev.onStep != nil {
		ev.onStep.OnStep(ev.current, ev.previous)
	}
	for _, n := range ev.notes {
		cmd := CmdNoteOff
		if n.Velocity > 0 {
			cmd = CmdNoteOn
		}
		ev.sink.EmitMIDI(n.Channel, cmd, n.Pitch, n.Velocity)
	}
}

// Panic sends all-notes-off on channels 0-15 and empties the store
func (e *Engine) Panic() {
	e.AllNotesOff()

	e.mu.Lock()
	e.reset()
	e.muteNext = false
	e.mu.Unlock()
}

// AllNotesOff sends all-notes-off on channels 0-15, keeping the store
func (e *Engine) AllNotesOff() {
	e.mu.Lock()
	sink := e.sink
	e.mu.Unlock()

	if sink == nil {
		return
	}
	for ch := uint8(0); ch < 16; ch++ {
		sink.EmitMIDI(ch, CmdAllNotesOff, 0, 0)
	}
}

// SendSongPosition reports the current step to the MIDI sink
func (e *Engine) SendSongPosition() {
	e.mu.Lock()
	sink, pos := e.sink, e.position
	e.mu.Unlock()

	if sink != nil {
		sink.EmitMIDI(0, CmdSongPosition, 0, songPosition(pos))
	}
}

func songPosition(pos int) uint8 {
	if pos < 0 {
		return 0
	}
	return uint8(pos)
}

// Dump writes every store slot to w, free slots included
func (e *Engine) Dump(w io.Writer) error {
	e.mu.Lock()
	slots := make([]slot, len(e.slots))
	copy(slots, e.slots)
	e.mu.Unlock()

	for i, s := range slots {
		var err error
		if s.used {
			_, err = fmt.Fprintf(w, "dump: seq %d step %d ch x%02x pitch %d vel %d\n",
				i, s.note.Step, s.note.Channel, s.note.Pitch, s.note.Velocity)
		} else {
			_, err = fmt.Fprintf(w, "dump: seq %d free\n", i)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
