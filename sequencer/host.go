package sequencer

import "time"

// MIDI commands passed to a MIDISink. Note commands are the 4-bit status
// nibble; channel is passed separately.
const (
	CmdNoteOff      uint8 = 0x8
	CmdNoteOn       uint8 = 0x9
	CmdSongPosition uint8 = 0xF2
	CmdClock        uint8 = 0xF8
	CmdAllNotesOff  uint8 = 0x7B
)

// MIDISink receives every message the engine produces
type MIDISink interface {
	EmitMIDI(channel, command, arg1, arg2 uint8)
}

// StepHandler is notified once per step advance
type StepHandler interface {
	OnStep(current, previous int)
}

// Clock is a monotonic millisecond source. Engines that must stay in
// lockstep share one Clock.
type Clock interface {
	NowMillis() uint32
}

// Host bundles all three capabilities
type Host interface {
	MIDISink
	StepHandler
	Clock
}

// MIDIFunc adapts a function to MIDISink
type MIDIFunc func(channel, command, arg1, arg2 uint8)

func (f MIDIFunc) EmitMIDI(channel, command, arg1, arg2 uint8) {
	f(channel, command, arg1, arg2)
}

// StepFunc adapts a function to StepHandler
type StepFunc func(current, previous int)

func (f StepFunc) OnStep(current, previous int) {
	f(current, previous)
}

// ClockFunc adapts a function to Clock
type ClockFunc func() uint32

func (f ClockFunc) NowMillis() uint32 {
	return f()
}

// SystemClock counts milliseconds from its creation on the monotonic clock
type SystemClock struct {
	t0 time.Time
}

// NewSystemClock starts a clock at zero
func NewSystemClock() *SystemClock {
	return &SystemClock{t0: time.Now()}
}

func (c *SystemClock) NowMillis() uint32 {
	return uint32(time.Since(c.t0).Milliseconds())
}

// reached reports whether now is at or past t, tolerating u32 wraparound
func reached(now, t uint32) bool {
	return int32(now-t) >= 0
}
