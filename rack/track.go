package rack

import (
	"sync/atomic"

	"go-sixteenstep/debug"
	"go-sixteenstep/sequencer"
)

// Track is one engine of the rack and where its output goes
type Track struct {
	Name     string
	PortName string // empty = rack default port
	Channel  int    // 1-16 pins the output channel, 0 keeps the note's
	Engine   *sequencer.Engine

	index int
	muted atomic.Bool
}

func (t *Track) Index() int {
	return t.index
}

func (t *Track) Muted() bool {
	return t.muted.Load()
}

func (t *Track) SetMuted(muted bool) {
	t.muted.Store(muted)
	debug.Log("rack", "track %s muted=%v", t.Name, muted)
}

// outChannel maps a note channel to the channel sent on the wire
func (t *Track) outChannel(ch uint8) uint8 {
	if t.Channel > 0 {
		return uint8(t.Channel-1) & 0x0F
	}
	return ch & 0x0F
}

// trackSink routes one engine's output through its track settings
type trackSink struct {
	m *Manager
	t *Track
}

func (s *trackSink) EmitMIDI(channel, command, arg1, arg2 uint8) {
	switch command {
	case sequencer.CmdNoteOn, sequencer.CmdNoteOff:
		if s.t.Muted() {
			return
		}
		channel = s.t.outChannel(channel)
	case sequencer.CmdAllNotesOff:
		// a pinned track only needs its own channel silenced
		if s.t.Channel > 0 {
			if channel != 0 {
				return
			}
			channel = s.t.outChannel(channel)
		}
	case sequencer.CmdClock, sequencer.CmdSongPosition:
		// transport messages come from the clock track only
		if s.t.index != 0 {
			return
		}
	}

	sink := s.m.sink(s.t.PortName)
	if sink == nil {
		return
	}
	sink.EmitMIDI(channel, command, arg1, arg2)
}
