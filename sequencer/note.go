package sequencer

import "fmt"

// Engine limits and defaults
const (
	DefaultTempo  = 120
	DefaultSteps  = 16
	DefaultMemory = 2048 // bytes of note storage

	MinTempo = 10
	MaxTempo = 250
	MaxSteps = 128

	// NoteSize is the size of one stored note record in bytes (channel,
	// pitch, velocity, step). Memory budgets are divided by it.
	NoteSize = 4

	shuffleSteps = 16 // a sixteenth is split into this many swing increments
	tempoStep    = 5
)

// Note is one stored step event
type Note struct {
	Channel  uint8 `json:"channel"`
	Pitch    uint8 `json:"pitch"`
	Velocity uint8 `json:"velocity"`
	Step     uint8 `json:"step"`
}

// EmptyNote is returned for lookups that find nothing
var EmptyNote = Note{}

func (n Note) String() string {
	return fmt.Sprintf("step %d ch %d pitch %d vel %d", n.Step, n.Channel, n.Pitch, n.Velocity)
}

// slot is one arena cell. used marks occupancy, so a zero note is a
// storable value and never doubles as the empty marker.
type slot struct {
	note Note
	used bool
}

func (s *slot) clear() {
	*s = slot{}
}

func (s *slot) set(n Note) {
	s.note = n
	s.used = true
}

// Config holds the transport settings applied by Begin
type Config struct {
	Tempo   int `json:"tempo" yaml:"tempo"`
	Steps   int `json:"steps" yaml:"steps"`
	Shuffle int `json:"shuffle" yaml:"shuffle"` // swing divisions, 0-15
}

// DefaultConfig returns tempo 120, 16 steps, no shuffle
func DefaultConfig() Config {
	return Config{Tempo: DefaultTempo, Steps: DefaultSteps}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp7(v uint8) uint8 {
	if v > 127 {
		return 127
	}
	return v
}
